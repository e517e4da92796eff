// Package bootstrap brings up the process infrastructure in order: logging,
// the database connection, then schema migrations.
package bootstrap

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/todobot/core/config"
	coredatabase "github.com/m3rciful/todobot/core/database"
	"github.com/m3rciful/todobot/core/logger"
)

// Options select the configuration and, for tests, replace individual stages.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	// Migrations holds <driver>/<version>_<name>.<up|down>.sql files; nil skips the stage.
	Migrations fs.FS

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB, coredatabase.Config, fs.FS) error
}

// Result is the infrastructure handed to the application.
type Result struct {
	DB *sqlx.DB
}

type stage struct {
	name string
	run  func() error
}

// Run executes the stages and stops at the first failure. A database opened
// before a failing stage is closed.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	opts = withDefaults(opts)

	res := &Result{}
	stages := []stage{
		{name: "logger", run: func() error { return opts.LoggerInit(opts.Config) }},
		{name: "database", run: func() (err error) {
			res.DB, err = opts.Connect(opts.Database)
			return err
		}},
	}
	if opts.Migrations != nil {
		stages = append(stages, stage{name: "migrations", run: func() error {
			return opts.Migrate(res.DB, opts.Database, opts.Migrations)
		}})
	}

	for _, st := range stages {
		start := time.Now()
		if err := st.run(); err != nil {
			if res.DB != nil {
				_ = res.DB.Close()
			}
			return nil, fmt.Errorf("bootstrap: %s: %w", st.name, err)
		}
		logger.Debug(context.Background(), "app", "bootstrap.stage",
			slog.String("stage", st.name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.LoggerInit == nil {
		opts.LoggerInit = logger.InitLogger
	}
	if opts.Connect == nil {
		opts.Connect = coredatabase.Connect
	}
	if opts.Migrate == nil {
		opts.Migrate = coredatabase.RunMigrations
	}
	return opts
}
