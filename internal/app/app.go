// Package app assembles the todobot process: storage, conversation engine,
// access gate, bot handlers, session sweeper and the ops server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/todobot/core/bootstrap"
	"github.com/m3rciful/todobot/core/cmd"
	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/ops"
	coretelegram "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/router"
	"github.com/m3rciful/todobot/core/telegram/state"
	"github.com/m3rciful/todobot/internal/access"
	"github.com/m3rciful/todobot/internal/bot"
	"github.com/m3rciful/todobot/internal/conversation"
	"github.com/m3rciful/todobot/internal/storage"
	"github.com/m3rciful/todobot/migrations"
)

// App owns the long-lived components of the process.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	store    *storage.Store
	sessions state.Manager
	bot      *bot.Bot

	metrics   *prometheus.Registry
	collector *ops.Collector

	sweeper  *state.Sweeper
	stopOps  context.CancelFunc
	opsGroup *errgroup.Group
}

// Bootstrap initializes logging, the database and migrations, then builds the App.
func Bootstrap(carrier cmd.ConfigCarrier) (cmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, res.DB)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	return a, nil
}

// New wires the App over an open, migrated database.
func New(cfg *Config, db *sqlx.DB) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("app: config and database are required")
	}

	store := storage.New(db)
	sessions := state.NewMemoryManager(state.MemoryOptions{IdleTimeout: cfg.Session.IdleTimeout})

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := ops.NewCollector(metrics, sessions.Len)

	engine := conversation.New(store, sessions,
		conversation.WithObserver(func(flow state.Flow, outcome conversation.Outcome) {
			collector.RecordFlow(string(flow), string(outcome))
		}),
	)
	b, err := bot.New(bot.Deps{
		Store:    store,
		Engine:   engine,
		Gate:     access.New(store),
		Sessions: sessions,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		db:        db,
		store:     store,
		sessions:  sessions,
		bot:       b,
		metrics:   metrics,
		collector: collector,
	}, nil
}

// TelegramRunOptions builds the dispatch table, middleware chain and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	mws := coretelegram.DefaultMiddlewares(&a.cfg.Config, a.bot.OnRateLimited)
	mws = append(mws, coretelegram.Middleware{Name: "session", Use: state.WithSession(a.sessions)})

	return coretelegram.RunOptions{
		Config:      &a.cfg.Config,
		Registry:    reg,
		Middlewares: mws,
		Routes:      router.Routes(reg, router.Options{}),
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	router.SetObserver(a.collector.RecordHandled)
	if rt.Dispatcher != nil {
		a.collector.ObserveSender(rt.Dispatcher.Stats)
	}

	sw, err := state.StartSweeper(a.sessions, a.cfg.Session.SweepInterval, nil)
	if err != nil {
		return err
	}
	a.sweeper = sw

	if a.cfg.Ops.Listen == "" {
		return nil
	}
	opsCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(opsCtx)
	srv := ops.NewServer(ops.Options{
		Listen:   a.cfg.Ops.Listen,
		Gatherer: a.metrics,
		Ping:     a.store.Ping,
	})
	g.Go(func() error { return srv.Run(gctx) })
	a.stopOps = cancel
	a.opsGroup = g
	return nil
}

func (a *App) stop(_ context.Context, _ coretelegram.Runtime) error {
	router.SetObserver(nil)

	var firstErr error
	if err := a.sweeper.Stop(); err != nil {
		firstErr = err
	}
	if a.stopOps != nil {
		a.stopOps()
		if err := a.opsGroup.Wait(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("app: ops server: %w", err)
		}
	}
	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	logger.L.With("component", "app").Info("components stopped",
		slog.String("event", "stop"),
		slog.Int("pending_count", a.sessions.Len()),
	)
	return firstErr
}
