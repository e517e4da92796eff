package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/todobot/core/config"
	coredatabase "github.com/m3rciful/todobot/core/database"
	coretelegram "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/internal/storage/storagetest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: file-token\ndatabase:\n  driver: sqlite\n  dsn: todo.db\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.IdleTimeout != defaultIdleTimeout || cfg.Session.SweepInterval != defaultSweepInterval {
		t.Fatalf("session defaults = %+v", cfg.Session)
	}
	if cfg.Telegram.RunMode != coreconfig.RunModeLongpoll {
		t.Fatalf("run mode = %q", cfg.Telegram.RunMode)
	}
	if cfg.Database.MaxConnections != 10 || cfg.CoreConfig() != &cfg.Config {
		t.Fatalf("database defaults = %+v", cfg.Database)
	}
}

func TestLoadConfigEnvOverlay(t *testing.T) {
	path := writeConfig(t, "telegram:\n  token: file-token\nsession:\n  idle_timeout: 5m\ndatabase:\n  host: db\n")
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("SESSION_IDLE_TIMEOUT", "30s")
	t.Setenv("OPS_LISTEN", ":9090")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" || cfg.Session.IdleTimeout != 30*time.Second || cfg.Ops.Listen != ":9090" {
		t.Fatalf("env overlay not applied: token=%q idle=%s ops=%q", cfg.Telegram.Token, cfg.Session.IdleTimeout, cfg.Ops.Listen)
	}
	if cfg.Database.Driver != coredatabase.DriverPostgres || cfg.Database.Port != "5432" {
		t.Fatalf("database = %+v", cfg.Database)
	}
}

func TestNormalizeRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "negative idle timeout",
			cfg: Config{
				Config:   coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "x"}},
				Database: coredatabase.Config{Driver: "sqlite", DSN: "x.db"},
				Session:  SessionConfig{IdleTimeout: -time.Second},
			},
			want: "idle_timeout",
		},
		{
			name: "missing database",
			cfg:  Config{Config: coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "x"}}},
			want: "database",
		},
		{
			name: "missing token",
			cfg:  Config{Database: coredatabase.Config{Driver: "sqlite", DSN: "x.db"}},
			want: "token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Normalize()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func testConfig(t *testing.T, intervalMS int) *Config {
	t.Helper()
	cfg := &Config{
		Config: coreconfig.Config{
			Telegram:  coreconfig.TelegramConfig{Token: "x"},
			RateLimit: coreconfig.RateLimitConfig{IntervalMS: intervalMS},
		},
		Database: coredatabase.Config{Driver: coredatabase.DriverSQLite, DSN: storagetest.DSN},
	}
	if err := cfg.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func middlewareNames(mws []coretelegram.Middleware) string {
	names := make([]string, 0, len(mws))
	for _, m := range mws {
		names = append(names, m.Name)
	}
	return strings.Join(names, ",")
}

func TestTelegramRunOptions(t *testing.T) {
	tests := []struct {
		name       string
		intervalMS int
		want       string
	}{
		{name: "no rate limit", want: "recover,logger,session"},
		{name: "rate limited", intervalMS: 500, want: "recover,logger,rate_limit,session"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(testConfig(t, tt.intervalMS), storagetest.Open(t))
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			opts, err := a.TelegramRunOptions()
			if err != nil {
				t.Fatalf("run options: %v", err)
			}
			if got := middlewareNames(opts.Middlewares); got != tt.want {
				t.Fatalf("middlewares = %s, want %s", got, tt.want)
			}
			if len(opts.Routes) == 0 || opts.Registry == nil || opts.OnStart == nil || opts.OnStop == nil {
				t.Fatalf("incomplete run options: %+v", opts)
			}
			if _, _, ok := opts.Registry.LookupCommand("/start"); !ok {
				t.Fatal("/start not registered")
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	a, err := New(testConfig(t, 0), storagetest.Open(t))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()
	if err := a.start(ctx, coretelegram.Runtime{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.sweeper == nil || a.stopOps != nil {
		t.Fatalf("sweeper=%v ops started=%v", a.sweeper, a.stopOps != nil)
	}
	if err := a.stop(ctx, coretelegram.Runtime{}); err != nil {
		t.Fatalf("stop: %v", err)
	}

	families, err := a.metrics.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "todobot_build_info" {
			found = true
		}
	}
	if !found {
		t.Fatal("build info metric not registered")
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
