// Package logger is the process-wide structured logger: slog with a line
// handler that orders keys, reports durations in milliseconds and pulls the
// update scope (rid, update/user/chat ids, handler, session) out of context.
//
// Call sites log events rather than messages:
//
//	logger.Info(ctx, "service.tasks", "task.created", slog.Int64("task_id", id))
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/m3rciful/todobot/core/buildinfo"
	coreconfig "github.com/m3rciful/todobot/core/config"
)

const defaultDebugEvery = 50

var (
	initOnce sync.Once
	closers  []io.Closer
	closeMu  sync.Mutex

	levelVar slog.LevelVar

	// debugSample thins out high-volume debug events; nil lets all of them through.
	debugSample atomic.Pointer[rate.Sometimes]
	trace       atomic.Bool

	// L is the base logger.
	L *slog.Logger

	DB    *slog.Logger // connections and pool
	MIG   *slog.Logger // migrations
	TG    *slog.Logger // Telegram transport
	TWire *slog.Logger // handler and command registration
	FSM   *slog.Logger // conversation sessions
	OPS   *slog.Logger // health and metrics server
)

// Until InitLogger runs (tests, early startup) everything goes to slog's default logger.
func init() {
	L = slog.Default()
	debugSample.Store(&rate.Sometimes{Every: defaultDebugEvery})
	scopeComponents()
}

func scopeComponents() {
	DB = Component("db")
	MIG = Component("db.migrate")
	TG = Component("tg")
	TWire = Component("tg.wire")
	FSM = Component("fsm")
	OPS = Component("ops")
}

// InitLogger installs the configured handler as the slog default. Only the
// first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	if cfg == nil {
		return errors.New("logger: nil config")
	}
	var err error
	initOnce.Do(func() {
		var out io.Writer
		if out, err = openOutputs(cfg.Logging); err != nil {
			return
		}
		levelVar.Set(parseLevel(cfg.Logging.Level))
		SetDebugSample(cfg.Logging.DebugSample)
		trace.Store(truthy(os.Getenv("LOG_TRACE")) || truthy(os.Getenv("TRACE")))

		h := newLineHandler(out, &levelVar, parseFormat(cfg.Logging), parseKeyOrder(cfg.Logging.KeysOrder))
		L = slog.New(h)
		slog.SetDefault(L)
		scopeComponents()

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", profile(cfg.Logging)),
		)
	})
	return err
}

// Shutdown closes log files opened by InitLogger. Stdout is left alone.
func Shutdown() error {
	closeMu.Lock()
	defer closeMu.Unlock()
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	closers = nil
	return errors.Join(errs...)
}

func openOutputs(cfg coreconfig.LoggingConfig) (io.Writer, error) {
	dir, file := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.BotFile)
	if dir == "" || file == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open log file: %w", err)
	}
	closeMu.Lock()
	closers = append(closers, f)
	closeMu.Unlock()
	return io.MultiWriter(os.Stdout, f), nil
}

func parseFormat(cfg coreconfig.LoggingConfig) logFormat {
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if p := profile(cfg); p == "debug" || p == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func parseKeyOrder(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "default" {
		return defaultKeyOrder
	}
	var order []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return defaultKeyOrder
	}
	return order
}

func profile(cfg coreconfig.LoggingConfig) string {
	if p := strings.ToLower(strings.TrimSpace(cfg.Profile)); p != "" {
		return p
	}
	return "prod"
}

// SetDebugSample configures sampling of high-volume debug events. sample is
// "N" or "1/N" to keep one event in N, "off" or "0" to keep all of them;
// anything else selects the default of one in 50.
func SetDebugSample(sample string) {
	every := parseSampleEvery(sample)
	if every <= 1 {
		debugSample.Store(nil)
		return
	}
	debugSample.Store(&rate.Sometimes{Every: every})
}

func parseSampleEvery(sample string) int {
	sample = strings.ToLower(strings.TrimSpace(sample))
	switch sample {
	case "":
		return defaultDebugEvery
	case "off", "0", "all":
		return 1
	}
	num, den := "1", sample
	if a, b, ok := strings.Cut(sample, "/"); ok {
		num, den = a, b
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(num))
	d, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil || n <= 0 || d <= 0 {
		return defaultDebugEvery
	}
	if n >= d {
		return 1
	}
	return (d + n/2) / n
}

// ShouldSampleDebug reports whether the next high-volume debug event should be logged.
func ShouldSampleDebug() bool {
	if trace.Load() {
		return true
	}
	s := debugSample.Load()
	if s == nil {
		return true
	}
	allowed := false
	s.Do(func() { allowed = true })
	return allowed
}

// TraceEnabled reports whether LOG_TRACE (or TRACE) forces full debug output.
func TraceEnabled() bool { return trace.Load() }

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Component returns the base logger scoped to a component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent logs an event on logg, or on the logger carried by ctx when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs an event under component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}
