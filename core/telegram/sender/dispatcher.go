// Package sender delivers outbound Bot API calls off the update goroutine.
//
// Calls for the same chat are executed in the order they were enqueued, so a
// confirmation and the menu that follows it never swap places. All lanes share
// one token bucket sized to the Bot API broadcast limit.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/todobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's lane is saturated and the call was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// Lanes is the number of ordered workers; a chat always maps to the same lane.
	Lanes int
	// QueueSize bounds each lane.
	QueueSize int
	// PerSecond and Burst size the shared limiter.
	PerSecond float64
	Burst     int

	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single call including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Lanes <= 0 {
		o.Lanes = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.PerSecond <= 0 {
		o.PerSecond = 30
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 15 * time.Second
	}
	return o
}

type job struct {
	ctx    context.Context
	chatID int64
	action string
	run    func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
type Dispatcher struct {
	opts    Options
	limiter *rate.Limiter
	lanes   []chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	sent   atomic.Uint64
	failed atomic.Uint64
}

// NewDispatcher starts the lane workers. Zero options fall back to defaults.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), opts.Burst),
		lanes:   make([]chan job, opts.Lanes),
	}
	d.wg.Add(opts.Lanes)
	for i := range d.lanes {
		d.lanes[i] = make(chan job, opts.QueueSize)
		go d.worker(d.lanes[i])
	}
	return d
}

// Enqueue schedules run on the lane owned by chatID. run must be safe to
// repeat when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, chatID int64, action string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lane(chatID) <- job{ctx: ctx, chatID: chatID, action: action, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns the number of delivered and failed calls.
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}

// Close stops accepting calls and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.lanes {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) lane(chatID int64) chan job {
	n := chatID % int64(len(d.lanes))
	if n < 0 {
		n = -n
	}
	return d.lanes[n]
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.deliver(j)
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
retry:
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = d.limiter.Wait(ctx); err != nil {
			break
		}
		if err = j.run(); err == nil {
			d.sent.Add(1)
			logger.Debug(j.ctx, "tg.sender", "send.ok",
				append(jobAttrs(j),
					slog.Int("attempt", attempt),
					slog.Duration("duration", logger.RoundMS(time.Since(start))),
				)...,
			)
			return
		}

		wait, ok := retryDelay(err, attempt, d.opts.RetryBackoff)
		if !ok || attempt == attempts {
			break
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry",
			append(jobAttrs(j),
				slog.Int("attempt", attempt),
				slog.Duration("delay", wait),
				slog.String("error_kind", errorKind(err)),
			)...,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			err = ctx.Err()
			break retry
		case <-timer.C:
		}
	}

	d.failed.Add(1)
	logger.Error(j.ctx, "tg.sender", "send.fail",
		append(jobAttrs(j),
			slog.String("error", redact(err)),
			slog.String("error_kind", errorKind(err)),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)...,
	)
}

// retryDelay reports whether err is transient and how long to wait before the
// next attempt. Flood control dictates its own delay.
func retryDelay(err error, attempt int, backoff time.Duration) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return time.Duration(flood.RetryAfter) * time.Second, true
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return backoff * time.Duration(attempt), apiErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return backoff * time.Duration(attempt), true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return backoff * time.Duration(attempt), true
	}
	return 0, false
}

func errorKind(err error) string {
	var (
		flood  tele.FloodError
		apiErr *tele.Error
		netErr net.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &flood):
		return "flood"
	case errors.As(err, &apiErr) && apiErr.Code >= 500:
		return "http_5xx"
	case errors.As(err, &apiErr):
		return "http_4xx"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "network"
	}
	return "unknown"
}

func jobAttrs(j job) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("action", j.action),
		slog.Int64("chat_id", j.chatID),
	}
	if rid := logger.RIDFrom(j.ctx); rid != "" {
		attrs = append(attrs, slog.String("rid", rid))
	}
	return attrs
}

// redact keeps bot tokens embedded in request URLs out of the logs.
func redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
