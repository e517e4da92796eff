package state

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/todobot/core/logger"
)

// Sweeper periodically expires idle sessions of a Manager.
type Sweeper struct {
	scheduler gocron.Scheduler
}

// StartSweeper schedules mgr.Sweep every interval. A nil clock uses the real clock.
func StartSweeper(mgr Manager, interval time.Duration, clock clockwork.Clock) (*Sweeper, error) {
	if mgr == nil {
		return nil, fmt.Errorf("state: nil manager")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("state: sweep interval must be > 0")
	}
	opts := []gocron.SchedulerOption{
		gocron.WithLocation(time.UTC),
		gocron.WithLogger(logger.NewSchedulerLogger("fsm")),
	}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("state: create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if n := mgr.Sweep(); n > 0 {
				logger.FSM.LogAttrs(context.Background(), slog.LevelInfo, "session.sweep",
					slog.Int("count", n),
					slog.Int("pending_count", mgr.Len()),
				)
			}
		}),
		gocron.WithName("session.sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("state: schedule sweep: %w", err)
	}

	s.Start()
	logger.FSM.Debug("sweeper started",
		slog.String("event", "session.sweeper"),
		slog.Duration("interval", interval),
	)
	return &Sweeper{scheduler: s}, nil
}

// Stop shuts the scheduler down and waits for a running sweep to finish.
func (s *Sweeper) Stop() error {
	if s == nil || s.scheduler == nil {
		return nil
	}
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("state: stop sweeper: %w", err)
	}
	return nil
}
