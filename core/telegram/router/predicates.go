package router

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/m3rciful/todobot/core/logger"
	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/state"
)

// Command matches command events with one of names ("/start" or "start").
func Command(names ...string) tg.Predicate {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set["/"+strings.TrimPrefix(strings.ToLower(strings.TrimSpace(n)), "/")] = struct{}{}
	}
	return func(_ context.Context, ev tg.Event) bool {
		_, ok := set[strings.ToLower(ev.Command)]
		return ok
	}
}

// CallbackExact matches callback data equal to one of tokens.
func CallbackExact(tokens ...string) tg.Predicate {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return func(_ context.Context, ev tg.Event) bool {
		_, ok := set[ev.Data]
		return ok
	}
}

// CallbackRegexp matches callback data against re.
func CallbackRegexp(re *regexp.Regexp) tg.Predicate {
	return func(_ context.Context, ev tg.Event) bool {
		return re != nil && re.MatchString(ev.Data)
	}
}

// SessionGetter is the part of the session store StateIs needs.
type SessionGetter interface {
	Get(userID int64) (state.Session, bool)
}

// StateIs matches users whose active session is in flow and, when steps are
// given, at one of those steps.
func StateIs(mgr SessionGetter, flow state.Flow, steps ...state.State) tg.Predicate {
	return func(ctx context.Context, ev tg.Event) bool {
		if mgr == nil {
			return false
		}
		sess, ok := mgr.Get(ev.UserID)
		matched := ok && sess.Active() && sess.Flow == flow
		if matched && len(steps) > 0 {
			matched = false
			for _, st := range steps {
				if sess.State == st {
					matched = true
					break
				}
			}
		}
		if logger.TraceEnabled() {
			event := "fsm.skip"
			if matched {
				event = "fsm.match"
			}
			logger.Debug(ctx, "fsm", event,
				slog.Int64("user_id", ev.UserID),
				slog.String("flow", string(sess.Flow)),
				slog.String("step", string(sess.State)),
				slog.String("expected", string(flow)),
			)
		}
		return matched
	}
}

// Not inverts p.
func Not(p tg.Predicate) tg.Predicate {
	return func(ctx context.Context, ev tg.Event) bool { return !p(ctx, ev) }
}
