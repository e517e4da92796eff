package middleware

import (
	"log/slog"

	"github.com/m3rciful/todobot/core/logger"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// GuardOptions defines how an access check behaves.
type GuardOptions struct {
	// Name labels the guard in logs.
	Name string
	// Allow decides whether the update may proceed.
	Allow func(c tele.Context) (bool, error)
	// OnReject runs instead of the handler for rejected updates.
	OnReject tele.HandlerFunc
	// OnError runs when Allow fails; nil drops the update.
	OnError tele.HandlerFunc
}

// Guard only lets updates through when opts.Allow approves them.
func Guard(opts GuardOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.Allow == nil {
				return next(c)
			}
			ok, err := opts.Allow(c)
			if err != nil {
				logger.Warn(tghelpers.BuildContext(c), "tg", "guard.error",
					slog.String("guard", opts.Name),
					slog.String("err", err.Error()),
				)
				if opts.OnError != nil {
					return opts.OnError(c)
				}
				return nil
			}
			if !ok {
				logger.Debug(tghelpers.BuildContext(c), "tg", "guard.reject",
					slog.String("guard", opts.Name),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
