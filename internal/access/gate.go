// Package access classifies Telegram users as registered or not and gates
// flows and menu actions on that classification.
package access

import (
	"context"
	"log/slog"

	"github.com/m3rciful/todobot/core/logger"
	tg "github.com/m3rciful/todobot/core/telegram"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"
	"github.com/m3rciful/todobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Lookup resolves Telegram accounts to internal user ids.
type Lookup interface {
	FindUserIDByTelegramID(ctx context.Context, tgID int64) (int64, bool, error)
}

// Gate answers registration checks against storage on every call; nothing is cached.
type Gate struct {
	users Lookup
}

// New returns a Gate backed by users.
func New(users Lookup) *Gate {
	return &Gate{users: users}
}

// IsRegistered reports whether tgID has a user row.
func (g *Gate) IsRegistered(ctx context.Context, tgID int64) (bool, error) {
	_, ok, err := g.users.FindUserIDByTelegramID(ctx, tgID)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Registered matches events from registered users. Lookup errors never match.
func (g *Gate) Registered() tg.Predicate {
	return g.predicate(true)
}

// Unregistered matches events from unknown users. Lookup errors never match.
func (g *Gate) Unregistered() tg.Predicate {
	return g.predicate(false)
}

func (g *Gate) predicate(want bool) tg.Predicate {
	return func(ctx context.Context, ev tg.Event) bool {
		ok, err := g.IsRegistered(ctx, ev.UserID)
		if err != nil {
			logger.Error(ctx, "tg", "access.lookup",
				slog.String("status", "fail"),
				slog.Int64("user_id", ev.UserID),
				slog.String("err", err.Error()),
			)
			return false
		}
		return ok == want
	}
}

// RequireRegistered lets only registered users through; others get onReject.
// A failed lookup runs onError.
func (g *Gate) RequireRegistered(onReject, onError tele.HandlerFunc) tele.MiddlewareFunc {
	return middleware.Guard(middleware.GuardOptions{
		Name: "registered",
		Allow: func(c tele.Context) (bool, error) {
			user := c.Sender()
			if user == nil {
				return false, nil
			}
			return g.IsRegistered(tghelpers.BuildContext(c), user.ID)
		},
		OnReject: onReject,
		OnError:  onError,
	})
}
