package state

import (
	"github.com/m3rciful/todobot/core/logger"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// WithSession tags the handler's logging context with the user's active session id.
func WithSession(mgr Manager) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if mgr == nil || user == nil {
				return next(c)
			}
			if sess, ok := mgr.Get(user.ID); ok && sess.ID != "" {
				ctx := logger.WithSession(tghelpers.BuildContext(c), sess.ID)
				tghelpers.StoreContext(c, ctx)
			}
			return next(c)
		}
	}
}
