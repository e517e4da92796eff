package router

import (
	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/callbacks"
	"github.com/m3rciful/todobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns a handler that routes callbacks through the dispatch table.
// The query is answered with an empty response unless the handler answered it.
func CallbackRoute(reg *tg.Registry, opts Options) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		ev := tg.Event{Kind: tg.EventCallback, UserID: senderID(c), Data: callbacks.Data(c)}

		fallback := reg.CallbackNotFound()
		if fallback == nil {
			fallback = opts.NotFound
		}
		err := dispatch(c, reg, ev, "callback.not_found", fallback)
		if !callbacks.Answered(c) {
			_ = c.Respond()
		}
		return err
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
