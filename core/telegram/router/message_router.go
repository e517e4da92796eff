package router

import (
	"strings"

	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextRoutes routes plain text through the dispatch table. Text that looks
// like an alias of a registered command is dispatched as that command.
func TextRoutes(reg *tg.Registry, opts Options) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()
		ev := tg.Event{Kind: tg.EventText, UserID: senderID(c), Text: text}

		if reg != nil && strings.HasPrefix(text, "/") {
			name := strings.Fields(text)[0]
			if at := strings.IndexByte(name, '@'); at > 0 {
				name = name[:at]
			}
			if key, _, ok := reg.LookupCommand(name); ok {
				ev.Kind = tg.EventCommand
				ev.Command = key
				ev.Text = strings.TrimSpace(strings.TrimPrefix(text, strings.Fields(text)[0]))
			}
		}

		fallback := reg.TextFallback()
		if fallback == nil {
			fallback = opts.UnknownText
		}
		return dispatch(c, reg, ev, "unknown_text", fallback)
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
	}
}
