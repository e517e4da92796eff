package router

import (
	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes binds each registered command (and alias) to the dispatch table.
func CommandRoutes(reg *tg.Registry, opts Options) []tg.Route {
	if reg == nil {
		return nil
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		endpoints := []string{cmd}
		for _, alias := range def.Aliases {
			if alias != "" && alias[0] == '/' {
				endpoints = append(endpoints, alias)
			}
		}
		for _, endpoint := range endpoints {
			h := commandHandler(reg, cmd, opts)
			h = middleware.RecoverMiddleware(h)
			h = middleware.LoggerMiddleware(h)
			routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
		}
	}
	return routes
}

func commandHandler(reg *tg.Registry, cmd string, opts Options) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := tg.Event{
			Kind:    tg.EventCommand,
			UserID:  senderID(c),
			Command: cmd,
		}
		if m := c.Message(); m != nil {
			ev.Text = m.Payload
		}
		fallback := reg.TextFallback()
		if fallback == nil {
			fallback = opts.UnknownText
		}
		return dispatch(c, reg, ev, normalizeHandlerName(cmd), fallback)
	}
}
