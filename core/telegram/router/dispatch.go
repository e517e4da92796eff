package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/todobot/core/logger"
	tg "github.com/m3rciful/todobot/core/telegram"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Options customises fallback behaviour for unmatched events.
type Options struct {
	// UnknownText handles commands and text no rule matched.
	UnknownText tele.HandlerFunc
	// NotFound handles callbacks no rule matched; defaults to the registry fallback.
	NotFound tele.HandlerFunc
}

// Routes returns every route the dispatch table needs: one per registered
// command plus the generic text and callback endpoints.
func Routes(reg *tg.Registry, opts Options) []tg.Route {
	routes := CommandRoutes(reg, opts)
	routes = append(routes, TextRoutes(reg, opts)...)
	routes = append(routes, CallbackRoute(reg, opts))

	rules := reg.Rules()
	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("command_rules", len(rules[tg.EventCommand])),
		slog.Int("text_rules", len(rules[tg.EventText])),
		slog.Int("callback_rules", len(rules[tg.EventCallback])),
	)
	return routes
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// dispatch runs the first matching rule, or fallback when nothing matches.
func dispatch(c tele.Context, reg *tg.Registry, ev tg.Event, fallbackName string, fallback tele.HandlerFunc) error {
	start := time.Now()
	ctx := tghelpers.BuildContext(c)
	extras := []slog.Attr{slog.String("kind", ev.Kind.String())}
	if ev.Kind == tg.EventCallback {
		extras = append(extras, slog.String("cb_key", logger.SanitizeLimit(ev.Data, 128)))
	}

	if rule, ok := reg.Match(ctx, ev); ok {
		return handleWithSummary(c, rule.Name, start, "", "", func() error {
			return rule.Handler(c)
		}, extras...)
	}

	extras = append(extras, slog.String("reason", "not_found"))
	if fallback == nil {
		logHandlerSummary(c, fallbackName, start, "skip", "ok", nil, extras...)
		return nil
	}
	return handleWithSummary(c, fallbackName, start, "", "", func() error {
		return fallback(c)
	}, extras...)
}
