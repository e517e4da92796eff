package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
// A nil dispatcher makes every helper call the Bot API synchronously.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

const repliesKey = "replies"

// ReplyStats counts what a handler queued for the user during one update.
type ReplyStats struct {
	Messages int
	Keyboard bool
}

// Replies returns the reply counters accumulated on c by the send helpers.
func Replies(c tele.Context) ReplyStats {
	if st, ok := c.Get(repliesKey).(ReplyStats); ok {
		return st
	}
	return ReplyStats{}
}

func countReply(c tele.Context, markup *tele.ReplyMarkup) {
	st := Replies(c)
	st.Messages++
	if markup != nil {
		st.Keyboard = true
	}
	c.Set(repliesKey, st)
}

// deliver runs call through the chat's sender lane, falling back to a direct
// call when no dispatcher is set or the lane cannot take it.
func deliver(c tele.Context, action string, markup *tele.ReplyMarkup, call func() error) error {
	countReply(c, markup)
	disp := globalDispatcher.Load()
	if disp == nil {
		return call()
	}

	var chatID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	ctx := BuildContext(c)
	err := disp.Enqueue(ctx, chatID, action, call)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return call()
	default:
		return err
	}
}

func firstMarkup(markup []*tele.ReplyMarkup) *tele.ReplyMarkup {
	if len(markup) > 0 {
		return markup[0]
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	var markup *tele.ReplyMarkup
	if sendOpts != nil {
		markup = sendOpts.ReplyMarkup
	}
	return deliver(c, "send.text", markup, func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendMD sends a Markdown message with optional reply markup.
func SendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return deliver(c, "send.md", opts.ReplyMarkup, func() error { return c.Send(text, opts) })
}

// EditOrSendMD edits the callback's message as Markdown, or sends a new one
// when there is nothing to edit.
func EditOrSendMD(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: firstMarkup(markup)}
	return deliver(c, "edit.md", opts.ReplyMarkup, func() error { return c.EditOrSend(text, opts) })
}

// EditOrSendText is EditOrSendMD without a parse mode.
func EditOrSendText(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	opts := &tele.SendOptions{ReplyMarkup: firstMarkup(markup)}
	return deliver(c, "edit.text", opts.ReplyMarkup, func() error { return c.EditOrSend(text, opts) })
}
