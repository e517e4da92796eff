package bot

import (
	"log/slog"

	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/todobot/core/telegram/helpers"
	"github.com/m3rciful/todobot/internal/conversation"

	tele "gopkg.in/telebot.v4"
)

func (b *Bot) onStartRegistration(c tele.Context) error {
	reply := b.engine.StartRegistration(tghelpers.BuildContext(c), senderID(c))
	return b.sendReply(c, reply)
}

// onStartMenu drops any unfinished task input and shows the main menu.
func (b *Bot) onStartMenu(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	b.engine.Cancel(senderID(c))

	user, ok, err := b.store.GetUserByTelegramID(ctx, senderID(c))
	if err != nil {
		_ = tghelpers.SendText(c, textFailure)
		return err
	}
	text := textMenu
	if ok {
		text = greetingText(user.Name)
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: mainMenuMarkup()})
}

func (b *Bot) onAbout(c tele.Context) error {
	return tghelpers.SendMD(c, textAbout)
}

func (b *Bot) onCode(c tele.Context) error {
	return tghelpers.SendText(c, textCode, &tele.SendOptions{ReplyMarkup: codeMarkup()})
}

func (b *Bot) onCancel(c tele.Context) error {
	if !b.engine.Cancel(senderID(c)) {
		return tghelpers.SendText(c, conversation.TextNothingToCancel)
	}
	ok, err := b.gate.IsRegistered(tghelpers.BuildContext(c), senderID(c))
	if err != nil || !ok {
		return tghelpers.SendText(c, conversation.TextCancelled)
	}
	return tghelpers.SendText(c, conversation.TextCancelled+"\n\n"+textMenu, &tele.SendOptions{ReplyMarkup: mainMenuMarkup()})
}

// onFlowInput feeds one text message into the active flow. A storage error is
// returned after the failure reply so the handler summary records it.
func (b *Bot) onFlowInput(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	reply, err := b.engine.Handle(ctx, senderID(c), c.Text())
	if reply.Outcome == conversation.OutcomeIgnored {
		// The session expired between routing and handling.
		logger.Debug(ctx, "fsm", "flow.gone",
			slog.Int64("user_id", senderID(c)),
			slog.String("reason", "expired"),
		)
		return b.onIdleText(c)
	}
	if sendErr := b.sendReply(c, reply); sendErr != nil && err == nil {
		err = sendErr
	}
	return err
}

func (b *Bot) onIdleText(c tele.Context) error {
	ok, err := b.gate.IsRegistered(tghelpers.BuildContext(c), senderID(c))
	if err != nil {
		_ = tghelpers.SendText(c, textFailure)
		return err
	}
	if ok {
		return b.onMenuHint(c)
	}
	return b.onStartHint(c)
}

func (b *Bot) onStartHint(c tele.Context) error {
	return tghelpers.SendText(c, textStartHint)
}

func (b *Bot) onMenuHint(c tele.Context) error {
	return tghelpers.SendText(c, textUseMenu+"\n\n"+textMenu, &tele.SendOptions{ReplyMarkup: mainMenuMarkup()})
}

func (b *Bot) onNotRegistered(c tele.Context) error {
	return callbacks.Answer(c, &tele.CallbackResponse{Text: textNotAllowed, ShowAlert: true})
}

func (b *Bot) onUnsupported(c tele.Context) error {
	return callbacks.Answer(c, &tele.CallbackResponse{Text: textUnsupported})
}

// onFailure answers updates no rule matched, which only happens when the
// registration lookup failed.
func (b *Bot) onFailure(c tele.Context) error {
	return tghelpers.SendText(c, textFailure)
}

// OnRateLimited tells a throttled user to slow down.
func (b *Bot) OnRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return callbacks.Answer(c, &tele.CallbackResponse{Text: textRateLimited})
	}
	return tghelpers.SendText(c, textRateLimited)
}

// sendReply delivers a flow reply; replies that finish a flow carry the main menu.
func (b *Bot) sendReply(c tele.Context, r conversation.Reply) error {
	if r.Text == "" {
		return nil
	}
	if r.ShowMenu {
		return tghelpers.SendText(c, r.Text+"\n\n"+textMenu, &tele.SendOptions{ReplyMarkup: mainMenuMarkup()})
	}
	return tghelpers.SendText(c, r.Text)
}
