// Package bot wires the to-do handlers into the dispatch table: commands,
// conversation input and the inline menu callbacks.
package bot

import (
	"context"
	"fmt"
	"regexp"

	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/commands"
	"github.com/m3rciful/todobot/core/telegram/router"
	"github.com/m3rciful/todobot/core/telegram/state"
	"github.com/m3rciful/todobot/internal/access"
	"github.com/m3rciful/todobot/internal/conversation"
	"github.com/m3rciful/todobot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// Store is the persistence the menu handlers read and mutate.
type Store interface {
	FindUserIDByTelegramID(ctx context.Context, tgID int64) (int64, bool, error)
	GetUserByTelegramID(ctx context.Context, tgID int64) (storage.User, bool, error)
	ListTasks(ctx context.Context, ownerID int64, filter storage.Filter) ([]storage.Task, error)
	GetTask(ctx context.Context, taskID int64) (storage.Task, bool, error)
	MarkTaskComplete(ctx context.Context, taskID int64) error
	DeleteTask(ctx context.Context, taskID int64) error
	DeleteCompletedTasks(ctx context.Context, ownerID int64) (int64, error)
}

// Deps are the collaborators of the bot handlers.
type Deps struct {
	Store    Store
	Engine   *conversation.Engine
	Gate     *access.Gate
	Sessions state.Manager
}

// Bot holds the handlers.
type Bot struct {
	store    Store
	engine   *conversation.Engine
	gate     *access.Gate
	sessions state.Manager
}

// New validates deps and returns a Bot.
func New(deps Deps) (*Bot, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("bot: nil store")
	case deps.Engine == nil:
		return nil, fmt.Errorf("bot: nil conversation engine")
	case deps.Gate == nil:
		return nil, fmt.Errorf("bot: nil access gate")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("bot: nil session manager")
	}
	return &Bot{
		store:    deps.Store,
		engine:   deps.Engine,
		gate:     deps.Gate,
		sessions: deps.Sessions,
	}, nil
}

var (
	reTaskCard = regexp.MustCompile(`^task_\d+$`)
	reMarkDone = regexp.MustCompile(`^mark_task_done_\d+$`)
	reDelete   = regexp.MustCompile(`^delete_task_\d+$`)
)

// Register adds the command menu and the dispatch table to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Description: "Registration or main menu"})
	reg.RegisterCommand("/about", commands.Command{Description: "What this bot can do"})
	reg.RegisterCommand("/code", commands.Command{Description: "Source code"})
	reg.RegisterCommand("/cancel", commands.Command{Description: "Cancel the current input"})

	registered := b.gate.Registered()
	unregistered := b.gate.Unregistered()
	// Menu callbacks match on data alone; the guard answers strangers and
	// lookup failures.
	member := b.gate.RequireRegistered(b.onNotRegistered, b.onUnsupported)

	rules := []tg.Rule{
		{Name: "start.register", Kind: tg.EventCommand, When: []tg.Predicate{router.Command("/start"), unregistered}, Handler: b.onStartRegistration},
		{Name: "start.menu", Kind: tg.EventCommand, When: []tg.Predicate{router.Command("/start"), registered}, Handler: b.onStartMenu},
		{Name: "about", Kind: tg.EventCommand, When: []tg.Predicate{router.Command("/about")}, Handler: b.onAbout},
		{Name: "code", Kind: tg.EventCommand, When: []tg.Predicate{router.Command("/code")}, Handler: b.onCode},
		{Name: "cancel", Kind: tg.EventCommand, When: []tg.Predicate{router.Command("/cancel")}, Handler: b.onCancel},

		{Name: "registration.input", Kind: tg.EventText, When: []tg.Predicate{router.StateIs(b.sessions, conversation.FlowRegistration), unregistered}, Handler: b.onFlowInput},
		{Name: "task.input", Kind: tg.EventText, When: []tg.Predicate{router.StateIs(b.sessions, conversation.FlowTaskCreation), registered}, Handler: b.onFlowInput},
		{Name: "registration.hint", Kind: tg.EventText, When: []tg.Predicate{unregistered}, Handler: b.onStartHint},
		{Name: "menu.hint", Kind: tg.EventText, When: []tg.Predicate{registered}, Handler: b.onMenuHint},

		{Name: "menu", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackExact(string(ActionMainMenu))}, Handler: member(b.onMainMenu)},
		{Name: "task.create", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackExact(string(ActionCreateTask))}, Handler: member(b.onCreateTask)},
		{Name: "tasks.delete_completed", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackExact(string(ActionDeleteCompletedTasks))}, Handler: member(b.onDeleteCompleted)},
		{Name: "task.card", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackRegexp(reTaskCard)}, Handler: member(b.onTaskCard)},
		{Name: "task.mark_done", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackRegexp(reMarkDone)}, Handler: member(b.onMarkDone)},
		{Name: "task.delete", Kind: tg.EventCallback, When: []tg.Predicate{router.CallbackRegexp(reDelete)}, Handler: member(b.onDeleteTask)},
	}
	for _, v := range taskViews {
		rules = append(rules, tg.Rule{
			Name:    "tasks." + string(v.filter),
			Kind:    tg.EventCallback,
			When:    []tg.Predicate{router.CallbackExact(string(v.action))},
			Handler: member(b.listTasks(v)),
		})
	}
	rules = append(rules, tg.Rule{Name: "callback.unregistered", Kind: tg.EventCallback, When: []tg.Predicate{unregistered}, Handler: b.onNotRegistered})

	for _, r := range rules {
		if err := reg.Handle(r); err != nil {
			return err
		}
	}
	reg.SetTextFallback(b.onFailure)
	reg.SetCallbackNotFound(b.onUnsupported)
	return nil
}

func senderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}
