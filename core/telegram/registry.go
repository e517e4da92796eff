package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/telegram/callbacks"
	"github.com/m3rciful/todobot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// EventKind enumerates the inbound update shapes the dispatch table routes.
type EventKind int

const (
	// EventCommand is a message starting with a registered /command.
	EventCommand EventKind = iota + 1
	// EventText is any other text message.
	EventText
	// EventCallback is an inline button press.
	EventCallback
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventText:
		return "text"
	case EventCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// Event is the transport-neutral view of an update that predicates match on.
type Event struct {
	Kind    EventKind
	UserID  int64
	Command string
	Text    string
	Data    string
}

// Predicate decides whether a rule applies to an event.
type Predicate func(ctx context.Context, ev Event) bool

// Rule is one row of the dispatch table.
type Rule struct {
	Name    string
	Kind    EventKind
	When    []Predicate
	Handler tele.HandlerFunc
}

func (r Rule) matches(ctx context.Context, ev Event) bool {
	if r.Kind != ev.Kind {
		return false
	}
	for _, p := range r.When {
		if p != nil && !p(ctx, ev) {
			return false
		}
	}
	return true
}

// Registry holds the bot command menu and the dispatch table.
// Rules are evaluated in registration order; the first match wins.
type Registry struct {
	commands map[string]commands.Command

	rulesMu sync.RWMutex
	rules   []Rule
	names   map[string]struct{}

	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry creates an empty Registry with default fallbacks.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		names:    make(map[string]struct{}),
		callbackNotFound: func(c tele.Context) error {
			_ = callbacks.Answer(c, &tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// RegisterCommand adds a command to the menu. Dispatch still goes through rules.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil || name == "" || cmd.Description == "" {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns the menu entries, optionally without hidden commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && meta.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves a command name or alias to its canonical key.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// Handle appends a rule to the dispatch table.
func (r *Registry) Handle(rule Rule) error {
	if r == nil || rule.Name == "" || rule.Handler == nil || rule.Kind == 0 {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.rule.skip",
			slog.String("name", rule.Name),
			slog.String("kind", rule.Kind.String()),
			slog.Bool("handler_nil", rule.Handler == nil),
		)
		return errors.New("invalid rule registration")
	}
	r.rulesMu.Lock()
	defer r.rulesMu.Unlock()
	if _, exists := r.names[rule.Name]; exists {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.rule.duplicate",
			slog.String("name", rule.Name),
		)
		return fmt.Errorf("rule already registered: %s", rule.Name)
	}
	r.names[rule.Name] = struct{}{}
	r.rules = append(r.rules, rule)
	return nil
}

// Match returns the first rule that applies to ev.
func (r *Registry) Match(ctx context.Context, ev Event) (Rule, bool) {
	r.rulesMu.RLock()
	rules := r.rules
	r.rulesMu.RUnlock()
	for _, rule := range rules {
		if rule.matches(ctx, ev) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns rule names per kind (for diagnostics).
func (r *Registry) Rules() map[EventKind][]string {
	r.rulesMu.RLock()
	defer r.rulesMu.RUnlock()
	out := make(map[EventKind][]string)
	for _, rule := range r.rules {
		out[rule.Kind] = append(out[rule.Kind], rule.Name)
	}
	return out
}

// SetCallbackNotFound replaces the fallback handler for unmatched callbacks.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the current fallback callback handler.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetTextFallback sets the handler for unmatched text and commands.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// InitBotCommands sets the Telegram bot commands shown in the command menu.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
