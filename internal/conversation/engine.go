// Package conversation runs the multi-step chat flows (registration and task
// creation) on top of the session store.
//
// Every inbound text is exactly one attempt at the current step: a valid value
// advances the flow, an invalid one re-prompts and leaves the step unchanged.
package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/m3rciful/todobot/core/logger"
	"github.com/m3rciful/todobot/core/telegram/state"
	"github.com/m3rciful/todobot/internal/storage"
	"github.com/m3rciful/todobot/internal/validation"
)

// Flows.
const (
	FlowRegistration state.Flow = "registration"
	FlowTaskCreation state.Flow = "task_creation"
)

// Steps.
const (
	StepAwaitingName        state.State = "awaiting_name"
	StepAwaitingLogin       state.State = "awaiting_login"
	StepAwaitingDescription state.State = "awaiting_description"
)

const (
	keyName  = "name"
	keyOwner = "owner_id"

	component = "fsm"
)

// ErrNotRegistered is returned by StartTaskCreation for unknown Telegram accounts.
var ErrNotRegistered = errors.New("conversation: user is not registered")

// Outcome classifies what one event did to the flow.
type Outcome string

const (
	// OutcomeIgnored means no flow was active; the input was not consumed.
	OutcomeIgnored Outcome = "ignored"
	// OutcomeReprompt means the input was rejected and the step is unchanged.
	OutcomeReprompt Outcome = "reprompt"
	// OutcomeAdvanced means the flow moved to its next step.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomeCommitted means the flow finished and its session was cleared.
	OutcomeCommitted Outcome = "committed"
	// OutcomeFailed means persistence failed; the step is kept unless the reply says otherwise.
	OutcomeFailed Outcome = "failed"
)

// Reply is what the caller sends back to the user.
type Reply struct {
	Outcome  Outcome
	Text     string
	ShowMenu bool
}

// Store is the persistence the flows commit into.
type Store interface {
	CreateUser(ctx context.Context, tgID int64, name, login string) (int64, error)
	FindUserIDByTelegramID(ctx context.Context, tgID int64) (int64, bool, error)
	CreateTask(ctx context.Context, ownerID int64, name, description string) (int64, error)
}

// Observer receives the outcome of every handled event.
type Observer func(flow state.Flow, outcome Outcome)

// Option customizes an Engine.
type Option func(*Engine)

// WithObserver registers fn to receive event outcomes (metrics).
func WithObserver(fn Observer) Option {
	return func(e *Engine) { e.observe = fn }
}

// Engine drives the flows. It is safe for concurrent use; events of one user
// are serialized through the session store's per-user lock.
type Engine struct {
	store    Store
	sessions state.Manager
	observe  Observer
}

// New builds an Engine.
func New(store Store, sessions state.Manager, opts ...Option) *Engine {
	e := &Engine{store: store, sessions: sessions}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartRegistration begins (or restarts) the registration flow.
func (e *Engine) StartRegistration(ctx context.Context, userID int64) Reply {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess := e.sessions.Begin(userID, FlowRegistration, StepAwaitingName)
	e.log(logger.WithSession(ctx, sess.ID), slog.LevelInfo, "flow.start", userID, sess)
	return e.done(FlowRegistration, Reply{Outcome: OutcomeAdvanced, Text: TextRegistrationWelcome})
}

// StartTaskCreation resolves the owner and begins the task creation flow.
func (e *Engine) StartTaskCreation(ctx context.Context, userID int64) (Reply, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	ownerID, ok, err := e.store.FindUserIDByTelegramID(ctx, userID)
	if err != nil {
		return e.done(FlowTaskCreation, Reply{Outcome: OutcomeFailed, Text: TextGenericFailure}), err
	}
	if !ok {
		return e.done(FlowTaskCreation, Reply{Outcome: OutcomeFailed, Text: TextOwnerMissing}), ErrNotRegistered
	}

	sess := e.sessions.Begin(userID, FlowTaskCreation, StepAwaitingName)
	e.sessions.SetTemp(userID, keyOwner, strconv.FormatInt(ownerID, 10))
	e.log(logger.WithSession(ctx, sess.ID), slog.LevelInfo, "flow.start", userID, sess,
		slog.Int64("owner_id", ownerID))
	return e.done(FlowTaskCreation, Reply{Outcome: OutcomeAdvanced, Text: TextTaskWelcome}), nil
}

// Handle folds one text input into the user's active flow.
// Storage errors are returned alongside a failure reply; the step is kept.
func (e *Engine) Handle(ctx context.Context, userID int64, text string) (Reply, error) {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, ok := e.sessions.Get(userID)
	if !ok || !sess.Active() {
		return Reply{Outcome: OutcomeIgnored}, nil
	}
	ctx = logger.WithSession(ctx, sess.ID)
	input := validation.Normalize(text)

	var (
		reply Reply
		err   error
	)
	switch sess.Flow {
	case FlowRegistration:
		reply, err = e.handleRegistration(ctx, userID, sess, input)
	case FlowTaskCreation:
		reply, err = e.handleTaskCreation(ctx, userID, sess, input)
	default:
		e.sessions.Clear(userID)
		e.log(ctx, slog.LevelWarn, "flow.unknown", userID, sess)
		return Reply{Outcome: OutcomeIgnored}, nil
	}
	return e.done(sess.Flow, reply), err
}

// Cancel abandons the user's active flow and reports whether one existed.
func (e *Engine) Cancel(userID int64) bool {
	unlock := e.sessions.Lock(userID)
	defer unlock()

	sess, ok := e.sessions.Get(userID)
	if !ok || !sess.Active() {
		return false
	}
	e.sessions.Clear(userID)
	e.log(logger.WithSession(context.Background(), sess.ID), slog.LevelInfo, "flow.cancel", userID, sess)
	return true
}

// Active returns the user's current flow and step, or FlowNone/StateIdle.
func (e *Engine) Active(userID int64) (state.Flow, state.State) {
	sess, ok := e.sessions.Get(userID)
	if !ok || !sess.Active() {
		return state.FlowNone, state.StateIdle
	}
	return sess.Flow, sess.State
}

func (e *Engine) handleRegistration(ctx context.Context, userID int64, sess state.Session, input string) (Reply, error) {
	switch sess.State {
	case StepAwaitingName:
		if err := validation.UserName(input); err != nil {
			return e.reprompt(ctx, userID, sess, err, TextAskName), nil
		}
		e.sessions.SetTemp(userID, keyName, input)
		e.sessions.SetState(userID, StepAwaitingLogin)
		return Reply{Outcome: OutcomeAdvanced, Text: TextAskLogin}, nil

	case StepAwaitingLogin:
		if err := validation.Login(input); err != nil {
			return e.reprompt(ctx, userID, sess, err, TextAskLogin), nil
		}
		name := sess.Value(keyName)
		_, err := e.store.CreateUser(ctx, userID, name, input)
		switch {
		case errors.Is(err, storage.ErrLoginTaken):
			e.sessions.SetState(userID, StepAwaitingLogin)
			e.log(ctx, slog.LevelInfo, "flow.reprompt", userID, sess, slog.String("reason", "login_taken"))
			return Reply{Outcome: OutcomeReprompt, Text: TextLoginTaken}, nil
		case errors.Is(err, storage.ErrUserExists):
			e.sessions.Clear(userID)
			e.log(ctx, slog.LevelInfo, "flow.abort", userID, sess, slog.String("reason", "already_registered"))
			return Reply{Outcome: OutcomeFailed, Text: TextAlreadyRegistered, ShowMenu: true}, nil
		case err != nil:
			e.log(ctx, slog.LevelError, "flow.commit", userID, sess, slog.String("err", err.Error()))
			return Reply{Outcome: OutcomeFailed, Text: TextGenericFailure}, err
		}
		e.sessions.Clear(userID)
		e.log(ctx, slog.LevelInfo, "flow.commit", userID, sess)
		return Reply{Outcome: OutcomeCommitted, Text: registeredText(name, input), ShowMenu: true}, nil
	}
	return e.unknownStep(ctx, userID, sess), nil
}

func (e *Engine) handleTaskCreation(ctx context.Context, userID int64, sess state.Session, input string) (Reply, error) {
	switch sess.State {
	case StepAwaitingName:
		if err := validation.TaskName(input); err != nil {
			return e.reprompt(ctx, userID, sess, err, TextAskTaskName), nil
		}
		e.sessions.SetTemp(userID, keyName, input)
		e.sessions.SetState(userID, StepAwaitingDescription)
		return Reply{Outcome: OutcomeAdvanced, Text: TextAskDescription}, nil

	case StepAwaitingDescription:
		if err := validation.TaskDescription(input); err != nil {
			return e.reprompt(ctx, userID, sess, err, TextAskDescription), nil
		}
		ownerID, err := e.ownerOf(ctx, userID, sess)
		if err != nil {
			return Reply{Outcome: OutcomeFailed, Text: TextGenericFailure}, err
		}
		taskID, err := e.store.CreateTask(ctx, ownerID, sess.Value(keyName), input)
		switch {
		case errors.Is(err, storage.ErrOwnerNotFound):
			e.log(ctx, slog.LevelWarn, "flow.commit", userID, sess,
				slog.Int64("owner_id", ownerID), slog.String("reason", "owner_not_found"))
			return Reply{Outcome: OutcomeFailed, Text: TextOwnerMissing}, err
		case err != nil:
			e.log(ctx, slog.LevelError, "flow.commit", userID, sess,
				slog.Int64("owner_id", ownerID), slog.String("err", err.Error()))
			return Reply{Outcome: OutcomeFailed, Text: TextGenericFailure}, err
		}
		e.sessions.Clear(userID)
		e.log(ctx, slog.LevelInfo, "flow.commit", userID, sess,
			slog.Int64("owner_id", ownerID), slog.Int64("task_id", taskID))
		return Reply{Outcome: OutcomeCommitted, Text: TextTaskCreated, ShowMenu: true}, nil
	}
	return e.unknownStep(ctx, userID, sess), nil
}

// ownerOf returns the owner captured when the flow started, resolving it again if absent.
func (e *Engine) ownerOf(ctx context.Context, userID int64, sess state.Session) (int64, error) {
	if raw := sess.Value(keyOwner); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id, nil
		}
	}
	id, ok, err := e.store.FindUserIDByTelegramID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, storage.ErrOwnerNotFound
	}
	e.sessions.SetTemp(userID, keyOwner, strconv.FormatInt(id, 10))
	return id, nil
}

func (e *Engine) reprompt(ctx context.Context, userID int64, sess state.Session, err error, prompt string) Reply {
	e.log(ctx, slog.LevelDebug, "flow.reprompt", userID, sess, slog.String("reason", validation.Reason(err)))
	// Refreshes the idle timer.
	e.sessions.SetState(userID, sess.State)
	return Reply{Outcome: OutcomeReprompt, Text: repromptText(validation.Reason(err), prompt)}
}

func (e *Engine) unknownStep(ctx context.Context, userID int64, sess state.Session) Reply {
	e.sessions.Clear(userID)
	e.log(ctx, slog.LevelWarn, "flow.unknown", userID, sess)
	return Reply{Outcome: OutcomeIgnored}
}

func (e *Engine) done(flow state.Flow, r Reply) Reply {
	if e.observe != nil {
		e.observe(flow, r.Outcome)
	}
	return r
}

func (e *Engine) log(ctx context.Context, level slog.Level, event string, userID int64, sess state.Session, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.String("flow", string(sess.Flow)),
		slog.String("step", string(sess.State)),
	}
	logger.Event(ctx, component, level, event, append(attrs, extra...)...)
}
