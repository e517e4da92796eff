package bot

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"testing"

	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/core/telegram/keyboard"
	"github.com/m3rciful/todobot/core/telegram/router"
	"github.com/m3rciful/todobot/core/telegram/state"
	"github.com/m3rciful/todobot/internal/access"
	"github.com/m3rciful/todobot/internal/conversation"
	"github.com/m3rciful/todobot/internal/storage"
	"github.com/m3rciful/todobot/internal/storage/storagetest"

	tele "gopkg.in/telebot.v4"
)

// outgoing is one message the handlers produced.
type outgoing struct {
	text   string
	markup *tele.ReplyMarkup
	edit   bool
}

// recorder captures replies instead of calling the Bot API.
type recorder struct {
	tele.Context
	sent    []outgoing
	answers []tele.CallbackResponse
}

func markupOf(opts []any) *tele.ReplyMarkup {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil {
				return v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			return v
		}
	}
	return nil
}

func (r *recorder) Send(what any, opts ...any) error {
	r.sent = append(r.sent, outgoing{text: fmt.Sprint(what), markup: markupOf(opts)})
	return nil
}

func (r *recorder) EditOrSend(what any, opts ...any) error {
	r.sent = append(r.sent, outgoing{text: fmt.Sprint(what), markup: markupOf(opts), edit: true})
	return nil
}

func (r *recorder) Respond(resp ...*tele.CallbackResponse) error {
	if len(resp) > 0 && resp[0] != nil {
		r.answers = append(r.answers, *resp[0])
	} else {
		r.answers = append(r.answers, tele.CallbackResponse{})
	}
	return nil
}

func (r *recorder) last(t *testing.T) outgoing {
	t.Helper()
	if len(r.sent) == 0 {
		t.Fatal("no reply sent")
	}
	return r.sent[len(r.sent)-1]
}

func (r *recorder) answer(t *testing.T) tele.CallbackResponse {
	t.Helper()
	if len(r.answers) != 1 {
		t.Fatalf("callback answered %d times", len(r.answers))
	}
	return r.answers[0]
}

type harness struct {
	t        *testing.T
	api      *tele.Bot
	store    *storage.Store
	sessions state.Manager
	text     tele.HandlerFunc
	callback tele.HandlerFunc
	updateID int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	store := storagetest.NewStore(t)
	sessions := state.NewMemoryManager(state.MemoryOptions{})
	b, err := New(Deps{
		Store:    store,
		Engine:   conversation.New(store, sessions),
		Gate:     access.New(store),
		Sessions: sessions,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	reg := tg.NewRegistry()
	if err := b.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	h := &harness{t: t, api: api, store: store, sessions: sessions}
	for _, r := range router.Routes(reg, router.Options{}) {
		switch r.Endpoint {
		case tele.OnText:
			h.text = r.Handler
		case tele.OnCallback:
			h.callback = r.Handler
		}
	}
	if h.text == nil || h.callback == nil {
		t.Fatal("text or callback route missing")
	}
	return h
}

func (h *harness) say(userID int64, text string) *recorder {
	h.t.Helper()
	h.updateID++
	rec := &recorder{Context: h.api.NewContext(tele.Update{ID: h.updateID, Message: &tele.Message{
		Text:   text,
		Sender: &tele.User{ID: userID},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}})}
	_ = h.text(rec)
	return rec
}

func (h *harness) press(userID int64, data string) *recorder {
	h.t.Helper()
	h.updateID++
	rec := &recorder{Context: h.api.NewContext(tele.Update{ID: h.updateID, Callback: &tele.Callback{
		ID:     fmt.Sprint(h.updateID),
		Data:   data,
		Sender: &tele.User{ID: userID},
		Message: &tele.Message{
			ID:   1,
			Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	}})}
	_ = h.callback(rec)
	return rec
}

func (h *harness) register(tgID int64, name, login string) int64 {
	h.t.Helper()
	id, err := h.store.CreateUser(context.Background(), tgID, name, login)
	if err != nil {
		h.t.Fatalf("seed user: %v", err)
	}
	return id
}

func hasButton(markup *tele.ReplyMarkup, data string) bool {
	return slices.Contains(keyboard.CallbackData(markup), data)
}

func TestRegistrationConversation(t *testing.T) {
	h := newHarness(t)
	const user int64 = 100

	if got := h.say(user, "hello").last(t).text; got != textStartHint {
		t.Fatalf("stranger text reply = %q", got)
	}
	if got := h.say(user, "/start").last(t).text; got != conversation.TextRegistrationWelcome {
		t.Fatalf("start reply = %q", got)
	}
	if got := h.say(user, "Alice").last(t).text; got != conversation.TextAskLogin {
		t.Fatalf("name reply = %q", got)
	}
	if got := h.say(user, "bad login!").last(t).text; !strings.HasSuffix(got, conversation.TextAskLogin) {
		t.Fatalf("invalid login reply = %q", got)
	}

	done := h.say(user, "alice").last(t)
	if !strings.Contains(done.text, "Congratulations, Alice!") || !hasButton(done.markup, string(ActionCreateTask)) {
		t.Fatalf("registration reply = %+v", done)
	}
	u, ok, err := h.store.GetUserByTelegramID(context.Background(), user)
	if err != nil || !ok || u.Login != "alice" {
		t.Fatalf("stored user = %+v (%v, %v)", u, ok, err)
	}
	if h.sessions.InProgress(user) {
		t.Fatal("registration session left behind")
	}

	again := h.say(user, "/start").last(t)
	if !strings.HasPrefix(again.text, "Welcome back, Alice!") || again.markup == nil {
		t.Fatalf("second start = %+v", again)
	}
}

func TestLoginTakenKeepsStep(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Bob", "bob")

	h.say(2, "/start")
	h.say(2, "Robert")
	if got := h.say(2, "bob").last(t).text; got != conversation.TextLoginTaken {
		t.Fatalf("taken login reply = %q", got)
	}
	if got := h.say(2, "robert").last(t).text; !strings.Contains(got, "Congratulations, Robert!") {
		t.Fatalf("retry reply = %q", got)
	}
}

func TestTaskLifecycle(t *testing.T) {
	h := newHarness(t)
	const user int64 = 200
	h.register(user, "Carol", "carol")

	if got := h.press(user, string(ActionCreateTask)).last(t).text; got != conversation.TextTaskWelcome {
		t.Fatalf("create reply = %q", got)
	}
	if got := h.say(user, "Buy milk").last(t).text; got != conversation.TextAskDescription {
		t.Fatalf("task name reply = %q", got)
	}
	created := h.say(user, "Two liters").last(t)
	if !strings.HasPrefix(created.text, conversation.TextTaskCreated) || created.markup == nil {
		t.Fatalf("task created reply = %+v", created)
	}

	ownerID, _, _ := h.store.FindUserIDByTelegramID(context.Background(), user)
	tasks, err := h.store.ListTasks(context.Background(), ownerID, storage.FilterAll)
	if err != nil || len(tasks) != 1 {
		t.Fatalf("tasks = %v (%v)", tasks, err)
	}
	id := tasks[0].ID
	card := fmt.Sprintf("task_%d", id)

	list := h.press(user, string(ActionActualTasks)).last(t)
	if !list.edit || !hasButton(list.markup, card) {
		t.Fatalf("current list = %+v", list)
	}

	view := h.press(user, card).last(t)
	if !strings.Contains(view.text, "*Buy milk*") || !hasButton(view.markup, fmt.Sprintf("mark_task_done_%d", id)) {
		t.Fatalf("card = %+v", view)
	}

	done := h.press(user, fmt.Sprintf("mark_task_done_%d", id))
	if got := done.answer(t); got.Text != textTaskDone || !got.ShowAlert {
		t.Fatalf("mark done answer = %+v", got)
	}
	if got := done.last(t).text; !strings.HasPrefix(got, markerDone) {
		t.Fatalf("refreshed card = %q", got)
	}

	if got := h.press(user, string(ActionActualTasks)).last(t).text; !strings.Contains(got, textNoTasks) {
		t.Fatalf("current list after done = %q", got)
	}
	if got := h.press(user, string(ActionCompletedTasks)).last(t); !hasButton(got.markup, card) {
		t.Fatalf("completed list = %+v", got)
	}

	purge := h.press(user, string(ActionDeleteCompletedTasks))
	if got := purge.answer(t).Text; got != "Deleted completed tasks: 1" {
		t.Fatalf("delete completed answer = %q", got)
	}
	if got := purge.last(t).text; got != textMenu {
		t.Fatalf("after purge = %q", got)
	}
	if got := h.press(user, string(ActionAllTasks)).last(t).text; !strings.Contains(got, textNoTasks) {
		t.Fatalf("all list after purge = %q", got)
	}
	if got := h.press(user, string(ActionDeleteCompletedTasks)).answer(t).Text; got != deletedCompletedText(0) {
		t.Fatalf("empty purge answer = %q", got)
	}
}

func TestDeleteTask(t *testing.T) {
	h := newHarness(t)
	const user int64 = 300
	ownerID := h.register(user, "Dan", "dan")
	id, err := h.store.CreateTask(context.Background(), ownerID, "Call mom", "Sunday")
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	rec := h.press(user, fmt.Sprintf("delete_task_%d", id))
	if got := rec.answer(t).Text; got != textTaskDeleted {
		t.Fatalf("delete answer = %q", got)
	}
	if _, ok, _ := h.store.GetTask(context.Background(), id); ok {
		t.Fatal("task still stored")
	}
	if got := h.press(user, fmt.Sprintf("task_%d", id)).answer(t).Text; got != textTaskMissing {
		t.Fatalf("deleted task answer = %q", got)
	}
}

func TestForeignTaskIsMissing(t *testing.T) {
	h := newHarness(t)
	ownerID := h.register(1, "Eve", "eve")
	h.register(2, "Mallory", "mallory")
	id, err := h.store.CreateTask(context.Background(), ownerID, "Secret", "Private")
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}

	for _, data := range []string{
		fmt.Sprintf("task_%d", id),
		fmt.Sprintf("mark_task_done_%d", id),
		fmt.Sprintf("delete_task_%d", id),
	} {
		if got := h.press(2, data).answer(t).Text; got != textTaskMissing {
			t.Fatalf("%s answer = %q", data, got)
		}
	}
	task, ok, err := h.store.GetTask(context.Background(), id)
	if err != nil || !ok || task.IsDone {
		t.Fatalf("foreign task changed: %+v (%v, %v)", task, ok, err)
	}
}

func TestCallbackAccess(t *testing.T) {
	h := newHarness(t)
	h.register(1, "Frank", "frank")

	tests := []struct {
		name string
		user int64
		data string
		want string
	}{
		{name: "stranger menu", user: 9, data: string(ActionMainMenu), want: textNotAllowed},
		{name: "stranger task", user: 9, data: "task_1", want: textNotAllowed},
		{name: "stranger unknown", user: 9, data: "bogus", want: textNotAllowed},
		{name: "member unknown", user: 1, data: "bogus", want: textUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.press(tt.user, tt.data)
			if got := rec.answer(t).Text; got != tt.want {
				t.Fatalf("answer = %q, want %q", got, tt.want)
			}
			if len(rec.sent) != 0 {
				t.Fatalf("unexpected messages: %+v", rec.sent)
			}
		})
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	const user int64 = 400
	h.register(user, "Grace", "grace")

	if got := h.say(user, "/cancel").last(t).text; got != conversation.TextNothingToCancel {
		t.Fatalf("idle cancel = %q", got)
	}

	h.press(user, string(ActionCreateTask))
	h.say(user, "Draft")
	cancelled := h.say(user, "/cancel").last(t)
	if !strings.HasPrefix(cancelled.text, conversation.TextCancelled) || cancelled.markup == nil {
		t.Fatalf("cancel reply = %+v", cancelled)
	}
	if h.sessions.InProgress(user) {
		t.Fatal("session survived cancel")
	}
	if got := h.say(user, "Two liters").last(t).text; !strings.HasPrefix(got, textUseMenu) {
		t.Fatalf("text after cancel = %q", got)
	}

	h.say(500, "/start")
	if got := h.say(500, "/cancel").last(t); got.text != conversation.TextCancelled || got.markup != nil {
		t.Fatalf("registration cancel = %+v", got)
	}
}

func TestStartDuringTaskInputShowsMenu(t *testing.T) {
	h := newHarness(t)
	const user int64 = 600
	h.register(user, "Heidi", "heidi")

	h.press(user, string(ActionCreateTask))
	if !h.sessions.InProgress(user) {
		t.Fatal("task flow not started")
	}
	if got := h.say(user, "/start").last(t).text; !strings.HasPrefix(got, "Welcome back, Heidi!") {
		t.Fatalf("start reply = %q", got)
	}
	if h.sessions.InProgress(user) {
		t.Fatal("/start left task input active")
	}
}
