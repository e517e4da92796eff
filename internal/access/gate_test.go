package access

import (
	"context"
	"errors"
	"testing"

	tg "github.com/m3rciful/todobot/core/telegram"
	"github.com/m3rciful/todobot/internal/storage/storagetest"

	tele "gopkg.in/telebot.v4"
)

type brokenLookup struct{}

func (brokenLookup) FindUserIDByTelegramID(context.Context, int64) (int64, bool, error) {
	return 0, false, errors.New("connection refused")
}

func TestGatePredicates(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	if _, err := store.CreateUser(ctx, 10, "Alice", "alice"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	g := New(store)

	registered := tg.Event{Kind: tg.EventText, UserID: 10}
	stranger := tg.Event{Kind: tg.EventText, UserID: 11}

	if !g.Registered()(ctx, registered) || g.Unregistered()(ctx, registered) {
		t.Fatal("registered user misclassified")
	}
	if g.Registered()(ctx, stranger) || !g.Unregistered()(ctx, stranger) {
		t.Fatal("stranger misclassified")
	}

	// No caching: a user registered after the first check is seen immediately.
	if _, err := store.CreateUser(ctx, 11, "Bob", "bob"); err != nil {
		t.Fatalf("register stranger: %v", err)
	}
	if !g.Registered()(ctx, stranger) {
		t.Fatal("gate served a stale answer")
	}
}

func TestGateLookupError(t *testing.T) {
	g := New(brokenLookup{})
	ev := tg.Event{Kind: tg.EventText, UserID: 1}
	if g.Registered()(context.Background(), ev) || g.Unregistered()(context.Background(), ev) {
		t.Fatal("predicates matched despite lookup failure")
	}
	if _, err := g.IsRegistered(context.Background(), 1); err == nil {
		t.Fatal("expected lookup error")
	}
}

func TestRequireRegistered(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewStore(t)
	if _, err := store.CreateUser(ctx, 10, "Alice", "alice"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}

	var passed, rejected, failed int
	wrap := func(g *Gate) tele.HandlerFunc {
		return g.RequireRegistered(
			func(tele.Context) error { rejected++; return nil },
			func(tele.Context) error { failed++; return nil },
		)(func(tele.Context) error { passed++; return nil })
	}
	from := func(id int64) tele.Context {
		return bot.NewContext(tele.Update{Callback: &tele.Callback{Data: "main_menu", Sender: &tele.User{ID: id}}})
	}

	h := wrap(New(store))
	_ = h(from(10))
	_ = h(from(99))
	_ = wrap(New(brokenLookup{}))(from(10))

	if passed != 1 || rejected != 1 || failed != 1 {
		t.Fatalf("passed=%d rejected=%d failed=%d, want 1/1/1", passed, rejected, failed)
	}
}
