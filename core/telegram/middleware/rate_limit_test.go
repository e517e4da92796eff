package middleware

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func TestRateLimitPerUser(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	msg := func(userID int64) tele.Context {
		return bot.NewContext(tele.Update{Message: &tele.Message{
			Text:   "hi",
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
		}})
	}
	cb := func(userID int64) tele.Context {
		return bot.NewContext(tele.Update{Callback: &tele.Callback{
			Data:   "main_menu",
			Sender: &tele.User{ID: userID},
		}})
	}

	passed, limited := 0, 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Burst:     2,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { passed++; return nil })

	for i := 0; i < 3; i++ {
		_ = h(msg(1))
	}
	if passed != 2 || limited != 1 {
		t.Fatalf("user 1: passed=%d limited=%d, want 2/1", passed, limited)
	}

	_ = h(msg(2))
	if passed != 3 {
		t.Fatalf("user 2 was limited by user 1's bucket")
	}

	for i := 0; i < 5; i++ {
		_ = h(cb(1))
	}
	if passed != 8 || limited != 1 {
		t.Fatalf("excluded callbacks: passed=%d limited=%d", passed, limited)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("bot: %v", err)
	}
	calls := 0
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error { calls++; return nil })
	for i := 0; i < 10; i++ {
		_ = h(bot.NewContext(tele.Update{Message: &tele.Message{Sender: &tele.User{ID: 1}}}))
	}
	if calls != 10 {
		t.Fatalf("calls = %d, want 10", calls)
	}
}
