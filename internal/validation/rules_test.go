package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestLogin(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "alice.01", true},
		{"underscore", "a_b", true},
		{"exactly max", strings.Repeat("a", 20) + "._9Zx", true},
		{"over max", strings.Repeat("a", MaxLogin+1), false},
		{"space", "alice smith", false},
		{"at sign", "alice@home", false},
		{"cyrillic", "алиса", false},
		{"empty", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Login(tc.input)
			if tc.ok && err != nil {
				t.Fatalf("Login(%q) = %v, want ok", tc.input, err)
			}
			if !tc.ok && err == nil {
				t.Fatalf("Login(%q) accepted, want error", tc.input)
			}
		})
	}
}

func TestLoginBoundaryIs25(t *testing.T) {
	exact := strings.Repeat("x", 25)
	if len(exact) != MaxLogin {
		t.Fatal("fixture must be 25 chars")
	}
	if err := Login(exact); err != nil {
		t.Fatalf("25 chars rejected: %v", err)
	}
	if err := Login(exact + "y"); err == nil {
		t.Fatal("26 chars accepted")
	}
}

func TestLengthsCountCharacters(t *testing.T) {
	// 25 multi-byte runes are a valid display name.
	if err := UserName(strings.Repeat("Ж", MaxUserName)); err != nil {
		t.Fatalf("rune length not used: %v", err)
	}
	if err := UserName(strings.Repeat("Ж", MaxUserName+1)); err == nil {
		t.Fatal("26 runes accepted")
	}
	if err := TaskName(strings.Repeat("n", MaxTaskName)); err != nil {
		t.Fatalf("task name at max rejected: %v", err)
	}
	if err := TaskName(strings.Repeat("n", MaxTaskName+1)); err == nil {
		t.Fatal("task name over max accepted")
	}
	if err := TaskDescription(strings.Repeat("d", MaxTaskDescription)); err != nil {
		t.Fatalf("description at max rejected: %v", err)
	}
	if err := TaskDescription(strings.Repeat("d", MaxTaskDescription+1)); err == nil {
		t.Fatal("description over max accepted")
	}
}

func TestReason(t *testing.T) {
	err := Login("bad login")
	var verr *Error
	if !errors.As(err, &verr) || verr.Field != "login" {
		t.Fatalf("unexpected error: %#v", err)
	}
	if !strings.Contains(Reason(err), "Latin letters") {
		t.Fatalf("reason = %q", Reason(err))
	}
	if !strings.Contains(Reason(UserName("")), "must not be empty") {
		t.Fatalf("reason for empty = %q", Reason(UserName("")))
	}
	if Reason(errors.New("other")) != "" {
		t.Fatal("expected empty reason for foreign error")
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  alice \n"); got != "alice" {
		t.Fatalf("Normalize = %q", got)
	}
}
