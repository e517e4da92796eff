package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrLoginTaken is returned by CreateUser when another user owns the login.
	ErrLoginTaken = errors.New("storage: login already taken")
	// ErrUserExists is returned by CreateUser when the Telegram account is already registered.
	ErrUserExists = errors.New("storage: user already registered")
	// ErrOwnerNotFound is returned by CreateTask when the owner row does not exist.
	ErrOwnerNotFound = errors.New("storage: task owner not found")
)

// Error wraps an unexpected database failure (connection loss, timeouts, driver errors).
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

// Unwrap exposes the driver error.
func (e *Error) Unwrap() error { return e.Err }

// Code identifies storage failures in handler summaries.
func (e *Error) Code() string { return "STORAGE" }

type violation int

const (
	violationNone violation = iota
	violationUnique
	violationForeignKey
)

// classify maps driver-specific constraint errors to a violation kind and the
// constraint (or column) that triggered it.
func classify(err error) (violation, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return violationUnique, pqErr.Constraint
		case "23503":
			return violationForeignKey, pqErr.Constraint
		}
		return violationNone, ""
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Messages look like "constraint failed: UNIQUE constraint failed: users.login (2067)".
		msg := liteErr.Error()
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return violationUnique, msg
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return violationForeignKey, msg
		case sqlite3.SQLITE_CONSTRAINT:
			switch {
			case strings.Contains(msg, "UNIQUE"):
				return violationUnique, msg
			case strings.Contains(msg, "FOREIGN KEY"):
				return violationForeignKey, msg
			}
		}
	}
	return violationNone, ""
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
