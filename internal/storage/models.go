package storage

import "time"

// User is a registered bot user.
type User struct {
	ID         int64     `db:"id"`
	TelegramID int64     `db:"tg_id"`
	Name       string    `db:"name"`
	Login      string    `db:"login"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Task is a to-do item owned by one user.
type Task struct {
	ID          int64     `db:"id"`
	OwnerID     int64     `db:"owner_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	IsDone      bool      `db:"is_done"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Filter selects which tasks ListTasks returns.
type Filter string

const (
	// FilterAll returns every task, incomplete first.
	FilterAll Filter = "all"
	// FilterCompleted returns tasks marked done.
	FilterCompleted Filter = "completed"
	// FilterIncomplete returns tasks not yet done.
	FilterIncomplete Filter = "incomplete"
)
