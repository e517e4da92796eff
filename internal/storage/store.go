// Package storage persists users and their tasks.
//
// Queries are written with '?' placeholders and rebound for the driver in use,
// so the same Store runs on PostgreSQL in production and SQLite in tests.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/todobot/core/logger"
)

const (
	componentUsers = "service.users"
	componentTasks = "service.tasks"
)

// Store implements the persistence operations over a sqlx pool.
// It is safe for concurrent use; every call is its own unit of work.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New returns a Store backed by db.
func New(db *sqlx.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

// CreateUser registers a Telegram account and returns the new user id.
func (s *Store) CreateUser(ctx context.Context, tgID int64, name, login string) (int64, error) {
	now := s.now()
	query := s.db.Rebind(`
		INSERT INTO users (tg_id, name, login, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	if err := s.db.GetContext(ctx, &id, query, tgID, name, login, now, now); err != nil {
		if kind, constraint := classify(err); kind == violationUnique {
			if strings.Contains(constraint, "tg_id") {
				return 0, ErrUserExists
			}
			logger.Info(ctx, componentUsers, "user.login_taken",
				slog.String("status", "skip"),
				slog.Int64("user_id", tgID),
			)
			return 0, ErrLoginTaken
		}
		logger.Error(ctx, componentUsers, "user.create",
			slog.String("status", "fail"),
			slog.Int64("user_id", tgID),
			slog.String("err", err.Error()),
		)
		return 0, wrap("create user", err)
	}

	logger.Info(ctx, componentUsers, "user.create",
		slog.String("status", "ok"),
		slog.Int64("user_id", tgID),
		slog.Int64("owner_id", id),
	)
	return id, nil
}

// FindUserIDByTelegramID resolves the internal id of a Telegram account.
func (s *Store) FindUserIDByTelegramID(ctx context.Context, tgID int64) (int64, bool, error) {
	query := s.db.Rebind(`SELECT id FROM users WHERE tg_id = ?`)
	var id int64
	err := s.db.GetContext(ctx, &id, query, tgID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return 0, false, nil
	case err != nil:
		return 0, false, wrap("find user", err)
	}
	return id, true, nil
}

// GetUserByTelegramID loads the full user row of a Telegram account.
func (s *Store) GetUserByTelegramID(ctx context.Context, tgID int64) (User, bool, error) {
	query := s.db.Rebind(`
		SELECT id, tg_id, name, login, created_at, updated_at
		FROM users WHERE tg_id = ?`)
	var u User
	err := s.db.GetContext(ctx, &u, query, tgID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return User{}, false, nil
	case err != nil:
		return User{}, false, wrap("get user", err)
	}
	return u, true, nil
}

// DeleteUser removes a user; their tasks go with them through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, userID int64) error {
	query := s.db.Rebind(`DELETE FROM users WHERE id = ?`)
	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return wrap("delete user", err)
	}
	logger.Info(ctx, componentUsers, "user.delete",
		slog.String("status", "ok"),
		slog.Int64("owner_id", userID),
	)
	return nil
}

// CreateTask stores a new incomplete task for ownerID and returns its id.
func (s *Store) CreateTask(ctx context.Context, ownerID int64, name, description string) (int64, error) {
	now := s.now()
	query := s.db.Rebind(`
		INSERT INTO tasks (owner_id, name, description, is_done, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	if err := s.db.GetContext(ctx, &id, query, ownerID, name, description, false, now, now); err != nil {
		if kind, _ := classify(err); kind == violationForeignKey {
			return 0, ErrOwnerNotFound
		}
		logger.Error(ctx, componentTasks, "task.create",
			slog.String("status", "fail"),
			slog.Int64("owner_id", ownerID),
			slog.String("err", err.Error()),
		)
		return 0, wrap("create task", err)
	}

	logger.Info(ctx, componentTasks, "task.create",
		slog.String("status", "ok"),
		slog.Int64("owner_id", ownerID),
		slog.Int64("task_id", id),
	)
	return id, nil
}

// ListTasks returns the owner's tasks matching filter, incomplete first, then by id.
func (s *Store) ListTasks(ctx context.Context, ownerID int64, filter Filter) ([]Task, error) {
	base := `
		SELECT id, owner_id, name, description, is_done, created_at, updated_at
		FROM tasks WHERE owner_id = ?`
	args := []any{ownerID}
	switch filter {
	case FilterCompleted:
		base += ` AND is_done = ?`
		args = append(args, true)
	case FilterIncomplete:
		base += ` AND is_done = ?`
		args = append(args, false)
	case FilterAll, "":
	default:
		return nil, wrap("list tasks", errors.New("unknown filter "+string(filter)))
	}
	base += ` ORDER BY is_done ASC, id ASC`

	tasks := []Task{}
	if err := s.db.SelectContext(ctx, &tasks, s.db.Rebind(base), args...); err != nil {
		return nil, wrap("list tasks", err)
	}
	return tasks, nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, taskID int64) (Task, bool, error) {
	query := s.db.Rebind(`
		SELECT id, owner_id, name, description, is_done, created_at, updated_at
		FROM tasks WHERE id = ?`)
	var t Task
	err := s.db.GetContext(ctx, &t, query, taskID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return Task{}, false, nil
	case err != nil:
		return Task{}, false, wrap("get task", err)
	}
	return t, true, nil
}

// MarkTaskComplete flags a task done. Missing or already-done tasks are left untouched.
func (s *Store) MarkTaskComplete(ctx context.Context, taskID int64) error {
	query := s.db.Rebind(`UPDATE tasks SET is_done = ?, updated_at = ? WHERE id = ? AND is_done = ?`)
	res, err := s.db.ExecContext(ctx, query, true, s.now(), taskID, false)
	if err != nil {
		return wrap("mark task complete", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info(ctx, componentTasks, "task.complete",
			slog.String("status", "ok"),
			slog.Int64("task_id", taskID),
		)
	}
	return nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (s *Store) DeleteTask(ctx context.Context, taskID int64) error {
	query := s.db.Rebind(`DELETE FROM tasks WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, taskID)
	if err != nil {
		return wrap("delete task", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info(ctx, componentTasks, "task.delete",
			slog.String("status", "ok"),
			slog.Int64("task_id", taskID),
		)
	}
	return nil
}

// DeleteCompletedTasks removes the owner's completed tasks and returns how many were deleted.
// The id set is read and deleted inside one transaction; a task completed after the read
// is not part of the set and survives this call.
func (s *Store) DeleteCompletedTasks(ctx context.Context, ownerID int64) (deleted int64, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, wrap("delete completed: begin", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var ids []int64
	selectQ := tx.Rebind(`SELECT id FROM tasks WHERE owner_id = ? AND is_done = ?`)
	if err = tx.SelectContext(ctx, &ids, selectQ, ownerID, true); err != nil {
		return 0, wrap("delete completed: select", err)
	}
	if len(ids) == 0 {
		if err = tx.Commit(); err != nil {
			return 0, wrap("delete completed: commit", err)
		}
		return 0, nil
	}

	deleteQ, args, err := sqlx.In(`DELETE FROM tasks WHERE owner_id = ? AND is_done = ? AND id IN (?)`, ownerID, true, ids)
	if err != nil {
		return 0, wrap("delete completed: build", err)
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(deleteQ), args...)
	if err != nil {
		return 0, wrap("delete completed: delete", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, wrap("delete completed: commit", err)
	}

	deleted, _ = res.RowsAffected()
	logger.Info(ctx, componentTasks, "task.delete_completed",
		slog.String("status", "ok"),
		slog.Int64("owner_id", ownerID),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}
