package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m3rciful/todobot/core/database"
	"github.com/m3rciful/todobot/internal/storage"
	"github.com/m3rciful/todobot/internal/storage/storagetest"
	"github.com/m3rciful/todobot/migrations"
)

func mustUser(t *testing.T, s *storage.Store, tgID int64, login string) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), tgID, "Alice", login)
	if err != nil {
		t.Fatalf("create user %s: %v", login, err)
	}
	return id
}

func mustTask(t *testing.T, s *storage.Store, owner int64, name string) int64 {
	t.Helper()
	id, err := s.CreateTask(context.Background(), owner, name, "desc")
	if err != nil {
		t.Fatalf("create task %s: %v", name, err)
	}
	return id
}

func TestMigrationsIdempotent(t *testing.T) {
	db := storagetest.Open(t)
	cfg := database.Config{Driver: database.DriverSQLite, DSN: storagetest.DSN}
	if err := database.RunMigrations(db, cfg, migrations.FS); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	s := storage.New(db)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestCreateUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)

	id := mustUser(t, s, 100, "alice.01")
	if id <= 0 {
		t.Fatalf("id = %d", id)
	}

	if _, err := s.CreateUser(ctx, 200, "Bob", "alice.01"); !errors.Is(err, storage.ErrLoginTaken) {
		t.Fatalf("duplicate login err = %v, want ErrLoginTaken", err)
	}
	if _, err := s.CreateUser(ctx, 100, "Alice", "other"); !errors.Is(err, storage.ErrUserExists) {
		t.Fatalf("duplicate tg_id err = %v, want ErrUserExists", err)
	}

	got, ok, err := s.FindUserIDByTelegramID(ctx, 100)
	if err != nil || !ok || got != id {
		t.Fatalf("find = (%d, %v, %v), want (%d, true, nil)", got, ok, err, id)
	}
	if _, ok, err := s.FindUserIDByTelegramID(ctx, 999); err != nil || ok {
		t.Fatalf("find unknown = (%v, %v)", ok, err)
	}

	u, ok, err := s.GetUserByTelegramID(ctx, 100)
	if err != nil || !ok {
		t.Fatalf("get user = (%v, %v)", ok, err)
	}
	if u.Name != "Alice" || u.Login != "alice.01" || u.TelegramID != 100 || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestCreateTaskUnknownOwner(t *testing.T) {
	s := storagetest.NewStore(t)
	if _, err := s.CreateTask(context.Background(), 42, "n", "d"); !errors.Is(err, storage.ErrOwnerNotFound) {
		t.Fatalf("err = %v, want ErrOwnerNotFound", err)
	}
}

func TestListTasksFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)
	owner := mustUser(t, s, 1, "owner")
	other := mustUser(t, s, 2, "other")

	a := mustTask(t, s, owner, "a")
	b := mustTask(t, s, owner, "b")
	c := mustTask(t, s, owner, "c")
	mustTask(t, s, other, "foreign")

	if err := s.MarkTaskComplete(ctx, a); err != nil {
		t.Fatalf("mark: %v", err)
	}

	cases := []struct {
		filter storage.Filter
		want   []int64
	}{
		{storage.FilterAll, []int64{b, c, a}},
		{storage.FilterIncomplete, []int64{b, c}},
		{storage.FilterCompleted, []int64{a}},
	}
	for _, tc := range cases {
		t.Run(string(tc.filter), func(t *testing.T) {
			tasks, err := s.ListTasks(ctx, owner, tc.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(tasks) != len(tc.want) {
				t.Fatalf("got %d tasks, want %d", len(tasks), len(tc.want))
			}
			for i, task := range tasks {
				if task.ID != tc.want[i] {
					t.Fatalf("position %d: id %d, want %d", i, task.ID, tc.want[i])
				}
				if task.OwnerID != owner {
					t.Fatalf("task %d belongs to %d", task.ID, task.OwnerID)
				}
			}
		})
	}

	if _, err := s.ListTasks(ctx, owner, storage.Filter("bogus")); err == nil {
		t.Fatal("expected error for unknown filter")
	}

	empty, err := s.ListTasks(ctx, 999, storage.FilterAll)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("list for unknown owner = (%v, %v), want empty slice", empty, err)
	}
}

func TestMarkAndDeleteAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)
	owner := mustUser(t, s, 1, "owner")
	id := mustTask(t, s, owner, "t")

	for i := 0; i < 2; i++ {
		if err := s.MarkTaskComplete(ctx, id); err != nil {
			t.Fatalf("mark #%d: %v", i, err)
		}
	}
	task, ok, err := s.GetTask(ctx, id)
	if err != nil || !ok || !task.IsDone {
		t.Fatalf("get after mark = (%+v, %v, %v)", task, ok, err)
	}

	if err := s.MarkTaskComplete(ctx, 12345); err != nil {
		t.Fatalf("mark missing: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.DeleteTask(ctx, id); err != nil {
			t.Fatalf("delete #%d: %v", i, err)
		}
	}
	if _, ok, err := s.GetTask(ctx, id); err != nil || ok {
		t.Fatalf("get after delete = (%v, %v)", ok, err)
	}
}

func TestDeleteCompletedTasks(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)
	owner := mustUser(t, s, 1, "owner")
	other := mustUser(t, s, 2, "other")

	done1 := mustTask(t, s, owner, "d1")
	done2 := mustTask(t, s, owner, "d2")
	open := mustTask(t, s, owner, "open")
	foreignDone := mustTask(t, s, other, "foreign")
	for _, id := range []int64{done1, done2, foreignDone} {
		if err := s.MarkTaskComplete(ctx, id); err != nil {
			t.Fatalf("mark %d: %v", id, err)
		}
	}

	n, err := s.DeleteCompletedTasks(ctx, owner)
	if err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if n != 2 {
		t.Fatalf("deleted = %d, want 2", n)
	}

	left, err := s.ListTasks(ctx, owner, storage.FilterAll)
	if err != nil || len(left) != 1 || left[0].ID != open {
		t.Fatalf("remaining = (%+v, %v)", left, err)
	}
	if _, ok, _ := s.GetTask(ctx, foreignDone); !ok {
		t.Fatal("other owner's completed task was deleted")
	}

	n, err = s.DeleteCompletedTasks(ctx, owner)
	if err != nil || n != 0 {
		t.Fatalf("second run = (%d, %v), want (0, nil)", n, err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)
	owner := mustUser(t, s, 1, "owner")
	id := mustTask(t, s, owner, "t")

	if err := s.DeleteUser(ctx, owner); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, ok, err := s.GetTask(ctx, id); err != nil || ok {
		t.Fatalf("task survived cascade: (%v, %v)", ok, err)
	}
	if _, ok, err := s.FindUserIDByTelegramID(ctx, 1); err != nil || ok {
		t.Fatalf("user survived delete: (%v, %v)", ok, err)
	}
}

func TestConcurrentCreateTask(t *testing.T) {
	ctx := context.Background()
	s := storagetest.NewStore(t)
	owner := mustUser(t, s, 1, "owner")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.CreateTask(ctx, owner, "t", "d"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}

	tasks, err := s.ListTasks(ctx, owner, storage.FilterAll)
	if err != nil || len(tasks) != workers {
		t.Fatalf("got %d tasks (%v), want %d", len(tasks), err, workers)
	}
}

func TestStorageErrorCode(t *testing.T) {
	db := storagetest.Open(t)
	s := storage.New(db)
	_ = db.Close()

	_, _, err := s.FindUserIDByTelegramID(context.Background(), 1)
	var serr *storage.Error
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want *storage.Error", err)
	}
	if serr.Code() != "STORAGE" {
		t.Fatalf("code = %q", serr.Code())
	}
}
