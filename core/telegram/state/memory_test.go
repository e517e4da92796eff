package state

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	flowTest  Flow  = "test"
	stepFirst State = "first"
	stepNext  State = "next"
)

func TestBeginGetClear(t *testing.T) {
	mgr := NewMemoryManager(MemoryOptions{})

	if _, ok := mgr.Get(1); ok {
		t.Fatal("expected no session before Begin")
	}
	if mgr.GetState(1) != StateIdle {
		t.Fatal("expected idle state before Begin")
	}

	s := mgr.Begin(1, flowTest, stepFirst)
	if s.ID == "" || !s.Active() {
		t.Fatalf("unexpected session: %+v", s)
	}
	if !mgr.SetTemp(1, "name", "Alice") || !mgr.SetState(1, stepNext) {
		t.Fatal("expected updates on live session")
	}

	got, ok := mgr.Get(1)
	if !ok || got.State != stepNext || got.Value("name") != "Alice" {
		t.Fatalf("unexpected session after updates: %+v", got)
	}
	if !mgr.InProgress(1) {
		t.Fatal("expected flow in progress")
	}

	if !mgr.Clear(1) {
		t.Fatal("expected Clear to report removal")
	}
	if mgr.InProgress(1) || mgr.Clear(1) {
		t.Fatal("expected session gone")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	mgr := NewMemoryManager(MemoryOptions{})
	mgr.Begin(1, flowTest, stepFirst)
	s, _ := mgr.Get(1)
	s.Data["name"] = "mutated"
	again, _ := mgr.Get(1)
	if again.Value("name") != "" {
		t.Fatal("session data leaked through copy")
	}
}

func TestSessionsIsolatedPerUser(t *testing.T) {
	mgr := NewMemoryManager(MemoryOptions{})
	mgr.Begin(1, flowTest, stepFirst)
	mgr.Begin(2, flowTest, stepFirst)
	mgr.SetTemp(1, "name", "one")
	mgr.SetState(2, stepNext)

	one, _ := mgr.Get(1)
	two, _ := mgr.Get(2)
	if one.State != stepFirst || two.Value("name") != "" || two.State != stepNext {
		t.Fatalf("sessions bled: %+v %+v", one, two)
	}
}

func TestBeginRestartsFlow(t *testing.T) {
	mgr := NewMemoryManager(MemoryOptions{})
	first := mgr.Begin(1, flowTest, stepFirst)
	mgr.SetTemp(1, "name", "old")
	second := mgr.Begin(1, flowTest, stepFirst)
	if first.ID == second.ID {
		t.Fatal("expected a new session id on restart")
	}
	got, _ := mgr.Get(1)
	if got.Value("name") != "" {
		t.Fatal("expected collected data dropped on restart")
	}
}

func TestIdleTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr := NewMemoryManager(MemoryOptions{IdleTimeout: time.Minute, Clock: clock})
	mgr.Begin(1, flowTest, stepFirst)
	mgr.Begin(2, flowTest, stepFirst)

	clock.Advance(40 * time.Second)
	mgr.SetTemp(2, "touch", "yes")
	clock.Advance(40 * time.Second)

	if _, ok := mgr.Get(1); ok {
		t.Fatal("expected user 1 session expired")
	}
	if mgr.SetState(1, stepNext) {
		t.Fatal("expected SetState to refuse an expired session")
	}
	if _, ok := mgr.Get(2); !ok {
		t.Fatal("expected touched session to stay alive")
	}

	if n := mgr.Sweep(); n != 1 {
		t.Fatalf("sweep dropped %d, want 1", n)
	}
	if mgr.Len() != 1 {
		t.Fatalf("len = %d, want 1", mgr.Len())
	}
}

func TestSweepWithoutTimeoutKeepsSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr := NewMemoryManager(MemoryOptions{Clock: clock})
	mgr.Begin(1, flowTest, stepFirst)
	clock.Advance(24 * time.Hour)
	if mgr.Sweep() != 0 || !mgr.InProgress(1) {
		t.Fatal("expected sessions to persist without idle timeout")
	}
}

func TestLockSerializesPerUser(t *testing.T) {
	mgr := NewMemoryManager(MemoryOptions{})
	mgr.Begin(1, flowTest, stepFirst)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := mgr.Lock(1)
			defer unlock()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}

	mm := mgr.(*memoryManager)
	mm.locksMu.Lock()
	defer mm.locksMu.Unlock()
	if len(mm.locks) != 0 {
		t.Fatalf("expected locks released, got %d", len(mm.locks))
	}
}

func TestSweeperExpiresSessions(t *testing.T) {
	clock := clockwork.NewFakeClock()
	mgr := NewMemoryManager(MemoryOptions{IdleTimeout: time.Minute, Clock: clock})
	mgr.Begin(1, flowTest, stepFirst)

	sw, err := StartSweeper(mgr, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("start sweeper: %v", err)
	}
	defer sw.Stop()

	clock.Advance(2 * time.Minute)
	deadline := time.Now().Add(5 * time.Second)
	for mgr.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not drop the expired session")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestStartSweeperRejectsBadInput(t *testing.T) {
	if _, err := StartSweeper(nil, time.Second, nil); err == nil {
		t.Fatal("expected error for nil manager")
	}
	if _, err := StartSweeper(NewMemoryManager(MemoryOptions{}), 0, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
}
