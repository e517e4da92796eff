package state

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/todobot/core/logger"
)

// MemoryOptions configures the in-memory Manager.
type MemoryOptions struct {
	// IdleTimeout expires sessions untouched for longer than this; 0 disables expiry.
	IdleTimeout time.Duration
	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock

	idle  time.Duration
	clock clockwork.Clock
}

// NewMemoryManager constructs an in-memory Manager.
func NewMemoryManager(opts MemoryOptions) Manager {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	idle := opts.IdleTimeout
	if idle < 0 {
		idle = 0
	}
	return &memoryManager{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
		idle:     idle,
		clock:    clock,
	}
}

func (m *memoryManager) expired(s *Session, now time.Time) bool {
	return m.idle > 0 && now.Sub(s.TouchedAt) > m.idle
}

// live returns the stored session if it has not expired. Caller holds m.mu.
func (m *memoryManager) live(userID int64, now time.Time) (*Session, bool) {
	s, ok := m.sessions[userID]
	if !ok || m.expired(s, now) {
		return nil, false
	}
	return s, true
}

// Begin starts a new flow for the user, replacing any previous session.
func (m *memoryManager) Begin(userID int64, flow Flow, st State) Session {
	now := m.clock.Now()
	s := &Session{
		ID:        uuid.NewString(),
		Flow:      flow,
		State:     st,
		Data:      make(map[string]string),
		StartedAt: now,
		TouchedAt: now,
	}

	m.mu.Lock()
	prev, hadPrev := m.live(userID, now)
	m.sessions[userID] = s
	out := s.clone()
	m.mu.Unlock()

	attrs := []slog.Attr{
		slog.Int64("user_id", userID),
		slog.String("session_id", s.ID),
		slog.String("flow", string(flow)),
		slog.String("step", string(st)),
	}
	if hadPrev {
		attrs = append(attrs, slog.String("reason", "restart:"+string(prev.Flow)))
	}
	logger.FSM.LogAttrs(context.Background(), slog.LevelDebug, "session.begin", attrs...)
	return out
}

// Get returns a copy of the user's live session.
func (m *memoryManager) Get(userID int64) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.live(userID, m.clock.Now())
	if !ok {
		return Session{Flow: FlowNone, State: StateIdle}, false
	}
	return s.clone(), true
}

// SetState updates the step of a live session and refreshes its idle timer.
func (m *memoryManager) SetState(userID int64, st State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	s, ok := m.live(userID, now)
	if !ok {
		return false
	}
	s.State = st
	s.TouchedAt = now
	return true
}

// SetTemp stores a collected value in a live session and refreshes its idle timer.
func (m *memoryManager) SetTemp(userID int64, key, value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	s, ok := m.live(userID, now)
	if !ok {
		return false
	}
	s.Data[key] = value
	s.TouchedAt = now
	return true
}

// GetState returns the current FSM state of a user, or StateIdle if none exists.
func (m *memoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.live(userID, m.clock.Now()); ok {
		return s.State
	}
	return StateIdle
}

// Clear removes the entire session for a user.
func (m *memoryManager) Clear(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.live(userID, m.clock.Now())
	delete(m.sessions, userID)
	return ok && s != nil
}

// InProgress reports whether the user currently has an active flow.
func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.live(userID, m.clock.Now())
	return ok && s.Active()
}

// Lock acquires the per-user mutex. Locks are reference counted and dropped when unused.
func (m *memoryManager) Lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, userID)
		}
		m.locksMu.Unlock()
	}
}

// Sweep drops sessions idle for longer than the configured timeout.
func (m *memoryManager) Sweep() int {
	if m.idle <= 0 {
		return 0
	}
	now := m.clock.Now()

	m.mu.Lock()
	var dropped []*Session
	for userID, s := range m.sessions {
		if m.expired(s, now) {
			dropped = append(dropped, s)
			delete(m.sessions, userID)
		}
	}
	m.mu.Unlock()

	for _, s := range dropped {
		logger.FSM.LogAttrs(context.Background(), slog.LevelInfo, "session.expired",
			slog.String("session_id", s.ID),
			slog.String("flow", string(s.Flow)),
			slog.String("step", string(s.State)),
			slog.Duration("idle_duration", now.Sub(s.TouchedAt)),
		)
	}
	return len(dropped)
}

// Len returns the number of stored sessions.
func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
