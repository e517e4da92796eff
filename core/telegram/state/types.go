package state

import "time"

// State identifies a step inside a conversation flow.
type State string

// Flow identifies a multi-step conversation.
type Flow string

const (
	// StateIdle indicates there is no active conversation with the user.
	StateIdle State = "idle"
	// FlowNone indicates no flow is active.
	FlowNone Flow = "none"
)

// Session stores conversation state and the field values collected so far.
// Values returned by a Manager are copies; mutate through the Manager.
type Session struct {
	ID        string
	Flow      Flow
	State     State
	Data      map[string]string
	StartedAt time.Time
	TouchedAt time.Time
}

// Active reports whether the session is inside a flow.
func (s Session) Active() bool {
	return s.Flow != FlowNone && s.Flow != "" && s.State != StateIdle && s.State != ""
}

// Value returns the collected value for key or "".
func (s Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}

func (s Session) clone() Session {
	out := s
	out.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}

// Manager orchestrates user sessions and FSM state transitions.
type Manager interface {
	// Begin starts (or restarts) a flow for the user at the given step, dropping collected data.
	Begin(userID int64, flow Flow, st State) Session
	// Get returns a copy of the live session; false when absent or expired.
	Get(userID int64) (Session, bool)
	// SetState moves an existing session to st; false when there is no live session.
	SetState(userID int64, st State) bool
	// SetTemp stores a collected value; false when there is no live session.
	SetTemp(userID int64, key, value string) bool
	// GetState returns the current step, or StateIdle.
	GetState(userID int64) State
	// Clear removes the session and reports whether one existed.
	Clear(userID int64) bool
	// InProgress reports whether the user is inside a flow.
	InProgress(userID int64) bool
	// Lock serializes event handling for one user; call the returned func to release.
	Lock(userID int64) (unlock func())
	// Sweep removes expired sessions and returns how many were dropped.
	Sweep() int
	// Len returns the number of stored sessions, expired ones included.
	Len() int
}
