package session

import (
	"sync"
)

// Locks serializes turns per session id so two concurrent messages for the
// same session cannot race on the read-step-write cycle and silently drop
// an update.
type Locks struct {
	m sync.Map // sessionID -> *sync.Mutex
}

// NewLocks creates an empty lock set.
func NewLocks() *Locks {
	return &Locks{}
}

// Lock acquires the mutex for a session id and returns its unlock func.
func (l *Locks) Lock(sessionID string) func() {
	v, _ := l.m.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Prune drops the mutex for a session that has been evicted. Safe to call
// while no turn for that session is in flight.
func (l *Locks) Prune(sessionID string) {
	l.m.Delete(sessionID)
}
