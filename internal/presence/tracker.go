package presence

import "sync"

type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Tracker counts live connections per user. It is process-local by design:
// constructed once in main and injected, lost on restart. The Redis mirror in
// internal/cache exposes the same transitions to other instances but is never
// read back here.
type Tracker struct {
	mu    sync.Mutex
	conns map[string]int
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]int)}
}

// Connect increments the user's connection count and reports whether the
// user just came online (0 -> 1).
func (t *Tracker) Connect(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[userID]++
	return t.conns[userID] == 1
}

// Disconnect decrements and reports whether the user just went offline
// (1 -> 0). Disconnecting an unknown or already-offline user is a no-op.
func (t *Tracker) Disconnect(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, ok := t.conns[userID]
	if !ok || n == 0 {
		return false
	}
	if n == 1 {
		delete(t.conns, userID)
		return true
	}
	t.conns[userID] = n - 1
	return false
}

func (t *Tracker) StatusOf(userID string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conns[userID] > 0 {
		return StatusOnline
	}
	return StatusOffline
}

func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
