package control

import (
	"sync"
	"time"
)

// Snapshot is the last-known state of the device.
type Snapshot struct {
	Status     Status    `json:"status"`
	LastUpdate time.Time `json:"lastUpdate"`
	IP         string    `json:"ip"`
}

// Tracker is a last-write-wins register for the device's self-reported
// state. It never rejects a report.
//
// Thread Safety: all methods are safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewTracker returns a tracker that assumes the shutter starts closed.
func NewTracker(now time.Time) *Tracker {
	return &Tracker{snapshot: Snapshot{Status: StatusClosed, LastUpdate: now}}
}

// Report records a self-report. Unrecognized statuses leave the tracked
// status untouched but still refresh LastUpdate; ip is kept when empty.
// changed is true when the tracked status moved to a different value.
func (t *Tracker) Report(status, ip string, at time.Time) (snap Snapshot, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := ParseStatus(status); ok {
		changed = s != t.snapshot.Status
		t.snapshot.Status = s
	}
	t.snapshot.LastUpdate = at
	if ip != "" {
		t.snapshot.IP = ip
	}
	return t.snapshot, changed
}

// Current returns a copy of the tracked state.
func (t *Tracker) Current() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}
