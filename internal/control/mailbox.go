package control

import "sync"

// Mailbox is the single-slot holder for the next command the device will
// pick up. Writes overwrite, reads clear.
//
// A write may carry one follow-up action. The follow-up is invisible until
// the first action has been consumed by a poll, so a device that polls
// between the two always sees them in order. Any later write discards an
// unreleased follow-up.
//
// Thread Safety: all methods are safe for concurrent use.
type Mailbox struct {
	mu       sync.Mutex
	pending  Action
	followUp Action
}

// Set replaces whatever is pending with a.
func (m *Mailbox) Set(a Action) {
	m.SetThen(a, ActionNone)
}

// SetThen replaces whatever is pending with first, releasing then once
// first has been read.
func (m *Mailbox) SetThen(first, then Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = first
	m.followUp = then
}

// PeekAndClear returns the pending action, or ActionNone, and clears the
// slot. It never blocks on anything but the mailbox lock.
func (m *Mailbox) PeekAndClear() Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.pending
	m.pending = m.followUp
	m.followUp = ActionNone
	return a
}

// Peek returns the pending action without consuming it.
func (m *Mailbox) Peek() Action {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}
