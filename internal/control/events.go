package control

import "time"

// EventKind distinguishes command events from device state events.
type EventKind string

const (
	EventCommand EventKind = "command"
	EventStatus  EventKind = "status"
)

// Origin values of events.
const (
	OriginManual   = "manual"
	OriginSchedule = "schedule"
	OriginDevice   = "device"
)

// Event is published after an accepted command or a device status change.
type Event struct {
	Kind     EventKind `json:"kind"`
	Origin   string    `json:"origin"`
	Schedule string    `json:"schedule,omitempty"`
	Action   Action    `json:"action,omitempty"`
	Status   Status    `json:"status,omitempty"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Notifier receives events. Implementations must not block.
type Notifier interface {
	Notify(Event)
}

// Notifiers fans an event out to several notifiers.
type Notifiers []Notifier

// Notify forwards e to every notifier.
func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		n.Notify(e)
	}
}
