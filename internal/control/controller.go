package control

import (
	"context"
	"log"
	"sync"
	"time"
)

// AuditLog persists audit rows.
type AuditLog interface {
	AppendLog(ctx context.Context, status, message string) error
}

// Controller owns the device state and the command mailbox and is the only
// way commands reach the device.
//
// Thread Safety: all methods are safe for concurrent use. Dispatch and Fire
// are serialized so a status check can never race another write. Audit rows
// and notifications are written after the lock is released, so their order
// across concurrent commands is best-effort and the newest log row may not
// name the command the mailbox ends up holding.
type Controller struct {
	mu       sync.Mutex
	tracker  *Tracker
	mailbox  *Mailbox
	audit    AuditLog
	messages Messages
	notifier Notifier
	now      func() time.Time
}

// NewController creates a controller with a fresh tracker and empty mailbox.
// notifier may be nil.
func NewController(audit AuditLog, messages Messages, notifier Notifier) *Controller {
	if notifier == nil {
		notifier = Notifiers(nil)
	}
	return &Controller{
		tracker:  NewTracker(time.Now()),
		mailbox:  &Mailbox{},
		audit:    audit,
		messages: messages,
		notifier: notifier,
		now:      time.Now,
	}
}

// Messages returns the presentation table used for log text.
func (c *Controller) Messages() Messages {
	return c.messages
}

// Dispatch validates a caller-supplied action against the last reported
// status and, if accepted, places it in the mailbox and writes one audit row.
// Rejections return ErrUnknownAction, ErrAlreadyClosed or ErrAlreadyOpen and
// have no side effects.
func (c *Controller) Dispatch(ctx context.Context, raw string) (Action, error) {
	action, ok := ParseAction(raw)
	if !ok {
		return ActionNone, ErrUnknownAction
	}

	c.mu.Lock()
	status := c.tracker.Current().Status
	switch {
	case action == ActionDown && status == StatusClosed:
		c.mu.Unlock()
		return ActionNone, ErrAlreadyClosed
	case action == ActionUp && status == StatusOpen:
		c.mu.Unlock()
		return ActionNone, ErrAlreadyOpen
	}
	c.enqueueLocked(action, status)
	c.mu.Unlock()

	c.record(ctx, Event{
		Kind:    EventCommand,
		Origin:  OriginManual,
		Action:  action,
		Message: c.messages.ManualMessage(action),
		At:      c.now(),
	})
	return action, nil
}

// Fire performs a scheduled action. Unlike Dispatch it does not reject
// redundant up/down; lock while moving is still sequenced after stop.
func (c *Controller) Fire(ctx context.Context, action Action, scheduleName string) {
	c.mu.Lock()
	c.enqueueLocked(action, c.tracker.Current().Status)
	c.mu.Unlock()

	log.Printf("Running schedule %q: %s", scheduleName, action)
	c.record(ctx, Event{
		Kind:     EventCommand,
		Origin:   OriginSchedule,
		Schedule: scheduleName,
		Action:   action,
		Message:  c.messages.ScheduledMessage(scheduleName, action),
		At:       c.now(),
	})
}

// enqueueLocked writes the mailbox. A lock requested while the shutter is
// travelling becomes stop with lock released on the following poll.
func (c *Controller) enqueueLocked(action Action, status Status) {
	if action == ActionLock && status.Moving() {
		c.mailbox.SetThen(ActionStop, ActionLock)
		return
	}
	c.mailbox.Set(action)
}

// Poll hands the pending command to the device and clears it.
func (c *Controller) Poll() Action {
	return c.mailbox.PeekAndClear()
}

// Pending returns the command waiting for the device without consuming it.
func (c *Controller) Pending() Action {
	return c.mailbox.Peek()
}

// Report is a device self-report.
type Report struct {
	Status  string
	Message string
	IP      string
}

// Report records a device self-report. The status is tracked only when it
// is recognized; the audit row is written verbatim either way.
func (c *Controller) Report(ctx context.Context, r Report) Snapshot {
	now := c.now()
	snap, changed := c.tracker.Report(r.Status, r.IP, now)

	tag := r.Status
	if tag == "" {
		tag = c.messages.EmptyStatus
	}
	log.Printf("[status: %s] %s", tag, r.Message)
	c.appendLog(ctx, r.Status, r.Message)

	if changed {
		c.notifier.Notify(Event{
			Kind:    EventStatus,
			Origin:  OriginDevice,
			Status:  snap.Status,
			Message: r.Message,
			At:      now,
		})
	}
	return snap
}

// Status returns the last reported device state.
func (c *Controller) Status() Snapshot {
	return c.tracker.Current()
}

func (c *Controller) record(ctx context.Context, e Event) {
	c.appendLog(ctx, string(e.Action), e.Message)
	c.notifier.Notify(e)
}

// appendLog is fire-and-forget: a lost audit row never fails a command.
func (c *Controller) appendLog(ctx context.Context, status, message string) {
	if c.audit == nil {
		return
	}
	if err := c.audit.AppendLog(ctx, status, message); err != nil {
		log.Printf("Failed to insert log: %v", err)
	}
}
