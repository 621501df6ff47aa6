package control

// Action is a command the device can be told to execute.
type Action string

const (
	ActionNone Action = ""
	ActionUp   Action = "up"
	ActionDown Action = "down"
	ActionStop Action = "stop"
	ActionLock Action = "lock"
)

// ParseAction reports whether raw names a recognized action.
func ParseAction(raw string) (Action, bool) {
	switch a := Action(raw); a {
	case ActionUp, ActionDown, ActionStop, ActionLock:
		return a, true
	}
	return ActionNone, false
}

// Status is a state the device reports about itself.
type Status string

const (
	StatusClosed     Status = "closed"
	StatusOpen       Status = "open"
	StatusStopped    Status = "stopped"
	StatusLocked     Status = "locked"
	StatusMovingUp   Status = "moving_up"
	StatusMovingDown Status = "moving_down"
)

// ParseStatus reports whether raw names a recognized device status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(raw); s {
	case StatusClosed, StatusOpen, StatusStopped, StatusLocked, StatusMovingUp, StatusMovingDown:
		return s, true
	}
	return "", false
}

// Moving reports whether the shutter is travelling.
func (s Status) Moving() bool {
	return s == StatusMovingUp || s == StatusMovingDown
}
