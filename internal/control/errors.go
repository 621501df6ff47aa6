package control

import "errors"

var (
	// ErrUnknownAction is returned for anything outside up, down, stop and lock.
	ErrUnknownAction = errors.New("not a recognized command")
	// ErrAlreadyClosed rejects "down" while the shutter reports closed.
	ErrAlreadyClosed = errors.New("shutter is already fully closed")
	// ErrAlreadyOpen rejects "up" while the shutter reports open.
	ErrAlreadyOpen = errors.New("shutter is already fully open")
)
