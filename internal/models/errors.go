package models

import "errors"

// Common errors shared across the coordinator and API layers.
var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrTimerNotFound  = errors.New("timer not found")
	ErrDeviceNotFound = errors.New("device not found")
	ErrInvalidCommand = errors.New("invalid command")
	ErrForbidden      = errors.New("forbidden")
)
