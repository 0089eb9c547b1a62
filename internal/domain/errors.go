package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidColor     = errors.New("invalid color")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidTaskID    = errors.New("invalid task id")
	ErrEndBeforeStart   = errors.New("end time must be after start time")
	ErrDurationMismatch = errors.New("duration must equal end minus start")
	ErrDurationExceeded = errors.New("duration exceeds allowed maximum")
	ErrAlreadyClosed    = errors.New("record already closed")
	ErrNegativeTime     = errors.New("negative duration")
	ErrInvalidActivity  = errors.New("invalid activity type")
)
