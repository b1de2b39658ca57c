package session

import "errors"

// Class management error types.
var (
	ErrAlreadyEnrolled = errors.New("user is already enrolled in this class")
	ErrClassFull       = errors.New("class is full")
	ErrNotHost         = errors.New("user is not the host of this class")
	ErrInvalidStatus   = errors.New("invalid class status")
)
