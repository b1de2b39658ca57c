package types

import "errors"

// Class validation errors.
var (
	ErrInvalidTitle      = errors.New("class title must be 1-200 characters")
	ErrInvalidHostID     = errors.New("host_id must be a valid identifier")
	ErrInvalidTimeWindow = errors.New("end_time must be after start_time")
	ErrInvalidLevel      = errors.New("level must be beginner, intermediate or advanced")
	ErrInvalidCapacity   = errors.New("max_participants must be positive")
	ErrInvalidStatus     = errors.New("invalid class status")
)

// Chat message validation errors.
var (
	ErrMissingSenderID    = errors.New("sender_id is required")
	ErrMissingSenderName  = errors.New("sender_name is required")
	ErrMissingSessionID   = errors.New("session_id is required")
	ErrEmptyContent       = errors.New("message content cannot be empty")
	ErrInvalidMessageKind = errors.New("message kind must be text or audio")
)
