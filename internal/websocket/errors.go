package websocket

import "errors"

// Connection-related errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors.
var (
	ErrNilConnection      = errors.New("connection cannot be nil")
	ErrMissingIdentity    = errors.New("connection is missing identity fields")
	ErrDuplicateConnection = errors.New("connection id already registered")
)
