package interfaces

// Connection is one live socket attached to a session. Implementations
// must make WriteJSON safe for concurrent use; the websocket
// implementation serializes writes through a single writer goroutine.
type Connection interface {
	// WriteJSON sends a JSON message to the client (thread-safe).
	WriteJSON(v interface{}) error

	// Close closes the connection and cleans up resources.
	Close() error

	// GetID returns the opaque per-socket connection identifier.
	GetID() string

	// GetUserID returns the connected principal's identity.
	GetUserID() string

	// GetUserName returns the connected principal's display name.
	GetUserName() string

	// GetSessionID returns the class or study-group ID the connection
	// is bound to.
	GetSessionID() string

	// GetSessionKind returns "class" or "study_group".
	GetSessionKind() string

	// GetRole returns "host" or "participant".
	GetRole() string
}
