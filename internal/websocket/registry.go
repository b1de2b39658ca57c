package websocket

import (
	"sync"

	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

// DetachResult describes the state transition caused by removing a
// connection. All fields are computed under a single lock acquisition so
// host teardown is observed atomically.
type DetachResult struct {
	// Found is false when the connection id was not registered, in
	// which case the remaining fields are zero.
	Found bool

	// Conn is the connection that was removed.
	Conn interfaces.Connection

	// WasHost reports whether the connection was the announced host of
	// its session.
	WasHost bool

	// WasStreamActive reports whether the host stream was marked active
	// at the moment of removal. Implies WasHost.
	WasStreamActive bool

	// Remaining holds the connections still attached to the session
	// after removal.
	Remaining []interfaces.Connection
}

// Registry tracks live connections grouped by session, together with
// per-session host stream state. The host stream for a session is only
// ever considered active while the announcing host connection is still
// registered.
type Registry struct {
	mu sync.RWMutex

	// connID -> connection
	connections map[string]interfaces.Connection

	// sessionID -> connID -> connection
	sessions map[string]map[string]interfaces.Connection

	// sessionID -> connID of the announced host
	hosts map[string]string

	// sessionID -> host stream active flag
	streamActive map[string]bool
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		connections:  make(map[string]interfaces.Connection),
		sessions:     make(map[string]map[string]interfaces.Connection),
		hosts:        make(map[string]string),
		streamActive: make(map[string]bool),
	}
}

// Attach registers a connection under its session. A connection joining
// with a host role replaces any previously announced host for the
// session; a stale stream flag from the replaced host is cleared.
func (r *Registry) Attach(conn interfaces.Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if conn.GetID() == "" || conn.GetUserID() == "" || conn.GetSessionID() == "" {
		return ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[conn.GetID()]; exists {
		return ErrDuplicateConnection
	}

	sessionID := conn.GetSessionID()
	r.connections[conn.GetID()] = conn
	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[string]interfaces.Connection)
	}
	r.sessions[sessionID][conn.GetID()] = conn

	if conn.GetRole() == types.RoleHost {
		if prev, ok := r.hosts[sessionID]; ok && prev != conn.GetID() {
			delete(r.streamActive, sessionID)
		}
		r.hosts[sessionID] = conn.GetID()
	}

	return nil
}

// Detach removes a connection and reports what changed. Detaching an
// unknown id is a no-op with Found set to false.
func (r *Registry) Detach(connID string) DetachResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.connections[connID]
	if !ok {
		return DetachResult{}
	}

	sessionID := conn.GetSessionID()
	delete(r.connections, connID)

	result := DetachResult{Found: true, Conn: conn}

	if members, ok := r.sessions[sessionID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.sessions, sessionID)
		} else {
			result.Remaining = make([]interfaces.Connection, 0, len(members))
			for _, m := range members {
				result.Remaining = append(result.Remaining, m)
			}
		}
	}

	if r.hosts[sessionID] == connID {
		result.WasHost = true
		result.WasStreamActive = r.streamActive[sessionID]
		delete(r.hosts, sessionID)
		delete(r.streamActive, sessionID)
	}

	return result
}

// GetConnection looks up a connection by id.
func (r *Registry) GetConnection(connID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connID]
	return conn, ok
}

// MembersOf returns all connections attached to a session.
func (r *Registry) MembersOf(sessionID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.sessions[sessionID]
	out := make([]interfaces.Connection, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

// OthersOf returns the connections attached to a session except the one
// with the given id.
func (r *Registry) OthersOf(sessionID, exceptID string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.sessions[sessionID]
	out := make([]interfaces.Connection, 0, len(members))
	for id, m := range members {
		if id != exceptID {
			out = append(out, m)
		}
	}
	return out
}

// HostConnection returns the announced host connection for a session.
func (r *Registry) HostConnection(sessionID string) (interfaces.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.hosts[sessionID]
	if !ok {
		return nil, false
	}
	conn, ok := r.connections[connID]
	return conn, ok
}

// StartHostStream marks the session's host stream active. Only the
// announced host connection may flip the flag.
func (r *Registry) StartHostStream(sessionID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hosts[sessionID] != connID {
		return false
	}
	r.streamActive[sessionID] = true
	return true
}

// StopHostStream clears the session's host stream flag. It reports
// whether the stream was active and owned by the given connection.
func (r *Registry) StopHostStream(sessionID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hosts[sessionID] != connID || !r.streamActive[sessionID] {
		return false
	}
	delete(r.streamActive, sessionID)
	return true
}

// HostStreamActive reports whether a host stream is currently live for
// the session. A stream whose host connection is gone is never active.
func (r *Registry) HostStreamActive(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.streamActive[sessionID] {
		return false
	}
	connID := r.hosts[sessionID]
	_, alive := r.connections[connID]
	return alive
}

// Stats returns connection counts keyed by session id.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[string]int, len(r.sessions))
	for sessionID, members := range r.sessions {
		stats[sessionID] = len(members)
	}
	return stats
}

// TotalConnections returns the number of live connections.
func (r *Registry) TotalConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}
