package websocket

import (
	"sync"
	"testing"

	"classhub/pkg/types"
)

// fakeConn is a minimal Connection for registry tests.
type fakeConn struct {
	id          string
	userID      string
	userName    string
	sessionID   string
	sessionKind string
	role        string

	mu     sync.Mutex
	writes []interface{}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) Close() error          { return nil }
func (f *fakeConn) GetID() string         { return f.id }
func (f *fakeConn) GetUserID() string     { return f.userID }
func (f *fakeConn) GetUserName() string   { return f.userName }
func (f *fakeConn) GetSessionID() string  { return f.sessionID }
func (f *fakeConn) GetSessionKind() string { return f.sessionKind }
func (f *fakeConn) GetRole() string       { return f.role }

func newFakeConn(id, userID, sessionID, role string) *fakeConn {
	return &fakeConn{
		id:          id,
		userID:      userID,
		userName:    "user-" + userID,
		sessionID:   sessionID,
		sessionKind: types.SessionKindClass,
		role:        role,
	}
}

func TestRegistry_AttachDetach(t *testing.T) {
	registry := NewRegistry()

	conn := newFakeConn("c1", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if registry.TotalConnections() != 1 {
		t.Errorf("Expected 1 connection, got %d", registry.TotalConnections())
	}

	result := registry.Detach("c1")
	if !result.Found {
		t.Error("Expected Found to be true")
	}
	if result.WasHost {
		t.Error("Participant detach should not report WasHost")
	}
	if registry.TotalConnections() != 0 {
		t.Errorf("Expected 0 connections, got %d", registry.TotalConnections())
	}
}

func TestRegistry_AttachValidation(t *testing.T) {
	registry := NewRegistry()

	if err := registry.Attach(nil); err != ErrNilConnection {
		t.Errorf("Expected ErrNilConnection, got %v", err)
	}

	missing := newFakeConn("", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(missing); err != ErrMissingIdentity {
		t.Errorf("Expected ErrMissingIdentity, got %v", err)
	}

	conn := newFakeConn("c1", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	dup := newFakeConn("c1", "u2", "s1", types.RoleParticipant)
	if err := registry.Attach(dup); err != ErrDuplicateConnection {
		t.Errorf("Expected ErrDuplicateConnection, got %v", err)
	}
}

func TestRegistry_DetachUnknownIsNoOp(t *testing.T) {
	registry := NewRegistry()

	result := registry.Detach("missing")
	if result.Found {
		t.Error("Detach of unknown id should report Found=false")
	}

	conn := newFakeConn("c1", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(conn); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	registry.Detach("c1")
	second := registry.Detach("c1")
	if second.Found {
		t.Error("Second detach of the same id should report Found=false")
	}
}

func TestRegistry_HostStreamLifecycle(t *testing.T) {
	registry := NewRegistry()

	host := newFakeConn("h1", "admin", "s1", types.RoleHost)
	student := newFakeConn("c1", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(host); err != nil {
		t.Fatalf("Attach host failed: %v", err)
	}
	if err := registry.Attach(student); err != nil {
		t.Fatalf("Attach student failed: %v", err)
	}

	if registry.HostStreamActive("s1") {
		t.Error("Stream should not be active before host-stream-started")
	}

	// Only the announced host can activate the stream.
	if registry.StartHostStream("s1", "c1") {
		t.Error("Non-host should not be able to start the stream")
	}
	if !registry.StartHostStream("s1", "h1") {
		t.Error("Host should be able to start the stream")
	}
	if !registry.HostStreamActive("s1") {
		t.Error("Stream should be active after start")
	}

	if !registry.StopHostStream("s1", "h1") {
		t.Error("Host should be able to stop the stream")
	}
	if registry.StopHostStream("s1", "h1") {
		t.Error("Stopping an inactive stream should report false")
	}
	if registry.HostStreamActive("s1") {
		t.Error("Stream should be inactive after stop")
	}
}

func TestRegistry_HostDetachIsAtomic(t *testing.T) {
	registry := NewRegistry()

	host := newFakeConn("h1", "admin", "s1", types.RoleHost)
	student := newFakeConn("c1", "u1", "s1", types.RoleParticipant)
	if err := registry.Attach(host); err != nil {
		t.Fatalf("Attach host failed: %v", err)
	}
	if err := registry.Attach(student); err != nil {
		t.Fatalf("Attach student failed: %v", err)
	}
	if !registry.StartHostStream("s1", "h1") {
		t.Fatal("StartHostStream failed")
	}

	result := registry.Detach("h1")
	if !result.Found || !result.WasHost || !result.WasStreamActive {
		t.Errorf("Expected host detach with active stream, got %+v", result)
	}
	if len(result.Remaining) != 1 || result.Remaining[0].GetID() != "c1" {
		t.Errorf("Expected student in Remaining, got %+v", result.Remaining)
	}

	// No stale host state may survive the detach.
	if registry.HostStreamActive("s1") {
		t.Error("Stream must be inactive immediately after host detach")
	}
	if _, ok := registry.HostConnection("s1"); ok {
		t.Error("No host connection should remain after host detach")
	}
}

func TestRegistry_HostReplacementClearsStaleStream(t *testing.T) {
	registry := NewRegistry()

	first := newFakeConn("h1", "admin", "s1", types.RoleHost)
	if err := registry.Attach(first); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if !registry.StartHostStream("s1", "h1") {
		t.Fatal("StartHostStream failed")
	}

	second := newFakeConn("h2", "admin", "s1", types.RoleHost)
	if err := registry.Attach(second); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if registry.HostStreamActive("s1") {
		t.Error("Replaced host's stream flag must be cleared")
	}
	if host, ok := registry.HostConnection("s1"); !ok || host.GetID() != "h2" {
		t.Errorf("Expected h2 as announced host, got %v (ok=%v)", host, ok)
	}
}

func TestRegistry_MembersOf(t *testing.T) {
	registry := NewRegistry()

	for _, id := range []string{"c1", "c2", "c3"} {
		conn := newFakeConn(id, "u-"+id, "s1", types.RoleParticipant)
		if err := registry.Attach(conn); err != nil {
			t.Fatalf("Attach %s failed: %v", id, err)
		}
	}
	other := newFakeConn("c4", "u4", "s2", types.RoleParticipant)
	if err := registry.Attach(other); err != nil {
		t.Fatalf("Attach failed: %v", err)
	}

	if got := len(registry.MembersOf("s1")); got != 3 {
		t.Errorf("Expected 3 members of s1, got %d", got)
	}
	if got := len(registry.OthersOf("s1", "c1")); got != 2 {
		t.Errorf("Expected 2 others of s1, got %d", got)
	}
	if got := registry.Stats()["s1"]; got != 3 {
		t.Errorf("Expected stats for s1 to be 3, got %d", got)
	}
}
