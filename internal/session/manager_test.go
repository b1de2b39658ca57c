package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

// fakeClassStore is an in-memory ClassStore.
type fakeClassStore struct {
	classes       map[string]*types.ClassSession
	statusWrites  int
	failStatusSet bool
}

func newFakeClassStore() *fakeClassStore {
	return &fakeClassStore{classes: make(map[string]*types.ClassSession)}
}

func (f *fakeClassStore) CreateClass(ctx context.Context, class *types.ClassSession) error {
	copied := *class
	f.classes[class.ID] = &copied
	return nil
}

func (f *fakeClassStore) GetClass(ctx context.Context, classID string) (*types.ClassSession, error) {
	class, ok := f.classes[classID]
	if !ok {
		return nil, interfaces.ErrClassNotFound
	}
	copied := *class
	return &copied, nil
}

func (f *fakeClassStore) UpdateClassStatus(ctx context.Context, classID, status string) error {
	if f.failStatusSet {
		return errors.New("store unavailable")
	}
	class, ok := f.classes[classID]
	if !ok {
		return interfaces.ErrClassNotFound
	}
	class.Status = status
	f.statusWrites++
	return nil
}

func (f *fakeClassStore) UpdateParticipants(ctx context.Context, classID string, participants []string) error {
	class, ok := f.classes[classID]
	if !ok {
		return interfaces.ErrClassNotFound
	}
	class.Participants = participants
	return nil
}

func (f *fakeClassStore) ListUpcoming(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return f.list(func(c *types.ClassSession) bool { return c.StartTime.After(now) }), nil
}

func (f *fakeClassStore) ListOngoing(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return f.list(func(c *types.ClassSession) bool {
		return !c.StartTime.After(now) && c.EndTime.After(now)
	}), nil
}

func (f *fakeClassStore) ListPrevious(ctx context.Context, now time.Time) ([]*types.ClassSession, error) {
	return f.list(func(c *types.ClassSession) bool { return !c.EndTime.After(now) }), nil
}

func (f *fakeClassStore) list(match func(*types.ClassSession) bool) []*types.ClassSession {
	var out []*types.ClassSession
	for _, class := range f.classes {
		if class.Status != types.StatusCancelled && match(class) {
			copied := *class
			out = append(out, &copied)
		}
	}
	return out
}

func testManager(store interfaces.ClassStore, now time.Time) *Manager {
	log := logrus.New()
	log.SetOutput(io.Discard)
	m := NewManager(store, log)
	m.now = func() time.Time { return now }
	return m
}

func baseTime() time.Time {
	return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func TestManager_CreateClass(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Grammar Basics",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	if class.ID == "" {
		t.Error("Expected a generated class id")
	}
	if class.Status != types.StatusUpcoming {
		t.Errorf("Expected status upcoming, got %q", class.Status)
	}
	if class.Duration != 60 {
		t.Errorf("Expected 60 minute duration, got %d", class.Duration)
	}
}

func TestManager_CreateClassValidation(t *testing.T) {
	now := baseTime()
	m := testManager(newFakeClassStore(), now)

	_, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Backwards",
		HostID:          "admin",
		StartTime:       now.Add(2 * time.Hour),
		EndTime:         now.Add(time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelBeginner,
	})
	if !errors.Is(err, types.ErrInvalidTimeWindow) {
		t.Errorf("Expected ErrInvalidTimeWindow, got %v", err)
	}
}

// TestManager_StatusReconciliation drives one class through its window
// and checks that reads alone move the persisted status forward.
func TestManager_StatusReconciliation(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Conversation Practice",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelIntermediate,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	// Inside the window: upcoming -> ongoing.
	m.now = func() time.Time { return now.Add(90 * time.Minute) }
	got, err := m.GetClass(context.Background(), class.ID)
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if got.Status != types.StatusOngoing {
		t.Errorf("Expected ongoing inside the window, got %q", got.Status)
	}
	if store.classes[class.ID].Status != types.StatusOngoing {
		t.Error("Reconciled status must be persisted")
	}

	// After the window: ongoing -> completed.
	m.now = func() time.Time { return now.Add(3 * time.Hour) }
	got, err = m.GetClass(context.Background(), class.ID)
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if got.Status != types.StatusCompleted {
		t.Errorf("Expected completed after the window, got %q", got.Status)
	}
}

func TestManager_CancelledIsSticky(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Cancelled Class",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	if err := m.SetStatus(context.Background(), class.ID, types.StatusCancelled); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	// Reads inside the window must not resurrect the class.
	m.now = func() time.Time { return now.Add(90 * time.Minute) }
	got, err := m.GetClass(context.Background(), class.ID)
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if got.Status != types.StatusCancelled {
		t.Errorf("Cancelled must never be overwritten, got %q", got.Status)
	}

	ongoing, err := m.ListOngoing(context.Background())
	if err != nil {
		t.Fatalf("ListOngoing failed: %v", err)
	}
	if len(ongoing) != 0 {
		t.Errorf("Cancelled classes must not appear in listings, got %d", len(ongoing))
	}
}

func TestManager_ReconcileKeepsStaleStatusOnStoreFailure(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Flaky Store",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	store.failStatusSet = true
	m.now = func() time.Time { return now.Add(90 * time.Minute) }

	got, err := m.GetClass(context.Background(), class.ID)
	if err != nil {
		t.Fatalf("GetClass failed: %v", err)
	}
	if got.Status != types.StatusUpcoming {
		t.Errorf("Status must stay stale when the rewrite fails, got %q", got.Status)
	}
}

func TestManager_JoinClass(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Small Class",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 2,
		Level:           types.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	if err := m.JoinClass(context.Background(), class.ID, "u1"); err != nil {
		t.Fatalf("JoinClass failed: %v", err)
	}
	if err := m.JoinClass(context.Background(), class.ID, "u1"); !errors.Is(err, ErrAlreadyEnrolled) {
		t.Errorf("Expected ErrAlreadyEnrolled, got %v", err)
	}
	if err := m.JoinClass(context.Background(), class.ID, "u2"); err != nil {
		t.Fatalf("JoinClass failed: %v", err)
	}
	if err := m.JoinClass(context.Background(), class.ID, "u3"); !errors.Is(err, ErrClassFull) {
		t.Errorf("Expected ErrClassFull, got %v", err)
	}

	if err := m.JoinClass(context.Background(), "missing", "u1"); !errors.Is(err, interfaces.ErrClassNotFound) {
		t.Errorf("Expected ErrClassNotFound, got %v", err)
	}
}

func TestManager_VerifyHost(t *testing.T) {
	now := baseTime()
	store := newFakeClassStore()
	m := testManager(store, now)

	class, err := m.CreateClass(context.Background(), CreateClassInput{
		Title:           "Hosted Class",
		HostID:          "admin",
		StartTime:       now.Add(time.Hour),
		EndTime:         now.Add(2 * time.Hour),
		MaxParticipants: 10,
		Level:           types.LevelBeginner,
	})
	if err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}

	if err := m.VerifyHost(context.Background(), class.ID, "admin"); err != nil {
		t.Errorf("Expected host of record to verify, got %v", err)
	}
	if err := m.VerifyHost(context.Background(), class.ID, "u1"); !errors.Is(err, ErrNotHost) {
		t.Errorf("Expected ErrNotHost, got %v", err)
	}
	if err := m.VerifyHost(context.Background(), "missing", "admin"); !errors.Is(err, interfaces.ErrClassNotFound) {
		t.Errorf("Expected ErrClassNotFound, got %v", err)
	}
}
