package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

// Manager owns class lifecycle operations and keeps the persisted status
// consistent with wall-clock time. Reconciliation is read-path-triggered:
// a class nobody queries keeps its stale status until the next read.
type Manager struct {
	store interfaces.ClassStore
	log   *logrus.Entry
	now   func() time.Time
}

// NewManager creates a new class session manager.
func NewManager(store interfaces.ClassStore, log *logrus.Logger) *Manager {
	return &Manager{
		store: store,
		log:   log.WithField("component", "session"),
		now:   time.Now,
	}
}

// CreateClassInput carries the caller-supplied fields of a new class.
type CreateClassInput struct {
	Title           string
	Description     string
	HostID          string
	StartTime       time.Time
	EndTime         time.Time
	MaxParticipants int
	Level           string
}

// CreateClass validates and persists a new class. The initial status is
// derived from the scheduled window rather than trusted from the caller.
func (m *Manager) CreateClass(ctx context.Context, input CreateClassInput) (*types.ClassSession, error) {
	class := &types.ClassSession{
		ID:              uuid.New().String(),
		Title:           input.Title,
		Description:     input.Description,
		HostID:          input.HostID,
		Participants:    []string{},
		StartTime:       input.StartTime.UTC(),
		EndTime:         input.EndTime.UTC(),
		MaxParticipants: input.MaxParticipants,
		Level:           input.Level,
	}
	if err := class.Validate(); err != nil {
		return nil, err
	}

	class.Duration = int(class.EndTime.Sub(class.StartTime) / time.Minute)
	class.Status = types.DerivedStatus(class.StartTime, class.EndTime, m.now())

	if err := m.store.CreateClass(ctx, class); err != nil {
		return nil, fmt.Errorf("failed to create class: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"class_id": class.ID,
		"host_id":  class.HostID,
		"status":   class.Status,
	}).Info("class created")
	return class, nil
}

// GetClass retrieves a class and reconciles its status before returning.
func (m *Manager) GetClass(ctx context.Context, classID string) (*types.ClassSession, error) {
	class, err := m.store.GetClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	m.reconcile(ctx, class)
	return class, nil
}

// ListUpcoming returns reconciled classes still in the upcoming state,
// soonest first.
func (m *Manager) ListUpcoming(ctx context.Context) ([]*types.ClassSession, error) {
	classes, err := m.store.ListUpcoming(ctx, m.now())
	if err != nil {
		return nil, err
	}
	return m.reconcileAndFilter(ctx, classes, types.StatusUpcoming), nil
}

// ListOngoing returns reconciled classes currently in progress.
func (m *Manager) ListOngoing(ctx context.Context) ([]*types.ClassSession, error) {
	classes, err := m.store.ListOngoing(ctx, m.now())
	if err != nil {
		return nil, err
	}
	return m.reconcileAndFilter(ctx, classes, types.StatusOngoing), nil
}

// ListPrevious returns reconciled classes that have ended, most recent
// first.
func (m *Manager) ListPrevious(ctx context.Context) ([]*types.ClassSession, error) {
	classes, err := m.store.ListPrevious(ctx, m.now())
	if err != nil {
		return nil, err
	}
	return m.reconcileAndFilter(ctx, classes, types.StatusCompleted), nil
}

// JoinClass enrolls a user, enforcing capacity and duplicate checks.
func (m *Manager) JoinClass(ctx context.Context, classID, userID string) error {
	class, err := m.GetClass(ctx, classID)
	if err != nil {
		return err
	}

	for _, participant := range class.Participants {
		if participant == userID {
			return ErrAlreadyEnrolled
		}
	}
	if len(class.Participants) >= class.MaxParticipants {
		return ErrClassFull
	}

	participants := append(class.Participants, userID)
	if err := m.store.UpdateParticipants(ctx, classID, participants); err != nil {
		return fmt.Errorf("failed to enroll user: %w", err)
	}

	m.log.WithFields(logrus.Fields{"class_id": classID, "user_id": userID}).Info("user joined class")
	return nil
}

// SetStatus explicitly rewrites a class status; this is how cancellation
// happens, and a cancelled status is never undone by reconciliation.
func (m *Manager) SetStatus(ctx context.Context, classID, status string) error {
	if !types.IsValidStatus(status) {
		return ErrInvalidStatus
	}
	return m.store.UpdateClassStatus(ctx, classID, status)
}

// VerifyHost confirms that userID is the host of record for the class.
func (m *Manager) VerifyHost(ctx context.Context, classID, userID string) error {
	class, err := m.store.GetClass(ctx, classID)
	if err != nil {
		return err
	}
	if class.HostID != userID {
		return ErrNotHost
	}
	return nil
}

// reconcile corrects status drift for a single class. Cancelled is
// sticky. The in-memory copy is only updated once the store accepted the
// rewrite, so a failed persist never surfaces a status the store does
// not hold.
func (m *Manager) reconcile(ctx context.Context, class *types.ClassSession) {
	if class.Status == types.StatusCancelled {
		return
	}

	derived := types.DerivedStatus(class.StartTime, class.EndTime, m.now())
	if derived == class.Status {
		return
	}

	if err := m.store.UpdateClassStatus(ctx, class.ID, derived); err != nil {
		m.log.WithError(err).WithField("class_id", class.ID).Error("failed to reconcile class status")
		return
	}
	class.Status = derived
}

func (m *Manager) reconcileAndFilter(ctx context.Context, classes []*types.ClassSession, status string) []*types.ClassSession {
	filtered := make([]*types.ClassSession, 0, len(classes))
	for _, class := range classes {
		m.reconcile(ctx, class)
		if class.Status == status {
			filtered = append(filtered, class)
		}
	}
	return filtered
}
