package interfaces

import (
	"context"
	"time"

	"classhub/pkg/types"
)

// MessageStore persists chat traffic. SaveMessage assigns the server-side
// ID and timestamp in place; persistence must complete before any
// broadcast of the saved message.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg *types.ChatMessage) error

	// ListMessages returns up to limit of the most recent messages for a
	// session, ordered by timestamp ascending.
	ListMessages(ctx context.Context, sessionID string, limit int) ([]*types.ChatMessage, error)

	SaveStudyGroupMessage(ctx context.Context, msg *types.StudyGroupMessage) error

	ListStudyGroupMessages(ctx context.Context, studyGroupID string, limit int) ([]*types.StudyGroupMessage, error)
}

// ClassStore persists class sessions. List queries filter on the
// scheduled window against the supplied instant so that callers own the
// clock; cancelled classes are excluded from all listings.
type ClassStore interface {
	CreateClass(ctx context.Context, class *types.ClassSession) error
	GetClass(ctx context.Context, classID string) (*types.ClassSession, error)
	UpdateClassStatus(ctx context.Context, classID, status string) error
	UpdateParticipants(ctx context.Context, classID string, participants []string) error

	// ListUpcoming returns classes whose start time is after now,
	// ordered by start time ascending.
	ListUpcoming(ctx context.Context, now time.Time) ([]*types.ClassSession, error)

	// ListOngoing returns classes whose window contains now, ordered by
	// start time ascending.
	ListOngoing(ctx context.Context, now time.Time) ([]*types.ClassSession, error)

	// ListPrevious returns classes whose end time is before now, ordered
	// by start time descending.
	ListPrevious(ctx context.Context, now time.Time) ([]*types.ClassSession, error)
}

// AudioStore writes an encoded audio blob to durable storage and returns
// a reference path for embedding in a chat message.
type AudioStore interface {
	SaveAudio(data, senderID string) (string, error)
}
