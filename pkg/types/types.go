package types

import (
	"time"
)

// Class lifecycle statuses. Cancelled is terminal and is never rewritten
// by time-based reconciliation.
const (
	StatusUpcoming  = "upcoming"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Connection roles within a live session.
const (
	RoleHost        = "host"
	RoleParticipant = "participant"
)

// Session kinds. A connection is bound to exactly one of these.
const (
	SessionKindClass      = "class"
	SessionKindStudyGroup = "study_group"
)

// Chat message kinds.
const (
	MessageKindText  = "text"
	MessageKindAudio = "audio"
)

// Class difficulty levels.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// ClassSession is a scheduled live class. Immutable after creation except
// for status and the participant list; status is kept consistent with
// StartTime/EndTime on the read path rather than by a background sweep.
type ClassSession struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Description     string    `json:"description" db:"description"`
	HostID          string    `json:"host_id" db:"host_id"`
	Participants    []string  `json:"participants" db:"-"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	EndTime         time.Time `json:"end_time" db:"end_time"`
	Duration        int       `json:"duration" db:"duration"` // minutes
	Status          string    `json:"status" db:"status"`
	MaxParticipants int       `json:"max_participants" db:"max_participants"`
	Level           string    `json:"level" db:"level"`
}

// ChatMessage is one durable record per text or audio message sent in a
// session. ID and Timestamp are assigned by the server at save time and
// never mutated afterwards. For audio messages Content holds the stored
// file reference, not the raw bytes.
type ChatMessage struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"session_id" db:"session_id"`
	SenderID   string    `json:"sender_id" db:"sender_id"`
	SenderName string    `json:"sender_name" db:"sender_name"`
	Content    string    `json:"content" db:"content"`
	Kind       string    `json:"kind" db:"kind"`
	Timestamp  time.Time `json:"timestamp" db:"timestamp"`
}

// StudyGroupMessage is a persisted study-group chat record.
type StudyGroupMessage struct {
	ID           string    `json:"id" db:"id"`
	StudyGroupID string    `json:"study_group_id" db:"study_group_id"`
	SenderID     string    `json:"sender_id" db:"sender_id"`
	Content      string    `json:"content" db:"content"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
