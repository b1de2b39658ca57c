package types

import (
	"regexp"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidID checks identifier format for user, class and group IDs.
func IsValidID(id string) bool {
	if len(id) < 1 || len(id) > 64 {
		return false
	}
	return idRegex.MatchString(id)
}

// IsValidStatus reports whether s is one of the class lifecycle statuses.
func IsValidStatus(s string) bool {
	switch s {
	case StatusUpcoming, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidLevel reports whether l is a known class level.
func IsValidLevel(l string) bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	default:
		return false
	}
}

// IsValidMessageKind reports whether k is a chat message kind.
func IsValidMessageKind(k string) bool {
	return k == MessageKindText || k == MessageKindAudio
}

// DerivedStatus computes the status a class should carry at the given
// instant based on its scheduled window. Cancellation is not a derived
// state; callers must check for it before applying the result.
func DerivedStatus(start, end, now time.Time) string {
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.Before(end):
		return StatusOngoing
	default:
		return StatusCompleted
	}
}

// Validate ensures a class meets all structural requirements before it
// is persisted.
func (c *ClassSession) Validate() error {
	if len(c.Title) < 1 || len(c.Title) > 200 {
		return ErrInvalidTitle
	}
	if !IsValidID(c.HostID) {
		return ErrInvalidHostID
	}
	if !c.EndTime.After(c.StartTime) {
		return ErrInvalidTimeWindow
	}
	if !IsValidLevel(c.Level) {
		return ErrInvalidLevel
	}
	if c.MaxParticipants <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Validate checks the fields a chat message must carry before it may be
// persisted or broadcast. ID and Timestamp are excluded: they are
// assigned at save time.
func (m *ChatMessage) Validate() error {
	if m.SenderID == "" {
		return ErrMissingSenderID
	}
	if m.SenderName == "" {
		return ErrMissingSenderName
	}
	if m.SessionID == "" {
		return ErrMissingSessionID
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	if !IsValidMessageKind(m.Kind) {
		return ErrInvalidMessageKind
	}
	return nil
}

// Validate checks the fields a study-group message must carry before it
// may be persisted or broadcast.
func (m *StudyGroupMessage) Validate() error {
	if m.SenderID == "" {
		return ErrMissingSenderID
	}
	if m.StudyGroupID == "" {
		return ErrMissingSessionID
	}
	if m.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
