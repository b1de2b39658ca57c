package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyAudio = errors.New("audio payload is empty")

// Store writes audio blobs to the local filesystem. Chat records carry
// only the returned reference path, which keeps messages small and makes
// audio independently fetchable.
type Store struct {
	dir string
}

// NewStore ensures the target directory exists.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audio dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// SaveAudio decodes a base64 payload (raw or data-URL form) and writes
// it under a generated unique name. Returns the public reference path.
func (s *Store) SaveAudio(data, senderID string) (string, error) {
	// Strip a data:audio/...;base64, prefix when present.
	if idx := strings.Index(data, ";base64,"); idx >= 0 {
		data = data[idx+len(";base64,"):]
	}
	if data == "" {
		return "", ErrEmptyAudio
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("failed to decode audio payload: %w", err)
	}

	filename := fmt.Sprintf("audio_%s_%d_%s.wav", senderID, time.Now().UnixMilli(), uuid.New().String()[:8])
	if err := os.WriteFile(filepath.Join(s.dir, filename), raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	return "/uploads/audio/" + filename, nil
}
