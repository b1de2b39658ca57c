package media

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_SaveAudio(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	payload := []byte("RIFF fake wav bytes")
	encoded := base64.StdEncoding.EncodeToString(payload)

	path, err := store.SaveAudio(encoded, "u1")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}
	if !strings.HasPrefix(path, "/uploads/audio/audio_u1_") {
		t.Errorf("Expected a reference path with the sender id, got %q", path)
	}

	written, err := os.ReadFile(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		t.Fatalf("Failed to read stored file: %v", err)
	}
	if string(written) != string(payload) {
		t.Error("Stored bytes do not match the decoded payload")
	}
}

func TestStore_SaveAudioDataURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	payload := []byte("RIFF fake wav bytes")
	dataURL := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(payload)

	path, err := store.SaveAudio(dataURL, "u1")
	if err != nil {
		t.Fatalf("SaveAudio failed: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(dir, filepath.Base(path)))
	if err != nil {
		t.Fatalf("Failed to read stored file: %v", err)
	}
	if string(written) != string(payload) {
		t.Error("Data-URL prefix must be stripped before decoding")
	}
}

func TestStore_SaveAudioRejectsEmpty(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.SaveAudio("", "u1"); err != ErrEmptyAudio {
		t.Errorf("Expected ErrEmptyAudio, got %v", err)
	}
}

func TestStore_SaveAudioRejectsBadEncoding(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if _, err := store.SaveAudio("not base64 !!!", "u1"); err == nil {
		t.Error("Expected an error for invalid base64 data")
	}
}
