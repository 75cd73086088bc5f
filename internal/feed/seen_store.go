package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// seenFile is the on-disk form of the dedup window.
type seenFile struct {
	EventIDs  []string `json:"event_ids"`
	UpdatedAt string   `json:"updated_at"`
}

// SeenStore persists the dedup window between restarts. A zero path disables it.
type SeenStore struct {
	path string
}

func NewSeenStore(path string) *SeenStore {
	return &SeenStore{path: path}
}

func (s *SeenStore) enabled() bool {
	return s != nil && s.path != ""
}

// Load returns the saved ids, oldest first.
func (s *SeenStore) Load() ([]string, bool, error) {
	if !s.enabled() {
		return nil, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat seen file: %w", err)
	}
	if stat.IsDir() {
		return nil, false, fmt.Errorf("seen file path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("read seen file: %w", err)
	}

	var sf seenFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, false, fmt.Errorf("parse seen file: %w", err)
	}

	return sf.EventIDs, true, nil
}

// Save atomically replaces the file with ids.
func (s *SeenStore) Save(ids []string) error {
	if !s.enabled() {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create seen dir: %w", err)
		}
	}

	sf := seenFile{
		EventIDs:  ids,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("marshal seen file: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write seen tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename seen file: %w", err)
	}

	return nil
}
