package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Counters are the two queue cursors persisted across restarts.
type Counters struct {
	Submitted uint64 `json:"submitted_count"`
	Processed uint64 `json:"processed_up_to"`
	UpdatedAt string `json:"updated_at"`
}

// StateStore persists the queue counters.
type StateStore interface {
	Load(ctx context.Context) (Counters, bool, error)
	Save(ctx context.Context, counters Counters) error
}

// FileStateStore stores counters in a local JSON file.
type FileStateStore struct {
	Path string
}

func (s *FileStateStore) Load(ctx context.Context) (Counters, bool, error) {
	if s == nil || s.Path == "" {
		return Counters{}, false, nil
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return Counters{}, false, nil
		}
		return Counters{}, false, fmt.Errorf("read state: %w", err)
	}

	var counters Counters
	if err := json.Unmarshal(data, &counters); err != nil {
		return Counters{}, false, fmt.Errorf("parse state: %w", err)
	}
	return counters, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, counters Counters) error {
	if s == nil || s.Path == "" {
		return nil
	}
	dir := filepath.Dir(s.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	counters.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}
