package jobcontext

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type settings struct {
	JobDescription string `json:"job_description"`
}

// Store keeps the active job description in a JSON file under the data dir
// so it survives restarts. Reads and writes are serialized; the orchestrator
// reads once per cycle.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{path: filepath.Join(dataDir, "screening_settings.json")}, nil
}

func (s *Store) JobDescription(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.load()
	if err != nil {
		return "", err
	}
	return loaded.JobDescription, nil
}

func (s *Store) UpdateJobDescription(ctx context.Context, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.MarshalIndent(settings{JobDescription: description}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func (s *Store) load() (settings, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings{}, nil
		}
		return settings{}, fmt.Errorf("read settings: %w", err)
	}
	var loaded settings
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return settings{}, fmt.Errorf("parse settings: %w", err)
	}
	return loaded, nil
}
