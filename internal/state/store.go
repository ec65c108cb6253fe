// Package state persists scan/diff/plan artifacts as JSON files inside the
// target repo's state directory, so every step of a session survives restarts
// and stays inspectable with a text editor.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names inside the state directory.
const (
	FileMapBefore   = "repo_map_before.json"
	FileMapAfter    = "repo_map_after.json"
	FileDiff        = "diff.json"
	FilePatches     = "patches.json"
	FileChosenFiles = "chosen_files.json"
	FileApplyLog    = "last_apply_log.json"
)

// ErrNotFound is returned when a requested artifact hasn't been produced yet.
var ErrNotFound = errors.New("state artifact not found")

// Store reads and writes session artifacts under dir.
type Store struct {
	dir string
}

// New creates a Store rooted at dir. The directory is created lazily on the
// first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the state directory path.
func (s *Store) Dir() string { return s.dir }

// Path returns the absolute path of an artifact file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Has reports whether an artifact exists.
func (s *Store) Has(name string) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && info.Mode().IsRegular()
}

// Save marshals v with indentation and writes it atomically.
func (s *Store) Save(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	path := s.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// Load unmarshals an artifact into v. Returns ErrNotFound when it doesn't
// exist yet.
func (s *Store) Load(name string, v any) error {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

// LoadRaw returns an artifact's raw JSON, for endpoints that just relay it.
func (s *Store) LoadRaw(name string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Status summarizes which artifacts are present.
type Status struct {
	StateDir   string `json:"state_dir"`
	HasBefore  bool   `json:"has_before"`
	HasAfter   bool   `json:"has_after"`
	HasDiff    bool   `json:"has_diff"`
	HasPatches bool   `json:"has_patches"`
}

// Status reports the session's progress through scan → diff → plan.
func (s *Store) Status() Status {
	return Status{
		StateDir:   s.dir,
		HasBefore:  s.Has(FileMapBefore),
		HasAfter:   s.Has(FileMapAfter),
		HasDiff:    s.Has(FileDiff),
		HasPatches: s.Has(FilePatches),
	}
}
