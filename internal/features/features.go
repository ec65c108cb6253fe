// Package features manages runtime-toggleable behavior flags for the updater.
//
// Flags live in memory only and reset to their configured defaults on
// restart.
//
// User-visible flags (returned by All()):
//
//	symbol_extraction   extract function/class/route names during scans
//	neighbor_expansion  follow imports of chosen files into the context
//	require_clean_git   refuse to apply patches on a dirty working tree
//	allow_create_files  let patch plans create files that do not exist
//	live_rescan         watch the repo and mark snapshots stale on change
package features

import (
	"sync"
)

// FeatureID is a unique key for a feature flag.
type FeatureID string

const (
	// SymbolExtraction pulls def/class/route/export names out of scanned
	// files. Costs a little scan time, makes context selection sharper.
	SymbolExtraction FeatureID = "symbol_extraction"

	// NeighborExpansion resolves the imports of already-chosen files and
	// pulls the imported files into the context document too.
	NeighborExpansion FeatureID = "neighbor_expansion"

	// RequireCleanGit refuses to apply a patch plan while `git status`
	// reports uncommitted changes. No effect outside a git repo.
	RequireCleanGit FeatureID = "require_clean_git"

	// AllowCreateFiles lets a plan target paths that do not exist yet.
	// Off by default: the planner is told not to invent files.
	AllowCreateFiles FeatureID = "allow_create_files"

	// LiveRescan watches the repo root and marks the current snapshot
	// stale whenever tracked files change on disk.
	LiveRescan FeatureID = "live_rescan"
)

// Info describes a feature flag for display in the UI.
type Info struct {
	ID          FeatureID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
}

// Store holds the current enabled/disabled state of all feature flags.
type Store struct {
	mu    sync.RWMutex
	flags map[FeatureID]bool
	model string // user-selected planner model override
}

// NewStore creates a Store with the stock defaults: scan-time analysis on,
// anything that gates or mutates the working tree off.
func NewStore() *Store {
	return &Store{
		flags: map[FeatureID]bool{
			SymbolExtraction:  true,
			NeighborExpansion: true,
			RequireCleanGit:   false,
			AllowCreateFiles:  false,
			LiveRescan:        false,
		},
	}
}

// IsEnabled returns true if the given feature is currently on.
func (s *Store) IsEnabled(id FeatureID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[id]
}

// Set enables or disables a feature.  Returns false if the id is unknown.
func (s *Store) Set(id FeatureID, enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flags[id]; !ok {
		return false
	}
	s.flags[id] = enabled
	return true
}

// Model returns the planner model override, or empty string if none is set.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetModel sets the planner model override chosen in the UI.
func (s *Store) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// All returns the user-visible feature flags in display order.
func (s *Store) All() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return []Info{
		{
			ID:   SymbolExtraction,
			Name: "Symbol Extraction",
			Description: "Extract function, class and route names while scanning. " +
				"Slightly slower scans, much better file ranking for vague goals.",
			Enabled: s.flags[SymbolExtraction],
		},
		{
			ID:   NeighborExpansion,
			Name: "Neighbor Expansion",
			Description: "Follow the imports of chosen files and pull the imported " +
				"files into the context document so the planner sees helpers too.",
			Enabled: s.flags[NeighborExpansion],
		},
		{
			ID:   RequireCleanGit,
			Name: "Require Clean Git",
			Description: "Refuse to apply patches while the working tree has " +
				"uncommitted changes. Ignored when the repo is not under git.",
			Enabled: s.flags[RequireCleanGit],
		},
		{
			ID:   AllowCreateFiles,
			Name: "Allow File Creation",
			Description: "Let patch plans create files that do not exist yet. " +
				"Off by default because the planner is told not to invent files.",
			Enabled: s.flags[AllowCreateFiles],
		},
		{
			ID:   LiveRescan,
			Name: "Live Rescan",
			Description: "Watch the repo root for changes and mark the current " +
				"snapshot stale, prompting a fresh scan before the next plan.",
			Enabled: s.flags[LiveRescan],
		},
	}
}
