// Package scan walks a repository and produces a point-in-time snapshot of
// its text files: content hashes, sizes, language guesses, entrypoint hints
// and lightweight symbol listings. Two snapshots can be diffed to see what
// changed between runs.
package scan

import "time"

// Symbol is a single extracted identifier (function, class, route).
type Symbol struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

// File is one scanned repository file.
type File struct {
	Path   string  `json:"path"` // relative, forward slashes
	Ext    string  `json:"ext"`
	Size   int64   `json:"size"`
	MTime  float64 `json:"mtime"` // unix seconds
	Lines  int     `json:"lines"`
	SHA256 string  `json:"sha256"`

	Lang         string   `json:"lang"`
	IsEntrypoint bool     `json:"is_entrypoint"`
	PeekHead     string   `json:"peek_head"`
	PeekTail     string   `json:"peek_tail"`
	Symbols      []Symbol `json:"symbols,omitempty"`
}

// Summary aggregates snapshot-level stats for the UI.
type Summary struct {
	Entrypoints []string       `json:"entrypoints"`
	Languages   map[string]int `json:"languages"`
}

// Snapshot is the full result of one repository scan.
type Snapshot struct {
	RepoRoot    string  `json:"repo_root"`
	GeneratedAt string  `json:"generated_at"`
	FileCount   int     `json:"file_count"`
	Files       []File  `json:"files"`
	Summary     Summary `json:"summary"`
}

// Index returns the snapshot's files keyed by path.
func (s *Snapshot) Index() map[string]File {
	idx := make(map[string]File, len(s.Files))
	for _, f := range s.Files {
		idx[f.Path] = f
	}
	return idx
}

// timeFormat keeps saved snapshots human-readable.
const timeFormat = "2006-01-02 15:04:05"

func nowStamp() string { return time.Now().Format(timeFormat) }
