package scan

import (
	"path"
	"sort"
	"strings"
)

// DirCount is one entry in the "which directories changed most" summary.
type DirCount struct {
	Dir   string `json:"dir"`
	Count int    `json:"count"`
}

// ExtCount is one entry in the changed-extension histogram.
type ExtCount struct {
	Ext   string `json:"ext"`
	Count int    `json:"count"`
}

// Rename is a probable move: a removed path and an added path with the same
// content hash.
type Rename struct {
	From   string `json:"from"`
	To     string `json:"to"`
	SHA256 string `json:"sha256"`
}

// Magnitude estimates how big a modification was, from line-count metadata
// alone, without re-reading content.
type Magnitude struct {
	Path              string `json:"path"`
	LineDeltaEstimate int    `json:"line_delta_estimate"`
}

// DiffCounts holds the added/removed/modified totals.
type DiffCounts struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

// DiffSummary is the digest shown in the UI report pane.
type DiffSummary struct {
	TopDirs         []DirCount  `json:"top_dirs"`
	TopExts         []ExtCount  `json:"top_exts"`
	Renames         []Rename    `json:"renames"`
	TopChangedFiles []Magnitude `json:"top_changed_files"`
}

// Diff is the result of comparing two snapshots of the same repo.
type Diff struct {
	RepoRoot    string `json:"repo_root"`
	GeneratedAt string `json:"generated_at"`

	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`

	Counts  DiffCounts  `json:"counts"`
	Summary DiffSummary `json:"summary"`
}

// DiffSnapshots compares before and after by content hash.
func DiffSnapshots(before, after *Snapshot) *Diff {
	b := before.Index()
	a := after.Index()

	var added, removed, modified []string
	for p := range a {
		if _, ok := b[p]; !ok {
			added = append(added, p)
		}
	}
	for p := range b {
		if _, ok := a[p]; !ok {
			removed = append(removed, p)
		}
	}
	for p, af := range a {
		if bf, ok := b[p]; ok && af.SHA256 != bf.SHA256 {
			modified = append(modified, p)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	sort.Strings(modified)

	changed := make([]string, 0, len(added)+len(removed)+len(modified))
	changed = append(changed, added...)
	changed = append(changed, removed...)
	changed = append(changed, modified...)

	return &Diff{
		RepoRoot:    after.RepoRoot,
		GeneratedAt: after.GeneratedAt,
		Added:       added,
		Removed:     removed,
		Modified:    modified,
		Counts: DiffCounts{
			Added:    len(added),
			Removed:  len(removed),
			Modified: len(modified),
		},
		Summary: DiffSummary{
			TopDirs:         topDirs(changed, 10),
			TopExts:         topExts(changed, 10),
			Renames:         renameHints(added, removed, b, a),
			TopChangedFiles: magnitudes(modified, b, a, 15),
		},
	}
}

func topDirs(paths []string, k int) []DirCount {
	counts := map[string]int{}
	for _, p := range paths {
		p = strings.ReplaceAll(p, "\\", "/")
		d := "."
		if i := strings.Index(p, "/"); i >= 0 {
			d = p[:i]
		}
		counts[d]++
	}
	out := make([]DirCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DirCount{Dir: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Dir < out[j].Dir
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func topExts(paths []string, k int) []ExtCount {
	counts := map[string]int{}
	for _, p := range paths {
		e := strings.ToLower(path.Ext(p))
		if e == "" {
			e = "(none)"
		}
		counts[e]++
	}
	out := make([]ExtCount, 0, len(counts))
	for e, n := range counts {
		out = append(out, ExtCount{Ext: e, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Ext < out[j].Ext
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// renameHints pairs added and removed files whose content hashes match.
// Capped at 50 pairs; past that the signal is noise (mass moves).
func renameHints(added, removed []string, before, after map[string]File) []Rename {
	removedBySHA := map[string][]string{}
	for _, p := range removed {
		if sha := before[p].SHA256; sha != "" {
			removedBySHA[sha] = append(removedBySHA[sha], p)
		}
	}

	var out []Rename
	for _, p := range added {
		sha := after[p].SHA256
		if sha == "" {
			continue
		}
		for _, old := range removedBySHA[sha] {
			out = append(out, Rename{From: old, To: p, SHA256: sha})
			if len(out) >= 50 {
				return out
			}
		}
	}
	return out
}

func magnitudes(modified []string, before, after map[string]File, k int) []Magnitude {
	out := make([]Magnitude, 0, len(modified))
	for _, p := range modified {
		delta := after[p].Lines - before[p].Lines
		if delta < 0 {
			delta = -delta
		}
		out = append(out, Magnitude{Path: p, LineDeltaEstimate: delta})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LineDeltaEstimate != out[j].LineDeltaEstimate {
			return out[i].LineDeltaEstimate > out[j].LineDeltaEstimate
		}
		return out[i].Path < out[j].Path
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}
