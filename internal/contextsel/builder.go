package contextsel

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/acttech/autoupdater/internal/scan"
)

// contentScoreSizeCap skips content scoring for files above this size;
// path score alone has to carry them.
const contentScoreSizeCap = 140_000

// Builder assembles the LLM context document for a change request.
type Builder struct {
	// RepoRoot is where snippets are read from.
	RepoRoot string

	// TextExts limits which files are eligible (lowercase extensions).
	TextExts map[string]bool

	// MaxFiles caps the selected file set.
	MaxFiles int

	// MaxCharsPerFile caps the snippet taken from one file.
	MaxCharsPerFile int

	// MaxTotalChars caps the whole snippet section.
	MaxTotalChars int

	// ExpandNeighbors pulls in locally-imported helpers of chosen files.
	ExpandNeighbors bool
}

// ChooseFiles runs the selection pipeline: changed files first, then likely
// entrypoints and run files, then everything else by path score.
func (b *Builder) ChooseFiles(snap *scan.Snapshot, diff *scan.Diff, goal string) []string {
	goalTokens := TokenizeGoal(goal)
	meta := snap.Index()
	allFiles := b.eligibleFiles(snap)

	changed := b.changedFirst(diff, allFiles)
	entrypoints := detectEntrypoints(allFiles)
	runfiles := detectRunfiles(allFiles)

	type scored struct {
		score float64
		path  string
	}
	ranked := make([]scored, 0, len(allFiles))
	for _, rel := range allFiles {
		s := scorePath(rel, goalTokens) + preferSmall(meta[rel])
		if contains(changed, rel) {
			s += 15.0
		}
		if contains(entrypoints, rel) {
			s += 8.0
		}
		if contains(runfiles, rel) {
			s += 6.0
		}
		ranked = append(ranked, scored{s, rel})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var merged []string
	seen := map[string]bool{}
	addMany := func(items []string) {
		for _, p := range items {
			if seen[p] || len(merged) >= b.MaxFiles {
				continue
			}
			seen[p] = true
			merged = append(merged, p)
		}
	}
	addMany(changed)
	addMany(entrypoints)
	addMany(runfiles)
	rest := make([]string, 0, len(ranked))
	for _, r := range ranked {
		rest = append(rest, r.path)
	}
	addMany(rest)

	if len(merged) > b.MaxFiles {
		merged = merged[:b.MaxFiles]
	}
	return merged
}

// Build produces the final context text and the list of files it includes.
func (b *Builder) Build(snap *scan.Snapshot, diff *scan.Diff, goal string) (string, []string) {
	goalTokens := TokenizeGoal(goal)
	meta := snap.Index()
	allFiles := b.eligibleFiles(snap)

	chosen := b.ChooseFiles(snap, diff, goal)

	// Re-rank the chosen set with real content scores now that the set is
	// small enough to read.
	type scored struct {
		score float64
		path  string
	}
	ranked := make([]scored, 0, len(chosen))
	for _, rel := range chosen {
		m := meta[rel]
		s := scorePath(rel, goalTokens) + preferSmall(m)
		if contains(diff.Modified, rel) {
			s += 12.0
		}
		if contains(diff.Added, rel) {
			s += 10.0
		}
		if len(goalTokens) > 0 && m.Size <= contentScoreSizeCap {
			s += scoreContent(b.readText(rel), goalTokens)
		}
		ranked = append(ranked, scored{s, rel})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	chosen = chosen[:0]
	for _, r := range ranked {
		chosen = append(chosen, r.path)
	}
	if len(chosen) > b.MaxFiles {
		chosen = chosen[:b.MaxFiles]
	}

	if b.ExpandNeighbors {
		chosen = expandNeighbors(b.readText, chosen, allFiles, meta, 12)
	}

	entrypoints := detectEntrypoints(allFiles)
	shortList := allFiles
	if len(shortList) > 300 {
		shortList = shortList[:300]
	}

	var parts []string
	add := func(s string) { parts = append(parts, s) }

	add("SYSTEM: You are an offline IDE assistant operating on a local repo.")
	add("IMPORTANT: Output ONLY valid JSON matching the provided JSON schema. No prose.\n")

	add("=== USER GOAL ===")
	if g := strings.TrimSpace(goal); g != "" {
		add(g)
	} else {
		add("(empty)")
	}
	add("")

	add("=== PROJECT OVERVIEW ===")
	add(projectOverview(snap))
	add("")

	add("=== LIKELY ENTRYPOINTS (how to run) ===")
	if len(entrypoints) > 0 {
		add(strings.Join(entrypoints, "\n"))
	} else {
		add("(not detected)")
	}
	add("")

	add("=== REPO FILE LIST (first 300, like sidebar) ===")
	add(strings.Join(shortList, "\n"))
	add("")

	add("=== DIFF SUMMARY (since last scan) ===")
	add(diffSummary(diff))
	add("")

	add("=== HARD RULES ===")
	add("- Only reference/modify files that exist in the repo file list.")
	add("- Use minimal edits: replace_range / replace_text / insert_after / insert_before.")
	add(`- If the goal is unclear or unsafe, output {"files": []}.`)
	add("- Do NOT invent filenames, folders, dependencies, or commands.")
	add("")

	add("=== OPEN FILES (selected for context) ===")
	add(strings.Join(chosen, "\n"))
	add("")

	total := 0
	add("=== FILE SNIPPETS (peek) ===")
	for _, rel := range chosen {
		m := meta[rel]
		hdr := fmt.Sprintf("\n--- FILE: %s (lines=%d, size=%d) ---\n", rel, m.Lines, m.Size)
		chunk := hdr + b.readSnippet(rel) + "\n"
		if total+len(chunk) > b.MaxTotalChars {
			add("\n[CONTEXT BUDGET HIT: remaining files omitted]\n")
			break
		}
		add(chunk)
		total += len(chunk)
	}

	return strings.Join(parts, "\n"), chosen
}

// eligibleFiles returns the snapshot's paths filtered by TextExts, sorted.
func (b *Builder) eligibleFiles(snap *scan.Snapshot) []string {
	out := make([]string, 0, len(snap.Files))
	for _, f := range snap.Files {
		p := strings.ReplaceAll(f.Path, "\\", "/")
		if b.TextExts[strings.ToLower(path.Ext(p))] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// changedFirst returns diff-modified and diff-added paths that still exist in
// the eligible set, modified first.
func (b *Builder) changedFirst(diff *scan.Diff, allFiles []string) []string {
	allSet := make(map[string]bool, len(allFiles))
	for _, p := range allFiles {
		allSet[p] = true
	}
	var out []string
	for _, group := range [][]string{diff.Modified, diff.Added} {
		for _, p := range group {
			p = strings.ReplaceAll(p, "\\", "/")
			if allSet[p] {
				out = append(out, p)
			}
		}
	}
	return out
}

func (b *Builder) readText(rel string) string {
	data, err := os.ReadFile(filepath.Join(b.RepoRoot, filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}
	return string(data)
}

// readSnippet returns the whole file when it fits, otherwise head+tail with a
// snip marker.
func (b *Builder) readSnippet(rel string) string {
	txt := b.readText(rel)
	if txt == "" || len(txt) <= b.MaxCharsPerFile {
		return txt
	}
	half := b.MaxCharsPerFile / 2
	return txt[:half] + "\n\n... [snip] ...\n\n" + txt[len(txt)-half:]
}

func projectOverview(snap *scan.Snapshot) string {
	extCounts := map[string]int{}
	dirCounts := map[string]int{}
	for _, f := range snap.Files {
		p := strings.ReplaceAll(f.Path, "\\", "/")
		if p == "" {
			continue
		}
		ext := strings.ToLower(path.Ext(p))
		if ext == "" {
			ext = "(none)"
		}
		extCounts[ext]++
		d := "."
		if i := strings.Index(p, "/"); i >= 0 {
			d = p[:i]
		}
		dirCounts[d]++
	}
	return fmt.Sprintf("Project files: %d\nTop dirs: %s\nTop extensions: %s",
		snap.FileCount, topCounts(dirCounts, 8), topCounts(extCounts, 8))
}

func topCounts(counts map[string]int, k int) string {
	type kv struct {
		key string
		n   int
	}
	items := make([]kv, 0, len(counts))
	for key, n := range counts {
		items = append(items, kv{key, n})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].n != items[j].n {
			return items[i].n > items[j].n
		}
		return items[i].key < items[j].key
	})
	if len(items) > k {
		items = items[:k]
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf("%s:%d", it.key, it.n)
	}
	return strings.Join(parts, ", ")
}

func diffSummary(d *scan.Diff) string {
	return fmt.Sprintf("added=%d removed=%d modified=%d\nadded: %s\nremoved: %s\nmodified: %s",
		d.Counts.Added, d.Counts.Removed, d.Counts.Modified,
		strings.Join(capList(d.Added, 30), ", "),
		strings.Join(capList(d.Removed, 30), ", "),
		strings.Join(capList(d.Modified, 30), ", "))
}

func capList(items []string, k int) []string {
	if len(items) > k {
		return items[:k]
	}
	return items
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
