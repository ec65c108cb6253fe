package patch

import (
	"fmt"
	"strings"
)

// diffContextLines is the context shown around each hunk in previews.
const diffContextLines = 3

// largeDiffThreshold guards the O(n·m) LCS table. Beyond it the preview
// degrades to a whole-file replace hunk rather than allocating gigabytes.
const largeDiffThreshold = 20000

type editKind byte

const (
	editEqual editKind = iota
	editDelete
	editInsert
)

type edit struct {
	kind editKind
	line string
}

// UnifiedDiff renders a git-style unified diff between before and after,
// labeled a/<rel> and b/<rel>. Empty string means no difference.
func UnifiedDiff(rel, before, after string) string {
	if before == after {
		return ""
	}
	a := splitKeep(before)
	b := splitKeep(after)
	edits := diffLines(a, b)

	var out strings.Builder
	fmt.Fprintf(&out, "--- a/%s\n", rel)
	fmt.Fprintf(&out, "+++ b/%s\n", rel)

	hunks := groupHunks(edits, diffContextLines)
	for _, h := range hunks {
		fmt.Fprintf(&out, "@@ -%d,%d +%d,%d @@\n", h.aStart, h.aLen, h.bStart, h.bLen)
		for _, e := range h.edits {
			switch e.kind {
			case editEqual:
				out.WriteString(" " + ensureNL(e.line))
			case editDelete:
				out.WriteString("-" + ensureNL(e.line))
			case editInsert:
				out.WriteString("+" + ensureNL(e.line))
			}
		}
	}
	return out.String()
}

// ChangedLineCount counts inserted plus deleted lines between two versions.
func ChangedLineCount(before, after string) int {
	if before == after {
		return 0
	}
	n := 0
	for _, e := range diffLines(splitKeep(before), splitKeep(after)) {
		if e.kind != editEqual {
			n++
		}
	}
	return n
}

// diffLines computes a line-level edit script via LCS.
func diffLines(a, b []string) []edit {
	if len(a)+len(b) > largeDiffThreshold {
		return wholesaleEdits(a, b)
	}

	// lcs[i][j] = length of LCS of a[i:], b[j:].
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var edits []edit
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			edits = append(edits, edit{editEqual, a[i]})
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			edits = append(edits, edit{editDelete, a[i]})
			i++
		default:
			edits = append(edits, edit{editInsert, b[j]})
			j++
		}
	}
	for ; i < len(a); i++ {
		edits = append(edits, edit{editDelete, a[i]})
	}
	for ; j < len(b); j++ {
		edits = append(edits, edit{editInsert, b[j]})
	}
	return edits
}

func wholesaleEdits(a, b []string) []edit {
	edits := make([]edit, 0, len(a)+len(b))
	for _, ln := range a {
		edits = append(edits, edit{editDelete, ln})
	}
	for _, ln := range b {
		edits = append(edits, edit{editInsert, ln})
	}
	return edits
}

type hunk struct {
	aStart, aLen int
	bStart, bLen int
	edits        []edit
}

// groupHunks splits an edit script into hunks with at most ctx equal lines of
// surrounding context, computing the @@ header coordinates as it goes.
func groupHunks(edits []edit, ctx int) []hunk {
	// Find indices of non-equal edits.
	var changed []int
	for i, e := range edits {
		if e.kind != editEqual {
			changed = append(changed, i)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	// Merge changes whose context windows overlap into ranges.
	type span struct{ lo, hi int }
	var spans []span
	lo := changed[0] - ctx
	hi := changed[0] + ctx
	for _, c := range changed[1:] {
		if c-ctx <= hi+1 {
			hi = c + ctx
			continue
		}
		spans = append(spans, span{lo, hi})
		lo, hi = c-ctx, c+ctx
	}
	spans = append(spans, span{lo, hi})

	// Convert spans to hunks, tracking original line numbers.
	var hunks []hunk
	aLine, bLine := 1, 1
	idx := 0
	for _, sp := range spans {
		if sp.lo < 0 {
			sp.lo = 0
		}
		if sp.hi >= len(edits) {
			sp.hi = len(edits) - 1
		}
		// Advance counters up to the span start.
		for ; idx < sp.lo; idx++ {
			switch edits[idx].kind {
			case editEqual:
				aLine++
				bLine++
			case editDelete:
				aLine++
			case editInsert:
				bLine++
			}
		}
		h := hunk{aStart: aLine, bStart: bLine}
		for ; idx <= sp.hi; idx++ {
			e := edits[idx]
			h.edits = append(h.edits, e)
			switch e.kind {
			case editEqual:
				h.aLen++
				h.bLen++
				aLine++
				bLine++
			case editDelete:
				h.aLen++
				aLine++
			case editInsert:
				h.bLen++
				bLine++
			}
		}
		if h.aLen == 0 {
			h.aStart--
		}
		if h.bLen == 0 {
			h.bStart--
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func ensureNL(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
