package patch

import (
	"fmt"
	"strings"
)

// applyOp transforms text with a single op. Unknown op types are errors so a
// malformed plan fails loudly instead of silently skipping edits.
func applyOp(text string, op Op) (string, error) {
	switch op.Type {
	case OpReplaceRange:
		return replaceRange(text, op.StartLine, op.EndLine, op.NewText), nil
	case OpDeleteRange:
		return replaceRange(text, op.StartLine, op.EndLine, ""), nil
	case OpReplaceText:
		if op.Count == nil {
			return strings.ReplaceAll(text, op.Find, op.Replace), nil
		}
		return strings.Replace(text, op.Find, op.Replace, *op.Count), nil
	case OpInsertAfter:
		return insertNear(text, op.Match, op.InsertText, onceOf(op), true), nil
	case OpInsertBefore:
		return insertNear(text, op.Match, op.InsertText, onceOf(op), false), nil
	case OpAppend:
		return appendText(text, op.Text), nil
	default:
		return "", fmt.Errorf("unknown op type: %q", op.Type)
	}
}

func onceOf(op Op) bool {
	if op.Once == nil {
		return true
	}
	return *op.Once
}

// splitKeep splits text into lines, each retaining its trailing newline.
func splitKeep(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	// SplitAfter leaves a trailing "" when text ends with \n.
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// replaceRange swaps lines startLine..endLine (1-based, inclusive) for newText.
// Out-of-range bounds are clamped, matching the permissive originals the
// planner was tuned against.
func replaceRange(text string, startLine, endLine int, newText string) string {
	lines := splitKeep(text)
	s := startLine
	if s < 1 {
		s = 1
	}
	s--
	e := endLine
	if e < 1 {
		e = 1
	}
	if e > len(lines) {
		e = len(lines)
	}
	if s > len(lines) {
		s = len(lines)
	}
	if e < s {
		e = s
	}
	var b strings.Builder
	for _, ln := range lines[:s] {
		b.WriteString(ln)
	}
	b.WriteString(newText)
	for _, ln := range lines[e:] {
		b.WriteString(ln)
	}
	return b.String()
}

// insertNear inserts insertText after (or before) every line containing match.
// With once set, only the first hit inserts.
func insertNear(text, match, insertText string, once, after bool) string {
	lines := splitKeep(text)
	var b strings.Builder
	inserted := false
	for _, ln := range lines {
		hit := strings.Contains(ln, match) && (!inserted || !once)
		if hit && !after {
			b.WriteString(insertText)
			inserted = true
		}
		b.WriteString(ln)
		if hit && after {
			b.WriteString(insertText)
			inserted = true
		}
	}
	return b.String()
}

// appendText adds text to the end, inserting a newline separator when neither
// side provides one.
func appendText(text, extra string) string {
	if text != "" && !strings.HasSuffix(text, "\n") && extra != "" && !strings.HasPrefix(extra, "\n") {
		return text + "\n" + extra
	}
	return text + extra
}
