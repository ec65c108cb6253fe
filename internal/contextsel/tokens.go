// Package contextsel chooses which repository files an LLM gets to see for a
// given change request, and assembles them into a bounded context document.
// Selection is heuristic: path and content scoring against goal tokens,
// entrypoint and run-file bias, then neighbor expansion through local imports.
package contextsel

import (
	"regexp"
	"strings"
)

// stopwords are goal words with no selective value: common English filler
// plus the verbs every change request starts with.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "of": true, "and": true,
	"or": true, "for": true, "in": true, "on": true, "with": true, "by": true,
	"as": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "it": true, "this": true, "that": true, "these": true,
	"those": true, "from": true, "at": true, "into": true, "over": true,
	"under": true, "then": true, "than": true, "but": true, "if": true,
	"else": true,
	"add": true, "make": true, "update": true, "fix": true, "improve": true,
	"refactor": true, "change": true, "create": true, "build": true,
	"please": true, "need": true, "want": true, "like": true, "similar": true,
}

var reToken = regexp.MustCompile(`[a-z0-9_./-]+`)

// TokenizeGoal extracts useful lowercase tokens from a change request:
// words, snake_case identifiers, kebab-case names and paths like foo/bar.py.
// Short tokens and stopwords are dropped; order is preserved, duplicates
// removed.
func TokenizeGoal(goal string) []string {
	raw := reToken.FindAllString(strings.ToLower(goal), -1)
	seen := map[string]bool{}
	var out []string
	for _, t := range raw {
		if len(t) < 3 || stopwords[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
