package contextsel

import (
	"strings"

	"github.com/acttech/autoupdater/internal/scan"
)

// entrypointHints mark "control plane" files: where the app starts, routes
// live, or the run story is written down. These get the heaviest path boost.
var entrypointHints = []string{
	"main.py", "app.py", "server.py", "web_app.py", "api.py", "routes.py", "router.py",
	"wsgi.py", "asgi.py", "manage.py",
	"index.js", "index.ts", "app.js", "app.ts", "server.js", "server.ts",
	"pyproject.toml", "requirements.txt", "package.json", "readme.md", ".env",
	"dockerfile", "docker-compose", "compose",
}

// runfileHints mark files that describe how the project is installed and run.
var runfileHints = []string{
	"requirements.txt", "pyproject.toml", "setup.py", "pipfile", "poetry.lock",
	"package.json", "pnpm-lock", "yarn.lock",
	"dockerfile", "docker-compose", "compose", ".env", "readme.md",
}

var coreDirBonus = []string{"/src/", "/app/", "/api/", "/server/", "/backend/", "/frontend/", "/web/"}
var penaltyDirs = []string{"/tests/", "/test/", "/migrations/", "/dist/", "/build/", "/.next/", "/node_modules/"}

// scorePath rates a path's relevance to the goal without reading content.
func scorePath(rel string, goalTokens []string) float64 {
	p := strings.ToLower(rel)
	s := 0.0

	for _, hint := range entrypointHints {
		if strings.Contains(p, hint) {
			s += 14.0
			break
		}
	}
	for _, hint := range runfileHints {
		if strings.Contains(p, hint) {
			s += 8.0
			break
		}
	}
	for _, seg := range coreDirBonus {
		if strings.Contains(p, seg) {
			s += 3.0
			break
		}
	}
	for _, seg := range penaltyDirs {
		if strings.Contains(p, seg) {
			s -= 4.0
			break
		}
	}
	for _, t := range goalTokens {
		if strings.Contains(p, t) {
			s += 6.5
		}
	}
	// Root-level files are disproportionately often entrypoints.
	if !strings.Contains(p, "/") {
		s += 1.2
	}
	return s
}

// scoreContent rates text against goal tokens with identifier-boundary
// matches weighted above bare substring hits. Contributions are capped so a
// single token can't dominate.
func scoreContent(text string, goalTokens []string) float64 {
	if text == "" || len(goalTokens) == 0 {
		return 0
	}
	lo := strings.ToLower(text)
	score := 0.0
	for _, t := range goalTokens {
		hits := countWordHits(lo, t, 10)
		if hits > 0 {
			score += float64(hits) * 1.4
			continue
		}
		sub := strings.Count(lo, t)
		if sub > 6 {
			sub = 6
		}
		score += float64(sub) * 0.6
	}
	return score
}

// countWordHits counts occurrences of tok in lo that are not embedded in a
// longer identifier. A delimiter shared by two hits (as in "a,a") counts
// both, so matching advances one byte at a time rather than past the match.
func countWordHits(lo, tok string, max int) int {
	hits := 0
	for i := 0; i < len(lo) && hits < max; {
		j := strings.Index(lo[i:], tok)
		if j < 0 {
			break
		}
		start := i + j
		end := start + len(tok)
		if (start == 0 || !isIdentChar(lo[start-1])) && (end == len(lo) || !isIdentChar(lo[end])) {
			hits++
		}
		i = start + 1
	}
	return hits
}

func isIdentChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// preferSmall biases toward files that fit comfortably into the context
// budget; very large files get pushed down.
func preferSmall(f scan.File) float64 {
	s := 0.0
	switch {
	case f.Lines <= 250:
		s += 1.6
	case f.Lines <= 600:
		s += 0.8
	case f.Lines >= 2000:
		s -= 2.2
	}
	switch {
	case f.Size <= 60_000:
		s += 1.1
	case f.Size >= 500_000:
		s -= 2.2
	}
	return s
}

// detectEntrypoints finds the most likely "run path" files, best first.
func detectEntrypoints(allFiles []string) []string {
	lows := make(map[string]string, len(allFiles))
	for _, p := range allFiles {
		lows[strings.ToLower(p)] = p
	}

	var picks []string
	for _, name := range []string{"web_app.py", "app.py", "main.py", "server.py"} {
		if orig, ok := lows[name]; ok {
			picks = append(picks, orig)
		}
	}
	for _, p := range allFiles {
		lp := strings.ToLower(p)
		if !strings.HasSuffix(lp, "app.py") {
			continue
		}
		for _, seg := range []string{"/app/", "/src/", "/server/", "/api/"} {
			if strings.Contains(lp, seg) {
				picks = append(picks, p)
				break
			}
		}
	}

	seen := map[string]bool{}
	var out []string
	for _, p := range picks {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

// detectRunfiles returns install/run description files present in the repo,
// capped at 6.
func detectRunfiles(allFiles []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, hint := range runfileHints {
		for _, p := range allFiles {
			if strings.Contains(strings.ToLower(p), hint) && !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}
