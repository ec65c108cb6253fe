package contextsel

import (
	"path"
	"regexp"
	"strings"

	"github.com/acttech/autoupdater/internal/scan"
)

var (
	rePyFrom   = regexp.MustCompile(`(?m)^\s*from\s+([a-zA-Z0-9_.]+)\s+import\s+`)
	rePyImport = regexp.MustCompile(`(?m)^\s*import\s+([a-zA-Z0-9_.]+)`)
	reJSImport = regexp.MustCompile(`(?m)^\s*import\s+.*?\s+from\s+['"]([^'"]+)['"]`)
	reJSReq    = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

// neighborLineCap skips very large neighbors; they would eat the whole
// snippet budget anyway.
const neighborLineCap = 2500

// expandNeighbors appends files that the chosen ones import locally.
// Opening a file and also showing its referenced helpers noticeably improves
// patch quality: the model sees the functions it's asked to call into.
func expandNeighbors(readText func(rel string) string, chosen, allFiles []string, meta map[string]scan.File, maxNew int) []string {
	allSet := make(map[string]bool, len(allFiles))
	for _, p := range allFiles {
		allSet[p] = true
	}

	seen := make(map[string]bool, len(chosen))
	for _, p := range chosen {
		seen[p] = true
	}

	var added []string
	maybeAdd := func(p string) {
		if seen[p] || len(added) >= maxNew {
			return
		}
		if meta[p].Lines > neighborLineCap {
			return
		}
		seen[p] = true
		added = append(added, p)
	}

	for _, rel := range chosen {
		if len(added) >= maxNew {
			break
		}
		switch strings.ToLower(path.Ext(rel)) {
		case ".py":
			text := readText(rel)
			for _, m := range append(rePyFrom.FindAllStringSubmatch(text, -1), rePyImport.FindAllStringSubmatch(text, -1)...) {
				for _, p := range resolvePyModule(m[1], allSet) {
					maybeAdd(p)
				}
			}
		case ".js", ".jsx", ".ts", ".tsx":
			text := readText(rel)
			for _, m := range append(reJSImport.FindAllStringSubmatch(text, -1), reJSReq.FindAllStringSubmatch(text, -1)...) {
				for _, p := range resolveJSImport(m[1], rel, allSet) {
					maybeAdd(p)
				}
			}
		}
	}

	return append(chosen, added...)
}

// resolvePyModule maps "foo.bar" to repo paths foo/bar.py or
// foo/bar/__init__.py, keeping only ones that exist.
func resolvePyModule(module string, allSet map[string]bool) []string {
	mod := strings.TrimLeft(strings.TrimSpace(module), ".")
	if mod == "" {
		return nil
	}
	base := strings.ReplaceAll(mod, ".", "/")
	var out []string
	for _, cand := range []string{base + ".py", base + "/__init__.py"} {
		if allSet[cand] {
			out = append(out, cand)
		}
	}
	return out
}

// resolveJSImport resolves relative specs like "./utils" from the importing
// file, trying the usual extension and index-file fallbacks. Package imports
// (no leading dot) are ignored.
func resolveJSImport(spec, relFrom string, allSet map[string]bool) []string {
	s := strings.TrimSpace(spec)
	if !strings.HasPrefix(s, ".") {
		return nil
	}
	raw := path.Join(path.Dir(relFrom), s)

	candidates := make([]string, 0, 9)
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx", ".json"} {
		candidates = append(candidates, raw+ext)
	}
	for _, idx := range []string{"/index.ts", "/index.tsx", "/index.js", "/index.jsx"} {
		candidates = append(candidates, raw+idx)
	}

	var out []string
	for _, c := range candidates {
		if allSet[c] {
			out = append(out, c)
		}
	}
	return out
}
