package scan

import (
	"regexp"
	"strings"
)

// maxSymbols caps the symbol list per file; this feeds a UI sidebar,
// not a full index.
const maxSymbols = 40

var (
	rePyDef        = regexp.MustCompile(`(?m)^\s*def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	rePyClass      = regexp.MustCompile(`(?m)^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\(|:)`)
	reFastAPIRoute = regexp.MustCompile(`(?m)^\s*@app\.(get|post|put|delete|patch|websocket)\(\s*['"]([^'"]+)['"]`)

	reJSExportFn = regexp.MustCompile(`(?m)export\s+(?:async\s+)?function\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	reJSClass    = regexp.MustCompile(`(?m)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\{|extends)`)
)

// ExtractSymbols pulls fast, regex-level symbol hints out of source text:
// python defs/classes plus FastAPI routes, and JS/TS exported functions and
// classes. Routes come first so they survive the cap.
func ExtractSymbols(text, lang string) []Symbol {
	if text == "" {
		return nil
	}
	var out []Symbol
	add := func(kind, name string) bool {
		out = append(out, Symbol{Kind: kind, Name: name})
		return len(out) >= maxSymbols
	}

	switch lang {
	case "python":
		for _, m := range reFastAPIRoute.FindAllStringSubmatch(text, -1) {
			if add("route", strings.ToUpper(m[1])+" "+m[2]) {
				return out
			}
		}
		for _, m := range rePyClass.FindAllStringSubmatch(text, -1) {
			if add("class", m[1]) {
				return out
			}
		}
		for _, m := range rePyDef.FindAllStringSubmatch(text, -1) {
			if add("def", m[1]) {
				return out
			}
		}
	case "javascript", "typescript":
		for _, m := range reJSExportFn.FindAllStringSubmatch(text, -1) {
			if add("export_fn", m[1]) {
				return out
			}
		}
		for _, m := range reJSClass.FindAllStringSubmatch(text, -1) {
			if add("class", m[1]) {
				return out
			}
		}
	}
	return out
}
