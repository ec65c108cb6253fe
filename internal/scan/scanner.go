package scan

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	defaultPeekHeadChars = 2200
	defaultPeekTailChars = 1400
)

// Options tunes a repository scan.
type Options struct {
	// IgnoreDirs are directory names pruned from the walk.
	IgnoreDirs map[string]bool

	// TextExts are the (lowercase) extensions included in the snapshot.
	TextExts map[string]bool

	// MaxFileBytes skips files larger than this. Zero means 2 MB.
	MaxFileBytes int64

	// ExtractSymbols toggles the regex symbol pass.
	ExtractSymbols bool
}

// Scanner produces Snapshots of a repository.
type Scanner struct {
	opts Options
}

// New creates a Scanner.
func New(opts Options) *Scanner {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 2 * 1024 * 1024
	}
	return &Scanner{opts: opts}
}

// Scan walks root and returns a Snapshot. File contents are read and hashed
// concurrently; the resulting file list is sorted by path so snapshots are
// deterministic.
func (s *Scanner) Scan(ctx context.Context, root string) (*Snapshot, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	var candidates []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != absRoot && s.opts.IgnoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.opts.TextExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		candidates = append(candidates, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	var (
		mu    sync.Mutex
		files []File
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, path := range candidates {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, ok := s.scanFile(absRoot, path)
			if !ok {
				return nil
			}
			mu.Lock()
			files = append(files, f)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	snap := &Snapshot{
		RepoRoot:    absRoot,
		GeneratedAt: nowStamp(),
		FileCount:   len(files),
		Files:       files,
		Summary:     summarize(files),
	}
	return snap, nil
}

// ListFiles returns just the relative paths a scan would include, sorted.
// Used by the file browser, which doesn't need hashes or peeks.
func (s *Scanner) ListFiles(root string) ([]string, error) {
	snapRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var out []string
	err = filepath.WalkDir(snapRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != snapRoot && s.opts.IgnoreDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.opts.TextExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(snapRoot, path)
		if err != nil {
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// scanFile reads one file and builds its snapshot entry.
// Returns ok=false for files that should be silently skipped
// (too large, binary, unreadable).
func (s *Scanner) scanFile(root, path string) (File, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > s.opts.MaxFileBytes {
		return File{}, false
	}
	raw, err := os.ReadFile(path)
	if err != nil || isProbablyBinary(raw) {
		return File{}, false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return File{}, false
	}
	rel = filepath.ToSlash(rel)

	text := string(raw)
	ext := strings.ToLower(filepath.Ext(path))
	lang := langFromExt(ext)
	head, tail := peek(text, defaultPeekHeadChars, defaultPeekTailChars)

	f := File{
		Path:         rel,
		Ext:          ext,
		Size:         info.Size(),
		MTime:        float64(info.ModTime().UnixNano()) / 1e9,
		Lines:        strings.Count(text, "\n") + 1,
		SHA256:       fmt.Sprintf("%x", sha256.Sum256(raw)),
		Lang:         lang,
		IsEntrypoint: isEntrypoint(rel),
		PeekHead:     head,
		PeekTail:     tail,
	}
	if s.opts.ExtractSymbols {
		f.Symbols = ExtractSymbols(text, lang)
	}
	return f, true
}

// isProbablyBinary sniffs for a NUL byte in the first 2 KB.
func isProbablyBinary(b []byte) bool {
	if len(b) > 2048 {
		b = b[:2048]
	}
	return bytes.IndexByte(b, 0) >= 0
}

func langFromExt(ext string) string {
	switch ext {
	case ".py":
		return "python"
	case ".js", ".jsx":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	case ".json":
		return "json"
	case ".yml", ".yaml":
		return "yaml"
	case ".md":
		return "markdown"
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".toml":
		return "toml"
	default:
		return "text"
	}
}

// entrypointNames are classic "this is where the app starts" file names.
var entrypointNames = []string{
	"main.py", "app.py", "server.py", "web_app.py", "api.py", "index.js", "index.ts",
}

// runConfigHints mark files that describe how the project is run.
var runConfigHints = []string{
	"requirements.txt", "pyproject.toml", "package.json", "dockerfile", "docker-compose",
}

func isEntrypoint(rel string) bool {
	low := strings.ToLower(strings.ReplaceAll(rel, "\\", "/"))
	for _, n := range entrypointNames {
		if strings.HasSuffix(low, n) {
			return true
		}
	}
	for _, h := range runConfigHints {
		if strings.Contains(low, h) {
			return true
		}
	}
	return false
}

// peek returns the head and tail slices of text. Small files fit entirely in
// the head; the tail is only populated when something was cut.
func peek(text string, headChars, tailChars int) (head, tail string) {
	if text == "" {
		return "", ""
	}
	if len(text) <= headChars+tailChars {
		return text, ""
	}
	return text[:headChars], text[len(text)-tailChars:]
}

func summarize(files []File) Summary {
	sum := Summary{Languages: map[string]int{}}
	for _, f := range files {
		sum.Languages[f.Lang]++
		if f.IsEntrypoint && len(sum.Entrypoints) < 20 {
			sum.Entrypoints = append(sum.Entrypoints, f.Path)
		}
	}
	return sum
}
