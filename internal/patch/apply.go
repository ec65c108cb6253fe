package patch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDirtyRepo is returned when the clean-git gate is on and the target repo
// has uncommitted changes.
var ErrDirtyRepo = errors.New("repo has uncommitted changes; commit or stash first, or disable the clean-git requirement")

// Statuses a file can end up with in a run log.
const (
	StatusSkipped     = "skipped"
	StatusFailed      = "failed"
	StatusNoop        = "noop"
	StatusWouldUpdate = "would_update"
	StatusUpdated     = "updated"
)

// Result is the outcome for one file in a plan.
type Result struct {
	File         string `json:"file"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	Ops          int    `json:"ops,omitempty"`
	ChangedLines int    `json:"changed_lines,omitempty"`
	DiffUnified  string `json:"diff_unified,omitempty"`
}

// RunLog is the full record of one apply run (dry or real).
type RunLog struct {
	RunID     string   `json:"run_id"`
	Timestamp string   `json:"timestamp"`
	DryRun    bool     `json:"dry_run"`
	BackupDir string   `json:"backup_dir,omitempty"`
	Results   []Result `json:"results"`
}

// Applier applies patch plans to a repository.
type Applier struct {
	RepoRoot string

	// TextExts limits which files may be edited (lowercase extensions).
	TextExts map[string]bool

	// RequireCleanGit aborts the run when `git status --porcelain` reports
	// changes. Non-git directories always pass.
	RequireCleanGit bool

	// AllowCreate lets a plan target files that don't exist yet.
	AllowCreate bool

	// BackupRoot receives per-run backup directories on real applies.
	BackupRoot string
}

// Apply runs plan against the repo. With dryRun set, nothing is written and
// each would-be change carries a unified diff preview. On a real apply every
// touched file is first copied into a fresh timestamped backup directory and
// then replaced atomically.
func (ap *Applier) Apply(plan *Plan, dryRun bool) (*RunLog, error) {
	if ap.RequireCleanGit && !gitIsClean(ap.RepoRoot) {
		return nil, ErrDirtyRepo
	}

	stamp := time.Now().Format("20060102_150405")
	log := &RunLog{
		RunID:     uuid.NewString(),
		Timestamp: stamp,
		DryRun:    dryRun,
	}

	backupDir := filepath.Join(ap.BackupRoot, stamp)
	if !dryRun {
		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return nil, fmt.Errorf("create backup dir: %w", err)
		}
		log.BackupDir = backupDir
	}

	for _, fc := range plan.Files {
		log.Results = append(log.Results, ap.applyFile(fc, dryRun, backupDir))
	}
	return log, nil
}

func (ap *Applier) applyFile(fc FileChange, dryRun bool, backupDir string) Result {
	rel := strings.ReplaceAll(fc.Path, "\\", "/")
	if rel == "" {
		return Result{File: "", Status: StatusSkipped, Reason: "missing path"}
	}
	if !IsSafeRelPath(rel) {
		return Result{File: rel, Status: StatusSkipped, Reason: "unsafe path"}
	}

	abs := filepath.Join(ap.RepoRoot, filepath.FromSlash(rel))
	var original string
	exists := false

	info, err := os.Stat(abs)
	switch {
	case err == nil:
		if !info.Mode().IsRegular() {
			return Result{File: rel, Status: StatusSkipped, Reason: "not a file"}
		}
		if !ap.extAllowed(rel) {
			return Result{File: rel, Status: StatusSkipped, Reason: "file type not allowed"}
		}
		raw, err := os.ReadFile(abs)
		if err != nil {
			return Result{File: rel, Status: StatusFailed, Reason: err.Error()}
		}
		original = string(raw)
		exists = true
	case os.IsNotExist(err):
		if !ap.AllowCreate {
			return Result{File: rel, Status: StatusSkipped, Reason: "not found"}
		}
		if !ap.extAllowed(rel) {
			return Result{File: rel, Status: StatusSkipped, Reason: "file type not allowed"}
		}
	default:
		return Result{File: rel, Status: StatusFailed, Reason: err.Error()}
	}

	updated := original
	for _, op := range fc.Ops {
		next, err := applyOp(updated, op)
		if err != nil {
			return Result{File: rel, Status: StatusFailed, Reason: err.Error()}
		}
		updated = next
	}

	if updated == original {
		return Result{File: rel, Status: StatusNoop, Ops: len(fc.Ops)}
	}

	res := Result{
		File:         rel,
		Ops:          len(fc.Ops),
		ChangedLines: ChangedLineCount(original, updated),
		DiffUnified:  UnifiedDiff(rel, original, updated),
	}

	if dryRun {
		res.Status = StatusWouldUpdate
		return res
	}

	if exists {
		if err := backupFile(ap.RepoRoot, rel, backupDir); err != nil {
			res.Status = StatusFailed
			res.Reason = "backup: " + err.Error()
			return res
		}
	}
	if err := atomicWrite(abs, updated); err != nil {
		res.Status = StatusFailed
		res.Reason = err.Error()
		return res
	}
	res.Status = StatusUpdated
	return res
}

func (ap *Applier) extAllowed(rel string) bool {
	return ap.TextExts[strings.ToLower(filepath.Ext(rel))]
}

// IsSafeRelPath rejects absolute paths and any ".." traversal component.
func IsSafeRelPath(rel string) bool {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return false
	}
	// Windows-style drive prefixes are also absolute.
	if len(rel) >= 2 && rel[1] == ':' {
		return false
	}
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// gitIsClean runs `git status --porcelain`. Missing git, or a directory that
// isn't a repo, counts as clean so the gate never blocks non-git projects.
func gitIsClean(repoRoot string) bool {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(out)) == ""
}

func backupFile(repoRoot, rel, backupDir string) error {
	src := filepath.Join(repoRoot, filepath.FromSlash(rel))
	dst := filepath.Join(backupDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// atomicWrite writes via a sibling temp file and rename so a crash can't
// leave a half-written target.
func atomicWrite(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
