package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acttech/autoupdater/internal/contextsel"
	"github.com/acttech/autoupdater/internal/features"
	"github.com/acttech/autoupdater/internal/llm"
	"github.com/acttech/autoupdater/internal/patch"
	"github.com/acttech/autoupdater/internal/scan"
	"github.com/acttech/autoupdater/internal/state"
)

// handleScan snapshots the repo. The first scan of a session is saved as
// the "before" map; every scan refreshes the "after" map. Diffing the two
// shows what changed since the session started.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	start := time.Now()
	snap, err := s.newScanner().Scan(r.Context(), s.repoRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "scan: "+err.Error())
		return
	}

	if !s.store.Has(state.FileMapBefore) {
		if err := s.store.Save(state.FileMapBefore, snap); err != nil {
			writeError(w, http.StatusInternalServerError, "save before map: "+err.Error())
			return
		}
	}
	if err := s.store.Save(state.FileMapAfter, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "save after map: "+err.Error())
		return
	}

	s.metrics.RecordScan(snap.FileCount, time.Since(start))
	s.metrics.SetStale(false)
	s.log.Info("repo scanned",
		zap.Int("files", snap.FileCount),
		zap.Duration("took", time.Since(start)))

	writeJSON(w, http.StatusOK, map[string]any{
		"saved_before":     s.store.Path(state.FileMapBefore),
		"saved_after":      s.store.Path(state.FileMapAfter),
		"after_file_count": snap.FileCount,
	})
}

// handleDiff diffs the saved before/after snapshots.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	var before, after scan.Snapshot
	if err := s.store.Load(state.FileMapBefore, &before); err != nil {
		writeError(w, http.StatusBadRequest, "scan first")
		return
	}
	if err := s.store.Load(state.FileMapAfter, &after); err != nil {
		writeError(w, http.StatusBadRequest, "scan first")
		return
	}

	d := scan.DiffSnapshots(&before, &after)
	if err := s.store.Save(state.FileDiff, d); err != nil {
		writeError(w, http.StatusInternalServerError, "save diff: "+err.Error())
		return
	}
	s.metrics.RecordDiff()

	writeJSON(w, http.StatusOK, map[string]any{
		"diff":  d,
		"saved": s.store.Path(state.FileDiff),
	})
}

// handlePlan builds the LLM context from the current snapshot and diff,
// asks the planner for a patch plan, and saves it for apply.
func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	var req struct {
		Goal string `json:"goal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request: "+err.Error())
		return
	}
	goal := strings.TrimSpace(req.Goal)
	if goal == "" {
		writeError(w, http.StatusBadRequest, "missing goal")
		return
	}

	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	var after scan.Snapshot
	if err := s.store.Load(state.FileMapAfter, &after); err != nil {
		writeError(w, http.StatusBadRequest, "scan first")
		return
	}
	var diff scan.Diff
	if err := s.store.Load(state.FileDiff, &diff); err != nil {
		writeError(w, http.StatusBadRequest, "diff first")
		return
	}

	builder := &contextsel.Builder{
		RepoRoot:        s.repoRoot,
		TextExts:        s.cfg.TextExtSet(),
		MaxFiles:        s.cfg.MaxFilesToShow,
		MaxCharsPerFile: s.cfg.MaxCharsPerFile,
		MaxTotalChars:   s.cfg.MaxTotalContextChars,
		ExpandNeighbors: s.featureStore.IsEnabled(features.NeighborExpansion),
	}
	contextText, chosen := builder.Build(&after, &diff, goal)

	start := time.Now()
	plan, err := s.planner.PlanPatches(r.Context(), s.plannerModel(), goal, contextText)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, llm.ErrMissingAPIKey) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	s.metrics.RecordPlan(time.Since(start))
	s.log.Info("patch plan generated",
		zap.Int("files", len(plan.Files)),
		zap.Int("chosen", len(chosen)),
		zap.Duration("took", time.Since(start)))

	if err := s.store.Save(state.FilePatches, plan); err != nil {
		writeError(w, http.StatusInternalServerError, "save plan: "+err.Error())
		return
	}
	if err := s.store.Save(state.FileChosenFiles, map[string]any{"chosen_files": chosen}); err != nil {
		writeError(w, http.StatusInternalServerError, "save chosen files: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chosen_files":  chosen,
		"patch_plan":    plan,
		"saved_patches": s.store.Path(state.FilePatches),
	})
}

// handleApply runs the saved patch plan. dry_run=1 (the default) previews
// every change as a unified diff; dry_run=0 writes files with backups.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dryRun := r.URL.Query().Get("dry_run") != "0"

	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	var plan patch.Plan
	if err := s.store.Load(state.FilePatches, &plan); err != nil {
		writeError(w, http.StatusBadRequest, "plan patches first")
		return
	}

	applier := &patch.Applier{
		RepoRoot:        s.repoRoot,
		TextExts:        s.cfg.TextExtSet(),
		RequireCleanGit: s.featureStore.IsEnabled(features.RequireCleanGit),
		AllowCreate:     s.featureStore.IsEnabled(features.AllowCreateFiles),
		BackupRoot:      filepath.Join(s.repoRoot, s.cfg.BackupDir),
	}
	log, err := applier.Apply(&plan, dryRun)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, patch.ErrDirtyRepo) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	s.metrics.RecordApply()
	s.log.Info("patch plan applied",
		zap.Bool("dry_run", dryRun),
		zap.String("run_id", log.RunID),
		zap.Int("results", len(log.Results)))

	if err := s.store.Save(state.FileApplyLog, log); err != nil {
		writeError(w, http.StatusInternalServerError, "save apply log: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, log)
}
