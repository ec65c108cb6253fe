// Package api provides the HTTP server for autoupdater.
//
// Routes:
//
//	GET  /                  → Web UI (three-pane IDE view)
//	GET  /static/*          → Static assets (CSS, JS)
//	GET  /health            → Health check (also pings the planner API)
//	GET  /api/status        → Session status (repo, state artifacts, host info)
//	GET  /api/files         → Text files in the target repo
//	GET  /api/file?path=    → One file's content for the viewer
//	POST /api/scan          → Snapshot the repo (before on first run, then after)
//	POST /api/diff          → Diff the before/after snapshots
//	POST /api/plan          → Ask the LLM for a patch plan {"goal":"..."}
//	POST /api/apply?dry_run= → Apply the saved plan (dry_run=1 previews)
//	GET  /api/features      → List all feature flags with enabled state
//	POST /api/features      → Toggle a flag {"feature":"...","enabled":true}
//	GET  /api/metrics       → JSON metrics snapshot (or SSE stream)
package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/acttech/autoupdater/internal/config"
	"github.com/acttech/autoupdater/internal/features"
	"github.com/acttech/autoupdater/internal/metrics"
	"github.com/acttech/autoupdater/internal/patch"
	"github.com/acttech/autoupdater/internal/scan"
	"github.com/acttech/autoupdater/internal/state"
	"github.com/acttech/autoupdater/internal/sysinfo"
	"github.com/acttech/autoupdater/internal/watch"
)

const (
	// maxRequestBodyBytes caps incoming JSON request bodies at 1 MB.
	// Goals and toggles are tiny; anything bigger is a mistake.
	maxRequestBodyBytes = 1 << 20

	// maxViewerChars truncates file content sent to the viewer pane.
	maxViewerChars = 120_000
)

// Planner turns a goal plus repo context into a patch plan. Satisfied by
// *llm.Client; faked in tests.
type Planner interface {
	PlanPatches(ctx context.Context, model, goal, contextText string) (*patch.Plan, error)
	Ping(ctx context.Context) error
}

// Server is the autoupdater HTTP server.
type Server struct {
	cfg          *config.Config
	log          *zap.Logger
	repoRoot     string
	store        *state.Store
	planner      Planner
	metrics      *metrics.Collector
	featureStore *features.Store
	mux          *http.ServeMux
	started      time.Time

	// pipelineMu serialises scan/diff/plan/apply so two browser tabs can't
	// interleave state artifacts mid-write.
	pipelineMu sync.Mutex

	watchMu sync.Mutex
	watcher *watch.Watcher
}

// NewServer creates a Server with all routes registered.
func NewServer(cfg *config.Config, log *zap.Logger, planner Planner, mc *metrics.Collector) (*Server, error) {
	root, err := cfg.AbsRepoRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}

	s := &Server{
		cfg:          cfg,
		log:          log,
		repoRoot:     root,
		store:        state.New(filepath.Join(root, cfg.StateDir)),
		planner:      planner,
		metrics:      mc,
		featureStore: features.NewStore(),
		mux:          http.NewServeMux(),
		started:      time.Now(),
	}
	if cfg.RequireCleanGit {
		s.featureStore.Set(features.RequireCleanGit, true)
	}
	s.registerRoutes()
	return s, nil
}

// Run starts the HTTP server on addr (e.g. "127.0.0.1:8787").
func (s *Server) Run(addr string) error {
	fmt.Printf("\n  autoupdater is running at http://%s\n\n", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No ReadTimeout / WriteTimeout: the SSE metrics stream and slow
		// planner calls can run for minutes.
	}
	return srv.ListenAndServe()
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleUI)
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFiles))))

	// Utility
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.guard(s.handleStatus))
	s.mux.HandleFunc("/api/metrics", s.guard(s.handleMetrics))

	// Repo browsing
	s.mux.HandleFunc("/api/files", s.guard(s.handleFiles))
	s.mux.HandleFunc("/api/file", s.guard(s.handleFile))

	// Update pipeline
	s.mux.HandleFunc("/api/scan", s.guard(s.handleScan))
	s.mux.HandleFunc("/api/diff", s.guard(s.handleDiff))
	s.mux.HandleFunc("/api/plan", s.guard(s.handlePlan))
	s.mux.HandleFunc("/api/apply", s.guard(s.handleApply))

	// Feature flags
	s.mux.HandleFunc("/api/features", s.guard(s.handleFeatures))
}

// guard checks the admin token (when configured) and counts the request.
func (s *Server) guard(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken != "" {
			got := r.Header.Get("x-admin-token")
			if got == "" {
				got = r.URL.Query().Get("token")
			}
			if got != s.cfg.AdminToken {
				writeError(w, http.StatusUnauthorized, "unauthorized (bad admin token)")
				return
			}
		}
		done := s.metrics.RequestStart()
		defer done()
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ─────────────────────────────────────────────────────────────────────────
// UI
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleUI(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	f, err := staticFiles.Open("index.html")
	if err != nil {
		http.Error(w, "UI not found", http.StatusNotFound)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.Copy(w, f)
}

// ─────────────────────────────────────────────────────────────────────────
// Health & status
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	plannerOK := true
	if err := s.planner.Ping(r.Context()); err != nil {
		plannerOK = false
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"planner_ok": plannerOK,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.store.Status()

	var lastApply json.RawMessage
	if raw, err := s.store.LoadRaw(state.FileApplyLog); err == nil {
		lastApply = raw
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"repo_root":      s.repoRoot,
		"state_dir":      s.store.Dir(),
		"model":          s.plannerModel(),
		"host_info":      sysinfo.Summary(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"has_before":     st.HasBefore,
		"has_after":      st.HasAfter,
		"has_diff":       st.HasDiff,
		"has_patches":    st.HasPatches,
		"snapshot_stale": s.metrics.Stale(),
		"last_apply_log": lastApply,
		"viewer_limits": map[string]any{
			"max_files_shown_in_list": 900,
			"max_chars_per_file_view": maxViewerChars,
		},
	})
}

// newScanner builds a scanner honoring the current feature flags.
func (s *Server) newScanner() *scan.Scanner {
	return scan.New(scan.Options{
		IgnoreDirs:     s.cfg.IgnoreDirSet(),
		TextExts:       s.cfg.TextExtSet(),
		MaxFileBytes:   int64(s.cfg.MaxFileMB) << 20,
		ExtractSymbols: s.featureStore.IsEnabled(features.SymbolExtraction),
	})
}

// plannerModel is the model sent to the planner: UI override first, then config.
func (s *Server) plannerModel() string {
	if m := s.featureStore.Model(); m != "" {
		return m
	}
	return s.cfg.Model
}

// ─────────────────────────────────────────────────────────────────────────
// Repo browsing
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.newScanner().ListFiles(s.repoRoot)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list files: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "count": len(files)})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		writeError(w, http.StatusBadRequest, "missing path")
		return
	}
	if !patch.IsSafeRelPath(rel) {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if !s.cfg.TextExtSet()[strings.ToLower(filepath.Ext(rel))] {
		writeError(w, http.StatusBadRequest, "file type not allowed")
		return
	}
	abs := filepath.Join(s.repoRoot, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read: "+err.Error())
		return
	}

	full := string(data)
	sum := sha256.Sum256(data)
	content := full
	if len(content) > maxViewerChars {
		content = content[:maxViewerChars] + "\n\n... [TRUNCATED FOR VIEWER] ..."
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"path":    rel,
		"size":    info.Size(),
		"lines":   strings.Count(full, "\n") + 1,
		"sha256":  hex.EncodeToString(sum[:]),
		"content": content,
	})
}

// ─────────────────────────────────────────────────────────────────────────
// Feature flags
// ─────────────────────────────────────────────────────────────────────────

// handleFeatures handles GET and POST /api/features.
//
//	GET  → returns all feature flags as JSON array
//	POST → toggles a flag; body: {"feature":"live_rescan","enabled":true}
func (s *Server) handleFeatures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.featureStore.All())

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		var req struct {
			Feature string `json:"feature"`
			Enabled bool   `json:"enabled"`
			Model   string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		if req.Model != "" {
			s.featureStore.SetModel(req.Model)
		}
		if req.Feature != "" {
			id := features.FeatureID(req.Feature)
			if !s.featureStore.Set(id, req.Enabled) {
				writeError(w, http.StatusBadRequest, "unknown feature: "+req.Feature)
				return
			}
			// Side-effects when specific features are toggled.
			if id == features.LiveRescan {
				s.setLiveRescan(req.Enabled)
			}
		}
		writeJSON(w, http.StatusOK, s.featureStore.All())

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// setLiveRescan starts or stops the repo watcher.
func (s *Server) setLiveRescan(on bool) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	if !on {
		if s.watcher != nil {
			s.watcher.Stop()
			s.watcher = nil
		}
		return
	}
	if s.watcher != nil {
		return
	}
	w := watch.New(s.repoRoot, s.cfg.IgnoreDirSet(), func(paths []string) {
		s.metrics.SetStale(true)
		s.log.Info("repo changed on disk", zap.Int("files", len(paths)))
	}, s.log)
	if err := w.Start(context.Background()); err != nil {
		s.log.Warn("live rescan unavailable", zap.Error(err))
		return
	}
	s.watcher = w
}

// ─────────────────────────────────────────────────────────────────────────
// Metrics
// ─────────────────────────────────────────────────────────────────────────

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "text/event-stream" {
		s.streamMetrics(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) streamMetrics(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			data, _ := json.Marshal(s.metrics.Snapshot())
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
