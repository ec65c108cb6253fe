// Package config defines runtime configuration for autoupdater.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional per-repo settings file loaded from the repo root.
const ConfigFileName = ".autoupdater.yaml"

// Config holds all settings passed in via CLI flags, environment variables,
// or the optional .autoupdater.yaml file in the target repo.
type Config struct {
	// RepoRoot is the repository the updater operates on.
	RepoRoot string `yaml:"repo_root"`

	// Host is the network interface to bind the HTTP server to.
	Host string `yaml:"host"`

	// Port is the HTTP server port.
	Port int `yaml:"port"`

	// APIKey authenticates against the OpenAI API. Usually comes from the
	// OPENAI_API_KEY environment variable.
	APIKey string `yaml:"-"`

	// Model is the model name sent to the planner (e.g. "gpt-5").
	Model string `yaml:"model"`

	// AdminToken, when non-empty, is required on every API request
	// (x-admin-token header or ?token= query parameter).
	AdminToken string `yaml:"admin_token"`

	// RequireCleanGit refuses to apply patches while the target repo has
	// uncommitted changes.
	RequireCleanGit bool `yaml:"require_clean_git"`

	// MaxFilesToShow caps how many files are selected into the LLM context.
	MaxFilesToShow int `yaml:"max_files_to_show"`

	// MaxCharsPerFile caps the snippet size taken from a single file.
	MaxCharsPerFile int `yaml:"max_chars_per_file"`

	// MaxTotalContextChars caps the whole context document.
	MaxTotalContextChars int `yaml:"max_total_context_chars"`

	// MaxFileMB is the largest file the scanner will read.
	MaxFileMB int `yaml:"max_file_mb"`

	// IgnoreDirs are directory names pruned from every repo walk.
	IgnoreDirs []string `yaml:"ignore_dirs"`

	// TextExts are the file extensions treated as editable text.
	TextExts []string `yaml:"text_exts"`

	// StateDir and BackupDir are created inside RepoRoot.
	StateDir  string `yaml:"state_dir"`
	BackupDir string `yaml:"backup_dir"`
}

// Default returns a Config with the stock settings.
func Default() *Config {
	return &Config{
		RepoRoot:             ".",
		Host:                 envOrDefault("HOST", "127.0.0.1"),
		Port:                 envIntOrDefault("PORT", 8787),
		APIKey:               os.Getenv("OPENAI_API_KEY"),
		Model:                envOrDefault("AUTOUPDATER_MODEL", "gpt-5"),
		AdminToken:           os.Getenv("AUTOUPDATER_ADMIN_TOKEN"),
		MaxFilesToShow:       10,
		MaxCharsPerFile:      6000,
		MaxTotalContextChars: 26000,
		MaxFileMB:            2,
		IgnoreDirs: []string{
			".git", "node_modules", ".next", "dist", "build",
			"__pycache__", ".venv", "venv", ".mypy_cache", ".pytest_cache",
			".autoupdater_state", ".autoupdater_backups",
		},
		TextExts: []string{
			".py", ".js", ".jsx", ".ts", ".tsx", ".json", ".yml", ".yaml",
			".md", ".txt", ".html", ".css", ".toml", ".ini",
		},
		StateDir:  ".autoupdater_state",
		BackupDir: ".autoupdater_backups",
	}
}

// Load builds the effective configuration for repoRoot: defaults and
// environment first, then the repo's .autoupdater.yaml if present.
// Flag overrides are applied by the caller.
func Load(repoRoot string) (*Config, error) {
	cfg := Default()
	if repoRoot != "" {
		cfg.RepoRoot = repoRoot
	}

	path := filepath.Join(cfg.RepoRoot, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	info, err := os.Stat(c.RepoRoot)
	if err != nil {
		return fmt.Errorf("repo root %q: %w", c.RepoRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("repo root %q is not a directory", c.RepoRoot)
	}
	if c.MaxFilesToShow < 1 {
		return fmt.Errorf("max_files_to_show must be positive, got %d", c.MaxFilesToShow)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AbsRepoRoot returns RepoRoot resolved to an absolute path.
func (c *Config) AbsRepoRoot() (string, error) {
	return filepath.Abs(c.RepoRoot)
}

// IgnoreDirSet returns IgnoreDirs as a lookup set.
func (c *Config) IgnoreDirSet() map[string]bool {
	m := make(map[string]bool, len(c.IgnoreDirs))
	for _, d := range c.IgnoreDirs {
		m[d] = true
	}
	return m
}

// TextExtSet returns TextExts as a lookup set (keys are lowercase).
func (c *Config) TextExtSet() map[string]bool {
	m := make(map[string]bool, len(c.TextExts))
	for _, e := range c.TextExts {
		m[strings.ToLower(e)] = true
	}
	return m
}

// envOrDefault returns the value of an env var, or fallback if unset.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envIntOrDefault parses an env var as an int, or returns fallback.
func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
