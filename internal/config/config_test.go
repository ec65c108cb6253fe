package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Default()
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, ".autoupdater_state", cfg.StateDir)
	assert.Contains(t, cfg.IgnoreDirs, ".git")
	assert.Contains(t, cfg.TextExts, ".py")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9000")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := Default()
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
}

func TestEnvPortNotNumeric(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	cfg := Default()
	assert.Equal(t, 8787, cfg.Port)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	yml := []byte("model: gpt-4.1\nport: 9100\nrequire_clean_git: true\nignore_dirs: [.git, vendor]\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), yml, 0o644))

	t.Setenv("PORT", "")
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.RequireCleanGit)
	assert.Equal(t, []string{".git", "vendor"}, cfg.IgnoreDirs)
	// Untouched keys keep their defaults.
	assert.Equal(t, 6000, cfg.MaxCharsPerFile)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.NotNil(t, cfg)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("port: [oops"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.RepoRoot = dir
	require.NoError(t, cfg.Validate())

	cfg.Port = 99999
	assert.Error(t, cfg.Validate())

	cfg.Port = 8787
	cfg.RepoRoot = filepath.Join(dir, "missing")
	assert.Error(t, cfg.Validate())
}

func TestTextExtSetLowercasesEntries(t *testing.T) {
	cfg := Default()
	cfg.TextExts = []string{".PY", ".Md", ".go"}

	set := cfg.TextExtSet()
	assert.True(t, set[".py"])
	assert.True(t, set[".md"])
	assert.True(t, set[".go"])
	assert.False(t, set[".PY"])
}
