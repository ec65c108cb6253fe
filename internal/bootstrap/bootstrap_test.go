package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records commands instead of executing them. LookPath succeeds
// only for names in onPath; Run fails for command prefixes in failOn and
// creates the venv dir when asked to, mimicking `python -m venv`.
type fakeRunner struct {
	onPath []string
	failOn map[string]error
	cmds   []Command
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	for _, p := range f.onPath {
		if p == name {
			return "/usr/bin/" + name, nil
		}
	}
	return "", errors.New("not found")
}

func (f *fakeRunner) Run(_ context.Context, c Command) error {
	f.cmds = append(f.cmds, c)
	line := c.Name + " " + strings.Join(c.Args, " ")
	for prefix, err := range f.failOn {
		if strings.Contains(line, prefix) {
			return err
		}
	}
	if len(c.Args) >= 2 && c.Args[0] == "-m" && c.Args[1] == "venv" {
		return os.MkdirAll(filepath.Join(c.Dir, c.Args[2]), 0o755)
	}
	return nil
}

func (f *fakeRunner) lines() []string {
	var out []string
	for _, c := range f.cmds {
		out = append(out, c.Name+" "+strings.Join(c.Args, " "))
	}
	return out
}

func projectDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("OPENAI_API_KEY = ''\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("fastapi==0.110.0\n"), 0o644))
	return dir
}

func newTestBootstrap(dir string, r Runner) (*Bootstrap, *bytes.Buffer) {
	var out bytes.Buffer
	b := New(dir)
	b.Runner = r
	b.Out = &out
	return b, &out
}

func TestFullChainHappyPath(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")

	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, out := newTestBootstrap(dir, r)

	require.NoError(t, b.Run(context.Background()))
	assert.Equal(t, 0, ExitCode(nil))

	lines := r.lines()
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "-m venv .venv")
	assert.Contains(t, lines[1], "pip install --upgrade pip")
	assert.Contains(t, lines[2], "pip install -r requirements.txt --cache-dir .pip-cache")
	assert.Contains(t, lines[3], "web_app:app")
	assert.Contains(t, lines[3], "--host 127.0.0.1")
	assert.Contains(t, lines[3], "--port 8787")

	assert.Contains(t, out.String(), "http://127.0.0.1:8787")
	assert.Contains(t, out.String(), "Server stopped.")
}

func TestVenvCreationIsIdempotent(t *testing.T) {
	dir := projectDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, VenvDir), 0o755))

	r := &fakeRunner{onPath: []string{"python3"}}
	b, out := newTestBootstrap(dir, r)
	require.NoError(t, b.Run(context.Background()))

	for _, line := range r.lines() {
		assert.NotContains(t, line, "-m venv")
	}
	assert.Contains(t, out.String(), "reusing .venv")
}

func TestInterpreterPreferenceOrder(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python", "py", "python3"}}
	b, out := newTestBootstrap(dir, r)
	require.NoError(t, b.Run(context.Background()))

	// The version-dispatch launcher wins when present.
	assert.Contains(t, out.String(), "/usr/bin/py")
	assert.True(t, strings.HasPrefix(r.lines()[0], "/usr/bin/py "))
}

func TestInterpreterNotFoundMutatesNothing(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{} // nothing on PATH
	b, out := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrInterpreterNotFound)
	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, r.cmds)
	assert.NoDirExists(t, filepath.Join(dir, VenvDir))
	assert.NoDirExists(t, filepath.Join(dir, CacheDir))
	assert.Contains(t, out.String(), "hint:")
}

func TestConfigMissingFailsBeforeMutation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte("x\n"), 0o644))

	r := &fakeRunner{onPath: []string{"python3"}}
	b, _ := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrConfigMissing)
	assert.Empty(t, r.cmds)
	assert.NoDirExists(t, filepath.Join(dir, VenvDir))
}

func TestManifestMissingFailsBeforeInstall(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte("x\n"), 0o644))

	r := &fakeRunner{onPath: []string{"python3"}}
	b, _ := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrManifestMissing)
	assert.Empty(t, r.cmds)
}

func TestResolveAddrDefaults(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "")

	b := New(t.TempDir())
	host, port := b.ResolveAddr()
	assert.Equal(t, DefaultHost, host)
	assert.Equal(t, DefaultPort, port)
}

func TestResolveAddrFromEnvAndFlags(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "9000")

	b := New(t.TempDir())
	host, port := b.ResolveAddr()
	assert.Equal(t, "0.0.0.0", host)
	assert.Equal(t, "9000", port)

	// Explicit settings beat the environment.
	b.Port = "9191"
	_, port = b.ResolveAddr()
	assert.Equal(t, "9191", port)
}

func TestPortNineThousandReachesServer(t *testing.T) {
	t.Setenv("HOST", "")
	t.Setenv("PORT", "9000")

	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, out := newTestBootstrap(dir, r)
	require.NoError(t, b.Run(context.Background()))

	last := r.lines()[len(r.lines())-1]
	assert.Contains(t, last, "--port 9000")
	assert.Contains(t, out.String(), "http://127.0.0.1:9000")
}

func TestInstallFailureSuggestsNoCache(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{
		onPath: []string{"python3"},
		failOn: map[string]error{"-r requirements.txt": errors.New("resolver exploded")},
	}
	b, out := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	assert.ErrorIs(t, err, ErrInstall)
	assert.Contains(t, out.String(), "--no-cache")
}

func TestNoCacheFlag(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, _ := newTestBootstrap(dir, r)
	b.NoCache = true
	require.NoError(t, b.Run(context.Background()))

	var install string
	for _, line := range r.lines() {
		if strings.Contains(line, "-r requirements.txt") {
			install = line
		}
	}
	assert.Contains(t, install, "--no-cache-dir")
	assert.NotContains(t, install, "--cache-dir")
}

func TestServerNonZeroExitPropagates(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{
		onPath: []string{"python3"},
		failOn: map[string]error{"web_app:app": &ServerExitError{Code: 3}},
	}
	b, out := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
	assert.Contains(t, out.String(), "Server stopped with status 3.")
}

func TestServerStartFailurePrintsDiagnostic(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{
		onPath: []string{"python3"},
		failOn: map[string]error{"web_app:app": errors.New(`exec: "uvicorn": executable file not found in $PATH`)},
	}
	b, out := newTestBootstrap(dir, r)

	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.Contains(t, out.String(), "ERROR:")
	assert.Contains(t, out.String(), "uvicorn")
}

func TestSkipInstall(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, out := newTestBootstrap(dir, r)
	b.SkipInstall = true
	require.NoError(t, b.Run(context.Background()))

	for _, line := range r.lines() {
		assert.NotContains(t, line, "pip install")
	}
	last := r.lines()[len(r.lines())-1]
	assert.Contains(t, last, "web_app:app")
	assert.Contains(t, out.String(), "Server stopped.")
}

func TestCustomServerCommand(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, _ := newTestBootstrap(dir, r)
	b.ServerCmd = "flask --app web_app run"
	require.NoError(t, b.Run(context.Background()))

	last := r.lines()[len(r.lines())-1]
	assert.True(t, strings.HasPrefix(last, "flask "), "got %q", last)
	assert.Contains(t, last, "--host")
}

func TestVenvEnvActivation(t *testing.T) {
	dir := projectDir(t)
	r := &fakeRunner{onPath: []string{"python3"}}
	b, _ := newTestBootstrap(dir, r)
	require.NoError(t, b.Run(context.Background()))

	// pip runs with the venv active: VIRTUAL_ENV set, venv bin on PATH.
	pip := r.cmds[1]
	env := strings.Join(pip.Env, "\n")
	assert.Contains(t, env, "VIRTUAL_ENV="+filepath.Join(dir, VenvDir))
	assert.Contains(t, env, fmt.Sprintf("PATH=%s%c", filepath.Join(dir, VenvDir, "bin"), os.PathListSeparator))
}
