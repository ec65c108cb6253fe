// Package bootstrap prepares an isolated Python environment for a target
// project and launches its development server.
//
// The sequence is a straight chain of guarded steps: resolve an interpreter,
// verify the project's config and dependency manifest, create or reuse a
// virtualenv, install pinned dependencies through a local cache, then hand
// the foreground to the server process. The first failing step aborts the
// rest with a numbered diagnostic and a remediation hint.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
)

const (
	// VenvDir is the isolated environment directory, created once and
	// reused on later runs.
	VenvDir = ".venv"
	// CacheDir holds pip's download cache across runs.
	CacheDir = ".pip-cache"
	// ConfigFile must exist before anything touches the filesystem.
	ConfigFile = "config.py"
	// ManifestFile lists the pinned dependencies.
	ManifestFile = "requirements.txt"

	// DefaultHost and DefaultPort apply when HOST/PORT are unset.
	DefaultHost = "127.0.0.1"
	DefaultPort = "8787"

	// DefaultServerCmd is the stock launch command. The exact command is
	// configuration: anything on the venv PATH works.
	DefaultServerCmd = "uvicorn web_app:app"
)

// interpreterCandidates in preference order: the version-dispatch launcher
// first, direct interpreter names as fallback. PATH only, never a download.
var interpreterCandidates = []string{"py", "python3", "python"}

// Failure classes, one per fatal step.
var (
	ErrInterpreterNotFound = errors.New("no Python interpreter found on PATH")
	ErrConfigMissing       = errors.New(ConfigFile + " not found")
	ErrManifestMissing     = errors.New(ManifestFile + " not found")
	ErrVenvCreate          = errors.New("virtualenv creation failed")
	ErrToolingUpgrade      = errors.New("pip upgrade failed")
	ErrInstall             = errors.New("dependency install failed")
)

// hints maps failure classes to one-line remediation suggestions.
var hints = map[error]string{
	ErrInterpreterNotFound: "install Python 3 from https://www.python.org/downloads/ and re-run",
	ErrConfigMissing:       "create " + ConfigFile + " in the project root (see the project README)",
	ErrManifestMissing:     "create " + ManifestFile + " listing the project's dependencies",
	ErrVenvCreate:          "delete " + VenvDir + " and re-run, or check the interpreter supports venv",
	ErrToolingUpgrade:      "check network access, then re-run",
	ErrInstall:             "re-run with --no-cache to bypass " + CacheDir,
}

// ServerExitError reports a non-zero server exit so the caller can
// propagate the code.
type ServerExitError struct {
	Code int
}

func (e *ServerExitError) Error() string {
	return fmt.Sprintf("server exited with status %d", e.Code)
}

// Bootstrap runs the guarded step chain for one project directory.
type Bootstrap struct {
	// Dir is the project root containing config.py and requirements.txt.
	Dir string

	// Host and Port override the HOST/PORT environment variables when
	// non-empty. Defaults apply when both are empty.
	Host string
	Port string

	// ServerCmd is the launch command without host/port flags; those are
	// appended from the resolved settings.
	ServerCmd string

	// NoCache skips the pip download cache.
	NoCache bool

	// SkipInstall skips the pip upgrade and dependency install steps,
	// reusing whatever the virtualenv already holds.
	SkipInstall bool

	Runner Runner
	Out    io.Writer

	// resolved during Run
	interpreter string
	venvPython  string
	venvBin     string
}

// New creates a Bootstrap with the stock runner and defaults applied.
func New(dir string) *Bootstrap {
	return &Bootstrap{
		Dir:       dir,
		ServerCmd: DefaultServerCmd,
		Runner:    ExecRunner{},
		Out:       os.Stdout,
	}
}

type step struct {
	title string
	run   func(ctx context.Context) error
}

// Run executes the chain. A nil return means the server was started and
// shut down cleanly (including operator interrupt). Setup failures return
// the failure class; a non-zero server exit returns *ServerExitError.
func (b *Bootstrap) Run(ctx context.Context) error {
	abs, err := filepath.Abs(b.Dir)
	if err != nil {
		return fmt.Errorf("resolve project dir: %w", err)
	}
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		return fmt.Errorf("project dir %s does not exist", abs)
	}
	b.Dir = abs

	steps := []step{
		{"Locating Python interpreter", b.resolveInterpreter},
		{"Checking " + ConfigFile, b.checkConfig},
		{"Checking " + ManifestFile, b.checkManifest},
		{"Preparing virtualenv", b.ensureVenv},
		{"Activating virtualenv", b.activate},
	}
	if !b.SkipInstall {
		steps = append(steps,
			step{"Upgrading pip", b.upgradePip},
			step{"Installing dependencies", b.installDeps},
		)
	}
	steps = append(steps, step{"Starting server", b.launchServer})

	for i, s := range steps {
		fmt.Fprintf(b.Out, "[%d/%d] %s\n", i+1, len(steps), s.title)
		if err := s.run(ctx); err != nil {
			var exit *ServerExitError
			if errors.As(err, &exit) {
				// The server's own exit status, already reported.
				return err
			}
			fmt.Fprintf(b.Out, "ERROR: %v\n", err)
			if hint := hintFor(err); hint != "" {
				fmt.Fprintf(b.Out, "       hint: %s\n", hint)
			}
			return err
		}
	}
	return nil
}

func hintFor(err error) string {
	for class, hint := range hints {
		if errors.Is(err, class) {
			return hint
		}
	}
	return ""
}

// ─── Steps ──────────────────────────────────────────────────────────────────

func (b *Bootstrap) resolveInterpreter(context.Context) error {
	for _, name := range interpreterCandidates {
		if path, err := b.Runner.LookPath(name); err == nil {
			b.interpreter = path
			fmt.Fprintf(b.Out, "      using %s\n", path)
			return nil
		}
	}
	return ErrInterpreterNotFound
}

func (b *Bootstrap) checkConfig(context.Context) error {
	if _, err := os.Stat(filepath.Join(b.Dir, ConfigFile)); err != nil {
		return ErrConfigMissing
	}
	return nil
}

func (b *Bootstrap) checkManifest(context.Context) error {
	if _, err := os.Stat(filepath.Join(b.Dir, ManifestFile)); err != nil {
		return ErrManifestMissing
	}
	return nil
}

func (b *Bootstrap) ensureVenv(ctx context.Context) error {
	venv := filepath.Join(b.Dir, VenvDir)
	if info, err := os.Stat(venv); err == nil && info.IsDir() {
		fmt.Fprintf(b.Out, "      reusing %s\n", VenvDir)
		return nil
	}
	err := b.Runner.Run(ctx, Command{
		Name: b.interpreter,
		Args: []string{"-m", "venv", VenvDir},
		Dir:  b.Dir,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVenvCreate, err)
	}
	return nil
}

// activate records the venv's own interpreter and the environment every
// later subprocess runs with: VIRTUAL_ENV set, venv bin dir first on PATH.
// No shell activation script is involved.
func (b *Bootstrap) activate(context.Context) error {
	bin := "bin"
	python := "python"
	if runtime.GOOS == "windows" {
		bin = "Scripts"
		python = "python.exe"
	}
	b.venvBin = filepath.Join(b.Dir, VenvDir, bin)
	b.venvPython = filepath.Join(b.venvBin, python)
	return nil
}

// venvEnv is the extra environment for commands inside the venv.
func (b *Bootstrap) venvEnv() []string {
	return []string{
		"VIRTUAL_ENV=" + filepath.Join(b.Dir, VenvDir),
		"PATH=" + b.venvBin + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
}

func (b *Bootstrap) upgradePip(ctx context.Context) error {
	err := b.Runner.Run(ctx, Command{
		Name: b.venvPython,
		Args: []string{"-m", "pip", "install", "--upgrade", "pip"},
		Dir:  b.Dir,
		Env:  b.venvEnv(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrToolingUpgrade, err)
	}
	return nil
}

func (b *Bootstrap) installDeps(ctx context.Context) error {
	args := []string{"-m", "pip", "install", "-r", ManifestFile}
	if b.NoCache {
		args = append(args, "--no-cache-dir")
	} else {
		args = append(args, "--cache-dir", CacheDir)
	}
	err := b.Runner.Run(ctx, Command{
		Name: b.venvPython,
		Args: args,
		Dir:  b.Dir,
		Env:  b.venvEnv(),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	return nil
}

// ResolveAddr returns the host and port the server will bind: explicit
// settings first, then HOST/PORT from the environment, then defaults.
// This step never fails.
func (b *Bootstrap) ResolveAddr() (host, port string) {
	host = b.Host
	if host == "" {
		host = os.Getenv("HOST")
	}
	if host == "" {
		host = DefaultHost
	}
	port = b.Port
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = DefaultPort
	}
	return host, port
}

func (b *Bootstrap) launchServer(ctx context.Context) error {
	host, port := b.ResolveAddr()

	cmdline := strings.Fields(b.ServerCmd)
	if len(cmdline) == 0 {
		cmdline = strings.Fields(DefaultServerCmd)
	}
	name := cmdline[0]
	args := append(cmdline[1:], "--host", host, "--port", port)

	// Prefer the venv's copy of the server binary when it exists.
	if p := filepath.Join(b.venvBin, name); fileExists(p) {
		name = p
	} else if p := filepath.Join(b.venvBin, name+".exe"); runtime.GOOS == "windows" && fileExists(p) {
		name = p
	}

	fmt.Fprintf(b.Out, "      serving on http://%s:%s (Ctrl+C to stop)\n", host, port)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := b.Runner.Run(sigCtx, Command{
		Name:        name,
		Args:        args,
		Dir:         b.Dir,
		Env:         b.venvEnv(),
		Interactive: true,
		Stdout:      b.Out,
		Stderr:      b.Out,
	})
	if err == nil || sigCtx.Err() != nil {
		// Clean exit, or the operator interrupted us and the child was
		// signalled down. Either way the session ended as intended.
		fmt.Fprintln(b.Out, "Server stopped.")
		return nil
	}

	var exit *ServerExitError
	if errors.As(err, &exit) {
		fmt.Fprintf(b.Out, "Server stopped with status %d.\n", exit.Code)
		return exit
	}
	return fmt.Errorf("start server %s: %w", name, err)
}

// ExitCode maps a Run error to a process exit status: 0 for a clean
// shutdown, the server's own code for a non-zero exit, 1 for setup failures.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ServerExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// PauseForAck blocks until Enter is pressed, when stdin is an interactive
// terminal. No-op otherwise.
func (b *Bootstrap) PauseForAck() {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return
	}
	fmt.Fprint(b.Out, "Press Enter to close...")
	bufio.NewReader(os.Stdin).ReadString('\n')
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
