package bootstrap

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"time"
)

// Command is one subprocess invocation in the bootstrap chain.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the parent environment

	// Interactive wires the child to the terminal for the long-running
	// server step.
	Interactive bool

	Stdout io.Writer
	Stderr io.Writer
}

// Runner executes subprocesses and resolves executables. The bootstrap
// chain only talks to the system through this interface.
type Runner interface {
	// LookPath resolves name on the search path, like exec.LookPath.
	LookPath(name string) (string, error)
	// Run executes the command and blocks until it exits.
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)

	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if c.Interactive {
		cmd.Stdin = os.Stdin
	}

	// On cancellation ask the child to stop gracefully first; kill only
	// if it ignores the signal.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	var exit *exec.ExitError
	if errors.As(err, &exit) {
		return &ServerExitError{Code: exit.ExitCode()}
	}
	return err
}
