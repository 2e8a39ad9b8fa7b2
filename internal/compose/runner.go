package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// defaultWaitDelay is how long a cancelled compose process gets to exit
// after receiving an interrupt before it is killed.
const defaultWaitDelay = 30 * time.Second

// Command describes one invocation of an external binary.
type Command struct {
	// Name is the binary to execute, looked up in PATH.
	Name string

	// Args are passed to the binary as-is.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds extra variables merged over the current process environment.
	Env map[string]string
}

// String renders the command line for log output.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner executes a Command and blocks until it exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec, wiring the child to the given
// streams (the terminal by default).
type ExecRunner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// WaitDelay bounds how long a cancelled child may keep running after
	// it was interrupted.
	WaitDelay time.Duration
}

// NewExecRunner returns an ExecRunner attached to the process's own
// stdin, stdout and stderr.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		Stderr:    os.Stderr,
		WaitDelay: defaultWaitDelay,
	}
}

// Run starts the command and waits for it. When ctx is cancelled the child
// receives an interrupt, like a Ctrl+C in the terminal would deliver, so
// compose can stop gracefully instead of being killed outright.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	log.WithField("dir", c.Dir).Debugf("+ %s", c)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = mergeEnv(os.Environ(), c.Env)
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	cmd.Cancel = func() error {
		return interruptProcess(cmd.Process, runtime.GOOS)
	}
	cmd.WaitDelay = r.WaitDelay

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s exited with code %d: %w", c.Name, exitErr.ExitCode(), err)
		}
		return fmt.Errorf("failed to run %s: %w", c.Name, err)
	}
	return nil
}

// signaler is the part of *os.Process interruptProcess needs.
type signaler interface {
	Signal(sig os.Signal) error
	Kill() error
}

// interruptProcess sends an interrupt to p, or kills it where interrupts
// cannot be delivered (Windows) or delivery fails.
func interruptProcess(p signaler, goos string) error {
	if goos == "windows" {
		return p.Kill()
	}
	if err := p.Signal(os.Interrupt); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return err
		}
		log.WithError(err).Debug("interrupt failed, killing compose")
		return p.Kill()
	}
	return nil
}

// mergeEnv appends extra variables to base in sorted key order. Later
// entries win in os/exec, so extra overrides inherited values.
func mergeEnv(base []string, extra map[string]string) []string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
