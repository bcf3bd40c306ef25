// Package shell runs external commands with their output forwarded to slog.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/codex-k8s/kindctl/internal/logging"
)

// Command describes a single external invocation.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin []byte

	// Env entries in KEY=VALUE form, appended to the current environment.
	Env []string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Commander executes commands. Run streams output to the log, Output captures stdout.
type Commander interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
}

// IsExitError reports whether err carries a non-zero exit from a command.
func IsExitError(err error) bool {
	var exitErr *ExitError
	return errors.As(err, &exitErr)
}

// Runner is the os/exec backed Commander.
type Runner struct {
	logger *slog.Logger
}

// NewRunner returns a Runner logging through logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run executes cmd and forwards stdout and stderr line by line to the logger.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	r.logger.Debug("running command", "cmd", cmd.Name, "args", cmd.Args)

	stdout := logging.NewWriter(r.logger, "stdout")
	stderr := logging.NewWriter(r.logger, "stderr")
	var tail bytes.Buffer

	c := r.command(ctx, cmd)
	c.Stdout = stdout
	c.Stderr = io.MultiWriter(stderr, &tail)

	err := c.Run()
	stdout.Flush()
	stderr.Flush()
	return wrap(cmd, err, tail.String())
}

// Output executes cmd and returns its trimmed stdout. Stderr goes to the logger.
func (r *Runner) Output(ctx context.Context, cmd Command) (string, error) {
	r.logger.Debug("running command", "cmd", cmd.Name, "args", cmd.Args)

	stderr := logging.NewWriter(r.logger, "stderr")
	var out, tail bytes.Buffer

	c := r.command(ctx, cmd)
	c.Stdout = &out
	c.Stderr = io.MultiWriter(stderr, &tail)

	err := c.Run()
	stderr.Flush()
	if err != nil {
		return "", wrap(cmd, err, tail.String())
	}
	return strings.TrimSpace(out.String()), nil
}

func (r *Runner) command(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	return c
}

func wrap(cmd Command, err error, stderr string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Command:  cmd.String(),
			ExitCode: exitErr.ExitCode(),
			Stderr:   lastLine(stderr),
		}
	}
	return fmt.Errorf("%s: %w", cmd.String(), err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
