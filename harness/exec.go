package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs a single external command to completion.
type Executor interface {
	// Run executes args in dir and blocks until the process exits. A
	// non-zero exit is reported as *CommandFailedError, a process that
	// could not be started or was stopped by ctx as *ExecutionError.
	Run(ctx context.Context, dir string, args []string) error
}

// CommandFailedError reports a command that ran and exited non-zero.
type CommandFailedError struct {
	Args     []string
	Dir      string
	ExitCode int
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command %q in %s exited with status %d",
		strings.Join(e.Args, " "), e.Dir, e.ExitCode)
}

// ExecutionError reports a command that could not be run to completion:
// missing binary, bad working directory, or a cancelled context.
type ExecutionError struct {
	Args []string
	Dir  string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("run %q in %s: %v", strings.Join(e.Args, " "), e.Dir, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// CommandExecutor runs commands as child processes whose output goes
// straight to the console so build logs can be followed live.
type CommandExecutor struct {
	Stdout io.Writer
	Stderr io.Writer
	// Timeout bounds every command. Zero waits indefinitely.
	Timeout time.Duration
	Logger  *slog.Logger
}

// NewCommandExecutor returns an executor writing to the process's own
// stdout and stderr.
func NewCommandExecutor(logger *slog.Logger, timeout time.Duration) *CommandExecutor {
	return &CommandExecutor{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Timeout: timeout,
		Logger:  logger,
	}
}

// Run implements Executor.
func (e *CommandExecutor) Run(ctx context.Context, dir string, args []string) error {
	if len(args) == 0 {
		return &ExecutionError{Dir: dir, Err: errors.New("empty command")}
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	if e.Logger != nil {
		e.Logger.DebugContext(ctx, "running command",
			slog.String("dir", dir),
			slog.Any("args", args),
		)
	}

	err := cmd.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return &ExecutionError{Args: args, Dir: dir, Err: ctxErr}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandFailedError{Args: args, Dir: dir, ExitCode: exitErr.ExitCode()}
	}

	return &ExecutionError{Args: args, Dir: dir, Err: err}
}
