package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"git.home.luguber.info/inful/docbot/internal/logfields"
)

// CommandError reports a child process that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// RunChecked launches argv (argv[0] is the executable) in dir and waits for
// it to finish. With a non-nil sink, both output channels are captured and
// delivered line by line through a Multiplexer, preceded by a synthetic
// "$ <command>" echo line. A non-zero exit yields a *CommandError carrying
// the exit code and the joined command string. One attempt, no retries.
func RunChecked(ctx context.Context, argv []string, dir string, sink LineSink) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty argument vector")
	}
	joined := strings.Join(argv, " ")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	if sink == nil {
		slog.Debug("Running command", logfields.Command(joined), logfields.Path(dir))
		if err := cmd.Run(); err != nil {
			return commandError(joined, err)
		}
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	sink([]byte("$ " + joined))

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", joined, err)
	}

	// Drain both pipes fully before Wait closes them.
	drainErr := NewMultiplexer(sink).Drain(stdout, stderr)

	if err := cmd.Wait(); err != nil {
		return commandError(joined, err)
	}
	if drainErr != nil {
		return fmt.Errorf("reading output of %q: %w", joined, drainErr)
	}
	return nil
}

func commandError(joined string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &CommandError{Command: joined, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("command %q failed: %w", joined, err)
}
