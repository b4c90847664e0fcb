package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Local runs commands on this machine.
type Local struct {
	logger *slog.Logger
}

func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		logger: logger.With(slog.String("executor", "local")),
	}
}

func (e *Local) Name() string {
	return "local-shell"
}

func (e *Local) Execute(
	ctx context.Context,
	stdout, stderr io.Writer,
	command string, args ...string,
) (int, error) {
	cmdStr := strings.TrimSpace(command + " " + strings.Join(args, " "))
	e.logger.Debug("executing command", slog.String("cmd", cmdStr))

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		e.logger.Debug("command failed",
			slog.String("cmd", cmdStr),
			slog.Int("exit_code", exitErr.ExitCode()),
		)
		return exitErr.ExitCode(), fmt.Errorf("%s exited with code %d: %w", command, exitErr.ExitCode(), err)
	default:
		return -1, fmt.Errorf("could not run %s: %w", command, err)
	}
}
