package executor

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// Executor runs host commands. mkcloud only uses it to describe the host.
type Executor interface {
	Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (exitCode int, err error)
	Name() string
}

// Func adapts a plain function to Executor.
type Func func(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (int, error)

func (f Func) Execute(ctx context.Context, stdout, stderr io.Writer, command string, args ...string) (int, error) {
	return f(ctx, stdout, stderr, command, args...)
}

func (f Func) Name() string {
	return "func"
}

type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Lines returns the non-blank lines of Stdout.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Stdout, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Capture runs command and buffers both output streams.
func Capture(ctx context.Context, exec Executor, command string, args ...string) (Result, error) {
	var outBuf, errBuf bytes.Buffer

	exitCode, err := exec.Execute(ctx, &outBuf, &errBuf, command, args...)

	return Result{
		ExitCode: exitCode,
		Stdout:   outBuf.String(),
		Stderr:   errBuf.String(),
	}, err
}
