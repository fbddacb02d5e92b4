// Package execx runs external commands behind an interface so the packages
// that drive diskutil and createinstallmedia stay testable without a Mac.
package execx

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Result holds what a finished command produced.
type Result struct {
	// ExitCode is the process exit status, 0 on success.
	ExitCode int

	// Stdout is the captured standard output. For streamed commands it
	// holds the combined output instead.
	Stdout []byte

	// Stderr is the captured standard error. Empty for streamed commands.
	Stderr []byte
}

// Runner executes external commands.
type Runner interface {
	// Output runs the command to completion and captures its output.
	Output(ctx context.Context, name string, args ...string) (Result, error)

	// Stream runs the command and forwards each combined output line to fn
	// as it appears. Long-running tools report progress this way.
	Stream(ctx context.Context, fn func(line string), name string, args ...string) (Result, error)
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Name   string
	Args   []string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// stderrExcerpt pulls the last non-empty output line, which is where both
// diskutil and createinstallmedia put the reason they failed.
func stderrExcerpt(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			const max = 300
			if len(s) > max {
				s = s[:max]
			}
			return s
		}
	}
	return ""
}

// ExecRunner runs commands on the host with os/exec.
type ExecRunner struct{}

// NewRunner returns a Runner backed by the local host.
func NewRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	return finish(ctx, res, name, args, err, stderr.Bytes())
}

func (r *ExecRunner) Stream(ctx context.Context, fn func(line string), name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		return Result{}, fmt.Errorf("failed to start %s: %w", name, err)
	}

	var combined bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(io.TeeReader(pr, &combined))
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if fn != nil {
				fn(scanner.Text())
			}
		}
	}()

	err := cmd.Wait()
	pw.Close()
	<-done

	res := Result{Stdout: combined.Bytes()}
	return finish(ctx, res, name, args, err, combined.Bytes())
}

func finish(ctx context.Context, res Result, name string, args []string, err error, stderr []byte) (Result, error) {
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, &ExitError{
			Name:   name,
			Args:   args,
			Code:   res.ExitCode,
			Stderr: stderrExcerpt(stderr),
		}
	}
	return res, fmt.Errorf("failed to run %s: %w", name, err)
}
