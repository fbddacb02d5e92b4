package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Call records one command a FakeRunner received.
type Call struct {
	Name     string
	Args     []string
	Streamed bool
}

// Line renders the call the way it was stubbed.
func (c Call) Line() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

type stubResponse struct {
	res Result
	err error
}

// FakeRunner is a scripted Runner for tests. Stub responses are keyed by the
// full command line and consumed in order; the last response repeats once the
// queue drains, so polling loops can be scripted with a few entries.
type FakeRunner struct {
	mu    sync.Mutex
	stubs map[string][]stubResponse
	calls []Call
}

// NewFakeRunner returns an empty fake. Unstubbed commands fail loudly.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{stubs: make(map[string][]stubResponse)}
}

// Stub queues a response for the exact command line, e.g.
// "diskutil list -plist".
func (f *FakeRunner) Stub(cmdline string, res Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubs[cmdline] = append(f.stubs[cmdline], stubResponse{res: res, err: err})
}

// StubOutput queues a success response whose stdout is the given string.
func (f *FakeRunner) StubOutput(cmdline, stdout string) {
	f.Stub(cmdline, Result{Stdout: []byte(stdout)}, nil)
}

// StubExit queues a non-zero exit with the given stderr line.
func (f *FakeRunner) StubExit(cmdline string, code int, stderr string) {
	name := cmdline
	if i := strings.IndexByte(cmdline, ' '); i >= 0 {
		name = cmdline[:i]
	}
	f.Stub(cmdline, Result{ExitCode: code, Stderr: []byte(stderr)}, &ExitError{
		Name:   name,
		Code:   code,
		Stderr: stderr,
	})
}

// Calls returns the commands run so far, in order.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallLines returns the command lines run so far, in order.
func (f *FakeRunner) CallLines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.Line()
	}
	return lines
}

func (f *FakeRunner) Output(ctx context.Context, name string, args ...string) (Result, error) {
	return f.dispatch(ctx, nil, false, name, args)
}

func (f *FakeRunner) Stream(ctx context.Context, fn func(line string), name string, args ...string) (Result, error) {
	return f.dispatch(ctx, fn, true, name, args)
}

func (f *FakeRunner) dispatch(ctx context.Context, fn func(line string), streamed bool, name string, args []string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	call := Call{Name: name, Args: args, Streamed: streamed}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	queue, ok := f.stubs[call.Line()]
	if !ok || len(queue) == 0 {
		f.mu.Unlock()
		return Result{}, fmt.Errorf("no stub for command %q", call.Line())
	}
	next := queue[0]
	if len(queue) > 1 {
		f.stubs[call.Line()] = queue[1:]
	}
	f.mu.Unlock()

	if streamed && fn != nil {
		for _, line := range strings.Split(string(next.res.Stdout), "\n") {
			if line != "" {
				fn(line)
			}
		}
	}
	return next.res, next.err
}
