package execx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExecRunnerOutput(t *testing.T) {
	r := NewRunner()
	ctx := context.Background()

	t.Run("captures stdout", func(t *testing.T) {
		res, err := r.Output(ctx, "sh", "-c", "echo hello")
		if err != nil {
			t.Fatalf("Output() error = %v", err)
		}
		if got := strings.TrimSpace(string(res.Stdout)); got != "hello" {
			t.Errorf("stdout = %q, want %q", got, "hello")
		}
		if res.ExitCode != 0 {
			t.Errorf("ExitCode = %d, want 0", res.ExitCode)
		}
	})

	t.Run("non-zero exit returns ExitError", func(t *testing.T) {
		res, err := r.Output(ctx, "sh", "-c", "echo broken >&2; exit 3")
		var ee *ExitError
		if !errors.As(err, &ee) {
			t.Fatalf("Output() error = %v, want *ExitError", err)
		}
		if ee.Code != 3 || res.ExitCode != 3 {
			t.Errorf("exit code = %d/%d, want 3", ee.Code, res.ExitCode)
		}
		if !strings.Contains(ee.Stderr, "broken") {
			t.Errorf("ExitError.Stderr = %q, want stderr excerpt", ee.Stderr)
		}
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := r.Output(ctx, "definitely-not-a-command-xyz")
		if err == nil {
			t.Fatal("Output() succeeded for missing binary")
		}
		var ee *ExitError
		if errors.As(err, &ee) {
			t.Errorf("Output() error = *ExitError, want start failure")
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := r.Output(cctx, "sh", "-c", "sleep 5")
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Output() error = %v, want deadline exceeded", err)
		}
	})
}

func TestExecRunnerStream(t *testing.T) {
	r := NewRunner()
	ctx := context.Background()

	var lines []string
	res, err := r.Stream(ctx, func(line string) {
		lines = append(lines, line)
	}, "sh", "-c", "echo one; echo two >&2; echo three")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("streamed %d lines (%q), want 3", len(lines), lines)
	}
	combined := string(res.Stdout)
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(combined, want) {
			t.Errorf("combined output %q missing %q", combined, want)
		}
	}
}

func TestFakeRunner(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes stubs in order then repeats last", func(t *testing.T) {
		f := NewFakeRunner()
		f.StubOutput("diskutil info -plist disk2", "first")
		f.StubOutput("diskutil info -plist disk2", "second")

		for _, want := range []string{"first", "second", "second"} {
			res, err := f.Output(ctx, "diskutil", "info", "-plist", "disk2")
			if err != nil {
				t.Fatalf("Output() error = %v", err)
			}
			if string(res.Stdout) != want {
				t.Errorf("stdout = %q, want %q", res.Stdout, want)
			}
		}
	})

	t.Run("unstubbed command fails", func(t *testing.T) {
		f := NewFakeRunner()
		if _, err := f.Output(ctx, "diskutil", "list"); err == nil {
			t.Error("Output() succeeded without a stub")
		}
	})

	t.Run("records calls", func(t *testing.T) {
		f := NewFakeRunner()
		f.StubOutput("diskutil list -plist", "")
		f.StubOutput("diskutil unmountDisk /dev/disk2", "")

		f.Output(ctx, "diskutil", "list", "-plist")
		f.Output(ctx, "diskutil", "unmountDisk", "/dev/disk2")

		want := []string{"diskutil list -plist", "diskutil unmountDisk /dev/disk2"}
		got := f.CallLines()
		if len(got) != len(want) {
			t.Fatalf("CallLines() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("call %d = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("streams stubbed lines", func(t *testing.T) {
		f := NewFakeRunner()
		f.StubOutput("cim --volume /Volumes/A", "Copying files\nInstall media now available")

		var lines []string
		_, err := f.Stream(ctx, func(line string) { lines = append(lines, line) }, "cim", "--volume", "/Volumes/A")
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if len(lines) != 2 || lines[1] != "Install media now available" {
			t.Errorf("streamed lines = %q", lines)
		}
	})

	t.Run("scripted exit error", func(t *testing.T) {
		f := NewFakeRunner()
		f.StubExit("diskutil unmountDisk /dev/disk2", 1, "disk2 is busy")

		_, err := f.Output(ctx, "diskutil", "unmountDisk", "/dev/disk2")
		var ee *ExitError
		if !errors.As(err, &ee) {
			t.Fatalf("Output() error = %v, want *ExitError", err)
		}
		if ee.Code != 1 || !strings.Contains(ee.Stderr, "busy") {
			t.Errorf("ExitError = %+v", ee)
		}
	})
}
