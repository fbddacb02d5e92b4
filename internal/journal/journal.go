// Package journal keeps an append-only record of destructive runs.
//
// Every erase or restore appends one JSON line, so there is a durable trail
// of which disk was wiped when, by which run, and how it went.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/clock"
)

// Actions recorded in the journal.
const (
	ActionCreate  = "create"
	ActionRestore = "restore"
)

// Outcomes of a recorded run.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Record is one journal line.
type Record struct {
	// Time the run finished.
	Time time.Time `json:"time"`

	// RunID ties the line to a Report.
	RunID string `json:"run_id"`

	// Action is what was done to the disk.
	Action string `json:"action"`

	// Disk is the device node that was erased.
	Disk string `json:"disk"`

	// DiskName is the hardware media name, for humans reading the file.
	DiskName string `json:"disk_name,omitempty"`

	// Entries is how many partitions were written (create runs).
	Entries int `json:"entries,omitempty"`

	// Outcome summarizes the run: ok, partial, or failed.
	Outcome string `json:"outcome"`

	// Detail carries a short free-form note, e.g. the failing volume.
	Detail string `json:"detail,omitempty"`
}

// Journal appends run records to a file.
type Journal struct {
	fs    afero.Fs
	path  string
	clock clock.Clock
}

// New returns a Journal writing to path.
func New(fsys afero.Fs, path string, clk clock.Clock) *Journal {
	return &Journal{fs: fsys, path: path, clock: clk}
}

// Append writes one record as a JSON line. A zero Time is filled in from the
// journal's clock.
func (j *Journal) Append(rec Record) error {
	if rec.Time.IsZero() {
		rec.Time = j.clock.Now()
	}

	if err := j.fs.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode journal record: %w", err)
	}
	line = append(line, '\n')

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append journal record: %w", err)
	}
	return nil
}
