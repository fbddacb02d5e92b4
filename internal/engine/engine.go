// Package engine provides the core business logic for multimac operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It coordinates installer discovery, disk listing,
// partition planning, media writing, and disk restoration.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Discover/Disks/Plan: Read-only inspection of installers and hardware
//   - Apply: Erases the target disk and writes one installer per partition
//   - Restore: Returns a used disk to a single blank volume
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avignat/multimac/internal/clock"
	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/journal"
	"github.com/avignat/multimac/internal/media"
)

// InstallerFinder locates installer bundles. *discovery.Finder is the real
// implementation; tests substitute canned results.
type InstallerFinder interface {
	Scan(ctx context.Context, dirs ...string) ([]discovery.Installer, error)
}

// MediaWriter fills one partition with installer media. *media.Writer is the
// real implementation.
type MediaWriter interface {
	Write(ctx context.Context, req media.WriteRequest, onProgress media.ProgressFunc) (media.WriteResult, error)
}

// Engine orchestrates all multimac operations.
// It is the main API surface called by the CLI.
type Engine struct {
	finder  InstallerFinder
	disks   diskutil.Client
	writer  MediaWriter
	journal *journal.Journal
	clock   clock.Clock
	log     *slog.Logger
}

// New creates a new Engine with the given dependencies. The journal may be
// nil, in which case runs are not recorded.
func New(
	finder InstallerFinder,
	disks diskutil.Client,
	writer MediaWriter,
	jnl *journal.Journal,
	clk clock.Clock,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		finder:  finder,
		disks:   disks,
		writer:  writer,
		journal: jnl,
		clock:   clk,
		log:     log,
	}
}

// record appends a journal line, logging rather than failing when the
// journal itself cannot be written.
func (e *Engine) record(rec journal.Record) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Append(rec); err != nil {
		e.log.Warn("failed to record run in journal", "error", err)
	}
}

// resolveDisk finds the requested disk among the candidates. The target may
// be a device node ("/dev/disk2") or a bare identifier ("disk2").
func resolveDisk(candidates []diskutil.Disk, target string) (diskutil.Disk, error) {
	for _, d := range candidates {
		if d.Device == target || d.Identifier == target {
			return d, nil
		}
	}
	return diskutil.Disk{}, fmt.Errorf("%w: %s", ErrDiskNotFound, target)
}
