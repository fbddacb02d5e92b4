package engine

import (
	"time"

	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/media"
	"github.com/avignat/multimac/internal/planner"
)

// DiscoverResult represents the result of scanning for installers.
type DiscoverResult struct {
	// Installers is every matched bundle, usable or not, in catalog order
	Installers []discovery.Installer
}

// Usable returns the installers media can be created from.
func (r *DiscoverResult) Usable() []discovery.Installer {
	var out []discovery.Installer
	for _, inst := range r.Installers {
		if inst.Usable() {
			out = append(out, inst)
		}
	}
	return out
}

// DisksResult represents the result of listing external disks.
type DisksResult struct {
	// Disks is the candidate disks, ordered by device identifier
	Disks []diskutil.Disk
}

// PlanResult represents a computed partition layout.
type PlanResult struct {
	// Plan is the layout, ready for Apply
	Plan planner.Plan

	// Installers is every matched bundle, including unusable ones
	Installers []discovery.Installer

	// Skipped is the subset of Installers excluded from the plan
	Skipped []discovery.Installer
}

// Entry statuses in a Report.
const (
	EntryOK      = "ok"
	EntryFailed  = "failed"
	EntrySkipped = "skipped"
	EntryPlanned = "planned"
)

// EntryReport is the outcome for one partition.
type EntryReport struct {
	// Volume is the planned partition label
	Volume string `json:"volume"`

	// Installer is the bundle display name
	Installer string `json:"installer"`

	// SizeBytes is the planned partition size
	SizeBytes int64 `json:"size_bytes"`

	// Status is ok, failed, skipped, or planned (dry runs)
	Status string `json:"status"`

	// MountPoint is where the finished media is mounted
	MountPoint string `json:"mount_point,omitempty"`

	// RenamedTo is the final volume name when the tool renamed it
	RenamedTo string `json:"renamed_to,omitempty"`

	// Duration covers this entry's write
	Duration time.Duration `json:"duration,omitempty"`

	// Error is the failure message for failed entries
	Error string `json:"error,omitempty"`
}

// Report outcomes.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeDryRun  = "dry-run"
)

// Report describes one Apply run end to end.
type Report struct {
	// RunID uniquely identifies this run in logs and the journal
	RunID string `json:"run_id"`

	// Disk is the device that was written
	Disk string `json:"disk"`

	// DiskName is the hardware media name
	DiskName string `json:"disk_name,omitempty"`

	// Strategy is the sizing strategy the plan used
	Strategy string `json:"strategy"`

	// Entries is the per-partition outcome, in plan order
	Entries []EntryReport `json:"entries"`

	// Outcome is ok, partial, failed, or dry-run
	Outcome string `json:"outcome"`

	// StartedAt and FinishedAt bound the run
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether every entry was written.
func (r *Report) Succeeded() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeDryRun
}

// ApplyResult represents the result of executing a plan.
type ApplyResult struct {
	// Report is the per-entry outcome
	Report Report
}

// RestoreResult represents the result of erasing a disk back to one volume.
type RestoreResult struct {
	// RunID uniquely identifies this run
	RunID string `json:"run_id"`

	// Disk is the device that was erased
	Disk string `json:"disk"`

	// Format and Name describe the fresh volume
	Format string `json:"format"`
	Name   string `json:"name"`

	// DryRun reports that nothing was touched
	DryRun bool `json:"dry_run"`
}

// ApplyProgress is one progress event during Apply.
type ApplyProgress struct {
	// EntryIndex is the position in the plan, starting at 0
	EntryIndex int

	// EntryCount is the number of entries in the plan
	EntryCount int

	// Installer is the bundle display name
	Installer string

	// Volume is the planned partition label
	Volume string

	// Progress is the underlying write event
	Progress media.Progress
}

// ProgressFunc receives progress events during Apply.
type ProgressFunc func(ApplyProgress)
