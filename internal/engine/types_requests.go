package engine

import "github.com/avignat/multimac/internal/planner"

// DiscoverRequest represents a request to scan for installer bundles.
type DiscoverRequest struct {
	// AppDirs is the list of directories to scan (default: /Applications)
	AppDirs []string
}

// DisksRequest represents a request to list candidate external disks.
type DisksRequest struct{}

// PlanRequest represents a request to lay out partitions for a disk.
type PlanRequest struct {
	// AppDirs is the list of directories to scan (default: /Applications)
	AppDirs []string

	// Disk selects the target by device node or identifier
	Disk string

	// Strategy is the sizing strategy name ("equal" or "measured";
	// empty means equal)
	Strategy string
}

// ApplyRequest represents a request to execute a plan against the disk.
type ApplyRequest struct {
	// Plan is the layout to apply, produced by Plan
	Plan planner.Plan

	// Confirmed acknowledges that the disk will be erased. Without it,
	// Apply refuses to run.
	Confirmed bool

	// DryRun reports what would happen without touching the disk
	DryRun bool

	// OnProgress receives write progress events (may be nil)
	OnProgress ProgressFunc
}

// RestoreRequest represents a request to erase a disk back to one volume.
type RestoreRequest struct {
	// Disk selects the target by device node or identifier
	Disk string

	// Format is the filesystem for the fresh volume (default ExFAT)
	Format string

	// Name is the label for the fresh volume (default USB_DISK)
	Name string

	// Confirmed acknowledges that the disk will be erased
	Confirmed bool

	// DryRun reports what would happen without touching the disk
	DryRun bool
}
