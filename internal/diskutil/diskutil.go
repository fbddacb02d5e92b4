// Package diskutil drives the macOS diskutil tool and parses its plist
// output into Go types. All mutations of disk state in this program funnel
// through the Client interface here.
package diskutil

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Disk describes one whole disk as diskutil reports it.
type Disk struct {
	// Identifier is the BSD name without the /dev prefix, e.g. "disk2".
	Identifier string

	// Device is the device node, e.g. "/dev/disk2".
	Device string

	// Name is the hardware media name, e.g. "SanDisk Ultra Media".
	Name string

	// SizeBytes is the raw capacity of the whole disk.
	SizeBytes int64

	// Scheme is the partition scheme content, e.g. "GUID_partition_scheme".
	Scheme string

	// BusProtocol is the attachment bus, e.g. "USB".
	BusProtocol string

	Ejectable bool
	Internal  bool
	Whole     bool

	// Partitions lists the current slices of the disk, for display only.
	Partitions []Partition
}

// Partition is one existing slice of a disk.
type Partition struct {
	Identifier string
	VolumeName string
	MountPoint string
	SizeBytes  int64
	Content    string
}

// schemes diskutil can repartition without converting the disk first.
var supportedSchemes = map[string]bool{
	"GUID_partition_scheme":  true,
	"FDisk_partition_scheme": true,
	"Apple_partition_scheme": true,
}

// IsCandidate reports whether the disk is a safe target for installer media:
// an ejectable, non-internal whole disk with a recognized partition scheme.
func (d Disk) IsCandidate() bool {
	return d.Ejectable && !d.Internal && d.Whole && supportedSchemes[d.Scheme]
}

// PartitionSpec describes one slice for PartitionDisk.
type PartitionSpec struct {
	// Format is the filesystem personality, e.g. "JHFS+".
	Format string

	// Name is the volume label.
	Name string

	// Size is a diskutil size token such as "16.0G", or "0b" to take the
	// rest of the disk. Only the final spec may use "0b".
	Size string
}

// Volume describes one mounted (or mountable) volume.
type Volume struct {
	// Name is the volume label, e.g. "INSTALL_SONOMA".
	Name string

	// MountPoint is where the volume is mounted, or "" if it is not.
	MountPoint string

	// Identifier is the slice BSD name, e.g. "disk2s2".
	Identifier string

	// ParentDisk is the whole disk carrying the volume, e.g. "disk2".
	ParentDisk string

	SizeBytes      int64
	FilesystemType string
}

// Client is the surface of diskutil this program uses.
type Client interface {
	// ListExternal returns every candidate external disk, ordered by
	// device identifier.
	ListExternal(ctx context.Context) ([]Disk, error)

	// Info describes a single whole disk by device node or identifier.
	Info(ctx context.Context, target string) (Disk, error)

	// VolumeInfo describes a volume by device node, slice identifier, or
	// mount point.
	VolumeInfo(ctx context.Context, target string) (Volume, error)

	// UnmountDisk unmounts every volume on the disk. A *BusyError reports
	// the process holding a volume open.
	UnmountDisk(ctx context.Context, device string) error

	// PartitionDisk erases the disk and lays down the given slices under
	// the scheme ("GPT", "MBR" or "APM").
	PartitionDisk(ctx context.Context, device, scheme string, specs []PartitionSpec) error

	// EraseDisk reformats the whole disk as a single volume.
	EraseDisk(ctx context.Context, device, format, name string) error
}

// BusyError reports an unmount blocked by a process holding the disk open.
type BusyError struct {
	Device  string
	PID     int
	Process string
}

func (e *BusyError) Error() string {
	if e.Process != "" {
		return fmt.Sprintf("%s is in use by process %d (%s)", e.Device, e.PID, e.Process)
	}
	return fmt.Sprintf("%s is in use by another process", e.Device)
}

// Hint suggests how to release the disk based on the offending process.
func (e *BusyError) Hint() string {
	switch {
	case e.Process == "Finder":
		return "close Finder windows showing this disk and retry"
	case strings.HasPrefix(e.Process, "mds") || e.Process == "mdworker":
		return "Spotlight is indexing the disk; wait a moment or disable indexing with mdutil and retry"
	case e.Process == "Terminal" || strings.Contains(e.Process, "sh"):
		return "a shell has its working directory on the disk; cd elsewhere and retry"
	case e.Process != "":
		return fmt.Sprintf("quit %s (or kill pid %d) and retry", e.Process, e.PID)
	default:
		return "eject the disk in Finder, replug it, and retry"
	}
}

// diskutil phrases unmount failures as:
//
//	Volume INSTALL_SONOMA on disk2s2 failed to unmount: dissented by PID 501 (Finder)
//	... at least one volume could not be unmounted ... in use by process 501 (Finder)
var busyPattern = regexp.MustCompile(`(?:in use by process|dissented by PID) (\d+)(?: \(([^)]*)\))?`)

// parseBusy extracts the blocking process from diskutil output, or returns
// nil when the failure had some other shape.
func parseBusy(device, output string) *BusyError {
	m := busyPattern.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &BusyError{Device: device, PID: pid, Process: m[2]}
}
