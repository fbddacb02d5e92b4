package planner

import (
	"errors"
	"fmt"

	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/units"
)

// ErrCapacity reports a disk too small for the requested layout.
var ErrCapacity = errors.New("insufficient disk capacity")

// Strategy selects how partition sizes are chosen.
type Strategy string

const (
	// StrategyEqual splits the disk evenly across all installers. This is
	// the default: every installer gets the same room regardless of era.
	StrategyEqual Strategy = "equal"

	// StrategyMeasured sizes each partition to its installer's measured
	// need and gives the final partition whatever is left.
	StrategyMeasured Strategy = "measured"
)

// ParseStrategy validates a strategy name from the command line.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyEqual, StrategyMeasured:
		return Strategy(s), nil
	case "":
		return StrategyEqual, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (use %q or %q)", s, StrategyEqual, StrategyMeasured)
	}
}

// partitionFormat is the filesystem personality createinstallmedia expects
// to find on its target volume.
const partitionFormat = "JHFS+"

// partitionScheme is the table written to the disk. Intel and Apple silicon
// Macs both boot installers from GPT.
const partitionScheme = "GPT"

// schemeOverhead approximates what the partition table and the EFI system
// partition take off the top of a GPT disk.
const schemeOverhead = 512 * units.MB

// Entry is one planned partition.
type Entry struct {
	// Installer is the bundle this partition will be built from.
	Installer discovery.Installer

	// Volume is the partition label, e.g. "INSTALL_SONOMA".
	Volume string

	// SizeBytes is the planned size. For the remainder entry this is an
	// estimate; diskutil decides the exact figure.
	SizeBytes int64

	// TakesRemainder marks the final entry, which absorbs whatever the
	// explicit slices and scheme overhead leave over.
	TakesRemainder bool
}

// Plan is a complete partition layout for one disk.
type Plan struct {
	// Disk is the target as it looked at planning time.
	Disk diskutil.Disk

	// Strategy records how the entry sizes were chosen.
	Strategy Strategy

	// Entries is the ordered list of partitions to create.
	Entries []Entry
}

// Build lays out one partition per installer on the disk. Unusable
// installers must be filtered out by the caller; Build rejects them.
func Build(disk diskutil.Disk, installers []discovery.Installer, strategy Strategy) (Plan, error) {
	if len(installers) == 0 {
		return Plan{}, fmt.Errorf("no installers to plan for")
	}
	if disk.SizeBytes <= 0 {
		return Plan{}, fmt.Errorf("disk %s reports no capacity", disk.Device)
	}

	seen := make(map[string]string, len(installers))
	for _, inst := range installers {
		if !inst.Usable() {
			return Plan{}, fmt.Errorf("installer %s is not usable for media creation", inst.DisplayName())
		}
		if prev, dup := seen[inst.Release.Volume]; dup {
			return Plan{}, fmt.Errorf("volume label %s claimed by both %s and %s",
				inst.Release.Volume, prev, inst.DisplayName())
		}
		seen[inst.Release.Volume] = inst.DisplayName()
	}

	plan := Plan{Disk: disk, Strategy: strategy}
	var err error
	switch strategy {
	case StrategyEqual:
		plan.Entries, err = equalEntries(disk, installers)
	case StrategyMeasured:
		plan.Entries, err = measuredEntries(disk, installers)
	default:
		return Plan{}, fmt.Errorf("unknown strategy %q", strategy)
	}
	if err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// equalEntries gives every installer capacity/n. The final entry still takes
// the remainder so the scheme overhead never pushes the layout past the end
// of the disk.
func equalEntries(disk diskutil.Disk, installers []discovery.Installer) ([]Entry, error) {
	share := disk.SizeBytes / int64(len(installers))
	// The last slice pays the scheme overhead, so it is the tight one.
	effective := share - schemeOverhead

	for _, inst := range installers {
		if need := inst.RequiredBytes(); effective < need {
			return nil, fmt.Errorf("%w: equal share on %s is %s, but %s needs %s",
				ErrCapacity, disk.Device, units.FormatGB(share),
				inst.DisplayName(), units.FormatGB(need))
		}
	}

	entries := make([]Entry, len(installers))
	for i, inst := range installers {
		entries[i] = Entry{
			Installer: inst,
			Volume:    inst.Release.Volume,
			SizeBytes: share,
		}
	}
	entries[len(entries)-1].TakesRemainder = true
	entries[len(entries)-1].SizeBytes = effective
	return entries, nil
}

// measuredEntries sizes each partition to its installer's need; the final
// partition absorbs the rest of the disk.
func measuredEntries(disk diskutil.Disk, installers []discovery.Installer) ([]Entry, error) {
	var explicit int64
	for _, inst := range installers[:len(installers)-1] {
		explicit += inst.RequiredBytes()
	}

	last := installers[len(installers)-1]
	remainder := disk.SizeBytes - explicit - schemeOverhead
	if remainder < last.RequiredBytes() {
		var total int64
		for _, inst := range installers {
			total += inst.RequiredBytes()
		}
		return nil, fmt.Errorf("%w: %s holds %s but the %d installers need %s",
			ErrCapacity, disk.Device, units.FormatGB(disk.SizeBytes),
			len(installers), units.FormatGB(total+schemeOverhead))
	}

	entries := make([]Entry, len(installers))
	for i, inst := range installers {
		entries[i] = Entry{
			Installer: inst,
			Volume:    inst.Release.Volume,
			SizeBytes: inst.RequiredBytes(),
		}
	}
	entries[len(entries)-1].TakesRemainder = true
	entries[len(entries)-1].SizeBytes = remainder
	return entries, nil
}

// Specs renders the plan as diskutil partition specs. Every entry but the
// last gets an explicit size token; the last takes the remainder.
func (p Plan) Specs() []diskutil.PartitionSpec {
	specs := make([]diskutil.PartitionSpec, len(p.Entries))
	for i, e := range p.Entries {
		size := units.DiskutilSize(e.SizeBytes)
		if e.TakesRemainder {
			size = "0b"
		}
		specs[i] = diskutil.PartitionSpec{
			Format: partitionFormat,
			Name:   e.Volume,
			Size:   size,
		}
	}
	return specs
}

// Scheme is the partition table the plan writes.
func (p Plan) Scheme() string {
	return partitionScheme
}

// TotalPlannedBytes sums the planned entry sizes.
func (p Plan) TotalPlannedBytes() int64 {
	var total int64
	for _, e := range p.Entries {
		total += e.SizeBytes
	}
	return total
}
