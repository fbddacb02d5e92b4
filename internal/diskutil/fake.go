package diskutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// PartitionCall records one FakeClient.PartitionDisk invocation.
type PartitionCall struct {
	Device string
	Scheme string
	Specs  []PartitionSpec
}

// EraseCall records one FakeClient.EraseDisk invocation.
type EraseCall struct {
	Device string
	Format string
	Name   string
}

// FakeClient is an in-memory Client for tests. Partitioning and erasing
// update the fake's disk table and materialize mount points on the given
// filesystem, so code that waits for volumes to appear works unchanged.
type FakeClient struct {
	mu      sync.Mutex
	fs      afero.Fs
	disks   map[string]Disk
	volumes map[string]Volume

	// Error injection, keyed by device identifier.
	InfoErrs      map[string]error
	UnmountErrs   map[string]error
	PartitionErrs map[string]error
	EraseErrs     map[string]error

	UnmountCalls   []string
	PartitionCalls []PartitionCall
	EraseCalls     []EraseCall
}

// NewFake returns an empty fake whose volumes appear on fs under /Volumes.
func NewFake(fs afero.Fs) *FakeClient {
	return &FakeClient{
		fs:            fs,
		disks:         make(map[string]Disk),
		volumes:       make(map[string]Volume),
		InfoErrs:      make(map[string]error),
		UnmountErrs:   make(map[string]error),
		PartitionErrs: make(map[string]error),
		EraseErrs:     make(map[string]error),
	}
}

// AddDisk registers a disk. The identifier doubles as the lookup key for
// error injection.
func (f *FakeClient) AddDisk(d Disk) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disks[d.Identifier] = d
}

// RemoveDisk simulates the disk being unplugged.
func (f *FakeClient) RemoveDisk(identifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.disks, identifier)
	for key, v := range f.volumes {
		if v.ParentDisk == identifier {
			delete(f.volumes, key)
		}
	}
}

// SetVolume registers a volume under both its mount point and identifier.
func (f *FakeClient) SetVolume(v Volume) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setVolumeLocked(v)
}

func (f *FakeClient) setVolumeLocked(v Volume) {
	if v.MountPoint != "" {
		f.volumes[v.MountPoint] = v
		if f.fs != nil {
			f.fs.MkdirAll(v.MountPoint, 0o755)
		}
	}
	if v.Identifier != "" {
		f.volumes[v.Identifier] = v
	}
}

func identifierOf(device string) string {
	return strings.TrimPrefix(device, "/dev/")
}

func (f *FakeClient) ListExternal(ctx context.Context) ([]Disk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Disk
	for _, d := range f.disks {
		if d.IsCandidate() {
			out = append(out, d)
		}
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if identifierLess(out[j].Identifier, out[i].Identifier) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (f *FakeClient) Info(ctx context.Context, target string) (Disk, error) {
	if err := ctx.Err(); err != nil {
		return Disk{}, err
	}
	id := identifierOf(target)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.InfoErrs[id]; err != nil {
		return Disk{}, err
	}
	d, ok := f.disks[id]
	if !ok {
		return Disk{}, fmt.Errorf("failed to get info for %s: could not find disk", target)
	}
	return d, nil
}

func (f *FakeClient) VolumeInfo(ctx context.Context, target string) (Volume, error) {
	if err := ctx.Err(); err != nil {
		return Volume{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.volumes[target]
	if !ok {
		return Volume{}, fmt.Errorf("failed to get info for %s: could not find disk", target)
	}
	return v, nil
}

func (f *FakeClient) UnmountDisk(ctx context.Context, device string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := identifierOf(device)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.UnmountCalls = append(f.UnmountCalls, device)
	if err := f.UnmountErrs[id]; err != nil {
		return err
	}
	for key, v := range f.volumes {
		if v.ParentDisk != id {
			continue
		}
		if v.MountPoint != "" && f.fs != nil {
			f.fs.RemoveAll(v.MountPoint)
		}
		if key == v.MountPoint {
			delete(f.volumes, key)
			continue
		}
		v.MountPoint = ""
		f.volumes[key] = v
	}
	return nil
}

func (f *FakeClient) PartitionDisk(ctx context.Context, device, scheme string, specs []PartitionSpec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := partitionArgs(device, scheme, specs); err != nil {
		return err
	}
	id := identifierOf(device)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.PartitionCalls = append(f.PartitionCalls, PartitionCall{Device: device, Scheme: scheme, Specs: specs})
	if err := f.PartitionErrs[id]; err != nil {
		return err
	}

	d, ok := f.disks[id]
	if !ok {
		return fmt.Errorf("failed to partition %s: could not find disk", device)
	}

	d.Partitions = nil
	for i, s := range specs {
		slice := fmt.Sprintf("%ss%d", id, i+1)
		d.Partitions = append(d.Partitions, Partition{
			Identifier: slice,
			VolumeName: s.Name,
			MountPoint: "/Volumes/" + s.Name,
			Content:    "Apple_HFS",
		})
		f.setVolumeLocked(Volume{
			Name:           s.Name,
			MountPoint:     "/Volumes/" + s.Name,
			Identifier:     slice,
			ParentDisk:     id,
			FilesystemType: "hfs",
		})
	}
	f.disks[id] = d
	return nil
}

func (f *FakeClient) EraseDisk(ctx context.Context, device, format, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := identifierOf(device)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.EraseCalls = append(f.EraseCalls, EraseCall{Device: device, Format: format, Name: name})
	if err := f.EraseErrs[id]; err != nil {
		return err
	}

	d, ok := f.disks[id]
	if !ok {
		return fmt.Errorf("failed to erase %s: could not find disk", device)
	}

	slice := id + "s1"
	d.Partitions = []Partition{{
		Identifier: slice,
		VolumeName: name,
		MountPoint: "/Volumes/" + name,
		Content:    format,
	}}
	f.disks[id] = d
	f.setVolumeLocked(Volume{
		Name:       name,
		MountPoint: "/Volumes/" + name,
		Identifier: slice,
		ParentDisk: id,
	})
	return nil
}
