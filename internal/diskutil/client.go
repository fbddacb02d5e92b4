package diskutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"howett.net/plist"

	"github.com/avignat/multimac/internal/execx"
)

// RealClient shells out to /usr/sbin/diskutil.
type RealClient struct {
	runner execx.Runner
}

// New returns a Client backed by the given runner.
func New(runner execx.Runner) *RealClient {
	return &RealClient{runner: runner}
}

// listDTO mirrors `diskutil list -plist`.
type listDTO struct {
	AllDisksAndPartitions []listDiskDTO `plist:"AllDisksAndPartitions"`
}

type listDiskDTO struct {
	DeviceIdentifier string             `plist:"DeviceIdentifier"`
	Size             int64              `plist:"Size"`
	Content          string             `plist:"Content"`
	Partitions       []listPartitionDTO `plist:"Partitions"`
}

type listPartitionDTO struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	VolumeName       string `plist:"VolumeName"`
	MountPoint       string `plist:"MountPoint"`
	Size             int64  `plist:"Size"`
	Content          string `plist:"Content"`
}

// infoDTO mirrors `diskutil info -plist <target>`. Only the keys this
// program reads are listed.
type infoDTO struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	DeviceNode       string `plist:"DeviceNode"`
	MediaName        string `plist:"MediaName"`
	VolumeName       string `plist:"VolumeName"`
	MountPoint       string `plist:"MountPoint"`
	ParentWholeDisk  string `plist:"ParentWholeDisk"`
	TotalSize        int64  `plist:"TotalSize"`
	Size             int64  `plist:"Size"`
	Content          string `plist:"Content"`
	FilesystemType   string `plist:"FilesystemType"`
	BusProtocol      string `plist:"BusProtocol"`
	Ejectable        bool   `plist:"Ejectable"`
	Internal         bool   `plist:"Internal"`
	WholeDisk        bool   `plist:"WholeDisk"`
}

func (c *RealClient) ListExternal(ctx context.Context) ([]Disk, error) {
	res, err := c.runner.Output(ctx, "diskutil", "list", "-plist")
	if err != nil {
		return nil, fmt.Errorf("failed to list disks: %w", err)
	}

	var dto listDTO
	if _, err := plist.Unmarshal(res.Stdout, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse disk list: %w", err)
	}

	var disks []Disk
	for _, entry := range dto.AllDisksAndPartitions {
		d, err := c.Info(ctx, entry.DeviceIdentifier)
		if err != nil {
			// The disk may have been unplugged between list and info.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if !d.IsCandidate() {
			continue
		}
		d.Partitions = partitionsFromList(entry)
		disks = append(disks, d)
	}

	sort.Slice(disks, func(i, j int) bool {
		return identifierLess(disks[i].Identifier, disks[j].Identifier)
	})
	return disks, nil
}

func partitionsFromList(entry listDiskDTO) []Partition {
	if len(entry.Partitions) == 0 {
		return nil
	}
	parts := make([]Partition, 0, len(entry.Partitions))
	for _, p := range entry.Partitions {
		parts = append(parts, Partition{
			Identifier: p.DeviceIdentifier,
			VolumeName: p.VolumeName,
			MountPoint: p.MountPoint,
			SizeBytes:  p.Size,
			Content:    p.Content,
		})
	}
	return parts
}

// identifierLess orders "disk2" before "disk10".
func identifierLess(a, b string) bool {
	an, aok := diskNumber(a)
	bn, bok := diskNumber(b)
	if aok && bok {
		return an < bn
	}
	return a < b
}

func diskNumber(id string) (int, bool) {
	rest := strings.TrimPrefix(id, "disk")
	if rest == id {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *RealClient) Info(ctx context.Context, target string) (Disk, error) {
	dto, err := c.info(ctx, target)
	if err != nil {
		return Disk{}, err
	}
	size := dto.TotalSize
	if size == 0 {
		size = dto.Size
	}
	return Disk{
		Identifier:  dto.DeviceIdentifier,
		Device:      dto.DeviceNode,
		Name:        dto.MediaName,
		SizeBytes:   size,
		Scheme:      dto.Content,
		BusProtocol: dto.BusProtocol,
		Ejectable:   dto.Ejectable,
		Internal:    dto.Internal,
		Whole:       dto.WholeDisk,
	}, nil
}

func (c *RealClient) VolumeInfo(ctx context.Context, target string) (Volume, error) {
	dto, err := c.info(ctx, target)
	if err != nil {
		return Volume{}, err
	}
	size := dto.TotalSize
	if size == 0 {
		size = dto.Size
	}
	return Volume{
		Name:           dto.VolumeName,
		MountPoint:     dto.MountPoint,
		Identifier:     dto.DeviceIdentifier,
		ParentDisk:     dto.ParentWholeDisk,
		SizeBytes:      size,
		FilesystemType: dto.FilesystemType,
	}, nil
}

func (c *RealClient) info(ctx context.Context, target string) (infoDTO, error) {
	res, err := c.runner.Output(ctx, "diskutil", "info", "-plist", target)
	if err != nil {
		return infoDTO{}, fmt.Errorf("failed to get info for %s: %w", target, err)
	}
	var dto infoDTO
	if _, err := plist.Unmarshal(res.Stdout, &dto); err != nil {
		return infoDTO{}, fmt.Errorf("failed to parse info for %s: %w", target, err)
	}
	return dto, nil
}

func (c *RealClient) UnmountDisk(ctx context.Context, device string) error {
	res, err := c.runner.Output(ctx, "diskutil", "unmountDisk", device)
	if err == nil {
		return nil
	}
	var ee *execx.ExitError
	if errors.As(err, &ee) {
		output := string(res.Stdout) + "\n" + string(res.Stderr)
		if busy := parseBusy(device, output); busy != nil {
			return busy
		}
	}
	return fmt.Errorf("failed to unmount %s: %w", device, err)
}

func (c *RealClient) PartitionDisk(ctx context.Context, device, scheme string, specs []PartitionSpec) error {
	args, err := partitionArgs(device, scheme, specs)
	if err != nil {
		return err
	}
	if _, err := c.runner.Output(ctx, "diskutil", args...); err != nil {
		return fmt.Errorf("failed to partition %s: %w", device, err)
	}
	return nil
}

// partitionArgs builds the partitionDisk argument list:
//
//	partitionDisk /dev/disk2 3 GPT JHFS+ A 16.0G JHFS+ B 16.0G JHFS+ C 0b
func partitionArgs(device, scheme string, specs []PartitionSpec) ([]string, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no partitions specified for %s", device)
	}
	args := []string{"partitionDisk", device, strconv.Itoa(len(specs)), scheme}
	for i, s := range specs {
		if s.Size == "0b" && i != len(specs)-1 {
			return nil, fmt.Errorf("partition %s: only the final partition may take the remainder", s.Name)
		}
		args = append(args, s.Format, s.Name, s.Size)
	}
	return args, nil
}

func (c *RealClient) EraseDisk(ctx context.Context, device, format, name string) error {
	if _, err := c.runner.Output(ctx, "diskutil", "eraseDisk", format, name, device); err != nil {
		return fmt.Errorf("failed to erase %s: %w", device, err)
	}
	return nil
}
