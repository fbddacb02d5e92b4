package integration

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/engine"
)

func TestRestore_FullCycle(t *testing.T) {
	fx := setupEngine(t)
	ctx := context.Background()

	fx.addDisk(t, 256060514304)

	// The disk starts with two installer volumes from an earlier run.
	fx.disks.SetVolume(diskutil.Volume{
		Name:       "INSTALL_SONOMA",
		MountPoint: "/Volumes/INSTALL_SONOMA",
		Identifier: "disk2s1",
		ParentDisk: "disk2",
	})
	fx.disks.SetVolume(diskutil.Volume{
		Name:       "INSTALL_VENTURA",
		MountPoint: "/Volumes/INSTALL_VENTURA",
		Identifier: "disk2s2",
		ParentDisk: "disk2",
	})

	res, err := fx.engine.Restore(ctx, engine.RestoreRequest{Disk: "disk2", Confirmed: true})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if res.Format != "ExFAT" || res.Name != "USB_DISK" {
		t.Errorf("restore result = %+v", res)
	}

	// The disk ends up as one fresh volume
	disk, err := fx.disks.Info(ctx, "/dev/disk2")
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if len(disk.Partitions) != 1 {
		t.Fatalf("partitions after restore = %+v", disk.Partitions)
	}
	if disk.Partitions[0].VolumeName != "USB_DISK" || disk.Partitions[0].Content != "ExFAT" {
		t.Errorf("restored partition = %+v", disk.Partitions[0])
	}

	// The installer mounts are gone
	if ok, _ := afero.DirExists(fx.fs, "/Volumes/INSTALL_SONOMA"); ok {
		t.Error("old volume still mounted")
	}

	records := fx.journalRecords(t)
	if len(records) != 1 || records[0].Action != "restore" || records[0].Outcome != "ok" {
		t.Errorf("journal = %+v", records)
	}
	if records[0].RunID != res.RunID {
		t.Errorf("journal run id = %q, result = %q", records[0].RunID, res.RunID)
	}
}

func TestRestore_DryRunTouchesNothing(t *testing.T) {
	fx := setupEngine(t)
	ctx := context.Background()

	fx.addDisk(t, 256060514304)

	res, err := fx.engine.Restore(ctx, engine.RestoreRequest{Disk: "disk2", DryRun: true})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if !res.DryRun {
		t.Error("DryRun = false")
	}
	if len(fx.disks.UnmountCalls)+len(fx.disks.EraseCalls) != 0 {
		t.Error("dry run touched the disk")
	}
	if fx.journalRecords(t) != nil {
		t.Error("dry run was journaled")
	}
}
