package diskutil

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/execx"
)

const listFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>AllDisksAndPartitions</key>
	<array>
		<dict>
			<key>DeviceIdentifier</key><string>disk0</string>
			<key>Size</key><integer>500277790720</integer>
			<key>Content</key><string>GUID_partition_scheme</string>
		</dict>
		<dict>
			<key>DeviceIdentifier</key><string>disk2</string>
			<key>Size</key><integer>256060514304</integer>
			<key>Content</key><string>GUID_partition_scheme</string>
			<key>Partitions</key>
			<array>
				<dict>
					<key>DeviceIdentifier</key><string>disk2s1</string>
					<key>VolumeName</key><string>OLD_STUFF</string>
					<key>MountPoint</key><string>/Volumes/OLD_STUFF</string>
					<key>Size</key><integer>256060514304</integer>
					<key>Content</key><string>Apple_HFS</string>
				</dict>
			</array>
		</dict>
	</array>
</dict>
</plist>`

const internalInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>DeviceIdentifier</key><string>disk0</string>
	<key>DeviceNode</key><string>/dev/disk0</string>
	<key>MediaName</key><string>APPLE SSD AP0512N</string>
	<key>TotalSize</key><integer>500277790720</integer>
	<key>Content</key><string>GUID_partition_scheme</string>
	<key>BusProtocol</key><string>PCI-Express</string>
	<key>Ejectable</key><false/>
	<key>Internal</key><true/>
	<key>WholeDisk</key><true/>
</dict>
</plist>`

const usbInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>DeviceIdentifier</key><string>disk2</string>
	<key>DeviceNode</key><string>/dev/disk2</string>
	<key>MediaName</key><string>SanDisk Ultra Media</string>
	<key>TotalSize</key><integer>256060514304</integer>
	<key>Content</key><string>GUID_partition_scheme</string>
	<key>BusProtocol</key><string>USB</string>
	<key>Ejectable</key><true/>
	<key>Internal</key><false/>
	<key>WholeDisk</key><true/>
</dict>
</plist>`

const volumeInfoFixture = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>DeviceIdentifier</key><string>disk2s2</string>
	<key>DeviceNode</key><string>/dev/disk2s2</string>
	<key>VolumeName</key><string>INSTALL_SONOMA</string>
	<key>MountPoint</key><string>/Volumes/INSTALL_SONOMA</string>
	<key>ParentWholeDisk</key><string>disk2</string>
	<key>TotalSize</key><integer>17179869184</integer>
	<key>FilesystemType</key><string>hfs</string>
	<key>WholeDisk</key><false/>
</dict>
</plist>`

func TestListExternal(t *testing.T) {
	runner := execx.NewFakeRunner()
	runner.StubOutput("diskutil list -plist", listFixture)
	runner.StubOutput("diskutil info -plist disk0", internalInfoFixture)
	runner.StubOutput("diskutil info -plist disk2", usbInfoFixture)

	c := New(runner)
	disks, err := c.ListExternal(context.Background())
	if err != nil {
		t.Fatalf("ListExternal() error = %v", err)
	}

	if len(disks) != 1 {
		t.Fatalf("ListExternal() returned %d disks, want 1", len(disks))
	}
	d := disks[0]
	if d.Identifier != "disk2" || d.Device != "/dev/disk2" {
		t.Errorf("disk = %s (%s), want disk2 (/dev/disk2)", d.Identifier, d.Device)
	}
	if d.Name != "SanDisk Ultra Media" {
		t.Errorf("Name = %q", d.Name)
	}
	if d.SizeBytes != 256060514304 {
		t.Errorf("SizeBytes = %d", d.SizeBytes)
	}
	if len(d.Partitions) != 1 || d.Partitions[0].VolumeName != "OLD_STUFF" {
		t.Errorf("Partitions = %+v, want the existing OLD_STUFF slice", d.Partitions)
	}
	if !d.IsCandidate() {
		t.Error("USB disk should be a candidate")
	}
}

func TestListExternalSkipsVanishedDisk(t *testing.T) {
	runner := execx.NewFakeRunner()
	runner.StubOutput("diskutil list -plist", listFixture)
	runner.StubExit("diskutil info -plist disk0", 1, "Could not find disk: disk0")
	runner.StubOutput("diskutil info -plist disk2", usbInfoFixture)

	c := New(runner)
	disks, err := c.ListExternal(context.Background())
	if err != nil {
		t.Fatalf("ListExternal() error = %v", err)
	}
	if len(disks) != 1 || disks[0].Identifier != "disk2" {
		t.Errorf("disks = %+v, want just disk2", disks)
	}
}

func TestVolumeInfo(t *testing.T) {
	runner := execx.NewFakeRunner()
	runner.StubOutput("diskutil info -plist /Volumes/INSTALL_SONOMA", volumeInfoFixture)

	c := New(runner)
	v, err := c.VolumeInfo(context.Background(), "/Volumes/INSTALL_SONOMA")
	if err != nil {
		t.Fatalf("VolumeInfo() error = %v", err)
	}
	if v.Name != "INSTALL_SONOMA" {
		t.Errorf("Name = %q", v.Name)
	}
	if v.ParentDisk != "disk2" {
		t.Errorf("ParentDisk = %q, want disk2", v.ParentDisk)
	}
	if v.Identifier != "disk2s2" {
		t.Errorf("Identifier = %q", v.Identifier)
	}
}

func TestUnmountDiskBusy(t *testing.T) {
	tests := []struct {
		name        string
		stderr      string
		wantPID     int
		wantProcess string
	}{
		{
			name:        "in use phrasing",
			stderr:      "Unmount failed: at least one volume is in use by process 501 (Finder)",
			wantPID:     501,
			wantProcess: "Finder",
		},
		{
			name:        "dissented phrasing",
			stderr:      "Volume INSTALL_SONOMA on disk2s2 failed to unmount: dissented by PID 88 (mds)",
			wantPID:     88,
			wantProcess: "mds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := execx.NewFakeRunner()
			runner.StubExit("diskutil unmountDisk /dev/disk2", 1, tt.stderr)

			c := New(runner)
			err := c.UnmountDisk(context.Background(), "/dev/disk2")

			var busy *BusyError
			if !errors.As(err, &busy) {
				t.Fatalf("UnmountDisk() error = %v, want *BusyError", err)
			}
			if busy.PID != tt.wantPID || busy.Process != tt.wantProcess {
				t.Errorf("BusyError = %+v, want pid %d process %q", busy, tt.wantPID, tt.wantProcess)
			}
			if busy.Device != "/dev/disk2" {
				t.Errorf("Device = %q", busy.Device)
			}
			if busy.Hint() == "" {
				t.Error("Hint() is empty")
			}
		})
	}
}

func TestUnmountDiskOtherFailure(t *testing.T) {
	runner := execx.NewFakeRunner()
	runner.StubExit("diskutil unmountDisk /dev/disk2", 1, "Unmount failed for unknown reasons")

	c := New(runner)
	err := c.UnmountDisk(context.Background(), "/dev/disk2")
	if err == nil {
		t.Fatal("UnmountDisk() succeeded, want error")
	}
	var busy *BusyError
	if errors.As(err, &busy) {
		t.Errorf("UnmountDisk() error = *BusyError, want plain failure")
	}
}

func TestPartitionDisk(t *testing.T) {
	specs := []PartitionSpec{
		{Format: "JHFS+", Name: "INSTALL_SONOMA", Size: "16.0G"},
		{Format: "JHFS+", Name: "INSTALL_VENTURA", Size: "0b"},
	}

	runner := execx.NewFakeRunner()
	runner.StubOutput("diskutil partitionDisk /dev/disk2 2 GPT JHFS+ INSTALL_SONOMA 16.0G JHFS+ INSTALL_VENTURA 0b", "Finished partitioning")

	c := New(runner)
	if err := c.PartitionDisk(context.Background(), "/dev/disk2", "GPT", specs); err != nil {
		t.Fatalf("PartitionDisk() error = %v", err)
	}

	lines := runner.CallLines()
	if len(lines) != 1 {
		t.Fatalf("calls = %v", lines)
	}
}

func TestPartitionArgsValidation(t *testing.T) {
	t.Run("remainder not last", func(t *testing.T) {
		_, err := partitionArgs("/dev/disk2", "GPT", []PartitionSpec{
			{Format: "JHFS+", Name: "A", Size: "0b"},
			{Format: "JHFS+", Name: "B", Size: "16.0G"},
		})
		if err == nil {
			t.Error("partitionArgs() accepted 0b in non-final position")
		}
	})

	t.Run("empty specs", func(t *testing.T) {
		if _, err := partitionArgs("/dev/disk2", "GPT", nil); err == nil {
			t.Error("partitionArgs() accepted empty spec list")
		}
	})
}

func TestEraseDisk(t *testing.T) {
	runner := execx.NewFakeRunner()
	runner.StubOutput("diskutil eraseDisk ExFAT USB_DISK /dev/disk2", "Finished erase")

	c := New(runner)
	if err := c.EraseDisk(context.Background(), "/dev/disk2", "ExFAT", "USB_DISK"); err != nil {
		t.Fatalf("EraseDisk() error = %v", err)
	}
}

func TestIdentifierLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"disk2", "disk10", true},
		{"disk10", "disk2", false},
		{"disk2", "disk2", false},
		{"disk2", "weird", true},
	}
	for _, tt := range tests {
		if got := identifierLess(tt.a, tt.b); got != tt.want {
			t.Errorf("identifierLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestFakeClientPartitionMaterializesVolumes(t *testing.T) {
	fs := afero.NewMemMapFs()
	fake := NewFake(fs)
	fake.AddDisk(Disk{
		Identifier: "disk2",
		Device:     "/dev/disk2",
		SizeBytes:  256060514304,
		Scheme:     "GUID_partition_scheme",
		Ejectable:  true,
		Whole:      true,
	})

	specs := []PartitionSpec{
		{Format: "JHFS+", Name: "INSTALL_SONOMA", Size: "16.0G"},
		{Format: "JHFS+", Name: "INSTALL_VENTURA", Size: "0b"},
	}
	if err := fake.PartitionDisk(context.Background(), "/dev/disk2", "GPT", specs); err != nil {
		t.Fatalf("PartitionDisk() error = %v", err)
	}

	for _, mount := range []string{"/Volumes/INSTALL_SONOMA", "/Volumes/INSTALL_VENTURA"} {
		ok, err := afero.DirExists(fs, mount)
		if err != nil || !ok {
			t.Errorf("mount point %s missing (%v)", mount, err)
		}
	}

	v, err := fake.VolumeInfo(context.Background(), "/Volumes/INSTALL_SONOMA")
	if err != nil {
		t.Fatalf("VolumeInfo() error = %v", err)
	}
	if v.ParentDisk != "disk2" {
		t.Errorf("ParentDisk = %q", v.ParentDisk)
	}

	if err := fake.UnmountDisk(context.Background(), "/dev/disk2"); err != nil {
		t.Fatalf("UnmountDisk() error = %v", err)
	}
	if ok, _ := afero.DirExists(fs, "/Volumes/INSTALL_SONOMA"); ok {
		t.Error("mount point survived UnmountDisk")
	}
	if !strings.HasPrefix(fake.UnmountCalls[0], "/dev/disk2") {
		t.Errorf("UnmountCalls = %v", fake.UnmountCalls)
	}
}
