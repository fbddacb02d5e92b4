package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/avignat/multimac/internal/catalog"
	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/units"
)

func testDisk(size int64) diskutil.Disk {
	return diskutil.Disk{
		Identifier: "disk2",
		Device:     "/dev/disk2",
		Name:       "SanDisk Ultra Media",
		SizeBytes:  size,
		Scheme:     "GUID_partition_scheme",
		Ejectable:  true,
		Whole:      true,
	}
}

func testInstaller(name, volume string, minGB, sizeGB int64) discovery.Installer {
	return discovery.Installer{
		Release: catalog.Release{
			Name:     name,
			Keyword:  strings.TrimPrefix(name, "macOS "),
			Volume:   volume,
			MinBytes: minGB * units.GB,
		},
		BundleName: "Install " + name + ".app",
		Path:       "/Applications/Install " + name + ".app",
		SizeBytes:  sizeGB * units.GB,
		HasTool:    true,
	}
}

func TestBuildEqualSplit(t *testing.T) {
	disk := testDisk(256060514304)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
		testInstaller("macOS Ventura", "INSTALL_VENTURA", 16, 13),
		testInstaller("macOS Monterey", "INSTALL_MONTEREY", 16, 13),
	}

	plan, err := Build(disk, installers, StrategyEqual)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(plan.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(plan.Entries))
	}

	share := disk.SizeBytes / 3
	for i, e := range plan.Entries[:2] {
		if e.SizeBytes != share {
			t.Errorf("entry %d size = %d, want equal share %d", i, e.SizeBytes, share)
		}
		if e.TakesRemainder {
			t.Errorf("entry %d takes remainder", i)
		}
	}

	last := plan.Entries[2]
	if !last.TakesRemainder {
		t.Error("final entry does not take the remainder")
	}
	if last.SizeBytes >= share {
		t.Errorf("final entry size = %d, want less than share %d after overhead", last.SizeBytes, share)
	}

	if got := plan.Entries[0].Volume; got != "INSTALL_SONOMA" {
		t.Errorf("entry 0 volume = %q", got)
	}

	// Explicit sizes never add up past the disk.
	var explicit int64
	for _, e := range plan.Entries {
		if !e.TakesRemainder {
			explicit += e.SizeBytes
		}
	}
	if explicit > disk.SizeBytes {
		t.Errorf("explicit sizes %d exceed capacity %d", explicit, disk.SizeBytes)
	}
}

func TestBuildEqualCapacityError(t *testing.T) {
	disk := testDisk(32 * units.GB)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
		testInstaller("macOS Ventura", "INSTALL_VENTURA", 16, 13),
		testInstaller("macOS Monterey", "INSTALL_MONTEREY", 16, 13),
	}

	_, err := Build(disk, installers, StrategyEqual)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("Build() error = %v, want ErrCapacity", err)
	}
}

func TestBuildMeasured(t *testing.T) {
	disk := testDisk(256060514304)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
		testInstaller("macOS Big Sur", "INSTALL_BIGSUR", 16, 20),
		testInstaller("macOS Mojave", "INSTALL_MOJAVE", 12, 13),
	}

	plan, err := Build(disk, installers, StrategyMeasured)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if got := plan.Entries[0].SizeBytes; got != 16*units.GB {
		t.Errorf("entry 0 size = %d, want release minimum %d", got, 16*units.GB)
	}
	// A 20 GB bundle outgrows its 16 GB minimum and gets margin instead.
	if got := plan.Entries[1].SizeBytes; got != 20*units.GB+discovery.SizeMargin {
		t.Errorf("entry 1 size = %d, want measured %d", got, 20*units.GB+discovery.SizeMargin)
	}

	last := plan.Entries[2]
	if !last.TakesRemainder {
		t.Error("final entry does not take the remainder")
	}
	wantRemainder := disk.SizeBytes - 16*units.GB - (20*units.GB + discovery.SizeMargin) - 512*units.MB
	if last.SizeBytes != wantRemainder {
		t.Errorf("remainder = %d, want %d", last.SizeBytes, wantRemainder)
	}
}

func TestBuildMeasuredCapacityError(t *testing.T) {
	disk := testDisk(40 * units.GB)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
		testInstaller("macOS Big Sur", "INSTALL_BIGSUR", 16, 20),
		testInstaller("macOS Mojave", "INSTALL_MOJAVE", 12, 13),
	}

	_, err := Build(disk, installers, StrategyMeasured)
	if !errors.Is(err, ErrCapacity) {
		t.Fatalf("Build() error = %v, want ErrCapacity", err)
	}
}

func TestBuildSingleInstaller(t *testing.T) {
	disk := testDisk(64 * units.GB)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
	}

	for _, strategy := range []Strategy{StrategyEqual, StrategyMeasured} {
		plan, err := Build(disk, installers, strategy)
		if err != nil {
			t.Fatalf("Build(%s) error = %v", strategy, err)
		}
		if len(plan.Entries) != 1 || !plan.Entries[0].TakesRemainder {
			t.Errorf("Build(%s) entries = %+v, want one remainder entry", strategy, plan.Entries)
		}
		specs := plan.Specs()
		if specs[0].Size != "0b" {
			t.Errorf("Build(%s) spec size = %q, want 0b", strategy, specs[0].Size)
		}
	}
}

func TestBuildRejections(t *testing.T) {
	disk := testDisk(256 * units.GB)
	sonoma := testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13)

	t.Run("no installers", func(t *testing.T) {
		if _, err := Build(disk, nil, StrategyEqual); err == nil {
			t.Error("Build() accepted empty installer list")
		}
	})

	t.Run("unusable installer", func(t *testing.T) {
		broken := sonoma
		broken.HasTool = false
		if _, err := Build(disk, []discovery.Installer{broken}, StrategyEqual); err == nil {
			t.Error("Build() accepted installer without createinstallmedia")
		}
	})

	t.Run("duplicate volume label", func(t *testing.T) {
		dup := testInstaller("macOS Ventura", "INSTALL_SONOMA", 16, 13)
		if _, err := Build(disk, []discovery.Installer{sonoma, dup}, StrategyEqual); err == nil {
			t.Error("Build() accepted duplicate volume labels")
		}
	})

	t.Run("zero capacity disk", func(t *testing.T) {
		if _, err := Build(diskutil.Disk{Device: "/dev/disk2"}, []discovery.Installer{sonoma}, StrategyEqual); err == nil {
			t.Error("Build() accepted disk without capacity")
		}
	})
}

func TestSpecs(t *testing.T) {
	disk := testDisk(256060514304)
	installers := []discovery.Installer{
		testInstaller("macOS Sonoma", "INSTALL_SONOMA", 16, 13),
		testInstaller("macOS Ventura", "INSTALL_VENTURA", 16, 13),
	}

	plan, err := Build(disk, installers, StrategyMeasured)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	specs := plan.Specs()
	if len(specs) != 2 {
		t.Fatalf("specs = %d, want 2", len(specs))
	}
	if specs[0].Format != "JHFS+" || specs[0].Name != "INSTALL_SONOMA" || specs[0].Size != "16.0G" {
		t.Errorf("spec 0 = %+v", specs[0])
	}
	if specs[1].Size != "0b" {
		t.Errorf("final spec size = %q, want 0b", specs[1].Size)
	}
	if plan.Scheme() != "GPT" {
		t.Errorf("Scheme() = %q, want GPT", plan.Scheme())
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"equal", StrategyEqual, false},
		{"measured", StrategyMeasured, false},
		{"", StrategyEqual, false},
		{"biggest-first", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
