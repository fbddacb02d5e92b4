package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/catalog"
	"github.com/avignat/multimac/internal/clock"
	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/engine"
	"github.com/avignat/multimac/internal/execx"
	"github.com/avignat/multimac/internal/journal"
	"github.com/avignat/multimac/internal/media"
	"github.com/avignat/multimac/internal/units"
)

const journalPath = "/Users/tester/.multimac/journal.jsonl"

// stubFinder feeds canned installers to the engine. Discovery itself has its
// own tests; here the interesting interactions start at the disk.
type stubFinder struct {
	installers []discovery.Installer
}

func (f *stubFinder) Scan(ctx context.Context, dirs ...string) ([]discovery.Installer, error) {
	return f.installers, nil
}

// fixture is the whole stack wired over fakes: only process execution and
// diskutil are stubbed, everything between the engine and them is real.
type fixture struct {
	engine *engine.Engine
	finder *stubFinder
	fs     afero.Fs
	runner *execx.FakeRunner
	disks  *diskutil.FakeClient
	clock  *clock.FakeClock
}

func setupEngine(t *testing.T) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	runner := execx.NewFakeRunner()
	disks := diskutil.NewFake(fs)
	clk := clock.NewFakeClock(time.Date(2024, 7, 15, 9, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	finder := &stubFinder{}
	writer := media.NewWriter(runner, disks, fs, clk, log)
	jnl := journal.New(fs, journalPath, clk)

	return &fixture{
		engine: engine.New(finder, disks, writer, jnl, clk, log),
		finder: finder,
		fs:     fs,
		runner: runner,
		disks:  disks,
		clock:  clk,
	}
}

// addInstaller registers a canned installer and materializes its
// createinstallmedia binary so the writer's tool check passes.
func (fx *fixture) addInstaller(t *testing.T, name, keyword, volume string, sizeBytes int64) discovery.Installer {
	t.Helper()

	bundle := "Install " + name + ".app"
	inst := discovery.Installer{
		Release: catalog.Release{
			Name:     name,
			Keyword:  keyword,
			Volume:   volume,
			MinBytes: 16 * units.GB,
		},
		Path:       "/Applications/" + bundle,
		BundleName: bundle,
		Version:    "20.1",
		SizeBytes:  sizeBytes,
		ToolPath:   "/Applications/" + bundle + "/Contents/Resources/createinstallmedia",
		HasTool:    true,
	}
	if err := fx.fs.MkdirAll("/Applications/"+bundle+"/Contents/Resources", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fx.fs, inst.ToolPath, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	fx.finder.installers = append(fx.finder.installers, inst)
	return inst
}

// addDisk registers the target disk with the fake diskutil.
func (fx *fixture) addDisk(t *testing.T, sizeBytes int64) diskutil.Disk {
	t.Helper()

	disk := diskutil.Disk{
		Identifier:  "disk2",
		Device:      "/dev/disk2",
		Name:        "SanDisk Ultra Media",
		SizeBytes:   sizeBytes,
		Scheme:      "GUID_partition_scheme",
		BusProtocol: "USB",
		Ejectable:   true,
		Whole:       true,
	}
	fx.disks.AddDisk(disk)
	return disk
}

// seedWrittenVolume plants installer markers under the volume's future mount
// point, standing in for the payload the stubbed createinstallmedia never
// writes. Pre-seeded files survive the fake's unmount because the directory
// is not a registered volume yet.
func (fx *fixture) seedWrittenVolume(t *testing.T, volume string) {
	t.Helper()
	if err := afero.WriteFile(fx.fs, "/Volumes/"+volume+"/BaseSystem.dmg", []byte("dmg"), 0o644); err != nil {
		t.Fatal(err)
	}
}

const toolOutput = `Erasing disk: 0%... 10%... 50%... 100%
Copying installer files to disk...
Copy complete.
Making disk bootable...
Done.`

func cmdline(inst discovery.Installer, volume string) string {
	return strings.Join([]string{
		inst.ToolPath, "--volume", "/Volumes/" + volume, "--applicationpath", inst.Path, "--nointeraction",
	}, " ")
}

// stubToolSuccess scripts a clean createinstallmedia run for the installer.
func (fx *fixture) stubToolSuccess(inst discovery.Installer, volume string) {
	fx.runner.StubOutput(cmdline(inst, volume), toolOutput)
}

// stubToolFailure scripts a failing createinstallmedia run.
func (fx *fixture) stubToolFailure(inst discovery.Installer, volume, stderr string) {
	fx.runner.StubExit(cmdline(inst, volume), 1, stderr)
}

// journalRecords reads back every journal line written so far.
func (fx *fixture) journalRecords(t *testing.T) []journal.Record {
	t.Helper()

	f, err := fx.fs.Open(journalPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []journal.Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec journal.Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			t.Fatalf("bad journal line %q: %v", scanner.Text(), err)
		}
		records = append(records, rec)
	}
	return records
}
