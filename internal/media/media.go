// Package media turns one prepared partition into bootable installer media
// by running the installer bundle's own createinstallmedia tool and watching
// its output.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/clock"
	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/execx"
	"github.com/avignat/multimac/internal/units"
)

// ErrVolumeNotFound reports that the target partition's volume never showed
// up under /Volumes.
var ErrVolumeNotFound = errors.New("target volume not found")

// ErrVerification reports media that finished writing but does not look like
// a bootable installer.
var ErrVerification = errors.New("media verification failed")

// WriteError wraps a failure to produce media for one installer. The other
// entries on the disk are unaffected.
type WriteError struct {
	Installer string
	Volume    string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s to %s: %v", e.Installer, e.Volume, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Writer drives createinstallmedia for one partition at a time.
type Writer struct {
	runner execx.Runner
	disks  diskutil.Client
	fs     afero.Fs
	clock  clock.Clock
	log    *slog.Logger

	// waitTimeout bounds how long a freshly created volume may take to
	// mount before the writer falls back to a keyword search.
	waitTimeout  time.Duration
	pollInterval time.Duration
}

// NewWriter wires a Writer. A nil logger falls back to slog.Default.
func NewWriter(runner execx.Runner, disks diskutil.Client, fsys afero.Fs, clk clock.Clock, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{
		runner:       runner,
		disks:        disks,
		fs:           fsys,
		clock:        clk,
		log:          log,
		waitTimeout:  30 * time.Second,
		pollInterval: time.Second,
	}
}

// WriteRequest names one partition to fill.
type WriteRequest struct {
	// Installer is the bundle to write.
	Installer discovery.Installer

	// Volume is the partition label the plan assigned.
	Volume string

	// Disk is the target disk. The writer refuses volumes that mounted
	// from any other disk, which happens when a label collides with a
	// volume that was already mounted.
	Disk diskutil.Disk
}

// WriteResult describes finished media.
type WriteResult struct {
	// MountPoint is where the finished volume is mounted.
	// createinstallmedia renames the volume, so this usually differs from
	// the planned label.
	MountPoint string

	// RenamedTo is the final volume name when the tool renamed it.
	RenamedTo string

	// Duration covers the createinstallmedia run alone.
	Duration time.Duration
}

// Write fills one partition with installer media. Progress events stream to
// onProgress as createinstallmedia reports them; onProgress may be nil.
func (w *Writer) Write(ctx context.Context, req WriteRequest, onProgress ProgressFunc) (WriteResult, error) {
	fail := func(err error) (WriteResult, error) {
		return WriteResult{}, &WriteError{Installer: req.Installer.DisplayName(), Volume: req.Volume, Err: err}
	}

	if err := w.validateTool(req.Installer); err != nil {
		return fail(err)
	}

	mount, err := w.locateVolume(ctx, req.Volume, req.Installer.Release.Keyword, req.Disk.Identifier)
	if err != nil {
		return fail(err)
	}

	w.log.Info("writing installer media",
		"installer", req.Installer.DisplayName(),
		"volume", mount,
		"disk", req.Disk.Device)

	tracker := newProgressTracker(onProgress)
	start := w.clock.Now()
	_, err = w.runner.Stream(ctx, tracker.observe,
		req.Installer.ToolPath,
		"--volume", mount,
		"--applicationpath", req.Installer.Path,
		"--nointeraction")
	duration := w.clock.Now().Sub(start)
	if err != nil {
		return fail(err)
	}

	res := WriteResult{MountPoint: mount, Duration: duration}
	final := tracker.finalPath()
	if final == "" {
		final = w.findRenamed(ctx, req)
	}
	if final != "" && final != mount {
		res.MountPoint = final
		res.RenamedTo = filepath.Base(final)
	}

	if err := w.verify(ctx, res.MountPoint); err != nil {
		return fail(err)
	}

	w.log.Info("installer media ready",
		"installer", req.Installer.DisplayName(),
		"mount", res.MountPoint,
		"took", duration.Round(time.Second))
	return res, nil
}

func (w *Writer) validateTool(inst discovery.Installer) error {
	info, err := w.fs.Stat(inst.ToolPath)
	if err != nil {
		return fmt.Errorf("createinstallmedia missing from bundle: %w", err)
	}
	if !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
		return fmt.Errorf("createinstallmedia at %s is not executable", inst.ToolPath)
	}
	return nil
}

// locateVolume waits for the planned label to mount, then falls back to a
// keyword scan of /Volumes. Either way the volume must live on the target
// disk.
func (w *Writer) locateVolume(ctx context.Context, label, keyword, diskID string) (string, error) {
	exact := filepath.Join("/Volumes", label)
	deadline := w.clock.Now().Add(w.waitTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if ok, _ := afero.DirExists(w.fs, exact); ok {
			if w.ownedBy(ctx, exact, diskID) {
				return exact, nil
			}
			// A volume with our label exists on some other disk; ours
			// mounted under a deduplicated name.
			break
		}
		if !w.clock.Now().Before(deadline) {
			break
		}
		w.clock.Sleep(w.pollInterval)
	}

	names, err := readVolumeNames(w.fs)
	if err != nil {
		return "", fmt.Errorf("%w: %s (%v)", ErrVolumeNotFound, label, err)
	}
	for _, name := range names {
		if !keywordMatches(keyword, name) {
			continue
		}
		path := filepath.Join("/Volumes", name)
		if w.ownedBy(ctx, path, diskID) {
			w.log.Debug("located volume by keyword", "wanted", label, "found", name)
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrVolumeNotFound, label)
}

func (w *Writer) ownedBy(ctx context.Context, mount, diskID string) bool {
	v, err := w.disks.VolumeInfo(ctx, mount)
	if err != nil {
		return false
	}
	return v.ParentDisk == diskID
}

// findRenamed looks for the volume createinstallmedia renamed when the done
// line did not announce the new path.
func (w *Writer) findRenamed(ctx context.Context, req WriteRequest) string {
	names, err := readVolumeNames(w.fs)
	if err != nil {
		return ""
	}
	for _, name := range names {
		if !keywordMatches(req.Installer.Release.Keyword, name) {
			continue
		}
		path := filepath.Join("/Volumes", name)
		if w.ownedBy(ctx, path, req.Disk.Identifier) {
			return path
		}
	}
	return ""
}

// Directory entries a finished installer volume is expected to carry.
var expectedItems = map[string]bool{
	"Applications":   true,
	"System":         true,
	"Library":        true,
	"BaseSystem.dmg": true,
	"InstallESD.dmg": true,
}

var expectedPrefixes = []string{"Install macOS", "Install OS X"}

// minVerifySize is the fallback: a volume this large that survived the write
// is counted as media even when its layout is unfamiliar.
const minVerifySize = 4 * units.GB

func (w *Writer) verify(ctx context.Context, mount string) error {
	entries, err := afero.ReadDir(w.fs, mount)
	if err != nil {
		return fmt.Errorf("%w: cannot read %s: %v", ErrVerification, mount, err)
	}

	for _, entry := range entries {
		if expectedItems[entry.Name()] {
			return nil
		}
		for _, prefix := range expectedPrefixes {
			if strings.HasPrefix(entry.Name(), prefix) {
				return nil
			}
		}
	}

	var total int64
	walkErr := afero.Walk(w.fs, mount, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if walkErr != nil {
		return walkErr
	}
	if total >= minVerifySize {
		return nil
	}
	return fmt.Errorf("%w: %s has no installer layout and only %d bytes", ErrVerification, mount, total)
}

func readVolumeNames(fsys afero.Fs) ([]string, error) {
	entries, err := afero.ReadDir(fsys, "/Volumes")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// volume name words that carry no identity.
var stopwords = map[string]bool{"os": true, "x": true, "macos": true, "install": true}

// keywordMatches reports whether every meaningful word of the release
// keyword appears in the volume name, so "INSTALL_SONOMA 1" and
// "Install macOS Sonoma" both match the Sonoma keyword.
func keywordMatches(keyword, volumeName string) bool {
	want := tokens(keyword)
	if len(want) == 0 {
		return false
	}
	have := make(map[string]bool)
	for _, t := range tokens(volumeName) {
		have[t] = true
	}
	for _, t := range want {
		if !have[t] {
			return false
		}
	}
	return true
}

func tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}
