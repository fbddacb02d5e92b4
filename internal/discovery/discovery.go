// Package discovery locates macOS installer applications on the local
// machine and sizes them for partition planning.
package discovery

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"howett.net/plist"

	"github.com/avignat/multimac/internal/catalog"
	"github.com/avignat/multimac/internal/units"
)

// SizeMargin is the headroom added on top of an installer bundle when
// deriving the partition size it needs. createinstallmedia copies the bundle
// and writes a base system next to it.
const SizeMargin = 2 * units.GB

// minFullInstaller separates complete installers from the ~20 MB stubs the
// App Store leaves behind when a download is interrupted.
const minFullInstaller = 4 * units.GB

// Installer is one discovered "Install macOS *.app" bundle.
type Installer struct {
	// Release is the catalog entry the bundle matched.
	Release catalog.Release

	// Path is the absolute bundle path.
	Path string

	// BundleName is the file name, e.g. "Install macOS Sonoma.app".
	BundleName string

	// Version is the bundle's CFBundleShortVersionString, if readable.
	Version string

	// SizeBytes is the total size of the bundle contents.
	SizeBytes int64

	// ToolPath is where createinstallmedia should live inside the bundle.
	ToolPath string

	// HasTool reports whether ToolPath exists and is executable.
	HasTool bool
}

// DisplayName is the bundle name without the .app suffix.
func (i Installer) DisplayName() string {
	return strings.TrimSuffix(i.BundleName, ".app")
}

// Incomplete reports a stub bundle too small to be a real installer.
func (i Installer) Incomplete() bool {
	return i.SizeBytes < minFullInstaller
}

// Usable reports whether media can be created from this bundle.
func (i Installer) Usable() bool {
	return i.HasTool && !i.Incomplete()
}

// RequiredBytes is the partition size this installer needs: the release
// minimum, or the bundle plus margin when the bundle is unusually large.
func (i Installer) RequiredBytes() int64 {
	need := i.SizeBytes + SizeMargin
	if i.Release.MinBytes > need {
		return i.Release.MinBytes
	}
	return need
}

// Finder scans application directories for installer bundles.
type Finder struct {
	fs  afero.Fs
	cat *catalog.Catalog
	log *slog.Logger
}

// NewFinder returns a Finder over the given filesystem and catalog.
func NewFinder(fsys afero.Fs, cat *catalog.Catalog, log *slog.Logger) *Finder {
	if log == nil {
		log = slog.Default()
	}
	return &Finder{fs: fsys, cat: cat, log: log}
}

// Scan walks the given directories and returns one installer per catalog
// release, in catalog order. Within a directory, bundles are considered in
// name order, and a bundle claimed by one release is not offered to later
// ones, so "Install macOS High Sierra.app" never doubles as plain Sierra.
func (f *Finder) Scan(ctx context.Context, dirs ...string) ([]Installer, error) {
	if len(dirs) == 0 {
		dirs = []string{"/Applications"}
	}

	type candidate struct {
		release catalog.Release
		path    string
		name    string
	}
	var candidates []candidate
	claimed := make(map[string]bool)

	for _, dir := range dirs {
		entries, err := afero.ReadDir(f.fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read applications directory %s: %w", dir, err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !entry.IsDir() {
				continue
			}
			release, ok := f.cat.Match(entry.Name())
			if !ok {
				continue
			}
			if claimed[release.Name] {
				f.log.Debug("skipping duplicate installer", "bundle", entry.Name(), "release", release.Name)
				continue
			}
			claimed[release.Name] = true
			candidates = append(candidates, candidate{
				release: release,
				path:    filepath.Join(dir, entry.Name()),
				name:    entry.Name(),
			})
		}
	}

	// Report in catalog order regardless of which directory held what.
	order := make(map[string]int, f.cat.Len())
	for i, r := range f.cat.Releases() {
		order[r.Name] = i
	}
	sort.Slice(candidates, func(i, j int) bool {
		return order[candidates[i].release.Name] < order[candidates[j].release.Name]
	})

	installers := make([]Installer, 0, len(candidates))
	for _, c := range candidates {
		inst, err := f.inspect(ctx, c.release, c.path, c.name)
		if err != nil {
			return nil, err
		}
		installers = append(installers, inst)
	}
	return installers, nil
}

func (f *Finder) inspect(ctx context.Context, release catalog.Release, path, name string) (Installer, error) {
	inst := Installer{
		Release:    release,
		Path:       path,
		BundleName: name,
		ToolPath:   filepath.Join(path, "Contents", "Resources", "createinstallmedia"),
	}

	if info, err := f.fs.Stat(inst.ToolPath); err == nil {
		inst.HasTool = info.Mode().IsRegular() && info.Mode()&0o111 != 0
	}

	inst.Version = f.bundleVersion(path)

	size, err := f.bundleSize(ctx, path)
	if err != nil {
		return Installer{}, fmt.Errorf("failed to size %s: %w", name, err)
	}
	inst.SizeBytes = size

	f.log.Debug("found installer",
		"bundle", name,
		"version", inst.Version,
		"size", units.FormatSize(size),
		"usable", inst.Usable())
	return inst, nil
}

// bundleInfoDTO mirrors the keys read from Contents/Info.plist.
type bundleInfoDTO struct {
	CFBundleShortVersionString string `plist:"CFBundleShortVersionString"`
}

func (f *Finder) bundleVersion(bundlePath string) string {
	data, err := afero.ReadFile(f.fs, filepath.Join(bundlePath, "Contents", "Info.plist"))
	if err != nil {
		f.log.Debug("bundle has no readable Info.plist", "bundle", bundlePath, "error", err)
		return ""
	}
	var dto bundleInfoDTO
	if _, err := plist.Unmarshal(data, &dto); err != nil {
		f.log.Debug("failed to parse Info.plist", "bundle", bundlePath, "error", err)
		return ""
	}
	return dto.CFBundleShortVersionString
}

func (f *Finder) bundleSize(ctx context.Context, bundlePath string) (int64, error) {
	var total int64
	err := afero.Walk(f.fs, bundlePath, func(_ string, info fs.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
