package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/avignat/multimac/internal/catalog"
	"github.com/avignat/multimac/internal/clock"
	"github.com/avignat/multimac/internal/config"
	"github.com/avignat/multimac/internal/discovery"
	"github.com/avignat/multimac/internal/diskutil"
	"github.com/avignat/multimac/internal/engine"
	"github.com/avignat/multimac/internal/execx"
	"github.com/avignat/multimac/internal/journal"
	"github.com/avignat/multimac/internal/media"
)

// logger is configured by setupLogging before any command runs.
var logger *slog.Logger

// newEngine creates a new engine with real implementations of all
// dependencies. catalogPath overrides the release catalog; when empty, the
// catalog file under the config root is used if present, the built-in table
// otherwise.
func newEngine(catalogPath string) (*engine.Engine, error) {
	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	fs := afero.NewOsFs()
	if err := paths.EnsureDirectories(fs); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	cat, err := loadCatalog(fs, paths, catalogPath)
	if err != nil {
		return nil, err
	}

	log := logger
	if log == nil {
		log = slog.Default()
	}

	clk := &clock.RealClock{}
	runner := execx.NewRunner()
	disks := diskutil.New(runner)
	finder := discovery.NewFinder(fs, cat, log)
	writer := media.NewWriter(runner, disks, fs, clk, log)
	jnl := journal.New(fs, paths.Journal, clk)

	return engine.New(finder, disks, writer, jnl, clk, log), nil
}

// loadCatalog resolves the release catalog: an explicit --catalog file must
// load, a file at the default location is picked up silently, anything else
// falls back to the built-in table.
func loadCatalog(fs afero.Fs, paths *config.Paths, explicit string) (*catalog.Catalog, error) {
	if explicit != "" {
		cat, err := catalog.Load(fs, explicit)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", explicit, err)
		}
		return cat, nil
	}
	if paths.HasCatalog(fs) {
		cat, err := catalog.Load(fs, paths.Catalog)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog %s: %w", paths.Catalog, err)
		}
		return cat, nil
	}
	return catalog.Default(), nil
}

// requireRoot refuses to run destructive operations unprivileged. diskutil
// eraseDisk and partitionDisk both need root on modern macOS.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return fmt.Errorf("this command erases a disk and must run as root: re-run with sudo")
	}
	return nil
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatError formats an error for display, attaching a remediation hint
// when the disk is held open by another process.
func FormatError(err error) string {
	msg := errorColor.Sprintf("Error: %v", err)
	var busy *diskutil.BusyError
	if errors.As(err, &busy) {
		msg += "\n" + dimColor.Sprintf("  hint: %s", busy.Hint())
	}
	return msg
}
