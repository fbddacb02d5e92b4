// Package config manages multimac configuration and filesystem paths.
//
// Configuration includes the locations of multimac data files, which can be
// customized via environment variables. The default root is ~/.multimac/
// containing the release catalog override and the run journal.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Paths contains all the filesystem paths used by multimac.
type Paths struct {
	// Root is the base directory for all multimac data (default: ~/.multimac)
	Root string

	// Catalog is the path to the optional release catalog override
	Catalog string

	// Journal is the path to the destructive-run journal
	Journal string
}

// DefaultPaths returns the default paths for multimac.
// Paths can be overridden with environment variables:
// - MULTIMAC_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("MULTIMAC_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".multimac")
	}

	return &Paths{
		Root:    root,
		Catalog: filepath.Join(root, "catalog.yaml"),
		Journal: filepath.Join(root, "journal.jsonl"),
	}, nil
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories(fsys afero.Fs) error {
	if err := fsys.MkdirAll(p.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", p.Root, err)
	}
	return nil
}

// HasCatalog reports whether a catalog override file is present.
func (p *Paths) HasCatalog(fsys afero.Fs) bool {
	ok, err := afero.Exists(fsys, p.Catalog)
	return err == nil && ok
}
