// Package catalog defines the set of macOS releases the tool knows how to
// detect and provision media for.
//
// Each release pairs the installer bundle naming convention with the volume
// label used for its partition and the minimum partition size the release's
// createinstallmedia requires. The built-in table can be replaced with a YAML
// file for releases Apple ships after this binary did.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/avignat/multimac/internal/units"
)

// Release describes one macOS version the tool can provision.
type Release struct {
	// Name is the display name, e.g. "macOS Sonoma".
	Name string

	// Keyword is the substring that identifies this release in an installer
	// bundle's file name, e.g. "Sonoma" in "Install macOS Sonoma.app".
	Keyword string

	// Volume is the label given to this release's partition. diskutil
	// restricts JHFS+ labels, so these stay in [A-Z0-9_].
	Volume string

	// MinBytes is the smallest partition createinstallmedia accepts for
	// this release.
	MinBytes int64
}

// Catalog is an ordered list of releases. Order is significant twice over:
// it fixes discovery order (newest first), and more specific keywords must
// precede the keywords they contain ("High Sierra" before "Sierra").
type Catalog struct {
	releases []Release
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return &Catalog{releases: []Release{
		{Name: "macOS Sequoia", Keyword: "Sequoia", Volume: "INSTALL_SEQUOIA", MinBytes: 16 * units.GB},
		{Name: "macOS Sonoma", Keyword: "Sonoma", Volume: "INSTALL_SONOMA", MinBytes: 16 * units.GB},
		{Name: "macOS Ventura", Keyword: "Ventura", Volume: "INSTALL_VENTURA", MinBytes: 16 * units.GB},
		{Name: "macOS Monterey", Keyword: "Monterey", Volume: "INSTALL_MONTEREY", MinBytes: 16 * units.GB},
		{Name: "macOS Big Sur", Keyword: "Big Sur", Volume: "INSTALL_BIGSUR", MinBytes: 16 * units.GB},
		{Name: "macOS Catalina", Keyword: "Catalina", Volume: "INSTALL_CATALINA", MinBytes: 12 * units.GB},
		{Name: "macOS Mojave", Keyword: "Mojave", Volume: "INSTALL_MOJAVE", MinBytes: 12 * units.GB},
		{Name: "macOS High Sierra", Keyword: "High Sierra", Volume: "INSTALL_HIGHSIERRA", MinBytes: 12 * units.GB},
		{Name: "macOS Sierra", Keyword: "Sierra", Volume: "INSTALL_SIERRA", MinBytes: 9 * units.GB},
		{Name: "OS X El Capitan", Keyword: "El Capitan", Volume: "INSTALL_ELCAPITAN", MinBytes: 9 * units.GB},
		{Name: "OS X Yosemite", Keyword: "Yosemite", Volume: "INSTALL_YOSEMITE", MinBytes: 9 * units.GB},
	}}
}

// Releases returns the releases in catalog order.
func (c *Catalog) Releases() []Release {
	return c.releases
}

// Len returns the number of releases.
func (c *Catalog) Len() int {
	return len(c.releases)
}

// Match returns the first release whose naming convention the given bundle
// file name satisfies: the name must carry the ".app" suffix, the word
// "Install", and the release keyword.
func (c *Catalog) Match(bundleName string) (Release, bool) {
	if !strings.HasSuffix(bundleName, ".app") || !strings.Contains(bundleName, "Install") {
		return Release{}, false
	}
	for _, r := range c.releases {
		if strings.Contains(bundleName, r.Keyword) {
			return r, true
		}
	}
	return Release{}, false
}

var volumeLabelPattern = regexp.MustCompile(`^[A-Z0-9_]{1,32}$`)

// validate checks a release loaded from a user-supplied file.
func (r Release) validate() error {
	if r.Name == "" {
		return fmt.Errorf("release name is required")
	}
	if r.Keyword == "" {
		return fmt.Errorf("release %q: keyword is required", r.Name)
	}
	if !volumeLabelPattern.MatchString(r.Volume) {
		return fmt.Errorf("release %q: volume label %q must match %s", r.Name, r.Volume, volumeLabelPattern)
	}
	if r.MinBytes <= 0 {
		return fmt.Errorf("release %q: minimum size must be positive", r.Name)
	}
	return nil
}

// deriveVolume builds a partition label from a release name: the macOS/OS X
// prefix is dropped and the remainder upper-cased with separators removed,
// e.g. "macOS High Sierra" -> "INSTALL_HIGHSIERRA".
func deriveVolume(name string) string {
	s := strings.TrimSpace(name)
	s = strings.TrimPrefix(s, "macOS ")
	s = strings.TrimPrefix(s, "OS X ")
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return "INSTALL_" + b.String()
}
