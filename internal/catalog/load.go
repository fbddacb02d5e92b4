package catalog

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/avignat/multimac/internal/units"
)

// fileDTO mirrors the YAML catalog file layout.
type fileDTO struct {
	Releases []releaseDTO `yaml:"releases"`
}

type releaseDTO struct {
	Name    string  `yaml:"name"`
	Keyword string  `yaml:"keyword"`
	Volume  string  `yaml:"volume"`
	MinGB   float64 `yaml:"min_gb"`
}

// Load reads a catalog from a YAML file. The file replaces the built-in
// table entirely, so a custom catalog lists every release it wants matched.
// Omitted fields are derived: keyword defaults to the name's last words
// after the macOS/OS X prefix, volume to an INSTALL_ label built from the
// name, and min_gb to 16.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var dto fileDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(dto.Releases) == 0 {
		return nil, fmt.Errorf("catalog file %s lists no releases", path)
	}

	releases := make([]Release, 0, len(dto.Releases))
	for i, d := range dto.Releases {
		r, err := d.toRelease()
		if err != nil {
			return nil, fmt.Errorf("catalog file %s, release %d: %w", path, i+1, err)
		}
		releases = append(releases, r)
	}
	return &Catalog{releases: releases}, nil
}

func (d releaseDTO) toRelease() (Release, error) {
	r := Release{
		Name:    d.Name,
		Keyword: d.Keyword,
		Volume:  d.Volume,
	}
	if r.Keyword == "" {
		r.Keyword = defaultKeyword(d.Name)
	}
	if r.Volume == "" {
		r.Volume = deriveVolume(d.Name)
	}
	if d.MinGB == 0 {
		r.MinBytes = 16 * units.GB
	} else {
		r.MinBytes = int64(d.MinGB * float64(units.GB))
	}
	if err := r.validate(); err != nil {
		return Release{}, err
	}
	return r, nil
}

// defaultKeyword strips the product prefix so "macOS Sonoma" matches bundles
// named "Install macOS Sonoma.app" by the distinctive part alone.
func defaultKeyword(name string) string {
	s := strings.TrimPrefix(name, "macOS ")
	return strings.TrimPrefix(s, "OS X ")
}
