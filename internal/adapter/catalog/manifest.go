package catalog

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Entry describes one artwork in a catalog manifest.
type Entry struct {
	ID          int64  `yaml:"id,omitempty"`
	Name        string `yaml:"name"`
	Artist      string `yaml:"artist,omitempty"`
	Description string `yaml:"description,omitempty"`
	Image       string `yaml:"image"` // relative to the manifest's directory
}

// Manifest is the catalog.yaml file format.
type Manifest struct {
	Artworks []Entry `yaml:"artworks"`
}

// Load reads a manifest. A missing file returns (nil, nil).
func Load(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", file, err)
	}
	return &m, nil
}

// Validate checks that every entry names an image and that IDs are unique.
func (m *Manifest) Validate() error {
	seen := make(map[int64]int)
	for i, e := range m.Artworks {
		if strings.TrimSpace(e.Image) == "" {
			return fmt.Errorf("artwork #%d (%q) has no image", i+1, e.Name)
		}
		if e.ID < 0 {
			return fmt.Errorf("artwork #%d (%q) has a negative id", i+1, e.Name)
		}
		if e.ID != 0 {
			if prev, dup := seen[e.ID]; dup {
				return fmt.Errorf("artworks #%d and #%d share id %d", prev, i+1, e.ID)
			}
			seen[e.ID] = i + 1
		}
	}
	return nil
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(file string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}

// EntryFromPath derives an entry from an image path when there is no
// manifest: "monet/water_lilies-1906.jpg" becomes name "Water Lilies 1906"
// with artist "Monet" taken from the parent directory.
func EntryFromPath(rel string) Entry {
	rel = filepath.ToSlash(rel)
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))

	var artist string
	if dir := path.Dir(rel); dir != "." {
		artist = titleCase(path.Base(dir))
	}
	return Entry{
		Name:   titleCase(base),
		Artist: artist,
		Image:  rel,
	}
}

func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
