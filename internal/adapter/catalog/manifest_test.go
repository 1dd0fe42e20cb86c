package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "catalog.yaml")
	content := `
artworks:
  - id: 1
    name: The Starry Night
    artist: Vincent van Gogh
    description: Oil on canvas, 1889
    image: vangogh/starry-night.jpg
  - name: Water Lilies
    artist: Claude Monet
    image: monet/water-lilies.jpg
`
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(file)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Artworks) != 2 {
		t.Fatalf("expected 2 artworks, got %d", len(m.Artworks))
	}
	if m.Artworks[0].ID != 1 || m.Artworks[0].Artist != "Vincent van Gogh" {
		t.Errorf("unexpected first entry: %+v", m.Artworks[0])
	}
	if m.Artworks[1].ID != 0 || m.Artworks[1].Image != "monet/water-lilies.jpg" {
		t.Errorf("unexpected second entry: %+v", m.Artworks[1])
	}
}

func TestLoad_Missing(t *testing.T) {
	m, err := Load(filepath.Join(t.TempDir(), "catalog.yaml"))
	if err != nil || m != nil {
		t.Errorf("Load(missing) = %v, %v; want nil, nil", m, err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]Manifest{
		"no image":     {Artworks: []Entry{{Name: "x"}}},
		"negative id":  {Artworks: []Entry{{ID: -1, Name: "x", Image: "x.jpg"}}},
		"duplicate id": {Artworks: []Entry{{ID: 3, Image: "a.jpg"}, {ID: 3, Image: "b.jpg"}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			if err := m.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "catalog.yaml")
	m := &Manifest{Artworks: []Entry{{ID: 7, Name: "Guernica", Artist: "Pablo Picasso", Image: "guernica.png"}}}
	if err := m.Save(file); err != nil {
		t.Fatal(err)
	}
	got, err := Load(file)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Artworks) != 1 || got.Artworks[0] != m.Artworks[0] {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestEntryFromPath(t *testing.T) {
	cases := []struct {
		rel, name, artist string
	}{
		{"monet/water_lilies-1906.jpg", "Water Lilies 1906", "Monet"},
		{"mona-lisa.png", "Mona Lisa", ""},
		{"van-gogh/starry night.JPG", "Starry Night", "Van Gogh"},
	}
	for _, tc := range cases {
		e := EntryFromPath(tc.rel)
		if e.Name != tc.name || e.Artist != tc.artist || e.Image != tc.rel {
			t.Errorf("EntryFromPath(%q) = %+v, want name %q artist %q", tc.rel, e, tc.name, tc.artist)
		}
	}
}
