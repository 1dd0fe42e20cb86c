package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"artscope/internal/adapter/catalog"
	"artscope/internal/adapter/embedding"
	"artscope/internal/adapter/fs"
	"artscope/internal/adapter/memstore"
	"artscope/internal/adapter/store"
	"artscope/internal/port"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func newImporter(st port.ArtworkStore, ext port.Extractor) *ImportUseCase {
	walker := fs.NewWalker([]string{"**/*.jpg", "**/*.png"}, []string{"**/.artscope/**"})
	return NewImportUseCase(st, ext, walker, 1<<20, nil)
}

func TestImport_FromFilenames(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"monet/water-lilies.jpg":   "lilies",
		"vangogh/starry_night.png": "stars",
		"notes.txt":                "ignored",
	})

	ctx := context.Background()
	st := memstore.NewMemoryStore()
	var progress []int
	res, err := newImporter(st, embedding.NewMockExtractor(8)).Import(ctx, root, ImportOptions{
		Catalog:  "catalog.yaml",
		Progress: func(done, total int, _ catalog.Entry) { progress = append(progress, done*10+total) },
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if res.Imported != 2 || res.Failed != 0 || res.FromManifest {
		t.Errorf("unexpected result: %+v", res)
	}
	if len(progress) != 2 || progress[0] != 12 || progress[1] != 22 {
		t.Errorf("unexpected progress calls: %v", progress)
	}

	all, _ := st.FetchAll(ctx)
	if len(all) != 2 || all[0].Name != "Water Lilies" || all[0].Artist != "Monet" || all[1].Name != "Starry Night" {
		t.Errorf("unexpected artworks: %+v", all)
	}
	if len(all[0].Embedding) != 8 {
		t.Errorf("expected 8-d embedding, got %d", len(all[0].Embedding))
	}
}

func TestImport_FromManifest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"img/1.jpg": "one",
		"img/2.jpg": "two",
		"catalog.yaml": `
artworks:
  - id: 42
    name: The Kiss
    artist: Gustav Klimt
    description: Oil and gold leaf on canvas
    image: img/1.jpg
  - name: Lost
    image: img/missing.jpg
  - image: img/2.jpg
`,
	})

	ctx := context.Background()
	st := memstore.NewMemoryStore()
	res, err := newImporter(st, embedding.NewMockExtractor(8)).Import(ctx, root, ImportOptions{Catalog: "catalog.yaml"})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if !res.FromManifest || res.Imported != 2 || res.Failed != 1 || len(res.Errors) != 1 {
		t.Errorf("unexpected result: %+v", res)
	}

	kiss, err := st.Get(ctx, 42)
	if err != nil {
		t.Fatalf("expected artwork 42: %v", err)
	}
	if kiss.Artist != "Gustav Klimt" || kiss.Description == "" {
		t.Errorf("manifest metadata not stored: %+v", kiss)
	}
	all, _ := st.FetchAll(ctx)
	if len(all) != 2 || all[1].Name != "2" {
		t.Errorf("expected unnamed entry to be named after its file, got %+v", all)
	}
}

func TestImport_RebuildOnExtractorChange(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.jpg": "a", "b.jpg": "b"})

	ctx := context.Background()
	st, err := store.NewBoltStore(filepath.Join(t.TempDir(), "artworks.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if _, err := newImporter(st, embedding.NewMockExtractor(8)).Import(ctx, root, ImportOptions{}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	changed := newImporter(st, embedding.NewMockExtractor(16))
	if _, err := changed.Import(ctx, root, ImportOptions{}); !errors.Is(err, ErrRebuildRequired) {
		t.Fatalf("expected ErrRebuildRequired, got %v", err)
	}

	res, err := changed.Import(ctx, root, ImportOptions{Rebuild: true})
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	if !res.Rebuilt || res.Imported != 2 {
		t.Errorf("unexpected rebuild result: %+v", res)
	}
	all, _ := st.FetchAll(ctx)
	if len(all) != 2 || len(all[0].Embedding) != 16 {
		t.Errorf("expected 2 artworks with 16-d embeddings, got %+v", all)
	}
}

func TestImport_RebuildClearsMemoryStore(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.jpg": "a"})

	ctx := context.Background()
	st := memstore.NewMemoryStore()
	imp := newImporter(st, embedding.NewMockExtractor(8))
	for i := 0; i < 2; i++ {
		if _, err := imp.Import(ctx, root, ImportOptions{Rebuild: true}); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := st.Count(ctx); n != 1 {
		t.Errorf("expected rebuild to replace the catalog, got %d artworks", n)
	}
}
