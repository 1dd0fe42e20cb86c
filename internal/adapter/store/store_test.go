package store

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/viant/sqlite-vec/vector"
	"go.etcd.io/bbolt"

	"artscope/internal/adapter/memstore"
	"artscope/internal/domain"
	"artscope/internal/port"
)

func encode(t *testing.T, emb domain.Embedding) []byte {
	t.Helper()
	b, err := vector.EncodeEmbedding(emb)
	if err != nil {
		t.Fatalf("EncodeEmbedding failed: %v", err)
	}
	return b
}

func openBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(filepath.Join(t.TempDir(), "artworks.db"))
	if err != nil {
		t.Fatalf("NewBoltStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func openSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArtworkStores(t *testing.T) {
	stores := map[string]func(t *testing.T) port.ArtworkStore{
		"bolt":   func(t *testing.T) port.ArtworkStore { return openBolt(t) },
		"sqlite": func(t *testing.T) port.ArtworkStore { return openSQLite(t) },
		"memory": func(t *testing.T) port.ArtworkStore { return memstore.NewMemoryStore() },
	}
	if dsn := os.Getenv("ARTSCOPE_TEST_POSTGRES_DSN"); dsn != "" {
		stores["postgres"] = func(t *testing.T) port.ArtworkStore {
			s, err := OpenPostgres(context.Background(), dsn)
			if err != nil {
				t.Fatalf("OpenPostgres failed: %v", err)
			}
			if err := s.Clear(); err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			t.Run("empty", func(t *testing.T) { testEmptyStore(t, open(t)) })
			t.Run("crud", func(t *testing.T) { testCRUD(t, open(t)) })
			t.Run("ids", func(t *testing.T) { testExplicitIDs(t, open(t)) })
		})
	}
}

func testEmptyStore(t *testing.T, s port.ArtworkStore) {
	ctx := context.Background()

	all, err := s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll on empty store failed: %v", err)
	}
	if all == nil || len(all) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", all)
	}
	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v; want 0, nil", n, err)
	}
}

func testCRUD(t *testing.T, s port.ArtworkStore) {
	ctx := context.Background()

	in := domain.Artwork{
		Name:        "The Starry Night",
		Artist:      "Vincent van Gogh",
		Description: "Oil on canvas, 1889",
		Embedding:   domain.Embedding{0.25, -1.5, 3.75},
	}
	id, err := s.Put(ctx, in)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if id == 0 {
		t.Fatal("expected a generated id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != in.Name || got.Artist != in.Artist || got.Description != in.Description {
		t.Errorf("metadata round trip mismatch: %+v", got)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != -1.5 || got.Embedding[2] != 3.75 {
		t.Errorf("embedding round trip mismatch: %v", got.Embedding)
	}

	in.ID = id
	in.Name = "De sterrennacht"
	if _, err := s.Put(ctx, in); err != nil {
		t.Fatalf("Put (update) failed: %v", err)
	}
	got, _ = s.Get(ctx, id)
	if got.Name != "De sterrennacht" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("expected 1 artwork after update, got %d", n)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, domain.ErrArtworkNotFound) {
		t.Errorf("expected ErrArtworkNotFound, got %v", err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, domain.ErrArtworkNotFound) {
		t.Errorf("expected ErrArtworkNotFound on repeated delete, got %v", err)
	}
}

func testExplicitIDs(t *testing.T, s port.ArtworkStore) {
	ctx := context.Background()

	for _, id := range []int64{30, 10, 20} {
		if _, err := s.Put(ctx, domain.Artwork{ID: id, Name: "art", Embedding: domain.Embedding{1}}); err != nil {
			t.Fatalf("Put(%d) failed: %v", id, err)
		}
	}
	id, err := s.Put(ctx, domain.Artwork{Name: "next", Embedding: domain.Embedding{1}})
	if err != nil {
		t.Fatal(err)
	}
	if id != 31 {
		t.Errorf("expected generated id 31, got %d", id)
	}

	all, err := s.FetchAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{10, 20, 30, 31}
	if len(all) != len(want) {
		t.Fatalf("expected %d artworks, got %d", len(want), len(all))
	}
	for i, a := range all {
		if a.ID != want[i] {
			t.Errorf("all[%d].ID = %d, want %d", i, a.ID, want[i])
		}
	}
}

func TestSQLiteStore_Nearest(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	seed := []domain.Artwork{
		{ID: 1, Name: "east", Embedding: domain.Embedding{1, 0}},
		{ID: 2, Name: "north", Embedding: domain.Embedding{0, 1}},
		{ID: 3, Name: "east-ish", Embedding: domain.Embedding{0.9, 0.1}},
		{ID: 4, Name: "old model", Embedding: domain.Embedding{1, 0, 0}},
	}
	for _, a := range seed {
		if _, err := s.Put(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	top, err := s.Nearest(ctx, domain.Embedding{1, 0}, 2)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if len(top) != 2 || top[0].ID != 1 || top[1].ID != 3 {
		t.Fatalf("expected [1 3], got %v", ids(top))
	}

	all, err := s.Nearest(ctx, domain.Embedding{1, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].ID != 2 {
		t.Errorf("expected the incomparable artwork to be left out, got %v", ids(all))
	}

	none, err := s.Nearest(ctx, domain.Embedding{1, 0}, 0)
	if err != nil || len(none) != 0 {
		t.Errorf("Nearest(k=0) = %v, %v; want empty", ids(none), err)
	}
}

func TestVecCosineFunction(t *testing.T) {
	s := openSQLite(t)

	var sim float64
	err := s.db.QueryRow(`SELECT vec_cosine(?, ?)`,
		encode(t, domain.Embedding{1, 0}), encode(t, domain.Embedding{1, 0})).Scan(&sim)
	if err != nil {
		t.Fatalf("vec_cosine query failed: %v", err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("vec_cosine(a,a) = %v, want 1", sim)
	}

	var null *float64
	err = s.db.QueryRow(`SELECT vec_cosine(?, ?)`,
		encode(t, domain.Embedding{1, 0}), encode(t, domain.Embedding{1, 0, 0})).Scan(&null)
	if err != nil {
		t.Fatalf("vec_cosine mismatch query failed: %v", err)
	}
	if null != nil {
		t.Errorf("expected NULL for mismatched dimensions, got %v", *null)
	}
}

func TestSchemaTracking(t *testing.T) {
	trackers := map[string]SchemaTracker{
		"bolt":   openBolt(t),
		"sqlite": openSQLite(t),
	}

	for name, tr := range trackers {
		t.Run(name, func(t *testing.T) {
			fp := Fingerprint("histogram", 128)

			res, err := tr.CheckMigration(fp)
			if err != nil {
				t.Fatal(err)
			}
			if !res.NeedsMigration || res.NeedsRebuild {
				t.Errorf("fresh store: expected migration only, got %+v", res)
			}

			if err := tr.Migrate(fp); err != nil {
				t.Fatalf("Migrate failed: %v", err)
			}
			res, _ = tr.CheckMigration(fp)
			if res.NeedsMigration || res.NeedsRebuild {
				t.Errorf("after migrate: expected nothing to do, got %+v", res)
			}

			res, _ = tr.CheckMigration(Fingerprint("mobilenet_v2", 1280))
			if !res.NeedsRebuild {
				t.Errorf("changed extractor: expected rebuild, got %+v", res)
			}

			st := tr.(port.ArtworkStore)
			if _, err := st.Put(context.Background(), domain.Artwork{Name: "a", Embedding: domain.Embedding{1}}); err != nil {
				t.Fatal(err)
			}
			if err := tr.Clear(); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			if n, _ := st.Count(context.Background()); n != 0 {
				t.Errorf("expected empty store after Clear, got %d", n)
			}
			res, _ = tr.CheckMigration(fp)
			if res.NeedsMigration || res.NeedsRebuild {
				t.Errorf("Clear should keep schema metadata, got %+v", res)
			}
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("histogram", 128)
	if a != Fingerprint("histogram", 128) {
		t.Error("fingerprint is not deterministic")
	}
	if a == Fingerprint("histogram", 64) || a == Fingerprint("clip", 128) {
		t.Error("fingerprint ignores model or dimension")
	}
}

func ids(artworks []domain.Artwork) []int64 {
	out := make([]int64, len(artworks))
	for i, a := range artworks {
		out[i] = a.ID
	}
	return out
}

func TestSQLiteStore_EmbeddingBlobs(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)

	emb := domain.Embedding{0.5, -1.25, float32(math.Inf(1))}
	if _, err := s.Put(ctx, domain.Artwork{ID: 1, Name: "encoded", Embedding: emb}); err != nil {
		t.Fatal(err)
	}
	var raw []byte
	if err := s.db.QueryRow(`SELECT embedding FROM artworks WHERE id = 1`).Scan(&raw); err != nil {
		t.Fatal(err)
	}
	if string(raw) != string(encode(t, emb)) {
		t.Errorf("stored blob %x does not match vector.EncodeEmbedding", raw)
	}

	if _, err := s.db.Exec(`INSERT INTO artworks(id, name, embedding) VALUES(2, 'torn', ?)`, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	_, err := s.FetchAll(ctx)
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *domain.StorageError for a corrupt blob, got %v", err)
	}
}

func TestBoltStore_LockedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artworks.db")
	held, err := NewBoltStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	prev := LockTimeout
	LockTimeout = 50 * time.Millisecond
	defer func() { LockTimeout = prev }()

	start := time.Now()
	_, err = NewBoltStore(path)
	var se *domain.StorageError
	if !errors.As(err, &se) || !errors.Is(err, bbolt.ErrTimeout) {
		t.Fatalf("expected a StorageError wrapping bbolt.ErrTimeout, got %v", err)
	}
	if waited := time.Since(start); waited > 5*time.Second {
		t.Errorf("open waited %s for the lock", waited)
	}
}
