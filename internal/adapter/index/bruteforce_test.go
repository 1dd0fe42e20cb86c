package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"artscope/internal/adapter/memstore"
	"artscope/internal/domain"
	"artscope/internal/port"
)

// countingStore records how often the catalog is fetched.
type countingStore struct {
	port.ArtworkStore
	fetches int
	err     error
}

func (s *countingStore) FetchAll(ctx context.Context) ([]domain.Artwork, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.ArtworkStore.FetchAll(ctx)
}

func seeded(t *testing.T) *countingStore {
	t.Helper()
	ms := memstore.NewMemoryStore()
	seed := []domain.Artwork{
		{ID: 1, Name: "north", Embedding: domain.Embedding{0, 1}},
		{ID: 2, Name: "east", Embedding: domain.Embedding{1, 0}},
		{ID: 3, Name: "east twin", Embedding: domain.Embedding{2, 0}},
		{ID: 4, Name: "north-east", Embedding: domain.Embedding{1, 1}},
		{ID: 5, Name: "blank", Embedding: domain.Embedding{0, 0}},
		{ID: 6, Name: "other model", Embedding: domain.Embedding{1, 0, 0}},
	}
	for _, a := range seed {
		if _, err := ms.Put(context.Background(), a); err != nil {
			t.Fatal(err)
		}
	}
	return &countingStore{ArtworkStore: ms}
}

func TestBruteForce_Nearest(t *testing.T) {
	idx := NewBruteForce(seeded(t), 0)

	got, err := idx.Nearest(context.Background(), domain.Embedding{1, 0}, 3)
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	want := []int64{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(got))
	}
	for i, a := range got {
		if a.ID != want[i] {
			t.Errorf("got[%d] = %d, want %d", i, a.ID, want[i])
		}
	}
}

func TestBruteForce_SkipsIncomparable(t *testing.T) {
	idx := NewBruteForce(seeded(t), 0)

	got, err := idx.Nearest(context.Background(), domain.Embedding{1, 0}, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 comparable artworks, got %d", len(got))
	}
	for _, a := range got {
		if a.ID == 5 || a.ID == 6 {
			t.Errorf("artwork %d should not be shortlisted", a.ID)
		}
	}
}

func TestBruteForce_CachesUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	idx := NewBruteForce(st, 0)

	for i := 0; i < 3; i++ {
		if _, err := idx.Nearest(ctx, domain.Embedding{1, 0}, 1); err != nil {
			t.Fatal(err)
		}
	}
	if st.fetches != 1 {
		t.Errorf("expected 1 fetch, got %d", st.fetches)
	}
	if idx.Len() != 6 {
		t.Errorf("expected 6 loaded artworks, got %d", idx.Len())
	}

	idx.Invalidate()
	if _, err := idx.Nearest(ctx, domain.Embedding{1, 0}, 1); err != nil {
		t.Fatal(err)
	}
	if st.fetches != 2 {
		t.Errorf("expected reload after Invalidate, got %d fetches", st.fetches)
	}
}

func TestBruteForce_MaxAge(t *testing.T) {
	ctx := context.Background()
	st := seeded(t)
	idx := NewBruteForce(st, time.Millisecond)

	if _, err := idx.Nearest(ctx, domain.Embedding{1, 0}, 1); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := idx.Nearest(ctx, domain.Embedding{1, 0}, 1); err != nil {
		t.Fatal(err)
	}
	if st.fetches != 2 {
		t.Errorf("expected stale catalog to be reloaded, got %d fetches", st.fetches)
	}
}

func TestBruteForce_StoreError(t *testing.T) {
	st := seeded(t)
	st.err = errors.New("connection refused")
	idx := NewBruteForce(st, 0)

	_, err := idx.Nearest(context.Background(), domain.Embedding{1, 0}, 1)
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *domain.StorageError, got %v", err)
	}
}
