package index

import (
	"context"
	"sort"
	"sync"
	"time"

	"artscope/internal/adapter/matcher"
	"artscope/internal/domain"
	"artscope/internal/port"
)

// BruteForce is an in-memory cosine shortlist over the artworks of a store.
// The catalog is loaded on first use and kept until Invalidate is called or
// maxAge has passed, so writes made by other processes show up eventually.
type BruteForce struct {
	store  port.ArtworkStore
	maxAge time.Duration

	mu       sync.RWMutex
	artworks []domain.Artwork
	loadedAt time.Time
}

// NewBruteForce creates an index over store. A zero maxAge keeps the loaded
// catalog until Invalidate.
func NewBruteForce(store port.ArtworkStore, maxAge time.Duration) *BruteForce {
	return &BruteForce{
		store:  store,
		maxAge: maxAge,
	}
}

// Nearest returns up to k artworks ranked by cosine similarity to query, best
// first. Artworks that cannot be compared with the query are left out. Equal
// scores keep catalog order.
func (b *BruteForce) Nearest(ctx context.Context, query domain.Embedding, k int) ([]domain.Artwork, error) {
	if k <= 0 {
		return []domain.Artwork{}, nil
	}
	artworks, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		idx   int
		score float64
	}
	scoreds := make([]scored, 0, len(artworks))
	for i := range artworks {
		s, err := matcher.CosineSimilarity(query, artworks[i].Embedding)
		if err != nil {
			continue
		}
		scoreds = append(scoreds, scored{idx: i, score: s})
	}
	sort.SliceStable(scoreds, func(i, j int) bool { return scoreds[i].score > scoreds[j].score })

	if k > len(scoreds) {
		k = len(scoreds)
	}
	out := make([]domain.Artwork, k)
	for n := 0; n < k; n++ {
		out[n] = artworks[scoreds[n].idx]
	}
	return out, nil
}

// Invalidate drops the loaded catalog; the next Nearest reloads it.
func (b *BruteForce) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.artworks = nil
}

// Len returns the number of loaded artworks.
func (b *BruteForce) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.artworks)
}

func (b *BruteForce) snapshot(ctx context.Context) ([]domain.Artwork, error) {
	b.mu.RLock()
	artworks, loadedAt := b.artworks, b.loadedAt
	b.mu.RUnlock()

	if artworks != nil && (b.maxAge == 0 || time.Since(loadedAt) < b.maxAge) {
		return artworks, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	// another goroutine may have reloaded while we waited
	if b.artworks != nil && (b.maxAge == 0 || time.Since(b.loadedAt) < b.maxAge) {
		return b.artworks, nil
	}

	fresh, err := b.store.FetchAll(ctx)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	if fresh == nil {
		fresh = []domain.Artwork{}
	}
	b.artworks = fresh
	b.loadedAt = time.Now()
	return fresh, nil
}

var _ port.Shortlister = (*BruteForce)(nil)
