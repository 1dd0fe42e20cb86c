package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"artscope/internal/domain"
	"artscope/internal/port"
)

// MemoryStore is an ArtworkStore held entirely in memory. Artworks are
// copied on the way in and out so callers never share embedding slices with
// the store.
type MemoryStore struct {
	mu       sync.RWMutex
	artworks map[int64]domain.Artwork
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artworks: make(map[int64]domain.Artwork),
	}
}

func (s *MemoryStore) FetchAll(ctx context.Context) ([]domain.Artwork, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.artworks))
	for id := range s.artworks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	artworks := make([]domain.Artwork, 0, len(ids))
	for _, id := range ids {
		artworks = append(artworks, clone(s.artworks[id]))
	}
	return artworks, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (domain.Artwork, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artwork{}, domain.AsStorageError("get", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artworks[id]
	if !ok {
		return domain.Artwork{}, fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	return clone(a), nil
}

func (s *MemoryStore) Put(ctx context.Context, a domain.Artwork) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.AsStorageError("put", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == 0 {
		s.nextID++
		a.ID = s.nextID
	} else if a.ID > s.nextID {
		s.nextID = a.ID
	}
	s.artworks[a.ID] = clone(a)
	return a.ID, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return domain.AsStorageError("delete", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artworks[id]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrArtworkNotFound, id)
	}
	delete(s.artworks, id)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.AsStorageError("count", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artworks), nil
}

// Clear removes every artwork.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artworks = make(map[int64]domain.Artwork)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clone(a domain.Artwork) domain.Artwork {
	a.Embedding = slices.Clone(a.Embedding)
	return a
}

var _ port.ArtworkStore = (*MemoryStore)(nil)
