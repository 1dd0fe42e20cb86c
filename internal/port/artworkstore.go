package port

import (
	"context"

	"artscope/internal/domain"
)

// ArtworkStore persists artworks and their embeddings.
// Connectivity and query failures are reported as *domain.StorageError.
type ArtworkStore interface {
	// FetchAll returns every artwork in ID order. An empty catalog yields an
	// empty slice and a nil error.
	FetchAll(ctx context.Context) ([]domain.Artwork, error)

	Get(ctx context.Context, id int64) (domain.Artwork, error)

	// Put inserts the artwork when ID is zero and upserts it otherwise.
	// It returns the stored ID.
	Put(ctx context.Context, artwork domain.Artwork) (int64, error)

	Delete(ctx context.Context, id int64) error

	Count(ctx context.Context) (int, error)

	Close() error
}

// Shortlister narrows the candidate set with an index before exact matching.
type Shortlister interface {
	// Nearest returns at most k artworks ordered by decreasing similarity.
	Nearest(ctx context.Context, query domain.Embedding, k int) ([]domain.Artwork, error)
}
