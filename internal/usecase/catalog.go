package usecase

import (
	"context"

	"artscope/internal/domain"
	"artscope/internal/port"
)

// CatalogUseCase lists and maintains catalog artworks.
type CatalogUseCase struct {
	store port.ArtworkStore
	// onChange runs after a successful removal, e.g. to drop an index cache.
	onChange func()
}

func NewCatalogUseCase(store port.ArtworkStore, onChange func()) *CatalogUseCase {
	return &CatalogUseCase{store: store, onChange: onChange}
}

// List returns every artwork without its embedding, ordered by ID.
func (u *CatalogUseCase) List(ctx context.Context) ([]domain.ArtworkSummary, error) {
	artworks, err := u.store.FetchAll(ctx)
	if err != nil {
		return nil, domain.AsStorageError("fetch", err)
	}
	out := make([]domain.ArtworkSummary, len(artworks))
	for i, a := range artworks {
		out[i] = a.Summary()
	}
	return out, nil
}

// Get returns one artwork summary or an error wrapping domain.ErrArtworkNotFound.
func (u *CatalogUseCase) Get(ctx context.Context, id int64) (domain.ArtworkSummary, error) {
	a, err := u.store.Get(ctx, id)
	if err != nil {
		return domain.ArtworkSummary{}, err
	}
	return a.Summary(), nil
}

func (u *CatalogUseCase) Count(ctx context.Context) (int, error) {
	return u.store.Count(ctx)
}

// Remove deletes the given artworks, stopping at the first failure.
func (u *CatalogUseCase) Remove(ctx context.Context, ids ...int64) error {
	removed := 0
	defer func() {
		if removed > 0 && u.onChange != nil {
			u.onChange()
		}
	}()
	for _, id := range ids {
		if err := u.store.Delete(ctx, id); err != nil {
			return err
		}
		removed++
	}
	return nil
}
