package usecase

import (
	"context"
	"errors"
	"testing"

	"artscope/internal/adapter/memstore"
	"artscope/internal/domain"
)

func TestCatalogUseCase(t *testing.T) {
	ctx := context.Background()
	st := memstore.NewMemoryStore()
	for _, name := range []string{"Mona Lisa", "The Scream"} {
		if _, err := st.Put(ctx, domain.Artwork{Name: name, Embedding: domain.Embedding{1, 2, 3}}); err != nil {
			t.Fatal(err)
		}
	}

	changes := 0
	uc := NewCatalogUseCase(st, func() { changes++ })

	list, err := uc.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "Mona Lisa" || list[0].Dimension != 3 {
		t.Errorf("unexpected listing: %+v", list)
	}

	got, err := uc.Get(ctx, 2)
	if err != nil || got.Name != "The Scream" {
		t.Errorf("Get(2) = %+v, %v", got, err)
	}

	if err := uc.Remove(ctx, 1, 99); !errors.Is(err, domain.ErrArtworkNotFound) {
		t.Errorf("expected not found for 99, got %v", err)
	}
	if changes != 1 {
		t.Errorf("expected onChange after the successful removal, got %d calls", changes)
	}
	if n, _ := uc.Count(ctx); n != 1 {
		t.Errorf("expected 1 artwork left, got %d", n)
	}
}
