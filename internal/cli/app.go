package cli

import (
	"context"
	"fmt"
	"time"

	"artscope/internal/adapter/embedding"
	"artscope/internal/adapter/index"
	"artscope/internal/adapter/matcher"
	"artscope/internal/adapter/store"
	"artscope/internal/port"
	"artscope/internal/usecase"
)

// shortlistMaxAge bounds how stale the in-process index may get when another
// process edits the catalog.
const shortlistMaxAge = 5 * time.Minute

// app holds the collaborators shared by the serving commands.
type app struct {
	store     port.ArtworkStore
	extractor port.Extractor
	scan      *usecase.ScanUseCase
	catalog   *usecase.CatalogUseCase
}

func (a *app) Close() error {
	return a.store.Close()
}

func openStore(ctx context.Context) (port.ArtworkStore, error) {
	st, err := store.Open(ctx, GetConfig(), GetRootDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open artwork store: %w", err)
	}
	return st, nil
}

func newExtractor() (port.Extractor, error) {
	ext, err := embedding.New(GetConfig().Embedding, GetLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}
	return ext, nil
}

// newApp wires store, extractor and use cases. The extractor is built once
// and shared by every scan.
func newApp(ctx context.Context) (*app, error) {
	cfg := GetConfig()

	policy, err := matcher.ParsePolicy(cfg.Match.DimensionPolicy)
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	ext, err := newExtractor()
	if err != nil {
		st.Close()
		return nil, err
	}

	if tracker, ok := st.(store.SchemaTracker); ok {
		check, err := tracker.CheckMigration(store.Fingerprint(ext.ModelName(), ext.Dimension()))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to check store schema: %w", err)
		}
		if check.NeedsRebuild {
			GetLogger().Warn("stored embeddings may not be comparable", "reason", check.Reason)
		}
	}

	opts := usecase.ScanOptions{Shortlist: cfg.Match.Shortlist, Logger: GetLogger()}
	var onChange func()
	if cfg.Match.Shortlist > 0 {
		if sl, ok := st.(port.Shortlister); ok {
			opts.Shortlister = sl
		} else {
			bf := index.NewBruteForce(st, shortlistMaxAge)
			opts.Shortlister = bf
			onChange = bf.Invalidate
		}
	}

	return &app{
		store:     st,
		extractor: ext,
		scan:      usecase.NewScanUseCase(ext, st, matcher.New(policy), opts),
		catalog:   usecase.NewCatalogUseCase(st, onChange),
	}, nil
}
