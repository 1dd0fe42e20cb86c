package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"artscope/internal/adapter/catalog"
	"artscope/internal/adapter/fs"
	"artscope/internal/adapter/store"
	"artscope/internal/domain"
	"artscope/internal/port"
)

// ErrRebuildRequired is returned when the stored embeddings were produced by
// a different extractor and cannot be mixed with new ones.
var ErrRebuildRequired = errors.New("catalog must be rebuilt")

// ImportUseCase fills the artwork store from a directory of images.
type ImportUseCase struct {
	store     port.ArtworkStore
	extractor port.Extractor
	walker    *fs.Walker
	maxBytes  int64
	logger    *slog.Logger
}

func NewImportUseCase(st port.ArtworkStore, extractor port.Extractor, walker *fs.Walker, maxBytes int64, logger *slog.Logger) *ImportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportUseCase{
		store:     st,
		extractor: extractor,
		walker:    walker,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// ImportOptions controls a single import run.
type ImportOptions struct {
	// Catalog is the manifest file name, relative to the import root. When it
	// does not exist every image found by the walker is imported and named
	// after its file.
	Catalog string
	// Rebuild clears the store first.
	Rebuild bool
	// Progress is called once per entry, after it has been processed.
	Progress func(done, total int, entry catalog.Entry)
}

// ImportResult contains the results of an import.
type ImportResult struct {
	Imported     int
	Failed       int
	Rebuilt      bool
	FromManifest bool
	Errors       []string
}

// Plan resolves which entries an import of root would process.
func (u *ImportUseCase) Plan(root, manifestName string) ([]catalog.Entry, bool, error) {
	if manifestName != "" {
		m, err := catalog.Load(filepath.Join(root, manifestName))
		if err != nil {
			return nil, false, err
		}
		if m != nil {
			return m.Artworks, true, nil
		}
	}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, false, fmt.Errorf("failed to walk directory: %w", err)
	}
	entries := make([]catalog.Entry, len(files))
	for i, f := range files {
		entries[i] = catalog.EntryFromPath(f.RelPath)
	}
	return entries, false, nil
}

// Import extracts an embedding for every catalog entry under root and stores
// it. Individual failures are collected in the result; only problems that
// affect the whole run are returned as errors.
func (u *ImportUseCase) Import(ctx context.Context, root string, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	if err := u.prepare(opts.Rebuild, result); err != nil {
		return nil, err
	}

	entries, fromManifest, err := u.Plan(root, opts.Catalog)
	if err != nil {
		return nil, err
	}
	result.FromManifest = fromManifest

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id, err := u.importEntry(ctx, root, entry)
		if err != nil {
			var se *domain.StorageError
			if errors.As(err, &se) {
				return result, err
			}
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entry.Image, err))
			u.logger.Warn("artwork not imported", "image", entry.Image, "error", err)
		} else {
			result.Imported++
			u.logger.Debug("artwork imported", "id", id, "name", entry.Name)
		}

		if opts.Progress != nil {
			opts.Progress(i+1, len(entries), entry)
		}
	}

	return result, nil
}

// prepare checks that stored embeddings are compatible with the extractor
// and records the extractor's fingerprint.
func (u *ImportUseCase) prepare(rebuild bool, result *ImportResult) error {
	tracker, ok := u.store.(store.SchemaTracker)
	if !ok {
		if rebuild {
			if c, ok := u.store.(interface{ Clear() error }); ok {
				if err := c.Clear(); err != nil {
					return domain.AsStorageError("clear", err)
				}
				result.Rebuilt = true
			}
		}
		return nil
	}

	fp := store.Fingerprint(u.extractor.ModelName(), u.extractor.Dimension())
	check, err := tracker.CheckMigration(fp)
	if err != nil {
		return domain.AsStorageError("migrate", err)
	}

	if check.NeedsRebuild && !rebuild {
		return fmt.Errorf("%w: %s (run import with --rebuild)", ErrRebuildRequired, check.Reason)
	}
	if rebuild {
		if err := tracker.Clear(); err != nil {
			return domain.AsStorageError("clear", err)
		}
		result.Rebuilt = true
	}
	if check.NeedsMigration || check.NeedsRebuild || rebuild {
		u.logger.Info("updating store schema", "reason", check.Reason, "from", check.OldVersion, "to", check.NewVersion)
		if err := tracker.Migrate(fp); err != nil {
			return domain.AsStorageError("migrate", err)
		}
	}
	return nil
}

func (u *ImportUseCase) importEntry(ctx context.Context, root string, entry catalog.Entry) (int64, error) {
	path := entry.Image
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, filepath.FromSlash(path))
	}

	data, err := fs.ReadImage(path, u.maxBytes)
	if err != nil {
		return 0, err
	}

	emb, err := u.extractor.Extract(ctx, data)
	if err != nil {
		return 0, domain.AsExtractionError(u.extractor.ModelName(), err)
	}

	name := entry.Name
	if name == "" {
		name = catalog.EntryFromPath(entry.Image).Name
	}
	return u.store.Put(ctx, domain.Artwork{
		ID:          entry.ID,
		Name:        name,
		Artist:      entry.Artist,
		Description: entry.Description,
		Embedding:   emb,
	})
}
