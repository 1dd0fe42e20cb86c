package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"artscope/internal/adapter/matcher"
	"artscope/internal/domain"
	"artscope/internal/port"
)

// ScanUseCase identifies the catalog artwork shown in an uploaded image.
type ScanUseCase struct {
	extractor   port.Extractor
	store       port.ArtworkStore
	shortlister port.Shortlister
	shortlist   int
	matcher     *matcher.Matcher
	logger      *slog.Logger
}

// ScanOptions holds the optional parts of a ScanUseCase.
type ScanOptions struct {
	// Shortlister, when set together with Shortlist > 0, narrows the
	// candidates before exact matching. Shortlisters leave out rows they
	// cannot score, so it is not used with matcher.PolicyAbort.
	Shortlister port.Shortlister
	Shortlist   int
	Logger      *slog.Logger
}

// NewScanUseCase creates a new scan use case. The extractor is built once by
// the caller and shared by every request.
func NewScanUseCase(extractor port.Extractor, store port.ArtworkStore, m *matcher.Matcher, opts ScanOptions) *ScanUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanUseCase{
		extractor:   extractor,
		store:       store,
		shortlister: opts.Shortlister,
		shortlist:   opts.Shortlist,
		matcher:     m,
		logger:      logger,
	}
}

// ScanOutcome is the result of one scan.
type ScanOutcome struct {
	matcher.Result
	Candidates int
	Model      string
}

// Scan extracts an embedding from image and matches it against the catalog.
// An empty catalog is not an error: the outcome's Empty() reports it.
func (u *ScanUseCase) Scan(ctx context.Context, image []byte) (ScanOutcome, error) {
	out := ScanOutcome{Model: u.extractor.ModelName()}

	query, err := u.extractor.Extract(ctx, image)
	if err != nil {
		return out, domain.AsExtractionError(out.Model, err)
	}

	candidates, err := u.candidates(ctx, query)
	if err != nil {
		return out, domain.AsStorageError("fetch", err)
	}
	out.Candidates = len(candidates)

	res, err := u.matcher.FindBestMatch(query, candidates)
	out.Result = res
	for _, s := range res.Skipped {
		u.logger.Warn("artwork skipped during matching", "artwork_id", s.ArtworkID, "reason", s.Reason)
	}
	if err != nil {
		return out, fmt.Errorf("matching failed: %w", err)
	}

	if res.Found {
		u.logger.Debug("scan matched",
			"artwork_id", res.Artwork.ID,
			"similarity", res.Score,
			"scored", res.Scored,
			"skipped", len(res.Skipped))
	}
	return out, nil
}

func (u *ScanUseCase) candidates(ctx context.Context, query domain.Embedding) ([]domain.Artwork, error) {
	if u.shortlister != nil && u.shortlist > 0 && u.matcher.Policy() != matcher.PolicyAbort {
		shortlisted, err := u.shortlister.Nearest(ctx, query, u.shortlist)
		if err != nil {
			return nil, err
		}
		if len(shortlisted) > 0 {
			return shortlisted, nil
		}
		// nothing comparable in the index; let the full scan report why
	}
	return u.store.FetchAll(ctx)
}
