package matcher

import (
	"errors"
	"fmt"
	"strings"

	"artscope/internal/domain"
)

// Policy decides what happens to a candidate whose embedding length differs
// from the query's.
type Policy string

const (
	// PolicySkip excludes the candidate and records it in Result.Skipped.
	PolicySkip Policy = "skip"
	// PolicyAbort fails the whole call with a *domain.DimensionError.
	PolicyAbort Policy = "abort"
)

// ParsePolicy maps a config value to a Policy. Empty means PolicySkip.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", fmt.Errorf("unknown dimension policy: %q", s)
	}
}

// Skipped is a candidate that took no part in selection.
type Skipped struct {
	ArtworkID int64
	Reason    error
}

// Result is the outcome of one matching pass.
type Result struct {
	// Artwork and Score are only meaningful when Found is true.
	Artwork domain.Artwork
	Score   float64
	Found   bool

	// Scored counts candidates that produced a similarity.
	Scored  int
	Skipped []Skipped
}

// Empty reports the "no candidates to compare against" outcome.
func (r Result) Empty() bool {
	return !r.Found
}

// Matcher selects the candidate artwork closest to a query embedding by
// cosine similarity. It holds no mutable state and never modifies its inputs.
type Matcher struct {
	policy Policy
}

func New(policy Policy) *Matcher {
	if policy == "" {
		policy = PolicySkip
	}
	return &Matcher{policy: policy}
}

func (m *Matcher) Policy() Policy {
	return m.policy
}

// FindBestMatch scores every candidate against query and returns the one
// with the highest similarity. A later candidate only replaces the current
// best when its score is strictly greater, so ties go to the earliest
// candidate in input order.
//
// An empty candidate slice yields an empty Result and a nil error. Candidates
// with zero-magnitude or non-finite embeddings are always skipped; candidates
// of the wrong dimension are skipped or abort the call depending on the
// policy. When candidates exist but none can be scored the error wraps
// domain.ErrNoComparableCandidates.
func (m *Matcher) FindBestMatch(query domain.Embedding, candidates []domain.Artwork) (Result, error) {
	if len(candidates) == 0 {
		return Result{}, nil
	}

	qs, err := sumSquares(query)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}

	var res Result
	best := -1
	for i := range candidates {
		c := &candidates[i]

		score, err := m.score(query, qs, c)
		if err != nil {
			var dimErr *domain.DimensionError
			if errors.As(err, &dimErr) && m.policy == PolicyAbort {
				return Result{}, err
			}
			res.Skipped = append(res.Skipped, Skipped{ArtworkID: c.ID, Reason: err})
			continue
		}

		res.Scored++
		if best < 0 || score > res.Score {
			best = i
			res.Score = score
		}
	}

	if best < 0 {
		return res, fmt.Errorf("%w: %d of %d skipped", domain.ErrNoComparableCandidates, len(res.Skipped), len(candidates))
	}

	res.Artwork = candidates[best]
	res.Found = true
	return res, nil
}

func (m *Matcher) score(query domain.Embedding, qs float64, c *domain.Artwork) (float64, error) {
	if len(c.Embedding) != len(query) {
		return 0, &domain.DimensionError{ArtworkID: c.ID, Want: len(query), Got: len(c.Embedding)}
	}
	cs, err := sumSquares(c.Embedding)
	if err != nil {
		// an empty candidate embedding is a length mismatch and handled above
		return 0, fmt.Errorf("artwork %d: %w", c.ID, err)
	}
	score, err := cosine(query, qs, c.Embedding, cs)
	if err != nil {
		return 0, fmt.Errorf("artwork %d: %w", c.ID, err)
	}
	return score, nil
}
