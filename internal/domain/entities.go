package domain

import "math"

// Embedding is a fixed-length feature vector produced by an extractor.
type Embedding []float32

// Dimension returns the number of components in the embedding.
func (e Embedding) Dimension() int {
	return len(e)
}

// Artwork is a catalog entry together with its precomputed embedding.
type Artwork struct {
	ID          int64     `json:"id" yaml:"id,omitempty"`
	Name        string    `json:"name" yaml:"name"`
	Artist      string    `json:"artist" yaml:"artist"`
	Description string    `json:"description" yaml:"description"`
	Embedding   Embedding `json:"embedding,omitempty" yaml:"-"`
}

// Summary strips the embedding for listings.
func (a Artwork) Summary() ArtworkSummary {
	return ArtworkSummary{
		ID:          a.ID,
		Name:        a.Name,
		Artist:      a.Artist,
		Description: a.Description,
		Dimension:   len(a.Embedding),
	}
}

type ArtworkSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Description string `json:"description"`
	Dimension   int    `json:"dimension"`
}

// MatchPayload is the presentation shape of a successful scan.
type MatchPayload struct {
	ArtworkID   int64   `json:"artwork_id"`
	Name        string  `json:"name"`
	Artist      string  `json:"artist"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}

// NewMatchPayload builds the payload, rounding the score to precision digits.
func NewMatchPayload(a Artwork, score float64, precision int) MatchPayload {
	return MatchPayload{
		ArtworkID:   a.ID,
		Name:        a.Name,
		Artist:      a.Artist,
		Description: a.Description,
		Similarity:  RoundScore(score, precision),
	}
}

// RoundScore rounds half away from zero to the given number of decimal digits.
// It is meant for presentation only; comparisons use the raw score.
func RoundScore(score float64, precision int) float64 {
	if precision < 0 {
		return score
	}
	p := math.Pow(10, float64(precision))
	return math.Round(score*p) / p
}
