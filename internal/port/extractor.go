package port

import (
	"context"

	"artscope/internal/domain"
)

// Extractor turns raw image bytes into a feature embedding.
type Extractor interface {
	// Extract decodes the image and returns its embedding.
	// Failures are reported as *domain.ExtractionError.
	Extract(ctx context.Context, image []byte) (domain.Embedding, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the model behind the extractor.
	ModelName() string
}
