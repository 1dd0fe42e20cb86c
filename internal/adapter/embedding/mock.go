package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"artscope/internal/domain"
)

// MockExtractor derives a pseudo-random embedding from a hash of the image
// bytes. Identical bytes always give identical embeddings; anything else is
// close to orthogonal. Used by tests and offline benchmarks.
type MockExtractor struct {
	dimension int
}

func NewMockExtractor(dimension int) *MockExtractor {
	if dimension <= 0 {
		dimension = 32
	}
	return &MockExtractor{dimension: dimension}
}

func (e *MockExtractor) Extract(ctx context.Context, image []byte) (domain.Embedding, error) {
	if len(image) == 0 {
		return nil, &domain.ExtractionError{Model: "mock", Err: errors.New("empty image")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Model: "mock", Err: err}
	}

	seed := sha256.Sum256(image)
	emb := make(domain.Embedding, e.dimension)
	var block [sha256.Size]byte
	for i := range emb {
		if i%8 == 0 {
			var counter [4]byte
			binary.BigEndian.PutUint32(counter[:], uint32(i/8))
			block = sha256.Sum256(append(seed[:], counter[:]...))
		}
		v := binary.BigEndian.Uint32(block[(i%8)*4:])
		emb[i] = float32(v)/float32(1<<32)*2 - 1
	}
	return emb, nil
}

func (e *MockExtractor) Dimension() int {
	return e.dimension
}

func (e *MockExtractor) ModelName() string {
	return "mock"
}
