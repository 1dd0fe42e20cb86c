package store

import (
	"database/sql/driver"
	"fmt"
	"sync"

	"github.com/viant/sqlite-vec/vector"
	sqlite "modernc.org/sqlite"

	"artscope/internal/adapter/matcher"
)

var registerOnce sync.Once
var registerErr error

// RegisterVectorFunctions registers vec_cosine with the SQLite driver. It must
// run before the first connection is opened; connections opened earlier do
// not see the function.
func RegisterVectorFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
	return registerErr
}

// vecCosine returns the cosine similarity of two embedding BLOBs, or NULL when
// the pair cannot be compared (missing, mismatched or degenerate vectors).
// Returning NULL instead of an error keeps one bad row from failing a query.
func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := blobArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := blobArg(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}

	va, err := vector.DecodeEmbedding(a)
	if err != nil {
		return nil, err
	}
	vb, err := vector.DecodeEmbedding(b)
	if err != nil {
		return nil, err
	}
	sim, err := matcher.CosineSimilarity(va, vb)
	if err != nil {
		return nil, nil
	}
	return sim, nil
}

func blobArg(arg driver.Value) ([]byte, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T; want BLOB", arg)
	}
}
