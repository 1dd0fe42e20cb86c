package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"artscope/internal/domain"
)

const (
	codeInvalidRequest  = "invalid_request"
	codePayloadTooLarge = "payload_too_large"
	codeExtraction      = "extraction_failed"
	codeStorage         = "storage_unavailable"
	codeDimension       = "dimension_mismatch"
	codeDegenerate      = "degenerate_embedding"
	codeNoComparable    = "no_comparable_artworks"
	codeNotFound        = "artwork_not_found"
	codeInternal        = "internal"
)

// errBadRequest marks client mistakes in the request itself.
var errBadRequest = errors.New("bad request")

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// classify maps an error to an HTTP status and a stable code. Order matters:
// typed errors are checked before the sentinels they may wrap.
func classify(err error) (int, string) {
	var (
		maxBytes *http.MaxBytesError
		dimErr   *domain.DimensionError
		extErr   *domain.ExtractionError
		storeErr *domain.StorageError
	)
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, codePayloadTooLarge
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, codeInvalidRequest
	case errors.As(err, &extErr):
		return http.StatusUnprocessableEntity, codeExtraction
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable, codeStorage
	case errors.As(err, &dimErr):
		return http.StatusInternalServerError, codeDimension
	case errors.Is(err, domain.ErrDegenerateVector), errors.Is(err, domain.ErrEmptyQuery):
		return http.StatusUnprocessableEntity, codeDegenerate
	case errors.Is(err, domain.ErrNoComparableCandidates):
		return http.StatusInternalServerError, codeNoComparable
	case errors.Is(err, domain.ErrArtworkNotFound):
		return http.StatusNotFound, codeNotFound
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= 500 {
		s.logger.Error("request failed", "request_id", RequestID(r.Context()), "code", code, "error", err)
	} else {
		s.logger.Warn("request rejected", "request_id", RequestID(r.Context()), "code", code, "error", err)
	}
	writeJSON(w, status, errorBody{
		Error:     err.Error(),
		Code:      code,
		RequestID: RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
