package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyQuery             = errors.New("query embedding is empty")
	ErrDimensionMismatch      = errors.New("embedding dimension mismatch")
	ErrDegenerateVector       = errors.New("embedding has zero magnitude or non-finite components")
	ErrNoComparableCandidates = errors.New("no candidate artwork could be compared")
	ErrArtworkNotFound        = errors.New("artwork not found")
)

// DimensionError reports a query/candidate length disagreement.
type DimensionError struct {
	ArtworkID int64
	Want      int
	Got       int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("artwork %d: embedding dimension mismatch: expected %d, got %d", e.ArtworkID, e.Want, e.Got)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// ExtractionError is returned when image bytes cannot be turned into an embedding.
type ExtractionError struct {
	Model string
	Err   error
}

func (e *ExtractionError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("embedding extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("embedding extraction failed (%s): %v", e.Model, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// StorageError is returned when the artwork store cannot be reached or queried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("artwork store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// AsStorageError wraps err in a StorageError unless it already is one.
func AsStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// AsExtractionError wraps err in an ExtractionError unless it already is one.
func AsExtractionError(model string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return err
	}
	return &ExtractionError{Model: model, Err: err}
}
