package dataset

import "errors"

// Load and query error sentinels. Callers wrap them with fmt.Errorf("%w: ...").
var (
	// Source errors
	ErrSourceUnavailable = errors.New("source unavailable")

	// Content errors
	ErrEmptyDataset   = errors.New("dataset has no valid rows")
	ErrSchemaMismatch = errors.New("required columns missing")
	ErrUnsorted       = errors.New("dataset is not sorted by key")

	// Query outcomes
	ErrNotFound        = errors.New("no records for key")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error kinds reported across the service boundary.
const (
	KindSourceUnavailable = "SourceUnavailable"
	KindEmptyDataset      = "EmptyDataset"
	KindSchemaMismatch    = "SchemaMismatch"
	KindUnsorted          = "Unsorted"
	KindNotFound          = "NotFound"
	KindInvalidArgument   = "InvalidArgument"
	KindInternal          = "Internal"
)

// KindOf returns the taxonomy tag for err, or "" when err is nil.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return KindSourceUnavailable
	case errors.Is(err, ErrEmptyDataset):
		return KindEmptyDataset
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	case errors.Is(err, ErrUnsorted):
		return KindUnsorted
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	default:
		return KindInternal
	}
}
