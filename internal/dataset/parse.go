package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

const (
	// DefaultSortCheckLimit is how many leading records the sortedness check covers.
	DefaultSortCheckLimit = 1000
	// DefaultBatchSize is the record slice growth step while parsing.
	DefaultBatchSize = 5000
)

// ParseOptions declares the expected schema and load behaviour.
type ParseOptions struct {
	// KeyColumn is the primary lookup column. It is always required.
	KeyColumn string
	// RequiredColumns must all be present in the header.
	RequiredColumns []string
	// SortCheckLimit bounds the sortedness check; negative checks every record.
	SortCheckLimit int
	// Strict rejects datasets that fail the sortedness check with ErrUnsorted.
	Strict bool
	// BatchSizeHint is advisory; it only affects allocation.
	BatchSizeHint int
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.SortCheckLimit == 0 {
		o.SortCheckLimit = DefaultSortCheckLimit
	}
	if o.BatchSizeHint <= 0 {
		o.BatchSizeHint = DefaultBatchSize
	}
	return o
}

func (o ParseOptions) required() []string {
	cols := []string{o.KeyColumn}
	for _, c := range o.RequiredColumns {
		if c != o.KeyColumn && !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}

// Parse reads CSV content with a header row into a Dataset.
//
// Rows with no fields or an empty key are dropped silently. The input is
// expected to be sorted by key already; Parse never re-sorts it.
func Parse(r io.Reader, opts ParseOptions) (*Dataset, error) {
	opts = opts.withDefaults()
	if opts.KeyColumn == "" {
		return nil, fmt.Errorf("%w: no key column declared", ErrInvalidArgument)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty CSV file", ErrEmptyDataset)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable header: %v", ErrSchemaMismatch, err)
	}
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	header := NewHeader(head)

	required := opts.required()
	if missing := header.Missing(required); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}
	keyIdx, _ := header.Index(opts.KeyColumn)

	records := make([]Record, 0, opts.BatchSizeHint)
	dropped := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				dropped++
				continue
			}
			return nil, fmt.Errorf("%w: reading rows: %v", ErrSourceUnavailable, err)
		}
		if len(row) == 0 || keyIdx >= len(row) || strings.TrimSpace(row[keyIdx]) == "" {
			dropped++
			continue
		}
		if len(records) == cap(records) {
			records = slices.Grow(records, opts.BatchSizeHint)
		}
		records = append(records, NewRecord(header, row[keyIdx], row))
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %d rows read, none usable", ErrEmptyDataset, dropped)
	}

	limit := opts.SortCheckLimit
	if limit < 0 {
		limit = 0
	}
	ds := New(header, opts.KeyColumn, required[1:], records, limit)
	ds.dropped = dropped

	if opts.Strict && !ds.AssumedSorted() {
		at := ds.FirstUnsorted()
		return nil, fmt.Errorf("%w: record %d (%q) follows %q",
			ErrUnsorted, at, records[at].Key, records[at-1].Key)
	}
	return ds, nil
}
