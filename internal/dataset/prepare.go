package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// PrepareOptions controls how a raw export is turned into a publishable dataset.
type PrepareOptions struct {
	// KeyColumn is the sort column.
	KeyColumn string
	// Columns to keep, in output order. Empty keeps every input column.
	Columns []string
	// MaskColumns are passed through MaskProductNumber.
	MaskColumns []string
}

// Prepare filters, masks and stable-sorts a CSV export by key so that it can
// be served by Parse without re-sorting. It returns the number of rows written.
func Prepare(r io.Reader, w io.Writer, opts PrepareOptions) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%w: empty CSV file", ErrEmptyDataset)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: unreadable header: %v", ErrSchemaMismatch, err)
	}
	if len(head) > 0 {
		head[0] = strings.TrimPrefix(head[0], "\ufeff")
	}
	header := NewHeader(head)

	columns := opts.Columns
	if len(columns) == 0 {
		columns = header.Names()
	}
	required := append([]string{opts.KeyColumn}, columns...)
	if missing := header.Missing(required); len(missing) > 0 {
		return 0, fmt.Errorf("%w: %s", ErrSchemaMismatch, strings.Join(missing, ", "))
	}

	var rows []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading rows: %w", err)
		}
		rec := NewRecord(header, "", row)
		rec.Key = strings.TrimSpace(rec.Get(opts.KeyColumn))
		rows = append(rows, rec)
	}

	slices.SortStableFunc(rows, func(a, b Record) int {
		return Compare(a.Key, b.Key)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return 0, err
	}
	out := make([]string, len(columns))
	for _, rec := range rows {
		for i, col := range columns {
			v := rec.Get(col)
			if slices.Contains(opts.MaskColumns, col) {
				v = MaskProductNumber(v)
			}
			out[i] = v
		}
		if err := cw.Write(out); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// MaskProductNumber keeps the first and last four characters of values longer
// than eight characters and replaces the middle with '*'.
func MaskProductNumber(v string) string {
	r := []rune(v)
	if len(r) <= 8 {
		return v
	}
	return string(r[:4]) + strings.Repeat("*", len(r)-8) + string(r[len(r)-4:])
}
