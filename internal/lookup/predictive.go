package lookup

import (
	"strings"
	"unicode/utf8"

	"clientlookup/internal/dataset"
)

// DefaultMinPrefixLength is the shortest fragment FindByPrefix answers.
// Shorter fragments would match most of a large dataset.
const DefaultMinPrefixLength = 3

// PrefixOptions tunes FindByPrefixWith.
type PrefixOptions struct {
	// Limit caps the number of distinct keys returned.
	Limit int
	// MinLength defaults to DefaultMinPrefixLength.
	MinLength int
	// Columns are projected into each suggestion. Defaults to the
	// dataset's descriptive columns.
	Columns []string
}

// Suggestion is one distinct key matching a prefix.
type Suggestion struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// FindByPrefix returns up to limit distinct keys starting with fragment,
// compared case-insensitively, in ascending key order.
func FindByPrefix(ds *dataset.Dataset, fragment string, limit int) []Suggestion {
	return FindByPrefixWith(ds, fragment, PrefixOptions{Limit: limit})
}

// FindByPrefixWith is FindByPrefix with explicit options.
//
// The scan stops at the first key that does not match, so matches that are
// not contiguous in the dataset's numeric-aware order (e.g. "9…" between
// "10…" runs of different widths) may be missed.
func FindByPrefixWith(ds *dataset.Dataset, fragment string, opts PrefixOptions) []Suggestion {
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinPrefixLength
	}
	needle := strings.ToLower(strings.TrimSpace(fragment))
	if opts.Limit <= 0 || ds.Len() == 0 || utf8.RuneCountInString(needle) < opts.MinLength {
		return nil
	}
	columns := opts.Columns
	if len(columns) == 0 {
		columns = ds.DescriptiveColumns()
	}

	start := -1
	lo, hi := 0, ds.Len()-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		k := strings.ToLower(ds.KeyAt(mid))
		switch {
		case strings.HasPrefix(k, needle):
			start = mid
			hi = mid - 1
		case k < needle:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	if start < 0 {
		return nil
	}

	seen := make(map[string]struct{}, opts.Limit)
	var out []Suggestion
	for i := start; i < ds.Len() && len(out) < opts.Limit; i++ {
		rec := ds.At(i)
		if !strings.HasPrefix(strings.ToLower(rec.Key), needle) {
			break
		}
		if _, dup := seen[rec.Key]; dup {
			continue
		}
		seen[rec.Key] = struct{}{}
		out = append(out, Suggestion{Key: rec.Key, Fields: rec.Project(columns)})
	}
	return out
}
