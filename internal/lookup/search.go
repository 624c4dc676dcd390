// Package lookup implements binary-search queries over a key-ordered dataset.
//
// Both searches rely on the dataset being sorted by key. When that does not
// hold (see dataset.Dataset.AssumedSorted) results may be incomplete.
package lookup

import (
	"strings"

	"clientlookup/internal/dataset"
)

// FindByKey returns every record whose key equals key, in dataset order.
// It costs O(log n + m) comparisons for m matches and returns nil on a miss.
func FindByKey(ds *dataset.Dataset, key string) []dataset.Record {
	target := strings.TrimSpace(key)
	if target == "" || ds.Len() == 0 {
		return nil
	}

	first := leftmost(ds, target)
	if first < 0 {
		return nil
	}

	// Keys may collate equal without being identical ("010" and "10"); only
	// identical keys are returned, but the run is bounded by collation.
	var found []dataset.Record
	for i := first; i < ds.Len(); i++ {
		k := ds.KeyAt(i)
		if dataset.Compare(k, target) != 0 {
			break
		}
		if k == target {
			found = append(found, ds.At(i))
		}
	}
	return found
}

// leftmost returns the index of the first record comparing equal to target,
// or -1. On equality the search keeps narrowing to the left.
func leftmost(ds *dataset.Dataset, target string) int {
	first := -1
	lo, hi := 0, ds.Len()-1
	for lo <= hi {
		mid := int(uint(lo+hi) >> 1)
		switch c := dataset.Compare(ds.KeyAt(mid), target); {
		case c == 0:
			first = mid
			hi = mid - 1
		case c < 0:
			lo = mid + 1
		default:
			hi = mid - 1
		}
	}
	return first
}
