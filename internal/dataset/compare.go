package dataset

import (
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// A Collator keeps internal buffers and must not be shared between goroutines.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.Und, collate.Numeric)
	},
}

// Compare orders keys the way the published data is sorted: runs of digits
// compare by numeric value, so "9" < "10" < "100".
// Returns -1, 0 or 1.
func Compare(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// CheckSorted verifies that keys are non-decreasing under Compare over the
// first limit records (limit <= 0 checks all of them).
// It returns the index of the first out-of-order record, or -1.
func CheckSorted(records []Record, limit int) (bool, int) {
	n := len(records)
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 1; i < n; i++ {
		if Compare(records[i-1].Key, records[i].Key) > 0 {
			return false, i
		}
	}
	return true, -1
}
