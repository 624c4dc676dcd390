// Package diagnostics derives performance reports from cache statistics.
package diagnostics

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"clientlookup/internal/cache"
)

const (
	DefaultExpectedRecords = 434381
	DefaultSlowThreshold   = 100 * time.Millisecond
	DefaultFastThreshold   = 50 * time.Millisecond
)

// Recommendation severities.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
)

// Options tunes the recommendations.
type Options struct {
	// ExpectedRecords is the record count a healthy load produces. Zero
	// disables the check.
	ExpectedRecords int
	SlowThreshold   time.Duration
	FastThreshold   time.Duration
}

// DefaultOptions returns the thresholds used when none are configured.
func DefaultOptions() Options {
	return Options{
		ExpectedRecords: DefaultExpectedRecords,
		SlowThreshold:   DefaultSlowThreshold,
		FastThreshold:   DefaultFastThreshold,
	}
}

// Performance holds the derived metrics.
type Performance struct {
	Complexity           string   `json:"complexity"`
	WorstCaseComparisons int      `json:"worst_case_comparisons"`
	ExpectedLatency      string   `json:"expected_latency"`
	EstimatedMemory      string   `json:"estimated_memory"`
	SearchesPerSecond    *float64 `json:"searches_per_second"`
}

// Recommendation is one advisory finding.
type Recommendation struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Report is the full diagnostics output.
type Report struct {
	Cache           cache.Snapshot   `json:"cache"`
	Performance     Performance      `json:"performance"`
	Recommendations []Recommendation `json:"recommendations"`
}

// WorstCaseComparisons is ceil(log2(n)), the comparisons a binary search
// over n records may need. It is 0 for n <= 1.
func WorstCaseComparisons(n int) int {
	if n <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(n))))
}

// Diagnose reports on snap. It has no side effects.
func Diagnose(snap cache.Snapshot, opts Options) Report {
	if opts.SlowThreshold <= 0 {
		opts.SlowThreshold = DefaultSlowThreshold
	}
	if opts.FastThreshold <= 0 {
		opts.FastThreshold = DefaultFastThreshold
	}

	n := snap.Stats.RecordCount
	perf := Performance{
		Complexity:      "N/A",
		ExpectedLatency: "N/A",
		EstimatedMemory: humanize.Bytes(uint64(max(snap.EstimatedMemoryBytes, 0))),
	}
	if n > 0 {
		perf.WorstCaseComparisons = WorstCaseComparisons(n)
		perf.Complexity = fmt.Sprintf("O(log %d) ≈ %d comparisons max", n, perf.WorstCaseComparisons)
		perf.ExpectedLatency = "< " + opts.FastThreshold.String() + " per search"
	}

	last := snap.Stats.LastSearchDurationMs
	if last > 0 {
		perSecond := math.Round(1000 / last)
		perf.SearchesPerSecond = &perSecond
	}

	recs := []Recommendation{}
	if !snap.Active {
		recs = append(recs, Recommendation{
			Level:   LevelCritical,
			Message: "Cache is inactive. Warm it before serving lookups.",
		})
	}

	lastDur := time.Duration(last * float64(time.Millisecond))
	switch {
	case lastDur > opts.SlowThreshold:
		recs = append(recs, Recommendation{
			Level:   LevelWarning,
			Message: fmt.Sprintf("Slow search detected (%s). Check that the dataset is sorted by key.", lastDur),
		})
	case last > 0 && lastDur < opts.FastThreshold:
		recs = append(recs, Recommendation{
			Level:   LevelInfo,
			Message: "Search performance is optimal for this dataset size.",
		})
	}

	if snap.Active && !snap.AssumedSorted {
		recs = append(recs, Recommendation{
			Level:   LevelWarning,
			Message: "Dataset failed the sortedness check; lookups may miss records.",
		})
	}

	if opts.ExpectedRecords > 0 && n != opts.ExpectedRecords {
		recs = append(recs, Recommendation{
			Level: LevelWarning,
			Message: fmt.Sprintf("Record count (%s) differs from the expected %s.",
				humanize.Comma(int64(n)), humanize.Comma(int64(opts.ExpectedRecords))),
		})
	}

	return Report{Cache: snap, Performance: perf, Recommendations: recs}
}
