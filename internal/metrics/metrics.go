package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"clientlookup/internal/cache"
	"clientlookup/internal/dataset"
)

var (
	recordsDesc = prometheus.NewDesc(
		"clientlookup_cache_records",
		"Records in the loaded dataset",
		nil, nil,
	)
	activeDesc = prometheus.NewDesc(
		"clientlookup_cache_active",
		"1 when a dataset is loaded",
		nil, nil,
	)
	sortedDesc = prometheus.NewDesc(
		"clientlookup_cache_assumed_sorted",
		"1 when the loaded dataset passed the sortedness check",
		nil, nil,
	)
	loadSecondsDesc = prometheus.NewDesc(
		"clientlookup_cache_last_load_seconds",
		"Duration of the last dataset load",
		nil, nil,
	)
	searchSecondsDesc = prometheus.NewDesc(
		"clientlookup_cache_last_search_seconds",
		"Duration of the last key search",
		nil, nil,
	)
	searchesDesc = prometheus.NewDesc(
		"clientlookup_cache_searches_total",
		"Key searches since the cache was last cleared",
		nil, nil,
	)
	memoryDesc = prometheus.NewDesc(
		"clientlookup_cache_memory_bytes",
		"Estimated heap held by the loaded dataset",
		nil, nil,
	)
	loadedAtDesc = prometheus.NewDesc(
		"clientlookup_cache_loaded_timestamp_seconds",
		"Unix time the loaded dataset was fetched",
		nil, nil,
	)
)

var (
	loadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientlookup_cache_loads_total",
		Help: "Dataset load attempts by outcome",
	}, []string{"outcome"})

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clientlookup_lookups_total",
		Help: "Lookups served by kind and outcome",
	}, []string{"kind", "outcome"})
)

// Lookup kinds and outcomes.
const (
	KindKey    = "key"
	KindPrefix = "prefix"

	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// SnapshotSource reports the cache state on demand.
type SnapshotSource interface {
	Snapshot() cache.Snapshot
}

// CacheCollector is a custom Prometheus collector that reads cache statistics
// on each scrape.
type CacheCollector struct {
	src SnapshotSource
}

// NewCacheCollector creates a collector over src.
func NewCacheCollector(src SnapshotSource) *CacheCollector {
	return &CacheCollector{src: src}
}

// Describe sends the metric descriptors to the channel.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- recordsDesc
	ch <- activeDesc
	ch <- sortedDesc
	ch <- loadSecondsDesc
	ch <- searchSecondsDesc
	ch <- searchesDesc
	ch <- memoryDesc
	ch <- loadedAtDesc
}

// Collect emits the current cache statistics.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.src.Snapshot()

	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	gauge(recordsDesc, float64(snap.Stats.RecordCount))
	gauge(activeDesc, boolFloat(snap.Active))
	gauge(sortedDesc, boolFloat(snap.Active && snap.AssumedSorted))
	gauge(loadSecondsDesc, snap.Stats.LastLoadDurationMs/1000)
	gauge(searchSecondsDesc, snap.Stats.LastSearchDurationMs/1000)
	gauge(memoryDesc, float64(snap.EstimatedMemoryBytes))
	if !snap.LoadedAt.IsZero() {
		gauge(loadedAtDesc, float64(snap.LoadedAt.UnixNano())/1e9)
	}
	ch <- prometheus.MustNewConstMetric(searchesDesc, prometheus.CounterValue, float64(snap.Stats.SearchesPerformed))
}

var initOnce sync.Once

// Init registers the cache collector with the default registry.
// Must be called once at startup.
func Init(src SnapshotSource) {
	initOnce.Do(func() {
		prometheus.MustRegister(NewCacheCollector(src))
	})
}

// ObserveLoad counts a load attempt. Its signature matches cache.Options.OnLoad.
func ObserveLoad(_ cache.LoadResult, err error) {
	outcome := "ok"
	if err != nil {
		outcome = dataset.KindOf(err)
	}
	loadsTotal.WithLabelValues(outcome).Inc()
}

// RecordLookup counts one lookup.
func RecordLookup(kind, outcome string) {
	lookupsTotal.WithLabelValues(kind, outcome).Inc()
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
