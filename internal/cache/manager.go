// Package cache owns the process-wide dataset cache.
//
// A Manager decides on every request whether the loaded dataset can be reused
// or must be reloaded from its source. Two independent signals expire a
// loaded dataset: the source's version token changing, and the TTL elapsing.
// A loaded dataset is immutable; reloads publish a new one by atomic pointer
// swap so in-flight lookups finish against the dataset they started with.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"clientlookup/internal/dataset"
	"clientlookup/internal/lookup"
	"clientlookup/internal/source"
)

const (
	DefaultTTL              = time.Hour
	DefaultSuggestLimit     = 5
	DefaultSuggestCacheSize = 512
)

// Options configures a Manager.
type Options struct {
	// Ref is used when callers pass an empty source ref.
	Ref string
	TTL time.Duration

	Parse dataset.ParseOptions

	// SuggestLimit caps FindByPrefix when the caller passes limit <= 0.
	SuggestLimit int
	// SuggestMinLength is the shortest fragment FindByPrefix answers.
	SuggestMinLength int
	// SuggestFields are projected into suggestions. Empty uses the
	// dataset's descriptive columns.
	SuggestFields []string
	// SuggestCacheSize bounds the suggestion memo. Negative disables it.
	SuggestCacheSize int

	Logger *slog.Logger
	// Now is the clock used for TTL decisions.
	Now func() time.Time
	// OnLoad observes every load attempt that reached the source.
	OnLoad func(LoadResult, error)
}

// Statistics are the cumulative usage counters of a cache.
type Statistics struct {
	RecordCount          int     `json:"record_count"`
	LastLoadDurationMs   float64 `json:"last_load_duration_ms"`
	LastSearchDurationMs float64 `json:"last_search_duration_ms"`
	SearchesPerformed    int64   `json:"searches_performed"`
}

// LoadResult describes the outcome of EnsureLoaded.
type LoadResult struct {
	FromCache     bool       `json:"from_cache"`
	LoadID        string     `json:"load_id,omitempty"`
	SourceVersion string     `json:"source_version,omitempty"`
	AssumedSorted bool       `json:"assumed_sorted"`
	FirstUnsorted int        `json:"first_unsorted,omitempty"`
	DroppedRows   int        `json:"dropped_rows"`
	ContentDigest string     `json:"content_digest,omitempty"`
	Stats         Statistics `json:"stats"`
}

// Snapshot is a point-in-time report of the cache.
type Snapshot struct {
	Active               bool       `json:"cache_active"`
	Stats                Statistics `json:"stats"`
	LoadedAt             time.Time  `json:"last_updated,omitzero"`
	ExpiresAt            time.Time  `json:"expires_at,omitzero"`
	SourceRef            string     `json:"source_ref,omitempty"`
	SourceVersion        string     `json:"source_version,omitempty"`
	AssumedSorted        bool       `json:"assumed_sorted"`
	EstimatedMemoryBytes int64      `json:"estimated_memory_bytes"`
	LoadID               string     `json:"load_id,omitempty"`
	ContentDigest        string     `json:"content_digest,omitempty"`
}

// KeyResult is the outcome of FindByKey.
type KeyResult struct {
	Key       string
	Records   []dataset.Record
	FromCache bool
	// Stale is set when the reload failed and the previous dataset answered.
	Stale   bool
	Elapsed time.Duration
	Stats   Statistics
}

type cacheState struct {
	ds           *dataset.Dataset
	ref          string
	version      string
	loadedAt     time.Time
	loadDuration time.Duration
	loadID       uuid.UUID
	digest       uint64
}

// Manager is the cache. It is safe for concurrent use.
type Manager struct {
	src  source.Source
	opts Options
	log  *slog.Logger

	state atomic.Pointer[cacheState]

	// loadMu serializes loads with Invalidate; group collapses concurrent
	// reloads of one ref into a single fetch.
	loadMu sync.Mutex
	group  singleflight.Group

	searches        atomic.Int64
	lastSearchNanos atomic.Int64

	suggestions *expirable.LRU[string, []lookup.Suggestion]
}

// NewManager creates an empty cache over src.
//
// A positive SuggestCacheSize starts an expiry goroutine in the suggestion
// memo that lives as long as the process. Build one Manager per process.
func NewManager(src source.Source, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SuggestLimit <= 0 {
		opts.SuggestLimit = DefaultSuggestLimit
	}
	if opts.SuggestMinLength <= 0 {
		opts.SuggestMinLength = lookup.DefaultMinPrefixLength
	}
	if opts.SuggestCacheSize == 0 {
		opts.SuggestCacheSize = DefaultSuggestCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Manager{
		src:  src,
		opts: opts,
		log:  opts.Logger.With("component", "cache"),
	}
	if opts.SuggestCacheSize > 0 {
		m.suggestions = expirable.NewLRU[string, []lookup.Suggestion](opts.SuggestCacheSize, nil, opts.TTL)
	}
	return m
}

// TTL returns the configured time-to-live.
func (m *Manager) TTL() time.Duration { return m.opts.TTL }

// SourceRef returns the default source ref.
func (m *Manager) SourceRef() string { return m.opts.Ref }

// EnsureLoaded makes sure a fresh dataset for ref is loaded. The source
// version is checked on every call; content is fetched only when the cache
// is empty, the version changed, or the TTL elapsed. A failed load leaves
// the previous dataset in place.
func (m *Manager) EnsureLoaded(ctx context.Context, ref string) (LoadResult, error) {
	if ref == "" {
		ref = m.opts.Ref
	}

	version, err := m.src.Version(ctx, ref)
	if err != nil {
		err = asUnavailable(err)
		m.log.Error("source version check failed", "ref", ref, "error", err)
		m.observe(LoadResult{}, err)
		return LoadResult{Stats: m.Statistics()}, err
	}

	if st := m.state.Load(); m.valid(st, ref, version) {
		m.log.Debug("cache hit", "ref", ref, "version", version)
		return m.result(st, true), nil
	}

	v, err, _ := m.group.Do(ref, func() (any, error) {
		return m.reload(context.WithoutCancel(ctx), ref, version)
	})
	if err != nil {
		return LoadResult{Stats: m.Statistics()}, err
	}
	return v.(LoadResult), nil
}

// Warm loads ref ahead of the first query. It behaves exactly like EnsureLoaded.
func (m *Manager) Warm(ctx context.Context, ref string) (LoadResult, error) {
	start := time.Now()
	res, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		m.log.Error("cache warm failed", "ref", ref, "error", err)
		return res, err
	}
	m.log.Info("cache warmed",
		"ref", ref,
		"from_cache", res.FromCache,
		"records", res.Stats.RecordCount,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// Invalidate empties the cache and returns the statistics in effect before
// it was cleared. It waits for an in-flight load to finish.
func (m *Manager) Invalidate() Statistics {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	released := m.Statistics()
	m.state.Store(nil)
	m.searches.Store(0)
	m.lastSearchNanos.Store(0)
	if m.suggestions != nil {
		m.suggestions.Purge()
	}
	m.log.Info("cache invalidated", "records_released", released.RecordCount)
	return released
}

// Statistics returns the current counters.
func (m *Manager) Statistics() Statistics {
	st := m.state.Load()
	s := Statistics{
		LastSearchDurationMs: millis(time.Duration(m.lastSearchNanos.Load())),
		SearchesPerformed:    m.searches.Load(),
	}
	if st != nil {
		s.RecordCount = st.ds.Len()
		s.LastLoadDurationMs = millis(st.loadDuration)
	}
	return s
}

// Snapshot reports the cache without touching the source.
func (m *Manager) Snapshot() Snapshot {
	st := m.state.Load()
	snap := Snapshot{Stats: m.Statistics()}
	if st == nil {
		return snap
	}
	snap.Active = true
	snap.LoadedAt = st.loadedAt
	snap.ExpiresAt = st.loadedAt.Add(m.opts.TTL)
	snap.SourceRef = st.ref
	snap.SourceVersion = st.version
	snap.AssumedSorted = st.ds.AssumedSorted()
	snap.EstimatedMemoryBytes = st.ds.SizeBytes()
	snap.LoadID = st.loadID.String()
	snap.ContentDigest = digestString(st.digest)
	return snap
}

// Dataset returns the loaded dataset, or nil.
func (m *Manager) Dataset() *dataset.Dataset {
	if st := m.state.Load(); st != nil {
		return st.ds
	}
	return nil
}

// FindByKey ensures ref is loaded and returns every record whose key equals
// key. When the reload fails but an earlier dataset is loaded, the earlier
// dataset answers and the result is marked stale.
func (m *Manager) FindByKey(ctx context.Context, ref, key string) (KeyResult, error) {
	key = strings.TrimSpace(key)
	res := KeyResult{Key: key}
	if key == "" {
		return res, fmt.Errorf("%w: empty key", dataset.ErrInvalidArgument)
	}

	var (
		load LoadResult
		st   *cacheState
		err  error
	)
	// An Invalidate between the load and the read empties the cache; load once more.
	for attempt := 0; attempt < 2 && st == nil; attempt++ {
		load, err = m.EnsureLoaded(ctx, ref)
		st = m.state.Load()
		if err != nil {
			break
		}
	}
	if err != nil {
		if st == nil {
			return res, err
		}
		m.log.Warn("serving previous dataset after failed reload", "ref", st.ref, "error", err)
		res.Stale = true
	}
	if st == nil {
		return res, errors.New("cache was cleared during lookup")
	}
	res.FromCache = load.FromCache

	start := time.Now()
	res.Records = lookup.FindByKey(st.ds, key)
	res.Elapsed = time.Since(start)

	m.recordSearch(res.Elapsed)
	res.Stats = m.Statistics()
	return res, nil
}

// FindByPrefix returns up to limit suggestions from the loaded dataset. It
// never triggers a load; active is false when nothing is loaded.
func (m *Manager) FindByPrefix(fragment string, limit int) (suggestions []lookup.Suggestion, active bool) {
	st := m.state.Load()
	if st == nil {
		return nil, false
	}
	if limit <= 0 {
		limit = m.opts.SuggestLimit
	}

	memoKey := st.loadID.String() + "/" + strconv.Itoa(limit) + "/" + fragment
	if m.suggestions != nil {
		if cached, ok := m.suggestions.Get(memoKey); ok {
			return cached, true
		}
	}

	out := lookup.FindByPrefixWith(st.ds, fragment, lookup.PrefixOptions{
		Limit:     limit,
		MinLength: m.opts.SuggestMinLength,
		Columns:   m.opts.SuggestFields,
	})
	if m.suggestions != nil {
		m.suggestions.Add(memoKey, out)
	}
	return out, true
}

func (m *Manager) reload(ctx context.Context, ref, version string) (LoadResult, error) {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	// A load that finished while this one waited may already satisfy it.
	if st := m.state.Load(); m.valid(st, ref, version) {
		return m.result(st, true), nil
	}

	loadedAt := m.opts.Now()
	start := time.Now()
	m.log.Info("loading dataset", "ref", ref, "version", version)

	data, err := m.src.Fetch(ctx, ref)
	if err != nil {
		err = asUnavailable(err)
		m.log.Error("dataset fetch failed", "ref", ref, "error", err)
		m.observe(LoadResult{}, err)
		return LoadResult{}, err
	}

	ds, err := dataset.Parse(bytes.NewReader(data), m.opts.Parse)
	if err != nil {
		m.log.Error("dataset parse failed", "ref", ref, "kind", dataset.KindOf(err), "error", err)
		m.observe(LoadResult{}, err)
		return LoadResult{}, err
	}

	st := &cacheState{
		ds:           ds,
		ref:          ref,
		version:      version,
		loadedAt:     loadedAt,
		loadDuration: time.Since(start),
		loadID:       uuid.New(),
		digest:       xxhash.Sum64(data),
	}
	m.state.Store(st)
	m.lastSearchNanos.Store(0)
	if m.suggestions != nil {
		m.suggestions.Purge()
	}

	if !ds.AssumedSorted() {
		m.log.Warn("dataset is not sorted by key; lookups may be incomplete",
			"ref", ref,
			"key_column", ds.KeyColumn(),
			"first_unsorted", ds.FirstUnsorted(),
		)
	}
	m.log.Info("dataset loaded",
		"ref", ref,
		"records", ds.Len(),
		"dropped", ds.Dropped(),
		"duration", st.loadDuration,
		"load_id", st.loadID,
	)

	res := m.result(st, false)
	m.observe(res, nil)
	return res, nil
}

func (m *Manager) valid(st *cacheState, ref, version string) bool {
	return st != nil &&
		st.ref == ref &&
		st.version == version &&
		m.opts.Now().Sub(st.loadedAt) < m.opts.TTL
}

func (m *Manager) result(st *cacheState, fromCache bool) LoadResult {
	return LoadResult{
		FromCache:     fromCache,
		LoadID:        st.loadID.String(),
		SourceVersion: st.version,
		AssumedSorted: st.ds.AssumedSorted(),
		FirstUnsorted: st.ds.FirstUnsorted(),
		DroppedRows:   st.ds.Dropped(),
		ContentDigest: digestString(st.digest),
		Stats:         m.Statistics(),
	}
}

func (m *Manager) recordSearch(d time.Duration) {
	m.searches.Add(1)
	m.lastSearchNanos.Store(int64(d))
}

func (m *Manager) observe(res LoadResult, err error) {
	if m.opts.OnLoad != nil {
		m.opts.OnLoad(res, err)
	}
}

func asUnavailable(err error) error {
	if errors.Is(err, dataset.ErrSourceUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", dataset.ErrSourceUnavailable, err)
}

func digestString(d uint64) string {
	return fmt.Sprintf("%016x", d)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
