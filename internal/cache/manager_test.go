package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"clientlookup/internal/dataset"
	"clientlookup/internal/testutil"
)

const ref = "clients.csv"

var header = []string{"ID", "NAME"}

func parseOpts() dataset.ParseOptions {
	return dataset.ParseOptions{KeyColumn: "ID", RequiredColumns: []string{"ID", "NAME"}}
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T, src *testutil.FakeSource, mutate func(*Options)) (*Manager, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	opts := Options{
		Ref:    ref,
		TTL:    time.Hour,
		Parse:  parseOpts(),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    clk.Now,

		// The memo's expiry goroutine outlives the Manager.
		SuggestCacheSize: -1,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewManager(src, opts), clk
}

func fiveClients() []byte {
	return testutil.CSV(header,
		[]string{"10", "Ana"},
		[]string{"10", "Ana"},
		[]string{"20", "Bruno"},
		[]string{"30", "Carla"},
		[]string{"30", "Carla"},
	)
}

func TestEnsureLoaded_Idempotent(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	first, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	if first.FromCache {
		t.Error("first load reported FromCache")
	}
	if first.Stats.RecordCount != 5 {
		t.Errorf("RecordCount = %d, want 5", first.Stats.RecordCount)
	}
	ds := m.Dataset()

	second, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second load did not report FromCache")
	}
	if m.Dataset() != ds {
		t.Error("dataset identity changed on cache hit")
	}
	if second.LoadID != first.LoadID {
		t.Errorf("LoadID changed on cache hit: %s -> %s", first.LoadID, second.LoadID)
	}
	if src.Fetches() != 1 {
		t.Errorf("Fetches = %d, want 1", src.Fetches())
	}
	if src.VersionCalls() != 2 {
		t.Errorf("VersionCalls = %d, want 2", src.VersionCalls())
	}
}

func TestEnsureLoaded_DefaultRef(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)

	if _, err := m.EnsureLoaded(context.Background(), ""); err != nil {
		t.Fatalf("EnsureLoaded(\"\") error = %v", err)
	}
	if got := m.Snapshot().SourceRef; got != ref {
		t.Errorf("SourceRef = %q, want %q", got, ref)
	}
}

func TestEnsureLoaded_ReloadsOnVersionChange(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}
	before := m.Dataset()

	src.Set(ref, testutil.CSV(header, []string{"40", "Dario"}))
	res, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	if res.FromCache {
		t.Error("reload reported FromCache")
	}
	if res.Stats.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", res.Stats.RecordCount)
	}
	if m.Dataset() == before {
		t.Error("dataset was not replaced")
	}
	if src.Fetches() != 2 {
		t.Errorf("Fetches = %d, want 2", src.Fetches())
	}
}

func TestEnsureLoaded_TTLExpiry(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, clk := newManager(t, src, nil)
	ctx := context.Background()

	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}

	clk.Advance(59 * time.Minute)
	if res, _ := m.EnsureLoaded(ctx, ref); !res.FromCache {
		t.Error("reloaded before the TTL elapsed")
	}

	clk.Advance(time.Minute)
	res, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("did not reload after the TTL elapsed")
	}
	if src.Fetches() != 2 {
		t.Errorf("Fetches = %d, want 2", src.Fetches())
	}
}

func TestEnsureLoaded_SchemaMismatch(t *testing.T) {
	t.Run("first run leaves the cache empty", func(t *testing.T) {
		src := testutil.NewFakeSource()
		src.Set(ref, testutil.CSV([]string{"ID", "OTHER"}, []string{"10", "x"}))
		m, _ := newManager(t, src, nil)

		_, err := m.EnsureLoaded(context.Background(), ref)
		if !errors.Is(err, dataset.ErrSchemaMismatch) {
			t.Fatalf("error = %v, want ErrSchemaMismatch", err)
		}
		if m.Snapshot().Active {
			t.Error("cache became active after a failed load")
		}
	})

	t.Run("previous dataset survives", func(t *testing.T) {
		src := testutil.NewFakeSource()
		src.Set(ref, fiveClients())
		m, _ := newManager(t, src, nil)
		ctx := context.Background()

		if _, err := m.EnsureLoaded(ctx, ref); err != nil {
			t.Fatal(err)
		}
		before := m.Snapshot()

		src.Set(ref, testutil.CSV([]string{"ID", "OTHER"}, []string{"10", "x"}))
		if _, err := m.EnsureLoaded(ctx, ref); !errors.Is(err, dataset.ErrSchemaMismatch) {
			t.Fatalf("error = %v, want ErrSchemaMismatch", err)
		}
		after := m.Snapshot()
		if after.LoadID != before.LoadID || after.Stats.RecordCount != 5 {
			t.Errorf("cache changed after failed load: %+v", after)
		}
	})
}

func TestEnsureLoaded_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		fail    error
		want    error
	}{
		{"empty dataset", testutil.CSV(header), nil, dataset.ErrEmptyDataset},
		{"only blank keys", testutil.CSV(header, []string{"", "x"}), nil, dataset.ErrEmptyDataset},
		{"source down", fiveClients(), errors.New("connection refused"), dataset.ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewFakeSource()
			src.Set(ref, tt.content)
			src.Fail(tt.fail)

			var observed error
			m, _ := newManager(t, src, func(o *Options) {
				o.OnLoad = func(_ LoadResult, err error) { observed = err }
			})

			_, err := m.EnsureLoaded(context.Background(), ref)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !errors.Is(observed, tt.want) {
				t.Errorf("OnLoad error = %v, want %v", observed, tt.want)
			}
		})
	}
}

func TestEnsureLoaded_UnsortedIsAWarning(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, testutil.CSV(header, []string{"30", "c"}, []string{"10", "a"}))
	m, _ := newManager(t, src, nil)

	res, err := m.EnsureLoaded(context.Background(), ref)
	if err != nil {
		t.Fatalf("EnsureLoaded() error = %v", err)
	}
	if res.AssumedSorted {
		t.Error("AssumedSorted = true for unsorted input")
	}
	if res.FirstUnsorted != 1 {
		t.Errorf("FirstUnsorted = %d, want 1", res.FirstUnsorted)
	}
}

func TestInvalidate_ForcesReload(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}
	if _, err := m.FindByKey(ctx, ref, "10"); err != nil {
		t.Fatal(err)
	}

	released := m.Invalidate()
	if released.RecordCount != 5 || released.SearchesPerformed != 1 {
		t.Errorf("released = %+v, want 5 records and 1 search", released)
	}
	if stats := m.Statistics(); stats.RecordCount != 0 || stats.SearchesPerformed != 0 {
		t.Errorf("stats after Invalidate = %+v", stats)
	}

	res, err := m.EnsureLoaded(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("EnsureLoaded after Invalidate reported FromCache")
	}
	if src.Fetches() != 2 {
		t.Errorf("Fetches = %d, want 2", src.Fetches())
	}
}

func TestInvalidate_Empty(t *testing.T) {
	m, _ := newManager(t, testutil.NewFakeSource(), nil)
	if got := m.Invalidate(); got != (Statistics{}) {
		t.Errorf("Invalidate() on empty cache = %+v", got)
	}
}

func TestFindByKey(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	res, err := m.FindByKey(ctx, ref, "10")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if len(res.Records) != 2 {
		t.Errorf("len(Records) = %d, want 2", len(res.Records))
	}
	if res.FromCache {
		t.Error("first lookup reported FromCache")
	}

	res, err = m.FindByKey(ctx, ref, "25")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("len(Records) = %d, want 0", len(res.Records))
	}
	if !res.FromCache {
		t.Error("second lookup did not report FromCache")
	}
	if res.Stats.SearchesPerformed != 2 {
		t.Errorf("SearchesPerformed = %d, want 2", res.Stats.SearchesPerformed)
	}

	if _, err := m.FindByKey(ctx, ref, "  "); !errors.Is(err, dataset.ErrInvalidArgument) {
		t.Errorf("blank key error = %v, want ErrInvalidArgument", err)
	}
}

func TestFindByKey_SearchesSurviveReload(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	m.FindByKey(ctx, ref, "10")
	src.Touch(ref)
	res, err := m.FindByKey(ctx, ref, "20")
	if err != nil {
		t.Fatal(err)
	}
	if res.FromCache {
		t.Error("lookup after version bump reported FromCache")
	}
	if res.Stats.SearchesPerformed != 2 {
		t.Errorf("SearchesPerformed = %d, want 2", res.Stats.SearchesPerformed)
	}
}

func TestFindByKey_StaleOnSourceFailure(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()

	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}
	src.Fail(errors.New("timeout"))

	res, err := m.FindByKey(ctx, ref, "20")
	if err != nil {
		t.Fatalf("FindByKey() error = %v", err)
	}
	if !res.Stale {
		t.Error("Stale = false after failed reload")
	}
	if len(res.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(res.Records))
	}
}

func TestFindByKey_NoDatasetAndSourceDown(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Fail(dataset.ErrSourceUnavailable)
	m, _ := newManager(t, src, nil)

	if _, err := m.FindByKey(context.Background(), ref, "10"); !errors.Is(err, dataset.ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestFindByKey_InvalidatedDuringLookup(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())

	var (
		m     *Manager
		armed atomic.Bool
	)
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	// The clock is read on the cache-hit path after the state is loaded, so
	// clearing the cache from it lands between the load and the lookup.
	m, _ = newManager(t, src, func(o *Options) {
		o.Now = func() time.Time {
			if armed.CompareAndSwap(true, false) {
				m.Invalidate()
			}
			return base
		}
	})
	ctx := context.Background()

	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}
	armed.Store(true)

	res, err := m.FindByKey(ctx, ref, "20")
	if err != nil {
		t.Fatalf("FindByKey: %v (kind %s)", err, dataset.KindOf(err))
	}
	if len(res.Records) != 1 || res.Stale {
		t.Errorf("FindByKey = %d records, stale %v; want 1, false", len(res.Records), res.Stale)
	}
	if src.Fetches() != 2 {
		t.Errorf("fetches = %d, want 2 (reload after the clear)", src.Fetches())
	}
}

func TestFindByPrefix(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, testutil.CSV(header,
		[]string{"100", "Ana"},
		[]string{"100", "Ana"},
		[]string{"101", "Bruno"},
		[]string{"109", "Carla"},
		[]string{"200", "Dario"},
	))
	m, _ := newManager(t, src, func(o *Options) { o.SuggestCacheSize = 16 })

	if _, active := m.FindByPrefix("100", 5); active {
		t.Error("FindByPrefix reported active before any load")
	}
	if src.Fetches() != 0 {
		t.Error("FindByPrefix triggered a load")
	}

	if _, err := m.EnsureLoaded(context.Background(), ref); err != nil {
		t.Fatal(err)
	}

	got, active := m.FindByPrefix("10", 5)
	if !active || len(got) != 0 {
		t.Errorf("FindByPrefix(10) = %v, %v; want empty, true", got, active)
	}

	got, _ = m.FindByPrefix("100", 5)
	if len(got) != 1 || got[0].Key != "100" || got[0].Fields["NAME"] != "Ana" {
		t.Errorf("FindByPrefix(100) = %+v", got)
	}

	// Memoized answers are still correct.
	again, _ := m.FindByPrefix("100", 5)
	if len(again) != 1 || again[0].Key != "100" {
		t.Errorf("memoized FindByPrefix(100) = %+v", again)
	}
	if m.Statistics().SearchesPerformed != 0 {
		t.Error("prefix searches counted as key searches")
	}
}

func TestFindByPrefix_ShortFragmentOption(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, testutil.CSV(header,
		[]string{"100", "a"}, []string{"101", "b"}, []string{"109", "c"}, []string{"200", "d"},
	))
	m, _ := newManager(t, src, func(o *Options) { o.SuggestMinLength = 2 })
	if _, err := m.EnsureLoaded(context.Background(), ref); err != nil {
		t.Fatal(err)
	}

	got, _ := m.FindByPrefix("10", 10)
	if len(got) != 3 || got[0].Key != "100" || got[1].Key != "101" || got[2].Key != "109" {
		t.Errorf("FindByPrefix(10) = %+v, want 100 101 109", got)
	}
}

func TestFindByPrefix_MemoClearedOnReload(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, testutil.CSV(header, []string{"123", "old"}))
	m, _ := newManager(t, src, func(o *Options) { o.SuggestCacheSize = 16 })
	ctx := context.Background()

	m.EnsureLoaded(ctx, ref)
	if got, _ := m.FindByPrefix("123", 5); len(got) != 1 || got[0].Fields["NAME"] != "old" {
		t.Fatalf("FindByPrefix = %+v", got)
	}

	src.Set(ref, testutil.CSV(header, []string{"123", "new"}))
	m.EnsureLoaded(ctx, ref)
	if got, _ := m.FindByPrefix("123", 5); len(got) != 1 || got[0].Fields["NAME"] != "new" {
		t.Errorf("FindByPrefix after reload = %+v", got)
	}
}

func TestConcurrentLoads_FetchOnce(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	release := src.Block()

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.EnsureLoaded(context.Background(), ref)
			errs <- err
		}()
	}

	// Give the callers time to pile up behind the blocked fetch.
	time.Sleep(50 * time.Millisecond)
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("EnsureLoaded() error = %v", err)
		}
	}
	if src.Fetches() != 1 {
		t.Errorf("Fetches = %d, want 1", src.Fetches())
	}
}

func TestConcurrentSearches_NoLostUpdates(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, _ := newManager(t, src, nil)
	ctx := context.Background()
	if _, err := m.EnsureLoaded(ctx, ref); err != nil {
		t.Fatal(err)
	}

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				m.FindByKey(ctx, ref, "20")
			}
		}()
	}
	wg.Wait()

	if got := m.Statistics().SearchesPerformed; got != workers*perWorker {
		t.Errorf("SearchesPerformed = %d, want %d", got, workers*perWorker)
	}
}

func TestSnapshot(t *testing.T) {
	src := testutil.NewFakeSource()
	src.Set(ref, fiveClients())
	m, clk := newManager(t, src, nil)

	if snap := m.Snapshot(); snap.Active {
		t.Error("empty cache reported active")
	}

	res, err := m.EnsureLoaded(context.Background(), ref)
	if err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	if !snap.Active || snap.Stats.RecordCount != 5 {
		t.Errorf("Snapshot = %+v", snap)
	}
	if !snap.LoadedAt.Equal(clk.Now()) {
		t.Errorf("LoadedAt = %v, want %v", snap.LoadedAt, clk.Now())
	}
	if !snap.ExpiresAt.Equal(clk.Now().Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v", snap.ExpiresAt)
	}
	if snap.LoadID != res.LoadID || snap.ContentDigest != res.ContentDigest {
		t.Error("snapshot and load result disagree on identity")
	}
	if snap.EstimatedMemoryBytes <= 0 {
		t.Errorf("EstimatedMemoryBytes = %d", snap.EstimatedMemoryBytes)
	}
	if snap.SourceVersion != "v1" {
		t.Errorf("SourceVersion = %q, want v1", snap.SourceVersion)
	}
}
