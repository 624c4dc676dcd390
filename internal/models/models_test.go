package models

import (
	"testing"
	"time"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/dataset"
	"clientlookup/internal/lookup"
)

func portfolio(rows ...[]string) []dataset.Record {
	h := dataset.NewHeader([]string{
		"NRO_PRODUCTO", "NOMBRE_TITULAR", "NRO_IDENTIFICACION", "NOMBRE_RECUPERADOR_JURIDICO",
		"CANT_DIAS_MORA_ACTUAL", "MONTO_TOTAL_CLIENTE",
	})
	recs := make([]dataset.Record, len(rows))
	for i, r := range rows {
		recs[i] = dataset.NewRecord(h, r[2], r)
	}
	return recs
}

func TestBuildClientLookup(t *testing.T) {
	schema := config.DefaultSchema()
	res := cache.KeyResult{
		Key: "36170576",
		Records: portfolio(
			[]string{"4512****1234", "Ana Ruiz", "36170576", "Legal One", "12", "1500"},
			[]string{"4512****9999", "Ana Ruiz", "36170576", "Legal One", "", ""},
		),
		FromCache: true,
		Elapsed:   1500 * time.Microsecond,
		Stats:     cache.Statistics{RecordCount: 434381, SearchesPerformed: 3},
	}

	got := BuildClientLookup(res, schema)
	if !got.Found || got.TotalRecords != 2 {
		t.Fatalf("Found = %v, TotalRecords = %d", got.Found, got.TotalRecords)
	}
	if got.Client["holder_name"] != "Ana Ruiz" || got.Client["collector"] != "Legal One" {
		t.Errorf("Client = %v", got.Client)
	}
	if got.Obligations[0].Line != 1 || got.Obligations[1].Line != 2 {
		t.Errorf("lines = %d, %d", got.Obligations[0].Line, got.Obligations[1].Line)
	}
	if got.Obligations[0].Fields["days_past_due"] != "12" {
		t.Errorf("days_past_due = %q", got.Obligations[0].Fields["days_past_due"])
	}

	// Empty and absent amount columns default to "0"; dates default to "".
	second := got.Obligations[1].Fields
	tests := []struct {
		field string
		want  string
	}{
		{"days_past_due", "0"},
		{"total_balance", "0"},
		{"billed_payment", "0"},
		{"payment_date", ""},
		{"product_number", "4512****9999"},
	}
	for _, tt := range tests {
		if second[tt.field] != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, second[tt.field], tt.want)
		}
	}

	if got.Stats.SearchMs != 1.5 {
		t.Errorf("SearchMs = %v, want 1.5", got.Stats.SearchMs)
	}
	if got.Stats.Complexity != "O(log 434381)" {
		t.Errorf("Complexity = %q", got.Stats.Complexity)
	}
	if !got.Stats.FromCache || got.Stats.SearchesPerformed != 3 {
		t.Errorf("Stats = %+v", got.Stats)
	}
	if len(got.ItemFields) != len(schema.Items) {
		t.Errorf("ItemFields = %v", got.ItemFields)
	}
}

func TestBuildClientLookup_NotFound(t *testing.T) {
	got := BuildClientLookup(cache.KeyResult{Key: "25"}, config.DefaultSchema())
	if got.Found {
		t.Error("Found = true for empty result")
	}
	if got.Message == "" {
		t.Error("Message is empty")
	}
	if got.Obligations == nil || len(got.Obligations) != 0 {
		t.Errorf("Obligations = %v, want empty non-nil", got.Obligations)
	}
}

func TestBuildSuggestions(t *testing.T) {
	in := []lookup.Suggestion{
		{Key: "100", Fields: map[string]string{"NOMBRE_TITULAR": "Ana"}},
		{Key: "101", Fields: map[string]string{}},
	}
	got := BuildSuggestions(in, config.DefaultSchema())
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0].Key != "100" || got[0].Fields["holder_name"] != "Ana" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if v, ok := got[1].Fields["holder_name"]; !ok || v != "" {
		t.Errorf("got[1] = %+v", got[1])
	}
}

func TestNewCacheStats(t *testing.T) {
	if s := NewCacheStats(cache.Snapshot{}); s.CacheActive || s.LastUpdated != nil || s.EstimatedMemory != "0 B" {
		t.Errorf("empty stats = %+v", s)
	}

	loaded := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := NewCacheStats(cache.Snapshot{
		Active:               true,
		LoadedAt:             loaded,
		ExpiresAt:            loaded.Add(time.Hour),
		EstimatedMemoryBytes: 1_500_000,
		Stats:                cache.Statistics{RecordCount: 10, SearchesPerformed: 4},
	})
	if !s.CacheActive || s.LastUpdated == nil || !s.LastUpdated.Equal(loaded) {
		t.Errorf("stats = %+v", s)
	}
	if s.EstimatedMemory != "1.5 MB" {
		t.Errorf("EstimatedMemory = %q, want 1.5 MB", s.EstimatedMemory)
	}
}

func TestNewWarmResponse(t *testing.T) {
	res := cache.LoadResult{Stats: cache.Statistics{RecordCount: 5}}
	w := NewWarmResponse(res, 250*time.Millisecond)
	if w.RecordsLoaded != 5 || w.ElapsedMs != 250 || w.Message != "Cache warmed in 250ms" {
		t.Errorf("warm = %+v", w)
	}

	res.FromCache = true
	if w := NewWarmResponse(res, time.Millisecond); w.Message != "Cache already warm" {
		t.Errorf("Message = %q", w.Message)
	}
}

func TestNewClearResponse(t *testing.T) {
	c := NewClearResponse(cache.Statistics{RecordCount: 42})
	if c.RecordsReleased != 42 {
		t.Errorf("RecordsReleased = %d", c.RecordsReleased)
	}
}
