package models

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"clientlookup/internal/cache"
)

// CacheStats is the cache report exposed to clients.
type CacheStats struct {
	CacheActive          bool       `json:"cache_active"`
	TotalRecords         int        `json:"total_records"`
	LastUpdated          *time.Time `json:"last_updated"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty"`
	LoadMs               float64    `json:"load_ms"`
	LastSearchMs         float64    `json:"last_search_ms"`
	SearchesPerformed    int64      `json:"searches_performed"`
	EstimatedMemoryBytes int64      `json:"estimated_memory_bytes"`
	EstimatedMemory      string     `json:"estimated_memory"`
	SourceRef            string     `json:"source_ref,omitempty"`
	SourceVersion        string     `json:"source_version,omitempty"`
	AssumedSorted        bool       `json:"assumed_sorted"`
	LoadID               string     `json:"load_id,omitempty"`
	ContentDigest        string     `json:"content_digest,omitempty"`
}

// NewCacheStats converts a cache snapshot.
func NewCacheStats(s cache.Snapshot) CacheStats {
	out := CacheStats{
		CacheActive:          s.Active,
		TotalRecords:         s.Stats.RecordCount,
		LoadMs:               s.Stats.LastLoadDurationMs,
		LastSearchMs:         s.Stats.LastSearchDurationMs,
		SearchesPerformed:    s.Stats.SearchesPerformed,
		EstimatedMemoryBytes: s.EstimatedMemoryBytes,
		EstimatedMemory:      humanize.Bytes(uint64(max(s.EstimatedMemoryBytes, 0))),
		SourceRef:            s.SourceRef,
		SourceVersion:        s.SourceVersion,
		AssumedSorted:        s.AssumedSorted,
		LoadID:               s.LoadID,
		ContentDigest:        s.ContentDigest,
	}
	if s.Active {
		loaded, expires := s.LoadedAt, s.ExpiresAt
		out.LastUpdated = &loaded
		out.ExpiresAt = &expires
	}
	return out
}

// ClearResponse reports what Invalidate released.
type ClearResponse struct {
	Message         string           `json:"message"`
	RecordsReleased int              `json:"records_released"`
	Released        cache.Statistics `json:"released"`
}

// NewClearResponse builds the response for a cleared cache.
func NewClearResponse(released cache.Statistics) ClearResponse {
	return ClearResponse{
		Message:         "Cache cleared",
		RecordsReleased: released.RecordCount,
		Released:        released,
	}
}

// WarmResponse reports a warm-up.
type WarmResponse struct {
	Message       string           `json:"message"`
	ElapsedMs     float64          `json:"elapsed_ms"`
	RecordsLoaded int              `json:"records_loaded"`
	Load          cache.LoadResult `json:"load"`
}

// NewWarmResponse builds the response for a warm-up that took elapsed.
func NewWarmResponse(res cache.LoadResult, elapsed time.Duration) WarmResponse {
	ms := float64(elapsed.Microseconds()) / 1000
	msg := fmt.Sprintf("Cache warmed in %.0fms", ms)
	if res.FromCache {
		msg = "Cache already warm"
	}
	return WarmResponse{
		Message:       msg,
		ElapsedMs:     ms,
		RecordsLoaded: res.Stats.RecordCount,
		Load:          res,
	}
}
