package jobs

import (
	"context"
	"log"
	"time"

	"clientlookup/internal/cache"
)

// CacheWarmer loads a dataset ahead of the first query.
type CacheWarmer interface {
	Warm(ctx context.Context, ref string) (cache.LoadResult, error)
}

// Warmer periodically revalidates the cached dataset so that a source change
// is picked up without waiting for a query to notice it.
type Warmer struct {
	cache    CacheWarmer
	ref      string
	interval time.Duration
}

// NewWarmer creates a new warmer. ref may be empty to use the cache's default.
func NewWarmer(c CacheWarmer, ref string, interval time.Duration) *Warmer {
	return &Warmer{
		cache:    c,
		ref:      ref,
		interval: interval,
	}
}

// Start begins the background warm loop.
func (w *Warmer) Start(ctx context.Context) {
	log.Printf("Cache warmer started (interval: %v)", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Cache warmer stopped")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

func (w *Warmer) warm(ctx context.Context) {
	res, err := w.cache.Warm(ctx, w.ref)
	if err != nil {
		log.Printf("Cache warmer: load failed: %v", err)
		return
	}
	if !res.FromCache {
		log.Printf("Cache warmer: reloaded %d records (version %s)", res.Stats.RecordCount, res.SourceVersion)
	}
}
