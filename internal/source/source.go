// Package source provides the adapters the cache loads datasets from.
//
// Every adapter answers two questions about a named source: what is its
// current version token, and what is its full content. Token equality is the
// only staleness signal; callers never interpret the token.
package source

import (
	"context"
	"fmt"

	"clientlookup/internal/dataset"
)

// Source is a read-only provider of tabular content.
// Implementations must be safe for concurrent use.
type Source interface {
	// Version returns an opaque token that changes whenever the content does.
	// It must not download the content.
	Version(ctx context.Context, ref string) (string, error)

	// Fetch returns the full content of ref.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// unavailable wraps an adapter failure as dataset.ErrSourceUnavailable.
func unavailable(op, ref string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", dataset.ErrSourceUnavailable, op, ref, err)
}
