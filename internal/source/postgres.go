package source

import (
	"context"
)

// SnapshotStore holds published dataset snapshots by name.
type SnapshotStore interface {
	SnapshotVersion(ctx context.Context, name string) (string, error)
	SnapshotContent(ctx context.Context, name string) ([]byte, error)
}

// Postgres serves datasets published into the snapshot table by cmd/publish.
// Refs are snapshot names.
type Postgres struct {
	store SnapshotStore
}

// NewPostgres creates a source over a snapshot store.
func NewPostgres(store SnapshotStore) *Postgres {
	return &Postgres{store: store}
}

// Version returns the snapshot's checksum and publish time.
func (p *Postgres) Version(ctx context.Context, ref string) (string, error) {
	v, err := p.store.SnapshotVersion(ctx, ref)
	if err != nil {
		return "", unavailable("snapshot version", ref, err)
	}
	return v, nil
}

// Fetch returns the snapshot content.
func (p *Postgres) Fetch(ctx context.Context, ref string) ([]byte, error) {
	data, err := p.store.SnapshotContent(ctx, ref)
	if err != nil {
		return nil, unavailable("snapshot content", ref, err)
	}
	return data, nil
}
