package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jackc/pgx/v5"
)

// Snapshot is a published copy of a prepared dataset.
type Snapshot struct {
	Name      string
	Checksum  string
	RowCount  int
	UpdatedAt time.Time
}

// Checksum returns the content digest stored alongside a snapshot.
func Checksum(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// PutSnapshot creates or replaces the snapshot stored under name.
// The publish time only moves when the content changes.
func (d *DB) PutSnapshot(ctx context.Context, name string, content []byte, rowCount int) (*Snapshot, error) {
	query := `
		INSERT INTO dataset_snapshots (name, content, checksum, row_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET
			content = EXCLUDED.content,
			checksum = EXCLUDED.checksum,
			row_count = EXCLUDED.row_count,
			updated_at = CASE
				WHEN dataset_snapshots.checksum = EXCLUDED.checksum THEN dataset_snapshots.updated_at
				ELSE NOW()
			END
		RETURNING name, checksum, row_count, updated_at
	`

	var s Snapshot
	err := d.Pool.QueryRow(ctx, query, name, content, Checksum(content), rowCount).Scan(
		&s.Name, &s.Checksum, &s.RowCount, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to store snapshot %s: %w", name, err)
	}
	return &s, nil
}

// GetSnapshot returns snapshot metadata without the content.
func (d *DB) GetSnapshot(ctx context.Context, name string) (*Snapshot, error) {
	query := `
		SELECT name, checksum, row_count, updated_at
		FROM dataset_snapshots WHERE name = $1
	`

	var s Snapshot
	err := d.Pool.QueryRow(ctx, query, name).Scan(&s.Name, &s.Checksum, &s.RowCount, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SnapshotVersion returns "checksum@unix-nanos" for name.
func (d *DB) SnapshotVersion(ctx context.Context, name string) (string, error) {
	s, err := d.GetSnapshot(ctx, name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@%d", s.Checksum, s.UpdatedAt.UnixNano()), nil
}

// SnapshotContent returns the stored CSV bytes for name.
func (d *DB) SnapshotContent(ctx context.Context, name string) ([]byte, error) {
	var content []byte
	err := d.Pool.QueryRow(ctx, `SELECT content FROM dataset_snapshots WHERE name = $1`, name).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// DeleteSnapshot removes the snapshot stored under name.
func (d *DB) DeleteSnapshot(ctx context.Context, name string) error {
	tag, err := d.Pool.Exec(ctx, `DELETE FROM dataset_snapshots WHERE name = $1`, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}
