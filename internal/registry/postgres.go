package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/divinepic/faceindex/internal/naming"
)

// PostgresRegistry implements Allocator on top of a face_ids table. The first
// call for an (image key, position) pair records a freshly minted id; every
// later call, including one from a retried worker, gets the same id back, so
// re-indexing a face overwrites its document instead of duplicating it.
type PostgresRegistry struct {
	pool *pgxpool.Pool
}

// NewPostgresRegistry creates a registry backed by the given pool.
func NewPostgresRegistry(pool *pgxpool.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

func (r *PostgresRegistry) AssignFaceID(ctx context.Context, imageKey string, position int) (string, error) {
	candidate := naming.FaceID(imageKey, position)

	// The no-op DO UPDATE lets RETURNING yield the winning row whether this
	// insert won or lost the race.
	var faceID string
	err := r.pool.QueryRow(ctx,
		`INSERT INTO face_ids (image_key, position, face_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (image_key, position) DO UPDATE SET face_id = face_ids.face_id
		 RETURNING face_id`,
		imageKey, position, candidate,
	).Scan(&faceID)
	if err != nil {
		return "", fmt.Errorf("assign face id: %w", err)
	}
	return faceID, nil
}

// Ping checks database connectivity.
func (r *PostgresRegistry) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

var _ Allocator = (*PostgresRegistry)(nil)
