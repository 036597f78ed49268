// Package paramstore records job lifecycle parameters (status, worker
// instance reference) in Redis, mirroring a cloud parameter store: one small
// string value per parameter, addressed by a hierarchical key, discoverable by
// prefix scan.
package paramstore

import (
	"context"
	"time"
)

// Store is the parameter-store interface. Implementations must be safe for
// concurrent use. Reads never mutate state. Writes are last-writer-wins sets
// except SetStatusExcept, which exists because the admitting server and the
// worker can race on the status parameter.
type Store interface {
	SetStatus(ctx context.Context, jobID, status string) error
	// SetStatusExcept writes status unless the current value is one of barred,
	// and reports the value in effect after the call. The check and the write
	// are atomic with respect to concurrent writers.
	SetStatusExcept(ctx context.Context, jobID, status string, barred ...string) (string, error)
	GetStatus(ctx context.Context, jobID string) (string, bool, error)
	SetInstance(ctx context.Context, jobID, instanceRef string) error
	GetInstance(ctx context.Context, jobID string) (string, bool, error)
	// ListJobIDs enumerates every job id with a status parameter, deduplicated,
	// in no particular order.
	ListJobIDs(ctx context.Context) ([]string, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
