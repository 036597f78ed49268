// Package registry allocates face document ids. The random allocator
// reproduces the upstream behavior where every detection run mints fresh ids,
// so a retried image produces new index documents. The Postgres-backed
// allocator persists the first assignment per image+position, making index
// writes idempotent across worker retries.
package registry

import (
	"context"

	"github.com/divinepic/faceindex/internal/naming"
)

// Allocator hands out the face id for a given image key and 1-based detection
// position.
type Allocator interface {
	AssignFaceID(ctx context.Context, imageKey string, position int) (string, error)
}

// RandomAllocator mints a fresh id on every call. Retries therefore never
// collide with a prior attempt's documents.
type RandomAllocator struct{}

func (RandomAllocator) AssignFaceID(_ context.Context, imageKey string, position int) (string, error) {
	return naming.FaceID(imageKey, position), nil
}

var _ Allocator = RandomAllocator{}
