package search

import (
	"context"
	"log/slog"
	"sync"
)

// WriteOutcome is the result of one replica's attempt at a write.
type WriteOutcome struct {
	Host string
	Err  error
}

// Writer fans a face document out to every configured index replica.
// Replication is best effort, not transactional: each replica succeeds or
// fails independently, and partial success never aborts the caller's image.
type Writer struct {
	clients []Client
	logger  *slog.Logger
}

// NewWriter creates a Writer over the given replica clients.
func NewWriter(clients []Client) *Writer {
	return &Writer{clients: clients, logger: slog.Default()}
}

// EnsureIndexes runs the idempotent index creation against every replica.
// Failures are logged and returned per replica; a replica that cannot be
// prepared will simply fail its writes later.
func (w *Writer) EnsureIndexes(ctx context.Context) []WriteOutcome {
	outcomes := w.fanOut(ctx, func(ctx context.Context, c Client) error {
		return c.EnsureIndex(ctx)
	})
	for _, o := range outcomes {
		if o.Err != nil {
			w.logger.Error("index create failed", "host", o.Host, "error", o.Err)
		}
	}
	return outcomes
}

// IndexFace writes the document to all replicas concurrently under the given
// face id and returns the per-replica outcomes in client order.
func (w *Writer) IndexFace(ctx context.Context, faceID string, doc Document) []WriteOutcome {
	outcomes := w.fanOut(ctx, func(ctx context.Context, c Client) error {
		return c.IndexFace(ctx, faceID, doc)
	})
	for _, o := range outcomes {
		if o.Err != nil {
			w.logger.Error("face index write failed", "host", o.Host, "face_id", faceID, "error", o.Err)
		}
	}
	return outcomes
}

// fanOut runs op against every replica concurrently. A plain WaitGroup rather
// than an errgroup: one replica's failure must not cancel the others.
func (w *Writer) fanOut(ctx context.Context, op func(context.Context, Client) error) []WriteOutcome {
	outcomes := make([]WriteOutcome, len(w.clients))

	var wg sync.WaitGroup
	for i, c := range w.clients {
		wg.Add(1)
		go func(i int, c Client) {
			defer wg.Done()
			outcomes[i] = WriteOutcome{Host: c.Host(), Err: op(ctx, c)}
		}(i, c)
	}
	wg.Wait()

	return outcomes
}

// Ping reports healthy when at least one replica is reachable; the writer can
// still make progress with a single live replica.
func (w *Writer) Ping(ctx context.Context) error {
	outcomes := w.fanOut(ctx, func(ctx context.Context, c Client) error {
		return c.Ping(ctx)
	})
	var firstErr error
	for _, o := range outcomes {
		if o.Err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = o.Err
		}
	}
	return firstErr
}

// AnySucceeded reports whether at least one replica accepted the write. The
// worker counts a face as indexed when this holds.
func AnySucceeded(outcomes []WriteOutcome) bool {
	for _, o := range outcomes {
		if o.Err == nil {
			return true
		}
	}
	return false
}
