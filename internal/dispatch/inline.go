package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Runner processes one job to completion. The worker's processor satisfies
// this; the indirection keeps this package free of the worker's dependencies.
type Runner func(ctx context.Context, jobID string) error

// InlineLauncher runs jobs on a goroutine inside the current process.
type InlineLauncher struct {
	run    Runner
	logger *slog.Logger
}

// NewInlineLauncher creates a launcher that runs jobs through run.
func NewInlineLauncher(run Runner) *InlineLauncher {
	return &InlineLauncher{run: run, logger: slog.Default()}
}

func (l *InlineLauncher) Launch(_ context.Context, spec JobSpec) (string, error) {
	if l.run == nil {
		return "", fmt.Errorf("%w: no inline runner configured", ErrDispatchFailed)
	}

	ref := "inline-" + uuid.NewString()[:8]
	l.logger.Info("running job inline", "job_id", spec.JobID, "ref", ref, "images", len(spec.InputKeys))

	// Detached from the admission request's context on purpose: the job must
	// keep running after the submit response is written.
	go func() {
		if err := l.run(context.Background(), spec.JobID); err != nil {
			l.logger.Error("inline job failed", "job_id", spec.JobID, "ref", ref, "error", err)
		}
	}()

	return ref, nil
}

var _ Launcher = (*InlineLauncher)(nil)
