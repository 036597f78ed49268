// Package dispatch hands an admitted job off to a worker. The exec launcher
// starts the worker binary as a detached process, standing in for the
// run-it-elsewhere instance the pipeline originally targeted; the inline
// launcher runs the job in-process and exists for single-binary deployments
// and tests.
package dispatch

import (
	"context"
	"errors"
)

// ErrDispatchFailed marks a job that was admitted and uploaded but could not
// be handed to any worker.
var ErrDispatchFailed = errors.New("worker dispatch failed")

// JobSpec is everything a worker needs to pick up a job.
type JobSpec struct {
	JobID     string
	InputKeys []string
}

// Launcher starts processing for a job and returns an opaque reference to
// where it runs, surfaced to callers polling job status.
type Launcher interface {
	Launch(ctx context.Context, spec JobSpec) (string, error)
}
