package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/divinepic/faceindex/internal/dispatch"
	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/naming"
	"github.com/divinepic/faceindex/internal/paramstore"
)

// Admission errors.
var (
	ErrNoImages = errors.New("no images in submission")
	ErrUpload   = errors.New("image upload failed")
)

// Admitter accepts image batches, stages them in object storage, and hands
// them to a worker. Admission is atomic from the client's view: either the
// whole batch is staged and dispatched, or the submission fails.
type Admitter struct {
	images   imagestore.Store
	params   paramstore.Store
	launcher dispatch.Launcher
	logger   *slog.Logger
}

// NewAdmitter wires an Admitter.
func NewAdmitter(images imagestore.Store, params paramstore.Store, launcher dispatch.Launcher) *Admitter {
	return &Admitter{
		images:   images,
		params:   params,
		launcher: launcher,
		logger:   slog.Default(),
	}
}

// Submit admits a batch of images as one job. On success the job is already
// dispatched and the handle carries its status at return time, normally
// "processing" (a fast job may already be terminal); the caller polls the
// returned handle for results.
func (a *Admitter) Submit(ctx context.Context, images []ImageUpload) (Handle, error) {
	if len(images) == 0 {
		return Handle{}, ErrNoImages
	}

	jobID := naming.NewJobID(time.Now())
	log := a.logger.With("job_id", jobID)

	// Stage every image before anything becomes visible. An upload failure
	// aborts the batch; partially staged objects under the job prefix are
	// unreachable because no status record is ever written.
	inputKeys := make([]string, len(images))
	for i, img := range images {
		key := naming.BatchKey(jobID, i, img.Filename)
		if err := a.images.Put(ctx, key, img.Data, naming.ContentType(img.Filename)); err != nil {
			log.Error("batch upload failed", "key", key, "error", err)
			return Handle{}, fmt.Errorf("%w: %s: %v", ErrUpload, img.Filename, err)
		}
		inputKeys[i] = key
	}

	if err := a.params.SetStatus(ctx, jobID, StatusQueued); err != nil {
		return Handle{}, fmt.Errorf("recording job status: %w", err)
	}

	instanceRef, err := a.launcher.Launch(ctx, dispatch.JobSpec{JobID: jobID, InputKeys: inputKeys})
	if err != nil {
		// The job exists and its inputs are staged, so the failure is
		// recorded against it rather than silently erased.
		if serr := a.params.SetStatus(ctx, jobID, StatusError); serr != nil {
			log.Error("failed to record dispatch failure", "error", serr)
		}
		return Handle{}, fmt.Errorf("dispatching job %s: %w", jobID, err)
	}

	// An inline worker may already have finished by the time Launch returns.
	// Terminal statuses are final, so the processing write must not clobber
	// one; the guarded set leaves a completed or errored job untouched and
	// reports whichever status won.
	status, err := a.params.SetStatusExcept(ctx, jobID, StatusProcessing, StatusCompleted, StatusError)
	if err != nil {
		return Handle{}, fmt.Errorf("recording job status: %w", err)
	}
	if err := a.params.SetInstance(ctx, jobID, instanceRef); err != nil {
		return Handle{}, fmt.Errorf("recording worker instance: %w", err)
	}

	log.Info("job admitted", "images", len(images), "status", status, "instance_ref", instanceRef)

	return Handle{
		JobID:           jobID,
		InstanceRef:     instanceRef,
		ImagesCount:     len(images),
		Status:          status,
		ResultsCheckURL: a.images.PublicURL(naming.ResultsKey(jobID)),
	}, nil
}
