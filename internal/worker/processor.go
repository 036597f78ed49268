// Package worker runs admitted jobs: it pulls a job's staged images out of
// object storage, runs face detection on them, and writes every detected face
// to the search index replicas.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/divinepic/faceindex/internal/facedet"
	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/jobs"
	"github.com/divinepic/faceindex/internal/naming"
	"github.com/divinepic/faceindex/internal/paramstore"
	"github.com/divinepic/faceindex/internal/registry"
	"github.com/divinepic/faceindex/internal/search"
)

// ErrNoInputs is returned when a job has no staged images to process.
var ErrNoInputs = errors.New("job has no staged inputs")

// Processor executes jobs end to end. One Processor is safe for concurrent
// use across jobs; within a job, images are processed concurrently up to the
// configured limit.
type Processor struct {
	images      imagestore.Store
	params      paramstore.Store
	detector    facedet.Detector
	writer      *search.Writer
	faceIDs     registry.Allocator
	concurrency int
	logger      *slog.Logger
}

// NewProcessor wires a Processor. A concurrency of zero or less means one
// image at a time.
func NewProcessor(
	images imagestore.Store,
	params paramstore.Store,
	detector facedet.Detector,
	writer *search.Writer,
	faceIDs registry.Allocator,
	concurrency int,
) *Processor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Processor{
		images:      images,
		params:      params,
		detector:    detector,
		writer:      writer,
		faceIDs:     faceIDs,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// Run processes one admitted job to its terminal status. The results artifact
// is uploaded exactly once, before the terminal status write, so a client that
// observes "completed" can always fetch results.
func (p *Processor) Run(ctx context.Context, jobID string) (err error) {
	log := p.logger.With("job_id", jobID)

	// A panic anywhere in processing must still leave the job in a terminal
	// status; clients poll status and would otherwise wait forever.
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r)
			p.setStatus(ctx, jobID, jobs.StatusError)
			err = fmt.Errorf("job %s panicked: %v", jobID, r)
		}
	}()

	inputKeys, err := p.images.ListPrefix(ctx, naming.InputPrefix(jobID))
	if err != nil {
		log.Error("listing job inputs failed", "error", err)
		p.setStatus(ctx, jobID, jobs.StatusError)
		return fmt.Errorf("listing inputs for %s: %w", jobID, err)
	}
	if len(inputKeys) == 0 {
		log.Error("job has no inputs")
		p.setStatus(ctx, jobID, jobs.StatusError)
		return fmt.Errorf("%w: %s", ErrNoInputs, jobID)
	}
	// Zero-padded index prefixes make lexicographic order submission order.
	sort.Strings(inputKeys)

	// Replicas that cannot be prepared fail their writes per image later.
	p.writer.EnsureIndexes(ctx)

	if err := p.detector.Warmup(ctx); err != nil {
		log.Error("detector warmup failed", "detector", p.detector.Name(), "error", err)
		p.setStatus(ctx, jobID, jobs.StatusError)
		return fmt.Errorf("warming up detector for %s: %w", jobID, err)
	}

	results := make([]jobs.PerImageResult, len(inputKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, key := range inputKeys {
		g.Go(func() error {
			results[i] = p.processImage(gctx, key)
			return nil
		})
	}
	// Per-image failures land in their result entry, never here.
	_ = g.Wait()

	raw, err := json.Marshal(results)
	if err != nil {
		p.setStatus(ctx, jobID, jobs.StatusError)
		return fmt.Errorf("encoding results for %s: %w", jobID, err)
	}
	if err := p.images.Put(ctx, naming.ResultsKey(jobID), raw, "application/json"); err != nil {
		log.Error("uploading results artifact failed", "error", err)
		p.setStatus(ctx, jobID, jobs.StatusError)
		return fmt.Errorf("uploading results for %s: %w", jobID, err)
	}

	p.setStatus(ctx, jobID, jobs.StatusCompleted)
	log.Info("job completed", "images", len(inputKeys))
	return nil
}

// ProcessUpload handles the synchronous single-image flow: store the image
// under a flat dated key, detect, and index, returning the outcome directly.
func (p *Processor) ProcessUpload(ctx context.Context, filename string, data []byte) (jobs.PerImageResult, error) {
	key, err := naming.StoredKey(filename, naming.Lenient)
	if err != nil {
		return jobs.PerImageResult{}, err
	}

	if err := p.images.Put(ctx, key, data, naming.ContentType(filename)); err != nil {
		return jobs.PerImageResult{}, fmt.Errorf("storing %s: %w", filename, err)
	}

	if err := p.detector.Warmup(ctx); err != nil {
		return jobs.PerImageResult{}, fmt.Errorf("warming up detector: %w", err)
	}

	return p.processImage(ctx, key), nil
}

// processImage runs detection and indexing for one stored image. Failures are
// reported in the result rather than returned: one bad image must not take
// down its batch.
func (p *Processor) processImage(ctx context.Context, key string) jobs.PerImageResult {
	result := jobs.PerImageResult{
		SourceKey: key,
		PublicURL: p.images.PublicURL(key),
	}

	data, err := p.images.Get(ctx, key)
	if err != nil {
		p.logger.Error("fetching image failed", "key", key, "error", err)
		result.Error = "image unavailable"
		return result
	}

	faces, err := p.detector.Detect(ctx, data)
	if err != nil {
		p.logger.Error("detection failed", "key", key, "error", err)
		if errors.Is(err, facedet.ErrUndecodableImage) {
			result.Error = "image could not be decoded"
		} else {
			result.Error = "face detection failed"
		}
		return result
	}
	result.FacesDetected = len(faces)

	for i, face := range faces {
		position := i + 1
		faceID, err := p.faceIDs.AssignFaceID(ctx, key, position)
		if err != nil {
			p.logger.Error("face id assignment failed", "key", key, "position", position, "error", err)
			continue
		}

		outcomes := p.writer.IndexFace(ctx, faceID, search.Document{
			ImageName: result.PublicURL,
			Embeds:    face.Embedding,
			Box:       face.Box,
		})
		if search.AnySucceeded(outcomes) {
			result.FacesIndexed++
			result.Faces = append(result.Faces, jobs.IndexedFace{FaceID: faceID, Box: face.Box})
		}
	}

	return result
}

// setStatus records a terminal status, logging rather than failing when the
// parameter store is down. The results artifact remains the source of truth.
func (p *Processor) setStatus(ctx context.Context, jobID, status string) {
	if err := p.params.SetStatus(ctx, jobID, status); err != nil {
		p.logger.Error("status update failed", "job_id", jobID, "status", status, "error", err)
	}
}
