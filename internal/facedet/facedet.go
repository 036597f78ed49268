// Package facedet wraps the face detection and embedding model behind a
// uniform Detector interface. The model itself runs out of process (an
// InsightFace inference sidecar); this package only speaks its API.
package facedet

import "context"

// EmbeddingDims is the fixed length of a face embedding vector.
const EmbeddingDims = 512

// Face is one detected face: a unit-length embedding and a bounding box
// (x1,y1,x2,y2). Box coordinates come straight from the detector and are not
// validated for ordering; callers must tolerate degenerate boxes.
type Face struct {
	Embedding []float32
	Box       [4]float64
}

// Detector is the face extraction interface. Detect returns the faces found
// in the image in detection order; zero faces with a nil error is a valid
// outcome, distinct from ErrUndecodableImage.
//
// Warmup loads the model. It is memoized: implementations run at most one
// initialization at a time, concurrent callers wait for and reuse its result,
// and a failed warmup may be retried. Detect triggers Warmup implicitly on
// first use.
type Detector interface {
	Name() string
	Warmup(ctx context.Context) error
	Detect(ctx context.Context, image []byte) ([]Face, error)
}
