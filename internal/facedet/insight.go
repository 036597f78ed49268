package facedet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/divinepic/faceindex/internal/config"
)

// InsightDetector implements Detector against an InsightFace inference
// sidecar's HTTP API. Model loading is expensive relative to per-image work,
// so warmup happens at most once per process: concurrent first callers are
// collapsed into a single in-flight warmup via singleflight, and a failed
// warmup leaves the detector cold so the next call retries.
type InsightDetector struct {
	baseURL string
	client  *http.Client

	warm     atomic.Bool
	warmupSF singleflight.Group
}

// NewInsightDetector creates a detector client for the given sidecar.
func NewInsightDetector(cfg config.InsightConfig) *InsightDetector {
	return &InsightDetector{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (d *InsightDetector) Name() string { return "insight" }

// Warmup asks the sidecar to load the model. Safe to call concurrently; only
// one request is in flight at a time and all callers share its result.
func (d *InsightDetector) Warmup(ctx context.Context) error {
	if d.warm.Load() {
		return nil
	}

	_, err, _ := d.warmupSF.Do("warmup", func() (any, error) {
		if d.warm.Load() {
			return nil, nil
		}

		// Every concurrent caller shares this one request, so its fate must
		// not be tied to whichever caller happened to start it. The client
		// timeout still bounds it.
		ctx := context.WithoutCancel(ctx)

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/warmup", nil)
		if err != nil {
			return nil, fmt.Errorf("building warmup request: %w", err)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, classifyError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: warmup status %d", ErrDetectorUnavailable, resp.StatusCode)
		}

		d.warm.Store(true)
		return nil, nil
	})
	return err
}

type detectResponse struct {
	Faces []struct {
		Embedding []float32  `json:"embedding"`
		Box       [4]float64 `json:"box"`
	} `json:"faces"`
}

type detectError struct {
	Error string `json:"error"`
}

// Detect sends the raw image bytes to the sidecar and returns the detected
// faces in detection order. Undecodable input is reported by the sidecar as
// 422 and surfaces as ErrUndecodableImage.
func (d *InsightDetector) Detect(ctx context.Context, image []byte) ([]Face, error) {
	if err := d.Warmup(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/detect", bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var de detectError
		_ = json.NewDecoder(resp.Body).Decode(&de)
		return nil, fmt.Errorf("%w: %s", ErrUndecodableImage, de.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: detect status %d", ErrDetectorUnavailable, resp.StatusCode)
	}

	var dr detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	faces := make([]Face, 0, len(dr.Faces))
	for i, f := range dr.Faces {
		if len(f.Embedding) != EmbeddingDims {
			return nil, fmt.Errorf("%w: face %d has %d-dim embedding, want %d",
				ErrInvalidResponse, i+1, len(f.Embedding), EmbeddingDims)
		}
		faces = append(faces, Face{Embedding: f.Embedding, Box: f.Box})
	}
	return faces, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
}

var _ Detector = (*InsightDetector)(nil)
