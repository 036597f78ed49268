package facedet

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"

	// Register the decoders the mock accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/divinepic/faceindex/internal/config"
)

// MockDetector is a deterministic Detector for tests and local development.
// It decodes the image header to reproduce the real decode-failure path and
// fabricates a fixed number of unit-norm faces spread across the image.
type MockDetector struct {
	facesPerImage int
}

func NewMockDetector(cfg config.MockConfig) *MockDetector {
	n := cfg.FacesPerImage
	if n < 0 {
		n = 0
	}
	return &MockDetector{facesPerImage: n}
}

func (d *MockDetector) Name() string { return "mock" }

func (d *MockDetector) Warmup(context.Context) error { return nil }

func (d *MockDetector) Detect(_ context.Context, img []byte) ([]Face, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodableImage, err)
	}

	faces := make([]Face, 0, d.facesPerImage)
	for i := 0; i < d.facesPerImage; i++ {
		x := float64(i) * float64(cfg.Width) / float64(d.facesPerImage+1)
		faces = append(faces, Face{
			Embedding: unitEmbedding(i),
			Box:       [4]float64{x, 0, x + 10, 10},
		})
	}
	return faces, nil
}

// unitEmbedding returns a deterministic unit-length vector that differs per
// face position.
func unitEmbedding(seed int) []float32 {
	vec := make([]float32, EmbeddingDims)
	var sum float64
	for i := range vec {
		v := math.Sin(float64(seed+1) * float64(i+1))
		vec[i] = float32(v)
		sum += v * v
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

var _ Detector = (*MockDetector)(nil)
