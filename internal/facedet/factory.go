package facedet

import (
	"fmt"

	"github.com/divinepic/faceindex/internal/config"
)

// NewDetector constructs the configured detection provider. Called once at
// process startup.
func NewDetector(cfg config.DetectConfig) (Detector, error) {
	switch cfg.Provider {
	case "insight":
		return NewInsightDetector(cfg.Insight), nil
	case "mock":
		return NewMockDetector(cfg.Mock), nil
	default:
		return nil, fmt.Errorf("unknown detect provider %q: must be one of insight, mock", cfg.Provider)
	}
}
