package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/divinepic/faceindex/internal/api/response"
)

// Pinger checks one dependency's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks names the dependencies the health endpoint probes. Nil entries
// are skipped, so optional dependencies simply do not appear in the report.
type HealthChecks struct {
	ParamStore Pinger
	ImageStore Pinger
	Search     Pinger
	Registry   Pinger
}

type healthReport struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// The endpoint reports degraded rather than failing outright: a down
// dependency is a component-level "unreachable", not a 5xx.
func NewHealthHandler(checks HealthChecks) http.HandlerFunc {
	probes := map[string]Pinger{
		"paramstore": checks.ParamStore,
		"imagestore": checks.ImageStore,
		"search":     checks.Search,
		"registry":   checks.Registry,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := healthReport{Status: "ok", Components: map[string]string{}}
		for name, p := range probes {
			if p == nil {
				continue
			}
			if err := p.Ping(ctx); err != nil {
				report.Components[name] = "unreachable"
				report.Status = "degraded"
			} else {
				report.Components[name] = "ok"
			}
		}

		response.JSON(w, report)
	}
}
