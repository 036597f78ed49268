package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/divinepic/faceindex/internal/api/response"
	"github.com/divinepic/faceindex/internal/jobs"
)

const defaultListLimit = 20

// StatusTracker defines the interface the status handlers depend on.
type StatusTracker interface {
	Status(ctx context.Context, jobID string) jobs.JobInfo
	ListRecent(ctx context.Context, limit int) ([]jobs.JobInfo, error)
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// Status lookups always answer; a job nobody has heard of reports "unknown".
func NewStatusHandler(svc StatusTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if jobID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID is required", nil)
			return
		}

		response.JSON(w, svc.Status(r.Context(), jobID))
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(svc StatusTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultListLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = n
		}
		if limit > 100 {
			limit = 100
		}

		infos, err := svc.ListRecent(r.Context(), limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}

		response.Collection(w, infos, response.ListMeta{Count: len(infos), Limit: limit})
	}
}
