package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/divinepic/faceindex/internal/api/response"
	"github.com/divinepic/faceindex/internal/facedet"
	"github.com/divinepic/faceindex/internal/jobs"
)

// Uploader defines the interface the synchronous processing handler depends on.
type Uploader interface {
	ProcessUpload(ctx context.Context, filename string, data []byte) (jobs.PerImageResult, error)
}

type processSummary struct {
	TotalImages        int `json:"total_images"`
	TotalFacesDetected int `json:"total_faces_detected"`
	TotalFacesIndexed  int `json:"total_faces_indexed"`
	Errors             int `json:"errors"`
}

type processResponse struct {
	Summary processSummary        `json:"summary"`
	Results []jobs.PerImageResult `json:"results"`
}

// NewProcessHandler returns an http.HandlerFunc for POST /api/v1/process: the
// synchronous flow that stores, detects, and indexes within the request.
func NewProcessHandler(svc Uploader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Images []imagePayload `json:"images"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if len(req.Images) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "images is required and must not be empty", nil)
			return
		}
		if len(req.Images) > maxBatchImages {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("a request may contain at most %d images", maxBatchImages), nil)
			return
		}

		images, err := decodeImages(req.Images)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		resp := processResponse{Results: make([]jobs.PerImageResult, 0, len(images))}
		for _, img := range images {
			result, err := svc.ProcessUpload(r.Context(), img.Filename, img.Data)
			if err != nil {
				switch {
				case errors.Is(err, facedet.ErrDetectorUnavailable):
					response.Error(w, http.StatusBadGateway, "DETECTOR_UNAVAILABLE",
						"The face detection model is not available", nil)
				case errors.Is(err, facedet.ErrInferenceTimeout):
					response.Error(w, http.StatusGatewayTimeout, "DETECTOR_TIMEOUT",
						"Face detection took too long and was cancelled", nil)
				default:
					response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
						"An unexpected error occurred", nil)
				}
				return
			}

			resp.Summary.TotalImages++
			resp.Summary.TotalFacesDetected += result.FacesDetected
			resp.Summary.TotalFacesIndexed += result.FacesIndexed
			if result.Error != "" {
				resp.Summary.Errors++
			}
			resp.Results = append(resp.Results, result)
		}

		response.JSON(w, resp)
	}
}
