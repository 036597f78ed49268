// Package handler contains the HTTP handlers for the face indexing API. Each
// handler depends on a small interface satisfied by the corresponding service,
// decodes and validates the request, and maps service errors to the response
// envelope's error codes.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/divinepic/faceindex/internal/api/response"
	"github.com/divinepic/faceindex/internal/dispatch"
	"github.com/divinepic/faceindex/internal/jobs"
)

const maxBatchImages = 100

// Submitter defines the interface the submit handler depends on.
type Submitter interface {
	Submit(ctx context.Context, images []jobs.ImageUpload) (jobs.Handle, error)
}

type imagePayload struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

// decodeImages validates and base64-decodes a request's image payloads.
func decodeImages(payloads []imagePayload) ([]jobs.ImageUpload, error) {
	images := make([]jobs.ImageUpload, len(payloads))
	for i, p := range payloads {
		if p.Filename == "" {
			return nil, fmt.Errorf("images[%d]: filename is required", i)
		}
		if p.Data == "" {
			return nil, fmt.Errorf("images[%d]: data is required", i)
		}
		data, err := base64.StdEncoding.DecodeString(p.Data)
		if err != nil {
			return nil, fmt.Errorf("images[%d]: data is not valid base64", i)
		}
		images[i] = jobs.ImageUpload{Filename: p.Filename, Data: data}
	}
	return images, nil
}

// NewSubmitHandler returns an http.HandlerFunc for POST /api/v1/jobs.
func NewSubmitHandler(svc Submitter) http.HandlerFunc {
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
				fmt.Sprintf("a batch may contain at most %d images", maxBatchImages), nil)
			return
		}

		images, err := decodeImages(req.Images)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}

		handle, err := svc.Submit(r.Context(), images)
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrNoImages):
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"images is required and must not be empty", nil)
			case errors.Is(err, jobs.ErrUpload):
				response.Error(w, http.StatusBadGateway, "STORAGE_UNAVAILABLE",
					"Failed to store batch images", nil)
			case errors.Is(err, dispatch.ErrDispatchFailed):
				response.Error(w, http.StatusBadGateway, "DISPATCH_FAILED",
					"Failed to start a worker for the job", nil)
			default:
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
					"An unexpected error occurred", nil)
			}
			return
		}

		response.Accepted(w, handle)
	}
}
