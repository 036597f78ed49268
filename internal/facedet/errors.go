package facedet

import "errors"

var (
	// ErrUndecodableImage means the input bytes are not a readable image.
	// Semantically different from a valid image with zero faces.
	ErrUndecodableImage = errors.New("image bytes could not be decoded")

	ErrDetectorUnavailable = errors.New("face detector unavailable")
	ErrInferenceTimeout    = errors.New("face detection timeout")
	ErrInvalidResponse     = errors.New("face detector returned invalid response")
)
