// Package jobs holds the job domain: the batch admission service, the status
// tracker, and the types shared with the worker runtime.
package jobs

// Job lifecycle statuses. A job is created at "queued", advanced to
// "processing" once dispatch succeeds, and finished by the worker at
// "completed" or "error". "unknown" is what the tracker reports when no
// status record exists. Terminal statuses are written exactly once.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
	StatusUnknown    = "unknown"
)

// ImageUpload is one decoded image from a submission request.
type ImageUpload struct {
	Filename string
	Data     []byte
}

// IndexedFace records one face that was written to the search index.
type IndexedFace struct {
	FaceID string     `json:"face_id"`
	Box    [4]float64 `json:"bbox"`
}

// PerImageResult is the outcome of processing a single stored image. When
// Error is set the image failed entirely (decode failure, detection error)
// and both counts are zero.
type PerImageResult struct {
	SourceKey     string        `json:"s3_key"`
	PublicURL     string        `json:"public_url"`
	FacesDetected int           `json:"faces_detected"`
	FacesIndexed  int           `json:"faces_indexed"`
	Faces         []IndexedFace `json:"faces,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Handle is returned to the client immediately after admission; processing
// continues asynchronously.
type Handle struct {
	JobID           string `json:"job_id"`
	InstanceRef     string `json:"instance_ref"`
	ImagesCount     int    `json:"images_count"`
	Status          string `json:"status"`
	ResultsCheckURL string `json:"results_check_url"`
}

// JobInfo is the tracker's view of a job. Results are embedded only once the
// job is completed and the artifact could be fetched; a fetch failure is
// reported in ResultsError without failing the status call.
type JobInfo struct {
	JobID        string           `json:"job_id"`
	Status       string           `json:"status"`
	InstanceRef  string           `json:"instance_ref,omitempty"`
	Results      []PerImageResult `json:"results,omitempty"`
	ResultsURL   string           `json:"results_url,omitempty"`
	ResultsError string           `json:"results_error,omitempty"`
}
