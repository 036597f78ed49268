package imagestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinepic/faceindex/internal/config"
)

func newStore(t *testing.T, cfg config.S3Config) *MinioStore {
	t.Helper()
	s, err := NewMinioStore(cfg)
	require.NoError(t, err)
	return s
}

func TestPublicURL_VirtualHostedForm(t *testing.T) {
	s := newStore(t, config.S3Config{
		Endpoint:  "s3.ap-south-1.amazonaws.com",
		AccessKey: "x",
		SecretKey: "y",
		Bucket:    "divinepic-test",
		Region:    "ap-south-1",
		UseSSL:    true,
	})

	got := s.PublicURL("jobs/job_1_abc/input/000_a.jpg")
	assert.Equal(t, "https://divinepic-test.s3.ap-south-1.amazonaws.com/jobs/job_1_abc/input/000_a.jpg", got)
}

func TestPublicURL_CustomBase(t *testing.T) {
	s := newStore(t, config.S3Config{
		Endpoint:      "minio.internal:9000",
		AccessKey:     "x",
		SecretKey:     "y",
		Bucket:        "images",
		Region:        "us-east-1",
		PublicBaseURL: "https://cdn.example.com/",
	})

	// No existence check happens here; the URL is a pure template.
	got := s.PublicURL("missing.jpg")
	assert.Equal(t, "https://cdn.example.com/missing.jpg", got)
}
