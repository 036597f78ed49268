// Package search writes face documents to one or more Elasticsearch-compatible
// index replicas and owns the index schema.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// IndexName is the face embedding index every replica carries.
const IndexName = "face_embeddings"

// Sentinel errors for search backend failures.
var (
	ErrIndexUnreachable  = errors.New("search index unreachable")
	ErrIndexWriteFailed  = errors.New("search index write failed")
	ErrIndexCreateFailed = errors.New("search index create failed")
	ErrSearchTimeout     = errors.New("search index timeout")
)

// Document is one face record. ImageName deliberately stores the public,
// dereferenceable image URL rather than the internal storage key so consumers
// of search hits need no further lookup.
type Document struct {
	ImageName string     `json:"image_name"`
	Embeds    []float32  `json:"embeds"`
	Box       [4]float64 `json:"box"`
}

// Client is the interface for one index replica.
type Client interface {
	// Host identifies the replica, for logging and write outcomes.
	Host() string
	// EnsureIndex creates the face index if it does not exist. Idempotent:
	// an index that already exists, including one created concurrently by
	// another worker, is success.
	EnsureIndex(ctx context.Context) error
	// IndexFace writes doc under the client-generated faceID. Reissuing the
	// same id overwrites the document rather than duplicating it.
	IndexFace(ctx context.Context, faceID string, doc Document) error
	Ping(ctx context.Context) error
}

// indexMapping is the schema of the face index: flat keyword image name, a
// 512-dim cosine vector for the embedding, and the raw box coordinates.
// Single shard, no replica redundancy by default; scaling the index is
// outside this layer.
const indexMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "image_name": {"type": "keyword"},
      "embeds": {"type": "dense_vector", "dims": 512, "index": true, "similarity": "cosine"},
      "box": {"type": "dense_vector", "dims": 4}
    }
  }
}`

// HTTPClient implements Client against the Elasticsearch REST API.
type HTTPClient struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewHTTPClient creates a client for one replica endpoint.
func NewHTTPClient(baseURL, username, password string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Host() string { return c.baseURL }

func (c *HTTPClient) EnsureIndex(ctx context.Context) error {
	exists, err := c.indexExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/"+IndexName, strings.NewReader(indexMapping))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Two workers may race on creation; the loser sees "already exists",
	// which is a no-op success, never an error.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusBadRequest &&
		bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}

	return fmt.Errorf("%w: status %d: %s", ErrIndexCreateFailed, resp.StatusCode, body)
}

func (c *HTTPClient) indexExists(ctx context.Context) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodHead, "/"+IndexName, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, classifyError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("%w: index check status %d", ErrIndexUnreachable, resp.StatusCode)
	}
}

func (c *HTTPClient) IndexFace(ctx context.Context, faceID string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding face document: %w", err)
	}

	path := fmt.Sprintf("/%s/_doc/%s", IndexName, url.PathEscape(faceID))
	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", ErrIndexWriteFailed, resp.StatusCode, detail)
	}
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrIndexUnreachable, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrIndexUnreachable, err)
}

var _ Client = (*HTTPClient)(nil)
