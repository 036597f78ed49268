package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinepic/faceindex/internal/facedet"
	"github.com/divinepic/faceindex/internal/imagestore"
	"github.com/divinepic/faceindex/internal/jobs"
	"github.com/divinepic/faceindex/internal/naming"
	"github.com/divinepic/faceindex/internal/registry"
	"github.com/divinepic/faceindex/internal/search"
	"github.com/divinepic/faceindex/internal/worker"
)

// memStore is an in-memory imagestore.Store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, imagestore.ErrObjectNotFound
	}
	return data, nil
}

func (m *memStore) ListPrefix(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func (m *memStore) Ping(context.Context) error { return nil }

// memParams is an in-memory paramstore.Store recording every status write.
type memParams struct {
	mu      sync.Mutex
	status  map[string]string
	history []string
}

func newMemParams() *memParams { return &memParams{status: map[string]string{}} }

func (m *memParams) SetStatus(_ context.Context, jobID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[jobID] = status
	m.history = append(m.history, status)
	return nil
}

func (m *memParams) SetStatusExcept(_ context.Context, jobID, status string, barred ...string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.status[jobID]
	for _, b := range barred {
		if cur == b {
			return cur, nil
		}
	}
	m.status[jobID] = status
	m.history = append(m.history, status)
	return status, nil
}

func (m *memParams) GetStatus(_ context.Context, jobID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[jobID]
	return s, ok, nil
}

func (m *memParams) SetInstance(context.Context, string, string) error { return nil }

func (m *memParams) GetInstance(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (m *memParams) ListJobIDs(context.Context) ([]string, error) { return nil, nil }

func (m *memParams) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}

func (m *memParams) Ping(context.Context) error { return nil }

// scriptedDetector reports faces based on the image payload's first byte:
// 0xFF means undecodable, any other value is the number of faces.
type scriptedDetector struct {
	warmupErr error
	panics    bool
}

func (d *scriptedDetector) Name() string { return "scripted" }

func (d *scriptedDetector) Warmup(context.Context) error { return d.warmupErr }

func (d *scriptedDetector) Detect(_ context.Context, image []byte) ([]facedet.Face, error) {
	if d.panics {
		panic("detector blew up")
	}
	if len(image) == 0 || image[0] == 0xFF {
		return nil, facedet.ErrUndecodableImage
	}
	faces := make([]facedet.Face, int(image[0]))
	for i := range faces {
		emb := make([]float32, facedet.EmbeddingDims)
		emb[i%facedet.EmbeddingDims] = 1
		faces[i] = facedet.Face{Embedding: emb, Box: [4]float64{0, 0, 10, 10}}
	}
	return faces, nil
}

// indexServer is a stub Elasticsearch endpoint recording document writes.
type indexServer struct {
	mu   sync.Mutex
	docs map[string]search.Document
}

func newIndexServer() *indexServer { return &indexServer{docs: map[string]search.Document{}} }

func (s *indexServer) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case r.Method == http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case strings.Contains(r.URL.Path, "/_doc/") && r.Method == http.MethodPut:
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			var doc search.Document
			if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			s.docs[id] = doc
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}
}

func newTestProcessor(t *testing.T, images *memStore, params *memParams, det facedet.Detector) (*worker.Processor, *indexServer) {
	t.Helper()
	es := newIndexServer()
	srv := httptest.NewServer(es.handler())
	t.Cleanup(srv.Close)

	writer := search.NewWriter([]search.Client{
		search.NewHTTPClient(srv.URL, "", "", 5*time.Second),
	})
	p := worker.NewProcessor(images, params, det, writer, registry.RandomAllocator{}, 4)
	return p, es
}

func stage(t *testing.T, images *memStore, jobID string, payloads ...[]byte) {
	t.Helper()
	for i, data := range payloads {
		key := naming.BatchKey(jobID, i, "photo_1717404000000.jpg")
		require.NoError(t, images.Put(context.Background(), key, data, "image/jpeg"))
	}
}

func TestRun_MixedBatchCompletes(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, es := newTestProcessor(t, images, params, &scriptedDetector{})

	// First image carries one face, second is undecodable.
	stage(t, images, "job_1_aaaa0000", []byte{0x01}, []byte{0xFF})

	require.NoError(t, p.Run(context.Background(), "job_1_aaaa0000"))

	// One terminal status write, and it is completed.
	assert.Equal(t, []string{jobs.StatusCompleted}, params.history)

	raw, err := images.Get(context.Background(), naming.ResultsKey("job_1_aaaa0000"))
	require.NoError(t, err)
	var results []jobs.PerImageResult
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 2)

	// Results come back in submission order.
	assert.Contains(t, results[0].SourceKey, "/000_")
	assert.Contains(t, results[1].SourceKey, "/001_")

	assert.Equal(t, 1, results[0].FacesDetected)
	assert.Equal(t, 1, results[0].FacesIndexed)
	require.Len(t, results[0].Faces, 1)
	assert.Empty(t, results[0].Error)

	// The undecodable image failed alone without failing the batch.
	assert.Equal(t, 0, results[1].FacesDetected)
	assert.Equal(t, 0, results[1].FacesIndexed)
	assert.Equal(t, "image could not be decoded", results[1].Error)

	// Exactly one document landed in the index, under the assigned face id.
	require.Len(t, es.docs, 1)
	doc, ok := es.docs[results[0].Faces[0].FaceID]
	require.True(t, ok)
	assert.Equal(t, results[0].PublicURL, doc.ImageName)
	assert.Len(t, doc.Embeds, facedet.EmbeddingDims)
}

func TestRun_ZeroFacesIsStillSuccess(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, es := newTestProcessor(t, images, params, &scriptedDetector{})

	stage(t, images, "job_1_aaaa0000", []byte{0x00})

	// 0x00 payload decodes to zero faces, not an error.
	require.NoError(t, p.Run(context.Background(), "job_1_aaaa0000"))

	raw, err := images.Get(context.Background(), naming.ResultsKey("job_1_aaaa0000"))
	require.NoError(t, err)
	var results []jobs.PerImageResult
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, 0, results[0].FacesDetected)
	assert.Empty(t, es.docs)
	assert.Equal(t, []string{jobs.StatusCompleted}, params.history)
}

func TestRun_NoInputs(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, _ := newTestProcessor(t, images, params, &scriptedDetector{})

	err := p.Run(context.Background(), "job_9_dddd0000")
	assert.ErrorIs(t, err, worker.ErrNoInputs)
	assert.Equal(t, []string{jobs.StatusError}, params.history)
}

func TestRun_WarmupFailureFailsJob(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, _ := newTestProcessor(t, images, params, &scriptedDetector{warmupErr: facedet.ErrDetectorUnavailable})

	stage(t, images, "job_1_aaaa0000", []byte{0x01})

	err := p.Run(context.Background(), "job_1_aaaa0000")
	assert.ErrorIs(t, err, facedet.ErrDetectorUnavailable)
	assert.Equal(t, []string{jobs.StatusError}, params.history)

	// No results artifact for a job that never ran.
	_, err = images.Get(context.Background(), naming.ResultsKey("job_1_aaaa0000"))
	assert.ErrorIs(t, err, imagestore.ErrObjectNotFound)
}

func TestRun_PanicLeavesTerminalStatus(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, _ := newTestProcessor(t, images, params, &scriptedDetector{panics: true})

	stage(t, images, "job_1_aaaa0000", []byte{0x01})

	err := p.Run(context.Background(), "job_1_aaaa0000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, jobs.StatusError, params.status["job_1_aaaa0000"])
}

func TestProcessUpload_StoresAndIndexes(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, es := newTestProcessor(t, images, params, &scriptedDetector{})

	result, err := p.ProcessUpload(context.Background(), "party_1717404000000.jpg", []byte{0x02})
	require.NoError(t, err)

	// Flat dated key, not a job-scoped one.
	assert.True(t, strings.HasPrefix(result.SourceKey, "03_JUN_2024_"))
	assert.True(t, strings.HasSuffix(result.SourceKey, "_party_1717404000000.jpg"))
	assert.Equal(t, 2, result.FacesDetected)
	assert.Equal(t, 2, result.FacesIndexed)
	assert.Len(t, es.docs, 2)

	// The stored object is retrievable under the returned key.
	data, err := images.Get(context.Background(), result.SourceKey)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02}, data)
}

func TestProcessUpload_WarmupFailure(t *testing.T) {
	images := newMemStore()
	params := newMemParams()
	p, _ := newTestProcessor(t, images, params, &scriptedDetector{warmupErr: errors.New("model load failed")})

	_, err := p.ProcessUpload(context.Background(), "party_1717404000000.jpg", []byte{0x01})
	assert.Error(t, err)
}
