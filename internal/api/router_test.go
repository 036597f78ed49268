package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/divinepic/faceindex/internal/api"
	mw "github.com/divinepic/faceindex/internal/api/middleware"
)

// stubParams satisfies paramstore.Store for the rate limiter.
type stubParams struct{}

func (stubParams) SetStatus(context.Context, string, string) error { return nil }
func (stubParams) SetStatusExcept(_ context.Context, _, status string, _ ...string) (string, error) {
	return status, nil
}
func (stubParams) GetStatus(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (stubParams) SetInstance(context.Context, string, string) error { return nil }
func (stubParams) GetInstance(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (stubParams) ListJobIDs(context.Context) ([]string, error) { return nil, nil }
func (stubParams) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	return 1, nil
}
func (stubParams) Ping(context.Context) error { return nil }

const testKey = "fi_live_0123456789abcdef"

func newTestRouter(t *testing.T, deps api.Dependencies) http.Handler {
	t.Helper()
	if deps.Auth == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(testKey), bcrypt.MinCost)
		require.NoError(t, err)
		deps.Auth = mw.NewAuth(string(hash))
	}
	if deps.RateLimit == nil {
		deps.RateLimit = mw.NewRateLimit(stubParams{}, 100)
	}
	return api.NewRouter(deps)
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{})

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodPost, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/jobs"},
		{http.MethodGet, "/api/v1/jobs/job_1_aaaa0000"},
		{http.MethodPost, "/api/v1/process"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader("{}"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_AuthenticatedRequestReachesHandler(t *testing.T) {
	var reached bool
	router := newTestRouter(t, api.Dependencies{
		StatusHandler: func(w http.ResponseWriter, r *http.Request) {
			reached = true
			w.WriteHeader(http.StatusOK)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/job_1_aaaa0000", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, reached)
}

func TestRouter_MissingHandlerIs501(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+testKey)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_IMPLEMENTED", body["error"].(map[string]any)["code"])
}

func TestRouter_PanicInHandlerIsRecovered(t *testing.T) {
	router := newTestRouter(t, api.Dependencies{
		HealthHandler: func(w http.ResponseWriter, r *http.Request) {
			panic("handler exploded")
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
