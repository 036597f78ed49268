package paramstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/divinepic/faceindex/internal/paramstore"
)

// setupRedis spins up a Redis container and returns a connected RedisStore.
func setupRedis(t *testing.T, statusTTL time.Duration) *paramstore.RedisStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	store, err := paramstore.NewRedisStore("redis://"+host+":"+port.Port(), statusTTL)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })

	return store
}

func TestStatus_MissingReadsAsAbsent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)

	_, found, err := store.GetStatus(context.Background(), "job_nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStatus_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SetStatus(ctx, "job_1700000000_aaaa1111", "queued"))
	require.NoError(t, store.SetStatus(ctx, "job_1700000000_aaaa1111", "processing"))

	status, found, err := store.GetStatus(ctx, "job_1700000000_aaaa1111")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "processing", status)
}

func TestSetStatusExcept_WritesWhenNotBarred(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SetStatus(ctx, "job_1700000000_aaaa1111", "queued"))

	got, err := store.SetStatusExcept(ctx, "job_1700000000_aaaa1111", "processing", "completed", "error")
	require.NoError(t, err)
	assert.Equal(t, "processing", got)

	status, _, err := store.GetStatus(ctx, "job_1700000000_aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "processing", status)
}

func TestSetStatusExcept_KeepsBarredValue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SetStatus(ctx, "job_1700000000_aaaa1111", "error"))

	got, err := store.SetStatusExcept(ctx, "job_1700000000_aaaa1111", "processing", "completed", "error")
	require.NoError(t, err)
	assert.Equal(t, "error", got)

	status, _, err := store.GetStatus(ctx, "job_1700000000_aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "error", status)
}

func TestInstance_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.SetInstance(ctx, "job_1", "proc-4242"))

	ref, found, err := store.GetInstance(ctx, "job_1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "proc-4242", ref)
}

func TestListJobIDs_ScansAndDeduplicates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	ids := []string{"job_1700000001_a", "job_1700000002_b", "job_1700000003_c"}
	for _, id := range ids {
		require.NoError(t, store.SetStatus(ctx, id, "processing"))
		require.NoError(t, store.SetInstance(ctx, id, "proc-1"))
	}

	got, err := store.ListJobIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, got)
}

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	store := setupRedis(t, 0)
	ctx := context.Background()

	n, err := store.IncrWithExpiry(ctx, "ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.IncrWithExpiry(ctx, "ratelimit:test", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
