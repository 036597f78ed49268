package paramstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using go-redis/v9. The guarded status write
// runs as a server-side script; everything else is single-command.
type RedisStore struct {
	client *redis.Client
	// statusTTL, when non-zero, lets stuck status records expire so a job
	// orphaned by a crashed worker eventually reads as "unknown" instead of
	// "processing" forever.
	statusTTL time.Duration
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string, statusTTL time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts), statusTTL: statusTTL}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) SetStatus(ctx context.Context, jobID, status string) error {
	return s.client.Set(ctx, StatusKey(jobID), status, s.statusTTL).Err()
}

// setStatusExceptScript runs server-side so a concurrent writer cannot land
// between the read and the write. ARGV: [1]=status, [2]=ttl millis,
// [3..]=barred values.
var setStatusExceptScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
for i = 3, #ARGV do
	if cur == ARGV[i] then
		return cur
	end
end
if tonumber(ARGV[2]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return ARGV[1]
`)

func (s *RedisStore) SetStatusExcept(ctx context.Context, jobID, status string, barred ...string) (string, error) {
	args := make([]any, 0, len(barred)+2)
	args = append(args, status, s.statusTTL.Milliseconds())
	for _, b := range barred {
		args = append(args, b)
	}
	val, err := setStatusExceptScript.Run(ctx, s.client, []string{StatusKey(jobID)}, args...).Text()
	if err != nil {
		return "", fmt.Errorf("guarded status write for %s: %w", jobID, err)
	}
	return val, nil
}

func (s *RedisStore) GetStatus(ctx context.Context, jobID string) (string, bool, error) {
	val, err := s.client.Get(ctx, StatusKey(jobID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) SetInstance(ctx context.Context, jobID, instanceRef string) error {
	return s.client.Set(ctx, InstanceKey(jobID), instanceRef, s.statusTTL).Err()
}

func (s *RedisStore) GetInstance(ctx context.Context, jobID string) (string, bool, error) {
	val, err := s.client.Get(ctx, InstanceKey(jobID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) ListJobIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	var ids []string

	iter := s.client.Scan(ctx, 0, statusKeyPattern, 100).Iterator()
	for iter.Next(ctx) {
		id, ok := JobIDFromStatusKey(iter.Val())
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan job status keys: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var _ Store = (*RedisStore)(nil)
