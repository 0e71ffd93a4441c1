package admission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript purges expired members, then either admits the caller by adding
// its timestamp or returns the oldest retained score. Runs atomically on the
// server so concurrent instances cannot over-admit.
//
// KEYS[1] window key
// ARGV[1] now (unix nanos), ARGV[2] window (nanos), ARGV[3] max requests
var takeScript = redis.NewScript(`
local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  return {0, oldest[2]}
end
redis.call('ZADD', KEYS[1], ARGV[1], ARGV[1])
redis.call('PEXPIRE', KEYS[1], math.ceil(tonumber(ARGV[2]) / 1000000))
return {1, 0}
`)

// RedisStore is a WindowStore backed by Redis sorted sets, for deployments
// where several instances must share one limit budget. Keys expire on their
// own, so Sweep is a no-op.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a RedisStore from a redis:// URL.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), prefix: "gatehouse:window:"}, nil
}

// Take implements WindowStore.
func (s *RedisStore) Take(ctx context.Context, key string, limit Limit, now time.Time) (bool, time.Time, error) {
	res, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		now.UnixNano(), limit.Window.Nanoseconds(), limit.MaxRequests).Slice()
	if err != nil {
		return false, time.Time{}, fmt.Errorf("window take: %w", err)
	}
	if len(res) != 2 {
		return false, time.Time{}, fmt.Errorf("window take: unexpected reply %v", res)
	}

	allowed, _ := res[0].(int64)
	if allowed == 1 {
		return true, time.Time{}, nil
	}

	oldest, err := scriptScore(res[1])
	if err != nil {
		return false, time.Time{}, err
	}
	return false, time.Unix(0, oldest), nil
}

// Sweep implements WindowStore. Redis expires idle keys via PEXPIRE.
func (s *RedisStore) Sweep(context.Context, time.Duration, time.Time) (int, error) {
	return 0, nil
}

// Ping verifies connectivity at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func scriptScore(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, fmt.Errorf("window take: bad score %q", t)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("window take: bad score type %T", v)
	}
}
