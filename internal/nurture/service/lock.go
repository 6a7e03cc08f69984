package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLockKey is the Redis key guarding dispatcher runs.
const RunLockKey = "leadfunnel:nurture:run"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock is a single-holder lease with an owner token so a run that
// outlived its TTL cannot release a newer holder's lock.
type RedisRunLock struct {
	client redis.UniversalClient
	key    string
}

func NewRedisRunLock(client redis.UniversalClient, key string) *RedisRunLock {
	if key == "" {
		key = RunLockKey
	}
	return &RedisRunLock{client: client, key: key}
}

func (l *RedisRunLock) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, true, nil
}
