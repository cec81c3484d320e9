package lib

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var redisClient *redis.Client

func GetRedisClient(url string) *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		zap.L().Error("[redis] error parsing connection string", zap.Error(err))
		return nil
	}
	redisClient = redis.NewClient(opt)
	return redisClient
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}

// unlockScript deletes the key only while it still holds our token.
const unlockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLocker hands out best-effort leases backed by SET NX.
type RedisLocker struct {
	client redis.Cmdable
	token  func() string
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{client: client, token: func() string { return uuid.NewString() }}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := l.token()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("error acquiring lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.client.Eval(ctx, unlockScript, []string{key}, token).Err(); err != nil {
			zap.L().Warn("[redis] error releasing lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}
