package sources

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisSource reports the length of a list used as a work queue.
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	return &RedisSource{client: client, key: key}
}

func (s *RedisSource) Kind() Kind { return KindRedis }

func (s *RedisSource) ID() string {
	opts := s.client.Options()
	return fmt.Sprintf("redis:%s/%d|%s", opts.Addr, opts.DB, s.key)
}

func (s *RedisSource) Read(ctx context.Context) (float64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, unavailable(s, err)
	}
	return float64(n), nil
}
