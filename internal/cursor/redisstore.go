package cursor

import (
	"context"
	"fmt"

	redis "github.com/go-redis/redis"
)

// RedisStore persists breadcrumbs under a single key in a Redis-compatible
// store, representing the "keyed remote store" family.
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func (r *RedisStore) Load(context.Context) ([]byte, error) {
	data, err := r.Client.Get(r.Key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cursor/redisstore: get %s: %w", r.Key, err)
	}
	return data, nil
}

func (r *RedisStore) Save(_ context.Context, data []byte) error {
	if err := r.Client.Set(r.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("cursor/redisstore: set %s: %w", r.Key, err)
	}
	return nil
}
