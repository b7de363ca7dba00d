package store

import (
	"context"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis backs the store with a redis instance. Keys share a single prefix so
// one instance can serve several deployments.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedis(rdb redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "consult:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	err := r.rdb.Set(ctx, r.prefix+key, value, 0).Err()
	if err != nil && strings.Contains(err.Error(), "OOM") {
		// maxmemory reached, surface as the bounded-capacity failure
		return ErrCapacityExceeded
	}
	return err
}

func (r *Redis) Remove(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.prefix+key).Err()
}
