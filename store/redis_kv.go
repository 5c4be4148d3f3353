package store

import (
	"context"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
)

type RedisKV struct {
	inner *redis.Client
}

var ctx = context.Background()

func NewRedisKV() *RedisKV {
	return &RedisKV{
		inner: redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")),
			Password: os.Getenv("REDIS_PASSWD"),
			DB:       0, // use default DB
		})}
}

func stateKey(key string) string {
	return fmt.Sprintf("archivemux_%s", key)
}

func (r *RedisKV) Get(key string) ([]byte, error) {
	res, err := r.inner.Get(ctx, stateKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return res, err
}

func (r *RedisKV) Set(key string, value []byte) error {
	// 0 expiration, archive state has session-unbounded lifetime
	return r.inner.Set(ctx, stateKey(key), value, 0).Err()
}

func (r *RedisKV) Delete(key string) error {
	return r.inner.Del(ctx, stateKey(key)).Err()
}
