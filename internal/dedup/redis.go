package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures a Redis-backed registry.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// Redis shares hash claims across runs and machines. Claims use SETNX, so the
// first writer wins atomically.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return newRedis(client, opts.KeyPrefix, opts.TTL), nil
}

func newRedis(client redisClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Claim implements Registry.
func (r *Redis) Claim(ctx context.Context, hash, filename string) (string, error) {
	key := r.prefix + hash
	ok, err := r.client.SetNX(ctx, key, filename, r.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("claim %s: %w", hash, err)
	}
	if ok {
		return filename, nil
	}

	owner, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		ok, err = r.client.SetNX(ctx, key, filename, r.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("claim %s: %w", hash, err)
		}
		if ok {
			return filename, nil
		}
		owner, err = r.client.Get(ctx, key).Result()
	}
	if err != nil {
		return "", fmt.Errorf("lookup owner of %s: %w", hash, err)
	}
	return owner, nil
}

// Close implements Registry.
func (r *Redis) Close() error {
	return r.client.Close()
}
