package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ErrMiss is returned by Get when the key does not exist.
var ErrMiss = eris.New("cache miss")

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect dials Redis. An unreachable server is not fatal: the returned client
// is nil and callers fall back to Postgres only.
func Connect(ctx context.Context, opts Options, logger zerolog.Logger) *redis.Client {
	log := logger.With().Str("component", "redis").Logger()
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("could not connect, falling back to PostgreSQL only")
		client.Close()
		return nil
	}

	log.Info().Str("addr", opts.Addr).Msg("connected")
	return client
}

// Cache is a thin key/value wrapper around a redis client.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return eris.Wrapf(c.client.Set(ctx, key, value, expiration).Err(), "failed to set %s", key)
}

func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", eris.Wrapf(err, "failed to get %s", key)
	}
	return v, nil
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return eris.Wrap(c.client.Del(ctx, keys...).Err(), "failed to delete keys")
}

func (c *Cache) Close() error {
	return c.client.Close()
}
