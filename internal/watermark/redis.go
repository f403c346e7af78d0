package watermark

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"tower_bot/internal/models"
)

type RedisBackend struct {
	client goredis.UniversalClient
	prefix string
}

func NewRedisBackend(client goredis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url, prefix string) (*RedisBackend, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisBackend(client, prefix), nil
}

func (b *RedisBackend) key(stream models.Stream) string {
	return fmt.Sprintf("%s:watermark:%s", b.prefix, stream)
}

func (b *RedisBackend) Load(ctx context.Context, stream models.Stream) (string, bool, error) {
	value, err := b.client.Get(ctx, b.key(stream)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (b *RedisBackend) Save(ctx context.Context, stream models.Stream, value string) error {
	return b.client.Set(ctx, b.key(stream), value, 0).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
