package prefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	cli *redis.Client
	key string
}

// NewRedis connects to url and checks the connection. namespace, when set, prefixes
// the key so several users can share one server.
func NewRedis(ctx context.Context, url, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{cli: cli, key: redisKey(namespace)}, nil
}

func redisKey(namespace string) string {
	if namespace == "" {
		return ActiveTabKey
	}
	return namespace + ":" + ActiveTabKey
}

func (r *RedisStore) ActiveTab(ctx context.Context) (Tab, error) {
	val, err := r.cli.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return TabChat, nil
	}
	if err != nil {
		return TabChat, fmt.Errorf("prefs.ActiveTab: %w", err)
	}
	return ParseTab(val), nil
}

func (r *RedisStore) SetActiveTab(ctx context.Context, tab Tab) error {
	if err := checkTab(tab); err != nil {
		return err
	}
	if err := r.cli.Set(ctx, r.key, string(tab), 0).Err(); err != nil {
		return fmt.Errorf("prefs.SetActiveTab: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.cli.Close()
}
