package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store against any Redis-compatible engine: a
// single *redis.Client, pipelined multi-step writes where atomicity
// across two calls matters, and redis.Nil treated as "absent" rather than
// an error.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a client for host:port with the given db/password;
// no connection is opened until the first command.
func NewRedisStore(host string, port, db int, password string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		DB:       db,
		Password: password,
	})
	return &RedisStore{client: client}
}

func (s *RedisStore) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if len(args) > 0 {
		pipe.HSet(ctx, key, args...)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return v, true, nil
}

func (s *RedisStore) HGetAll(ctx context.Context, key string) (map[string]string, bool, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	if len(m) == 0 {
		return nil, false, nil
	}
	return m, true, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SAdd(ctx context.Context, key string, member string, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, member)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("sadd %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SRem(ctx context.Context, key string, member string) error {
	if err := s.client.SRem(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("srem %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", key, err)
	}
	return members, nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *RedisStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s*: %w", prefix, err)
	}
	return keys, nil
}

func (s *RedisStore) FlushPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := s.KeysWithPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, fmt.Errorf("flush prefix %s: %w", prefix, err)
	}
	return len(keys), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
