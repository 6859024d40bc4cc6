package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisStore keeps drafts in Redis so traversals survive process restarts.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewRedisStore(addr string, ttl time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func (s *RedisStore) Get(ctx context.Context, prefix string) (Data, error) {
	raw, err := s.rdb.Get(ctx, s.key(prefix)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return NewData(), nil
		}
		return Data{}, err
	}

	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("decode draft: %w", err)
	}
	if data.Answers == nil {
		data.Answers = map[string]any{}
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, prefix string, data Data) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(prefix), raw, s.ttl).Err()
}

func (s *RedisStore) Reset(ctx context.Context, prefix string) error {
	return s.rdb.Del(ctx, s.key(prefix)).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) key(prefix string) string {
	return "advicebuilder:draft:" + prefix
}
