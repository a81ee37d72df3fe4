// SPDX-License-Identifier: MIT
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kinocore/kinocore/internal/log"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore implements Store on a Redis server. Useful for shared
// deployments (several player instances behind one account).
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("progress: redis connection failed: %w", err)
	}

	logger := log.WithComponent("progress")
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to redis progress store")
	return &RedisStore{client: client, logger: logger}, nil
}

func (s *RedisStore) Get(ctx context.Context, viewerKey string, movieID int64) (*Entry, error) {
	val, err := s.client.Get(ctx, Key(viewerKey, movieID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		// Unparseable entries count as absent.
		s.logger.Warn().Str("key", Key(viewerKey, movieID)).Msg("discarding malformed progress entry")
		return nil, nil
	}
	return &e, nil
}

func (s *RedisStore) Put(ctx context.Context, viewerKey string, movieID int64, e *Entry) error {
	clean := sanitize(e)
	buf, err := json.Marshal(clean)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, Key(viewerKey, movieID), buf, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, viewerKey string, movieID int64) error {
	return s.client.Del(ctx, Key(viewerKey, movieID)).Err()
}

func (s *RedisStore) List(ctx context.Context, viewerKey string) (map[int64]Entry, error) {
	prefix := "progress:" + viewerKey + ":"
	out := make(map[int64]Entry)

	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		movieID, err := strconv.ParseInt(key[len(prefix):], 10, 64)
		if err != nil {
			continue
		}
		val, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := json.Unmarshal(val, &e); err != nil {
			continue
		}
		out[movieID] = e
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
