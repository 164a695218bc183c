/*
Copyright 2025 The llm-d Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const redisScanBatch = 100

// RedisConfig holds the configuration for the networked-cache KV backend.
type RedisConfig struct {
	// Address is a redis:// / rediss:// / unix:// URL, or a bare host:port
	// (defaulted to redis://).
	Address string
}

// DefaultRedisConfig returns a default configuration pointing at localhost.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{Address: "redis://127.0.0.1:6379"}
}

// Redis is a KV backend over a shared cache server. Keys pass through
// unchanged. There is no expiration; persistence is the cache server's
// problem.
type Redis struct {
	client *redis.Client
}

var _ Store = (*Redis)(nil)

// NewRedis connects to Redis per cfg.
func NewRedis(cfg *RedisConfig) (*Redis, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}

	addr := cfg.Address
	if !strings.HasPrefix(addr, "redis://") &&
		!strings.HasPrefix(addr, "rediss://") &&
		!strings.HasPrefix(addr, "unix://") {
		addr = "redis://" + addr
	}

	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("kvstore: parse redis address: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("kvstore: connect to redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an already-constructed client (used by tests
// against miniredis, and by callers resolving a shared pooled connection).
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Kind() string { return "redis" }

// Client exposes the underlying connection, so components that need raw
// Redis commands against the same cluster cache (the request-status
// channel's hash pipelines) can share it instead of dialing their own.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		klog.FromContext(ctx).Error(err, "redis GET failed", "key", key)
		return nil, false, nil
	}
	return val, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, key, value, 0).Err(); err != nil {
		klog.FromContext(ctx).Error(err, "redis SET failed", "key", key)
		return nil //nolint:nilerr // transient backend failures are logged, not propagated
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, key).Result()
	if err != nil {
		klog.FromContext(ctx).Error(err, "redis DEL failed", "key", key)
		return false, nil //nolint:nilerr // see Put
	}
	return n > 0, nil
}

func (r *Redis) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		klog.FromContext(ctx).Error(err, "redis MGET failed", "count", len(keys))
		return out, nil //nolint:nilerr // see Put
	}

	for i, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

func (r *Redis) BatchDelete(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		klog.FromContext(ctx).Error(err, "redis batch DEL failed", "count", len(keys))
		return 0, nil //nolint:nilerr // see Put
	}
	return int(n), nil
}

// Iterate uses cursor-based SCAN in batches of redisScanBatch to avoid
// blocking Redis on large datasets, then pipelines an MGET per batch.
func (r *Redis) Iterate(ctx context.Context, fn func(key string, value []byte) error) error {
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, "", redisScanBatch).Result()
		if err != nil {
			return fmt.Errorf("kvstore: redis SCAN failed: %w", err)
		}

		if len(keys) > 0 {
			values, err := r.client.MGet(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("kvstore: redis MGET failed during iterate: %w", err)
			}

			for i, v := range values {
				if v == nil {
					continue
				}
				s, ok := v.(string)
				if !ok || s == "" {
					continue
				}
				if err := fn(keys[i], []byte(s)); err != nil {
					return err
				}
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return nil
}
