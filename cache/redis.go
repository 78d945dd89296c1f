/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisBinder stores entries in Redis under an optional key prefix.
type RedisBinder struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Binder = (*RedisBinder)(nil)

func NewRedisBinder(client *redis.Client, prefix string, ttl time.Duration) *RedisBinder {
	return &RedisBinder{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBinder) key(k string) string {
	return b.prefix + k
}

func (b *RedisBinder) GetAll(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	values, err := b.client.MGet(ctx, full...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result, nil
		}
		return nil, err
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

func (b *RedisBinder) SetAll(ctx context.Context, values map[string][]byte) error {
	if len(values) == 0 {
		return nil
	}
	pipe := b.client.Pipeline()
	for k, data := range values {
		pipe.Set(ctx, b.key(k), data, b.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (b *RedisBinder) DeleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = b.key(k)
	}
	return b.client.Del(ctx, full...).Err()
}
