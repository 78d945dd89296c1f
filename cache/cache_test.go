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
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	ID    int64
	Title string
}

func TestKeysAndEncoding(t *testing.T) {
	assert.Equal(t, "Book-7", Key("Book", int64(7)))
	assert.Equal(t, []string{"Tag-a", "Tag-b"}, Keys("Tag", []string{"a", "b"}))

	data, err := Encode(&entry{ID: 1, Title: "Lathe"})
	require.NoError(t, err)
	assert.False(t, IsNull(data))
	var got entry
	require.NoError(t, Decode(data, &got))
	assert.Equal(t, entry{ID: 1, Title: "Lathe"}, got)

	null, err := Encode((*entry)(nil))
	require.NoError(t, err)
	assert.Equal(t, NullValue, null)
	assert.True(t, IsNull(null))
	assert.True(t, IsNull(nil))
}

func TestMemoryBinder(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBinder(0)

	require.NoError(t, b.SetAll(ctx, map[string][]byte{"a": []byte("1"), "b": NullValue}))
	got, err := b.GetAll(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"a": []byte("1"), "b": NullValue}, got)

	require.NoError(t, b.DeleteAll(ctx, []string{"a", "missing"}))
	assert.Equal(t, 1, b.Len())
}

func TestMemoryBinderExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewMemoryBinder(time.Minute)
	b.now = func() time.Time { return now }

	require.NoError(t, b.SetAll(ctx, map[string][]byte{"a": []byte("1")}))
	now = now.Add(30 * time.Second)
	got, _ := b.GetAll(ctx, []string{"a"})
	assert.Len(t, got, 1)

	now = now.Add(time.Minute)
	got, _ = b.GetAll(ctx, []string{"a"})
	assert.Empty(t, got)
	assert.Zero(t, b.Len())
}

func TestMemoryBinderSweepsExpiredOnWrite(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewMemoryBinder(time.Minute)
	b.now = func() time.Time { return now }

	require.NoError(t, b.SetAll(ctx, map[string][]byte{"a": NullValue, "b": NullValue}))
	now = now.Add(2 * time.Minute)
	require.NoError(t, b.SetAll(ctx, map[string][]byte{"c": []byte("3")}))
	assert.Equal(t, 1, b.Len())

	got, _ := b.GetAll(ctx, []string{"a", "b", "c"})
	assert.Equal(t, map[string][]byte{"c": []byte("3")}, got)
}

func TestMemoryBinderCopiesValues(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBinder(0)
	data := []byte("abc")
	require.NoError(t, b.SetAll(ctx, map[string][]byte{"k": data}))
	data[0] = 'x'
	got, _ := b.GetAll(ctx, []string{"k"})
	assert.Equal(t, []byte("abc"), got["k"])
}

func TestRedisBinder(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond})
	defer client.Close()
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	b := NewRedisBinder(client, "kestrel-test:", time.Minute)
	keys := []string{"Book-1", "Book-2", "Book-3"}
	t.Cleanup(func() { _ = b.DeleteAll(context.Background(), keys) })

	require.NoError(t, b.SetAll(ctx, map[string][]byte{"Book-1": []byte("x"), "Book-2": NullValue}))
	got, err := b.GetAll(ctx, keys)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got["Book-1"])
	assert.True(t, IsNull(got["Book-2"]))
	_, ok := got["Book-3"]
	assert.False(t, ok)

	raw, err := client.Get(ctx, "kestrel-test:Book-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "x", raw)

	require.NoError(t, b.DeleteAll(ctx, keys[:1]))
	got, err = b.GetAll(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
