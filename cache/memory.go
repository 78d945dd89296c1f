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
	"sync"
	"time"
)

type memoryEntry struct {
	data     []byte
	expireAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && now.After(e.expireAt)
}

// MemoryBinder keeps entries in process memory. A zero ttl never expires.
type MemoryBinder struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ Binder = (*MemoryBinder)(nil)

func NewMemoryBinder(ttl time.Duration) *MemoryBinder {
	return &MemoryBinder{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (b *MemoryBinder) GetAll(_ context.Context, keys []string) (map[string][]byte, error) {
	now := b.now()
	result := make(map[string][]byte, len(keys))
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		e, ok := b.entries[key]
		if !ok {
			continue
		}
		if e.expired(now) {
			delete(b.entries, key)
			continue
		}
		result[key] = e.data
	}
	return result, nil
}

// SetAll stores values and drops entries that have expired.
func (b *MemoryBinder) SetAll(_ context.Context, values map[string][]byte) error {
	now := b.now()
	var expireAt time.Time
	if b.ttl > 0 {
		expireAt = now.Add(b.ttl)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ttl > 0 {
		for key, e := range b.entries {
			if e.expired(now) {
				delete(b.entries, key)
			}
		}
	}
	for key, data := range values {
		b.entries[key] = memoryEntry{data: append([]byte(nil), data...), expireAt: expireAt}
	}
	return nil
}

func (b *MemoryBinder) DeleteAll(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, key := range keys {
		delete(b.entries, key)
	}
	return nil
}

// Len reports the number of stored entries, including expired ones not yet dropped.
func (b *MemoryBinder) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
