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
	"bytes"
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Binder is a key/value store for encoded entities.
type Binder interface {
	// GetAll returns the entries found; missing keys are left out.
	GetAll(ctx context.Context, keys []string) (map[string][]byte, error)
	SetAll(ctx context.Context, values map[string][]byte) error
	DeleteAll(ctx context.Context, keys []string) error
}

// NullValue marks a primary key known to have no row. It is the msgpack
// encoding of nil.
var NullValue = []byte{0xc0}

// Key builds the cache key of one entity.
func Key(typeName string, id interface{}) string {
	return fmt.Sprintf("%s-%v", typeName, id)
}

// Keys builds the cache keys of several entities, in order.
func Keys[ID any](typeName string, ids []ID) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(typeName, id)
	}
	return keys
}

func IsNull(data []byte) bool {
	return len(data) == 0 || bytes.Equal(data, NullValue)
}

// Encode serializes an entity; a nil pointer encodes as NullValue.
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}
