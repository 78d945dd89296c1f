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

package database

import (
	"context"

	"github.com/tomoncle/kestrel/types"
)

// SaveOptions controls how Save writes an entity.
type SaveOptions struct {
	Mode types.SaveMode
	// ConflictColumns identify an existing row under upsert; the primary
	// key when empty.
	ConflictColumns []string
	// UpdateColumns limits the columns written when an existing row is
	// updated; every non-key column when empty.
	UpdateColumns []string
}

type SaveOption func(o *SaveOptions)

func NewSaveOptions(opts ...SaveOption) *SaveOptions {
	o := &SaveOptions{Mode: types.SaveModeUpsert}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithMode(mode types.SaveMode) SaveOption {
	return func(o *SaveOptions) { o.Mode = mode }
}

func WithConflictColumns(columns ...string) SaveOption {
	return func(o *SaveOptions) { o.ConflictColumns = columns }
}

func WithUpdateColumns(columns ...string) SaveOption {
	return func(o *SaveOptions) { o.UpdateColumns = columns }
}

// SimpleSaveResult reports the outcome of saving one entity. Original is a
// shallow copy taken before the write; Modified is the saved entity with
// generated values filled in.
type SimpleSaveResult[E any] struct {
	Original     *E
	Modified     *E
	AffectedRows int64
	Mode         types.SaveMode
}

type BatchSaveResult[E any] struct {
	Items        []*SimpleSaveResult[E]
	AffectedRows int64
}

// Entities returns the saved entities in input order.
func (r *BatchSaveResult[E]) Entities() []*E {
	out := make([]*E, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.Modified)
	}
	return out
}

// SaveEntity saves entity and reports what was written.
func SaveEntity[E any](ctx context.Context, c SQLClient, entity *E, opts ...SaveOption) (*SimpleSaveResult[E], error) {
	return saveEntity(ctx, c, entity, NewSaveOptions(opts...))
}

// SaveEntities saves every entity in a single transaction.
func SaveEntities[E any](ctx context.Context, c SQLClient, entities []*E, opts ...SaveOption) (*BatchSaveResult[E], error) {
	options := NewSaveOptions(opts...)
	result := &BatchSaveResult[E]{Items: make([]*SimpleSaveResult[E], 0, len(entities))}
	if len(entities) == 0 {
		return result, nil
	}
	err := c.RunInTx(ctx, func(ctx context.Context, tx SQLClient) error {
		for _, entity := range entities {
			item, err := saveEntity(ctx, tx, entity, options)
			if err != nil {
				return err
			}
			result.Items = append(result.Items, item)
			result.AffectedRows += item.AffectedRows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func saveEntity[E any](ctx context.Context, c SQLClient, entity *E, opts *SaveOptions) (*SimpleSaveResult[E], error) {
	if entity == nil {
		return nil, ErrNilEntity
	}
	original := *entity
	mode, affected, err := c.Save(ctx, entity, opts)
	if err != nil {
		return nil, err
	}
	return &SimpleSaveResult[E]{
		Original:     &original,
		Modified:     entity,
		AffectedRows: affected,
		Mode:         mode,
	}, nil
}
