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

package repository

import (
	"context"
	"reflect"

	"github.com/tomoncle/kestrel/database"
	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
	"github.com/uptrace/bun"
)

// Input is a write-side object that converts itself into an entity.
type Input[E any] interface {
	ToEntity() *E
}

// FindRepository loads entities by primary key or in bulk. A nil fetcher
// loads every scalar column of E.
type FindRepository[E any, ID comparable] interface {
	FindByID(ctx context.Context, id ID, f *fetcher.Fetcher[E]) (*E, error)

	FindByIDs(ctx context.Context, ids []ID, f *fetcher.Fetcher[E]) ([]*E, error)

	FindMapByIDs(ctx context.Context, ids []ID, f *fetcher.Fetcher[E]) (map[ID]*E, error)

	FindAll(ctx context.Context, f *fetcher.Fetcher[E], orders ...types.Order) ([]*E, error)

	List(ctx context.Context, filter *types.QueryFilter, f *fetcher.Fetcher[E], orders ...types.Order) ([]*E, error)
}

// PageQueryRepository loads windows of entities.
type PageQueryRepository[E any] interface {
	FindPage(ctx context.Context, param types.PageParam, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Page[E], error)

	FindSlice(ctx context.Context, limit, offset int, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Slice[E], error)
}

type SaveRepository[E any] interface {
	SaveEntity(ctx context.Context, entity *E, opts ...database.SaveOption) (*database.SimpleSaveResult[E], error)
	SaveEntities(ctx context.Context, entities []*E, opts ...database.SaveOption) (*database.BatchSaveResult[E], error)
	SaveInput(ctx context.Context, input Input[E], opts ...database.SaveOption) (*database.SimpleSaveResult[E], error)
	SaveInputs(ctx context.Context, inputs []Input[E], opts ...database.SaveOption) (*database.BatchSaveResult[E], error)
}

// DeleteRepository removes entities by primary key and reports the number
// of affected rows.
type DeleteRepository[ID comparable] interface {
	DeleteByID(ctx context.Context, id ID, mode types.DeleteMode) (int64, error)
	DeleteByIDs(ctx context.Context, ids []ID, mode types.DeleteMode) (int64, error)
}

// Repository is the full set of operations on entity E keyed by ID.
type Repository[E any, ID comparable] interface {
	FindRepository[E, ID]
	PageQueryRepository[E]
	SaveRepository[E]
	DeleteRepository[ID]
	SQLClient() database.SQLClient
	EntityType() reflect.Type
	NewSelect() *bun.SelectQuery
}
