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
	"errors"
	"fmt"
	"reflect"

	"github.com/tomoncle/kestrel/database"
	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
	"github.com/uptrace/bun"
)

// ErrEntityTypeUnresolved is returned when a repository is instantiated with
// a type argument that is not a concrete entity.
var ErrEntityTypeUnresolved = errors.New("repository: entity type cannot be resolved")

// Base implements Repository by delegating to a database.SQLClient. Domain
// repositories embed *Base and add their own finders.
type Base[E any, ID comparable] struct {
	client     database.SQLClient
	entityType reflect.Type
}

var _ Repository[struct{}, int64] = (*Base[struct{}, int64])(nil)

// NewBase resolves E against the database of client. E must be a struct
// mapped by Bun to a table with exactly one primary key column, and that
// column's Go type must convert to ID.
func NewBase[E any, ID comparable](client database.SQLClient) (*Base[E, ID], error) {
	if client == nil {
		return nil, fmt.Errorf("%w: no SQL client", ErrEntityTypeUnresolved)
	}
	typ, err := resolveEntityType[E, ID](client)
	if err != nil {
		return nil, err
	}
	return &Base[E, ID]{client: client, entityType: typ}, nil
}

// MustBase is like NewBase but panics when E cannot be resolved.
func MustBase[E any, ID comparable](client database.SQLClient) *Base[E, ID] {
	base, err := NewBase[E, ID](client)
	if err != nil {
		panic(err)
	}
	return base
}

func resolveEntityType[E any, ID comparable](client database.SQLClient) (reflect.Type, error) {
	typ := reflect.TypeFor[E]()
	switch typ.Kind() {
	case reflect.Struct:
	case reflect.Interface:
		return nil, fmt.Errorf("%w: %s is an interface; instantiate the repository with a concrete entity struct",
			ErrEntityTypeUnresolved, typ)
	case reflect.Ptr:
		return nil, fmt.Errorf("%w: %s is a pointer; use the entity struct %s as the type argument",
			ErrEntityTypeUnresolved, typ, typ.Elem())
	default:
		return nil, fmt.Errorf("%w: %s is a %s, not an entity struct", ErrEntityTypeUnresolved, typ, typ.Kind())
	}

	table, err := client.Table(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a table model: %v", ErrEntityTypeUnresolved, typ, err)
	}
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s declares %d primary key columns, need exactly one",
			ErrEntityTypeUnresolved, typ, len(table.PKs))
	}
	pk := table.PKs[0]
	pkType := typ.FieldByIndex(pk.Index).Type
	idType := reflect.TypeFor[ID]()
	if !pkType.ConvertibleTo(idType) || !idType.ConvertibleTo(pkType) {
		return nil, fmt.Errorf("%w: primary key %s.%s is %s, which does not convert to the id type %s",
			ErrEntityTypeUnresolved, typ.Name(), pk.GoName, pkType, idType)
	}
	return typ, nil
}

// WithClient returns a copy of the repository bound to client, typically the
// transactional client passed to SQLClient.RunInTx.
func (r *Base[E, ID]) WithClient(client database.SQLClient) *Base[E, ID] {
	return &Base[E, ID]{client: client, entityType: r.entityType}
}

// RunInTx runs fn with a copy of the repository bound to a transaction.
func (r *Base[E, ID]) RunInTx(ctx context.Context, fn func(ctx context.Context, repo *Base[E, ID]) error) error {
	return r.client.RunInTx(ctx, func(ctx context.Context, tx database.SQLClient) error {
		return fn(ctx, r.WithClient(tx))
	})
}

func (r *Base[E, ID]) SQLClient() database.SQLClient { return r.client }

func (r *Base[E, ID]) EntityType() reflect.Type { return r.entityType }

// NewSelect starts a select on the table of E.
func (r *Base[E, ID]) NewSelect() *bun.SelectQuery {
	return r.client.IDB().NewSelect().Model((*E)(nil))
}

func (r *Base[E, ID]) FindByID(ctx context.Context, id ID, f *fetcher.Fetcher[E]) (*E, error) {
	return database.FindByID[E, ID](ctx, r.client, id, f)
}

func (r *Base[E, ID]) FindByIDs(ctx context.Context, ids []ID, f *fetcher.Fetcher[E]) ([]*E, error) {
	return database.FindByIDs[E, ID](ctx, r.client, ids, f)
}

func (r *Base[E, ID]) FindMapByIDs(ctx context.Context, ids []ID, f *fetcher.Fetcher[E]) (map[ID]*E, error) {
	return database.FindMapByIDs[E, ID](ctx, r.client, ids, f)
}

func (r *Base[E, ID]) FindAll(ctx context.Context, f *fetcher.Fetcher[E], orders ...types.Order) ([]*E, error) {
	return database.FindAll[E](ctx, r.client, f, orders...)
}

// List loads the entities matching filter. A nil filter matches every row.
func (r *Base[E, ID]) List(ctx context.Context, filter *types.QueryFilter, f *fetcher.Fetcher[E], orders ...types.Order) ([]*E, error) {
	if filter == nil {
		return r.FindAll(ctx, f, orders...)
	}
	rows := make([]*E, 0)
	var shape fetcher.Shape
	if !f.IsDefault() {
		shape = f
	}
	q, err := r.client.Select(&rows, shape, orders)
	if err != nil {
		return nil, err
	}
	if err := q.Where(filter.Schema, filter.Args...).Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Base[E, ID]) FindPage(ctx context.Context, param types.PageParam, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Page[E], error) {
	return database.FindPage[E](ctx, r.client, param, f, orders...)
}

func (r *Base[E, ID]) FindSlice(ctx context.Context, limit, offset int, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Slice[E], error) {
	return database.FindSlice[E](ctx, r.client, limit, offset, f, orders...)
}

func (r *Base[E, ID]) SaveEntity(ctx context.Context, entity *E, opts ...database.SaveOption) (*database.SimpleSaveResult[E], error) {
	return database.SaveEntity(ctx, r.client, entity, opts...)
}

func (r *Base[E, ID]) SaveEntities(ctx context.Context, entities []*E, opts ...database.SaveOption) (*database.BatchSaveResult[E], error) {
	return database.SaveEntities(ctx, r.client, entities, opts...)
}

func (r *Base[E, ID]) SaveInput(ctx context.Context, input Input[E], opts ...database.SaveOption) (*database.SimpleSaveResult[E], error) {
	if input == nil {
		return nil, database.ErrNilEntity
	}
	return r.SaveEntity(ctx, input.ToEntity(), opts...)
}

func (r *Base[E, ID]) SaveInputs(ctx context.Context, inputs []Input[E], opts ...database.SaveOption) (*database.BatchSaveResult[E], error) {
	entities := make([]*E, 0, len(inputs))
	for _, input := range inputs {
		if input == nil {
			return nil, database.ErrNilEntity
		}
		entities = append(entities, input.ToEntity())
	}
	return r.SaveEntities(ctx, entities, opts...)
}

func (r *Base[E, ID]) DeleteByID(ctx context.Context, id ID, mode types.DeleteMode) (int64, error) {
	return database.DeleteByID[E, ID](ctx, r.client, id, mode)
}

func (r *Base[E, ID]) DeleteByIDs(ctx context.Context, ids []ID, mode types.DeleteMode) (int64, error) {
	return database.DeleteByIDs[E, ID](ctx, r.client, ids, mode)
}
