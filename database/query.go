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
	"fmt"
	"reflect"

	"github.com/tomoncle/kestrel/cache"
	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// FindByID loads one entity by primary key. A missing row yields a
// *NotFoundError.
func FindByID[E any, ID comparable](ctx context.Context, c SQLClient, id ID, f *fetcher.Fetcher[E]) (*E, error) {
	rows, err := FindMapByIDs[E, ID](ctx, c, []ID{id}, f)
	if err != nil {
		return nil, err
	}
	entity, ok := rows[id]
	if !ok {
		return nil, &NotFoundError{Entity: reflect.TypeFor[E]().Name(), ID: id}
	}
	return entity, nil
}

// FindByIDs loads the entities with the given ids, in the order of ids.
// Duplicate ids are collapsed and missing ids are skipped.
func FindByIDs[E any, ID comparable](ctx context.Context, c SQLClient, ids []ID, f *fetcher.Fetcher[E]) ([]*E, error) {
	rows, err := FindMapByIDs[E, ID](ctx, c, ids, f)
	if err != nil {
		return nil, err
	}
	out := make([]*E, 0, len(rows))
	for _, id := range uniqueIDs(ids) {
		if entity, ok := rows[id]; ok {
			out = append(out, entity)
		}
	}
	return out, nil
}

// FindMapByIDs loads the entities with the given ids keyed by id. Missing
// ids have no entry.
func FindMapByIDs[E any, ID comparable](ctx context.Context, c SQLClient, ids []ID, f *fetcher.Fetcher[E]) (map[ID]*E, error) {
	result := make(map[ID]*E, len(ids))
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return result, nil
	}
	table, err := c.Table(reflect.TypeFor[E]())
	if err != nil {
		return nil, err
	}
	pk, err := singlePK(table)
	if err != nil {
		return nil, err
	}

	missing := ids
	useCache := c.Cache() != nil && f.IsDefault() && !c.InTx()
	if useCache {
		missing = readCached(ctx, c, table, ids, result)
		if len(missing) == 0 {
			return result, nil
		}
	}

	var rows []*E
	q, err := c.Select(&rows, shapeOf(f), nil)
	if err != nil {
		return nil, err
	}
	if err := q.Where("?TableAlias.? IN (?)", bun.Ident(pk.Name), bun.In(missing)).Scan(ctx); err != nil {
		return nil, err
	}
	for _, row := range rows {
		id, err := idOf[E, ID](pk, row)
		if err != nil {
			return nil, err
		}
		result[id] = row
	}
	if useCache {
		writeCached(ctx, c, table, missing, result)
	}
	return result, nil
}

// FindAll loads every entity of E.
func FindAll[E any](ctx context.Context, c SQLClient, f *fetcher.Fetcher[E], orders ...types.Order) ([]*E, error) {
	rows := make([]*E, 0)
	q, err := c.Select(&rows, shapeOf(f), orders)
	if err != nil {
		return nil, err
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

// FindPage loads one page of E together with the total row count. Without
// orders the page is ordered by primary key.
func FindPage[E any](ctx context.Context, c SQLClient, param types.PageParam, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Page[E], error) {
	total, err := c.Count(ctx, (*E)(nil))
	if err != nil {
		return nil, err
	}
	if total == 0 || param.GetOffset() >= total {
		return types.NewPage[E](param, nil, total), nil
	}
	rows := make([]*E, 0, param.GetSize())
	q, err := orderedSelect(c, &rows, f, orders)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(param.GetSize()).Offset(param.GetOffset()).Scan(ctx); err != nil {
		return nil, err
	}
	return types.NewPage(param, rows, total), nil
}

// FindSlice loads up to limit entities starting at offset without counting
// the table. One extra row is read to tell whether the slice is the tail.
func FindSlice[E any](ctx context.Context, c SQLClient, limit, offset int, f *fetcher.Fetcher[E], orders ...types.Order) (*types.Slice[E], error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if offset < 0 {
		offset = 0
	}
	rows := make([]*E, 0, limit+1)
	q, err := orderedSelect(c, &rows, f, orders)
	if err != nil {
		return nil, err
	}
	if err := q.Limit(limit + 1).Offset(offset).Scan(ctx); err != nil {
		return nil, err
	}
	return types.NewSlice(rows, limit, offset), nil
}

// DeleteByID deletes one entity and returns the number of affected rows.
func DeleteByID[E any, ID comparable](ctx context.Context, c SQLClient, id ID, mode types.DeleteMode) (int64, error) {
	return DeleteByIDs[E, ID](ctx, c, []ID{id}, mode)
}

func DeleteByIDs[E any, ID comparable](ctx context.Context, c SQLClient, ids []ID, mode types.DeleteMode) (int64, error) {
	ids = uniqueIDs(ids)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return c.DeleteByIDs(ctx, (*E)(nil), args, mode)
}

func orderedSelect[E any](c SQLClient, rows *[]*E, f *fetcher.Fetcher[E], orders []types.Order) (*bun.SelectQuery, error) {
	if len(orders) == 0 {
		table, err := c.Table(reflect.TypeFor[E]())
		if err != nil {
			return nil, err
		}
		for _, pk := range table.PKs {
			orders = append(orders, types.Asc(pk.Name))
		}
	}
	return c.Select(rows, shapeOf(f), orders)
}

func shapeOf[E any](f *fetcher.Fetcher[E]) fetcher.Shape {
	if f.IsDefault() {
		return nil
	}
	return f
}

func readCached[E any, ID comparable](ctx context.Context, c SQLClient, table *schema.Table, ids []ID, result map[ID]*E) []ID {
	keys := cache.Keys(table.Type.Name(), ids)
	hits, err := c.Cache().GetAll(ctx, keys)
	if err != nil {
		c.Logger().Warn("Failed to read object cache", "type", table.Type.Name(), "error", err)
		return ids
	}
	var missing []ID
	for i, id := range ids {
		data, ok := hits[keys[i]]
		if !ok {
			missing = append(missing, id)
			continue
		}
		if cache.IsNull(data) {
			continue
		}
		entity := new(E)
		if err := cache.Decode(data, entity); err != nil {
			c.Logger().Warn("Dropping undecodable cache entry", "key", keys[i], "error", err)
			missing = append(missing, id)
			continue
		}
		result[id] = entity
	}
	return missing
}

func writeCached[E any, ID comparable](ctx context.Context, c SQLClient, table *schema.Table, ids []ID, result map[ID]*E) {
	entries := make(map[string][]byte, len(ids))
	for _, id := range ids {
		key := cache.Key(table.Type.Name(), id)
		entity, ok := result[id]
		if !ok {
			entries[key] = cache.NullValue
			continue
		}
		data, err := cache.Encode(entity)
		if err != nil {
			c.Logger().Warn("Skipping cache entry", "key", key, "error", err)
			continue
		}
		entries[key] = data
	}
	if err := c.Cache().SetAll(ctx, entries); err != nil {
		c.Logger().Warn("Failed to write object cache", "type", table.Type.Name(), "error", err)
	}
}

func idOf[E any, ID comparable](pk *schema.Field, entity *E) (ID, error) {
	var id ID
	v, err := reflect.ValueOf(entity).Elem().FieldByIndexErr(pk.Index)
	if err != nil {
		return id, err
	}
	target := reflect.TypeOf(id)
	switch {
	case v.Type() == target:
		return v.Interface().(ID), nil
	case v.Type().ConvertibleTo(target):
		return v.Convert(target).Interface().(ID), nil
	default:
		return id, fmt.Errorf("database: primary key %s (%s) cannot be read as %s", pk.GoName, v.Type(), target)
	}
}

func uniqueIDs[ID comparable](ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
