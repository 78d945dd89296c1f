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

	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
)

// The functions below load entities shaped by a view and return them
// converted to V. A nil view is derived from V with fetcher.ViewOf.

func FindViewByID[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], id ID, view *fetcher.View[E, V]) (*V, error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	entity, err := repo.FindByID(ctx, id, view.Fetcher())
	if err != nil {
		return nil, err
	}
	return view.Convert(entity), nil
}

func FindViewsByIDs[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], ids []ID, view *fetcher.View[E, V]) ([]*V, error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	entities, err := repo.FindByIDs(ctx, ids, view.Fetcher())
	if err != nil {
		return nil, err
	}
	return view.ConvertAll(entities), nil
}

func FindViewMapByIDs[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], ids []ID, view *fetcher.View[E, V]) (map[ID]*V, error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	entities, err := repo.FindMapByIDs(ctx, ids, view.Fetcher())
	if err != nil {
		return nil, err
	}
	out := make(map[ID]*V, len(entities))
	for id, entity := range entities {
		out[id] = view.Convert(entity)
	}
	return out, nil
}

func FindAllViews[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], view *fetcher.View[E, V], orders ...types.Order) ([]*V, error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	entities, err := repo.FindAll(ctx, view.Fetcher(), orders...)
	if err != nil {
		return nil, err
	}
	return view.ConvertAll(entities), nil
}

func FindViewPage[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], param types.PageParam, view *fetcher.View[E, V], orders ...types.Order) (*types.Page[V], error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	page, err := repo.FindPage(ctx, param, view.Fetcher(), orders...)
	if err != nil {
		return nil, err
	}
	return types.MapPage(page, view.Convert), nil
}

func FindViewSlice[E any, ID comparable, V any](ctx context.Context, repo Repository[E, ID], limit, offset int, view *fetcher.View[E, V], orders ...types.Order) (*types.Slice[V], error) {
	view, err := viewOrDefault(view)
	if err != nil {
		return nil, err
	}
	slice, err := repo.FindSlice(ctx, limit, offset, view.Fetcher(), orders...)
	if err != nil {
		return nil, err
	}
	return types.MapSlice(slice, view.Convert), nil
}

func viewOrDefault[E any, V any](view *fetcher.View[E, V]) (*fetcher.View[E, V], error) {
	if view != nil {
		return view, nil
	}
	return fetcher.ViewOf[E, V]()
}
