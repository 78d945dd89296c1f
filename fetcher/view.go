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

package fetcher

import (
	"fmt"
	"reflect"
)

// EntityConverter lets a view type build itself from a loaded entity instead
// of relying on field-by-field copying.
type EntityConverter[E any] interface {
	FromEntity(entity *E)
}

// View is the metadata of a projection type V over entity E: the fetcher
// loading exactly the fields V needs and the conversion from E to V.
type View[E any, V any] struct {
	fetcher *Fetcher[E]
	copies  [][2][]int
}

// ViewOf derives the view metadata of V. Every exported field of V must
// match an exported field of E with the same name and an assignable type;
// a `fetch:"-"` tag excludes a field. When *V implements EntityConverter the
// fields are not matched and all scalars of E are loaded.
func ViewOf[E any, V any]() (*View[E, V], error) {
	et := reflect.TypeFor[E]()
	vt := reflect.TypeFor[V]()
	if et.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotEntity, et)
	}
	if vt.Kind() != reflect.Struct {
		return nil, fmt.Errorf("fetcher: view %s must be a struct", vt)
	}

	v := &View[E, V]{}
	if _, custom := any(new(V)).(EntityConverter[E]); custom {
		// the converter may read any scalar of E
		v.fetcher = New[E]()
		return v, nil
	}
	var names []string
	for i := 0; i < vt.NumField(); i++ {
		vf := vt.Field(i)
		if !vf.IsExported() || vf.Anonymous || vf.Tag.Get("fetch") == "-" {
			continue
		}
		ef, ok := et.FieldByName(vf.Name)
		if !ok || !ef.IsExported() {
			return nil, fmt.Errorf("%w: view %s declares %s which %s does not have", ErrUnknownField, vt.Name(), vf.Name, et.Name())
		}
		if !ef.Type.AssignableTo(vf.Type) {
			return nil, fmt.Errorf("fetcher: view field %s.%s (%s) cannot hold %s.%s (%s)",
				vt.Name(), vf.Name, vf.Type, et.Name(), ef.Name, ef.Type)
		}
		v.copies = append(v.copies, [2][]int{ef.Index, vf.Index})
		names = append(names, vf.Name)
	}
	v.fetcher = New[E]().Fields(names...)
	return v, nil
}

// MustViewOf is like ViewOf but panics on error.
func MustViewOf[E any, V any]() *View[E, V] {
	v, err := ViewOf[E, V]()
	if err != nil {
		panic(err)
	}
	return v
}

// Fetcher returns the fetcher that loads the fields of the view.
func (v *View[E, V]) Fetcher() *Fetcher[E] {
	return v.fetcher
}

// Convert projects an entity into the view. A nil entity yields nil.
func (v *View[E, V]) Convert(entity *E) *V {
	if entity == nil {
		return nil
	}
	out := new(V)
	if c, ok := any(out).(EntityConverter[E]); ok {
		c.FromEntity(entity)
		return out
	}
	src := reflect.ValueOf(entity).Elem()
	dst := reflect.ValueOf(out).Elem()
	for _, pair := range v.copies {
		field, err := src.FieldByIndexErr(pair[0])
		if err != nil {
			continue
		}
		dst.FieldByIndex(pair[1]).Set(field)
	}
	return out
}

// ConvertAll projects entities in order.
func (v *View[E, V]) ConvertAll(entities []*E) []*V {
	out := make([]*V, len(entities))
	for i, e := range entities {
		out[i] = v.Convert(e)
	}
	return out
}
