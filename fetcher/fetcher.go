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
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

var (
	ErrUnknownField    = errors.New("fetcher: unknown field")
	ErrUnknownRelation = errors.New("fetcher: unknown relation")
	ErrNotEntity       = errors.New("fetcher: type is not an entity struct")
)

// Shape is the type-erased form of a Fetcher, used for nested relations.
type Shape interface {
	EntityType() reflect.Type
	Validate(db *bun.DB) error
	String() string
	applyTo(q *bun.SelectQuery, required []string) *bun.SelectQuery
}

type relation struct {
	name  string
	child Shape
}

// Fetcher selects a subset of columns of E and the relations to load with it.
// A Fetcher is immutable; every builder method returns a copy. The zero
// Fetcher loads every scalar column and no relation.
type Fetcher[E any] struct {
	fields    []string
	relations []relation
}

// New returns a fetcher loading all scalar columns of E.
func New[E any]() *Fetcher[E] {
	return &Fetcher[E]{}
}

func (f *Fetcher[E]) clone() *Fetcher[E] {
	c := &Fetcher[E]{}
	if f == nil {
		return c
	}
	if f.fields != nil {
		c.fields = append([]string{}, f.fields...)
	}
	c.relations = append([]relation{}, f.relations...)
	return c
}

// Fields restricts the loaded columns. Names may be SQL column names or Go
// field names. Primary keys are always loaded.
func (f *Fetcher[E]) Fields(names ...string) *Fetcher[E] {
	c := f.clone()
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || containsString(c.fields, n) {
			continue
		}
		c.fields = append(c.fields, n)
	}
	if c.fields == nil {
		c.fields = []string{}
	}
	return c
}

// AllScalars drops any column restriction.
func (f *Fetcher[E]) AllScalars() *Fetcher[E] {
	c := f.clone()
	c.fields = nil
	return c
}

// Relation loads the named relation (the Go field name carrying the bun rel
// tag). A nil child loads all scalar columns of the related entity.
func (f *Fetcher[E]) Relation(name string, child Shape) *Fetcher[E] {
	c := f.clone()
	for i, r := range c.relations {
		if r.name == name {
			c.relations[i].child = child
			return c
		}
	}
	c.relations = append(c.relations, relation{name: name, child: child})
	return c
}

// IsDefault reports whether the fetcher loads exactly what a plain select
// of E would load.
func (f *Fetcher[E]) IsDefault() bool {
	return f == nil || (f.fields == nil && len(f.relations) == 0)
}

func (f *Fetcher[E]) EntityType() reflect.Type {
	return reflect.TypeFor[E]()
}

// Validate checks every field and relation against the table of E.
func (f *Fetcher[E]) Validate(db *bun.DB) error {
	table, err := TableOf(db, f.EntityType())
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	for _, name := range f.fields {
		if _, ok := resolveField(table, name); !ok {
			if _, isRel := table.Relations[name]; isRel {
				continue
			}
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, table.Type.Name(), name)
		}
	}
	for _, r := range f.relations {
		rel, ok := table.Relations[r.name]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownRelation, table.Type.Name(), r.name)
		}
		if r.child == nil {
			continue
		}
		if r.child.EntityType() != rel.JoinTable.Type {
			return fmt.Errorf("fetcher: relation %s.%s targets %s, not %s",
				table.Type.Name(), r.name, rel.JoinTable.Type, r.child.EntityType())
		}
		if err := r.child.Validate(db); err != nil {
			return err
		}
	}
	return nil
}

// Apply adds the columns and relations of the fetcher to q. The fetcher must
// have been validated against the database of q.
func (f *Fetcher[E]) Apply(q *bun.SelectQuery) *bun.SelectQuery {
	return f.applyTo(q, nil)
}

// Apply applies shape to q. A nil shape leaves q unchanged.
func Apply(shape Shape, q *bun.SelectQuery) *bun.SelectQuery {
	if shape == nil {
		return q
	}
	return shape.applyTo(q, nil)
}

func (f *Fetcher[E]) applyTo(q *bun.SelectQuery, required []string) *bun.SelectQuery {
	if f.IsDefault() {
		return q
	}
	table, err := TableOf(q.DB(), f.EntityType())
	if err != nil {
		return q
	}
	relations := f.relations
	if f.fields != nil {
		var columns []string
		for _, pk := range table.PKs {
			columns = appendUnique(columns, pk.Name)
		}
		for _, name := range required {
			columns = appendUnique(columns, name)
		}
		for _, name := range f.fields {
			if field, ok := resolveField(table, name); ok {
				columns = appendUnique(columns, field.Name)
			} else if _, isRel := table.Relations[name]; isRel && !hasRelation(relations, name) {
				relations = append(relations, relation{name: name})
			}
		}
		// relations need their join columns on this side
		for _, r := range relations {
			base, _ := joinColumns(table, r.name)
			for _, c := range base {
				if _, ok := table.FieldMap[c]; ok {
					columns = appendUnique(columns, c)
				}
			}
		}
		q = q.Column(columns...)
	}
	for _, r := range relations {
		r := r
		if r.child == nil {
			q = q.Relation(r.name)
			continue
		}
		_, joined := joinColumns(table, r.name)
		q = q.Relation(r.name, func(sq *bun.SelectQuery) *bun.SelectQuery {
			return r.child.applyTo(sq, joined)
		})
	}
	return q
}

// String renders the fetcher deterministically, e.g. `Book{id,title,Author{*}}`.
func (f *Fetcher[E]) String() string {
	var b strings.Builder
	b.WriteString(f.EntityType().Name())
	b.WriteByte('{')
	var parts []string
	if f == nil || f.fields == nil {
		parts = append(parts, "*")
	} else {
		fields := append([]string{}, f.fields...)
		sort.Strings(fields)
		parts = append(parts, fields...)
	}
	if f != nil {
		rels := append([]relation{}, f.relations...)
		sort.Slice(rels, func(i, j int) bool { return rels[i].name < rels[j].name })
		for _, r := range rels {
			if r.child == nil {
				parts = append(parts, r.name+"{*}")
				continue
			}
			s := r.child.String()
			parts = append(parts, r.name+s[strings.IndexByte(s, '{'):])
		}
	}
	b.WriteString(strings.Join(parts, ","))
	b.WriteByte('}')
	return b.String()
}

// TableOf returns the bun table of typ, refusing anything that is not a
// struct or pointer to struct.
func TableOf(db *bun.DB, typ reflect.Type) (*schema.Table, error) {
	if typ == nil {
		return nil, ErrNotEntity
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s", ErrNotEntity, typ)
	}
	return db.Table(typ), nil
}

// resolveField finds a column by SQL name first, then by Go field name.
func resolveField(table *schema.Table, name string) (*schema.Field, bool) {
	if field, ok := table.FieldMap[name]; ok {
		return field, true
	}
	for _, field := range table.Fields {
		if field.GoName == name {
			return field, true
		}
	}
	return nil, false
}

// joinColumns returns the column names joining a relation: base columns on
// this table, joined columns on the related one.
func joinColumns(table *schema.Table, name string) (base []string, joined []string) {
	rel, ok := table.Relations[name]
	if !ok {
		return nil, nil
	}
	for _, f := range rel.BasePKs {
		base = append(base, f.Name)
	}
	for _, f := range rel.JoinPKs {
		joined = append(joined, f.Name)
	}
	return base, joined
}

func hasRelation(relations []relation, name string) bool {
	for _, r := range relations {
		if r.name == name {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if containsString(list, s) {
		return list
	}
	return append(list, s)
}
