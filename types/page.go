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

package types

import "fmt"

const defaultPageSize = 10

// PageParam addresses one page of a result set. Index is zero based.
type PageParam struct {
	Index int
	Size  int
}

// NewPageParam constructs a PageParam, normalizing out-of-range values.
func NewPageParam(index int, size int) PageParam {
	p := PageParam{Index: index, Size: size}
	return PageParam{Index: p.GetIndex(), Size: p.GetSize()}
}

func (p PageParam) GetSize() int {
	if p.Size < 1 {
		return defaultPageSize
	}
	return p.Size
}

func (p PageParam) GetIndex() int {
	if p.Index < 0 {
		return 0
	}
	return p.Index
}

func (p PageParam) GetOffset() int {
	return p.GetIndex() * p.GetSize()
}

func (p PageParam) String() string {
	return fmt.Sprintf("page(index=%d, size=%d)", p.GetIndex(), p.GetSize())
}

// Page holds the rows of one page along with the totals of the whole query.
type Page[T any] struct {
	Rows           []*T
	TotalRowCount  int
	TotalPageCount int
	Index          int
	Size           int
}

// NewPage builds a page and derives the page count from the row total.
func NewPage[T any](param PageParam, rows []*T, total int) *Page[T] {
	if rows == nil {
		rows = make([]*T, 0)
	}
	size := param.GetSize()
	return &Page[T]{
		Rows:           rows,
		TotalRowCount:  total,
		TotalPageCount: (total + size - 1) / size,
		Index:          param.GetIndex(),
		Size:           size,
	}
}

// EmptyPage returns a page without rows.
func EmptyPage[T any](param PageParam) *Page[T] {
	return NewPage[T](param, nil, 0)
}

// MapPage converts the rows of a page, keeping its totals.
func MapPage[T any, R any](page *Page[T], fn func(*T) *R) *Page[R] {
	rows := make([]*R, len(page.Rows))
	for i, row := range page.Rows {
		rows[i] = fn(row)
	}
	return &Page[R]{
		Rows:           rows,
		TotalRowCount:  page.TotalRowCount,
		TotalPageCount: page.TotalPageCount,
		Index:          page.Index,
		Size:           page.Size,
	}
}

// Slice is a window of rows addressed by limit and offset, without a total
// count. Head reports the window starts at the first row, Tail that no row
// follows it.
type Slice[T any] struct {
	Rows   []*T
	Limit  int
	Offset int
	Head   bool
	Tail   bool
}

// NewSlice builds a slice from rows fetched with one extra row of look-ahead.
func NewSlice[T any](rows []*T, limit int, offset int) *Slice[T] {
	tail := true
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		tail = false
	}
	if rows == nil {
		rows = make([]*T, 0)
	}
	return &Slice[T]{
		Rows:   rows,
		Limit:  limit,
		Offset: offset,
		Head:   offset <= 0,
		Tail:   tail,
	}
}

// MapSlice converts the rows of a slice, keeping its window.
func MapSlice[T any, R any](slice *Slice[T], fn func(*T) *R) *Slice[R] {
	rows := make([]*R, len(slice.Rows))
	for i, row := range slice.Rows {
		rows[i] = fn(row)
	}
	return &Slice[R]{Rows: rows, Limit: slice.Limit, Offset: slice.Offset, Head: slice.Head, Tail: slice.Tail}
}

// Order sorts by one column of the entity table.
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order { return Order{Column: column} }

func Desc(column string) Order { return Order{Column: column, Desc: true} }

func (o Order) String() string {
	if o.Desc {
		return o.Column + " DESC"
	}
	return o.Column + " ASC"
}
