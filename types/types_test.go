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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageParamDefaults(t *testing.T) {
	p := NewPageParam(-3, 0)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 10, p.Size)
	assert.Equal(t, 0, p.GetOffset())

	p = NewPageParam(2, 25)
	assert.Equal(t, 50, p.GetOffset())
	assert.Equal(t, "page(index=2, size=25)", p.String())
}

func TestNewPageCountsPages(t *testing.T) {
	tests := []struct {
		total int
		size  int
		pages int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 2, 3},
	}
	for _, tt := range tests {
		page := NewPage[int](NewPageParam(0, tt.size), nil, tt.total)
		assert.Equal(t, tt.pages, page.TotalPageCount, "total=%d size=%d", tt.total, tt.size)
		assert.NotNil(t, page.Rows)
	}
}

func TestMapPageKeepsTotals(t *testing.T) {
	one, two := 1, 2
	page := NewPage(NewPageParam(1, 2), []*int{&one, &two}, 7)
	mapped := MapPage(page, func(v *int) *string {
		s := string(rune('a' + *v))
		return &s
	})
	require.Len(t, mapped.Rows, 2)
	assert.Equal(t, "b", *mapped.Rows[0])
	assert.Equal(t, 7, mapped.TotalRowCount)
	assert.Equal(t, 4, mapped.TotalPageCount)
	assert.Equal(t, 1, mapped.Index)
	assert.Empty(t, EmptyPage[string](NewPageParam(0, 0)).Rows)
}

func TestNewSliceLookAhead(t *testing.T) {
	a, b, c := 1, 2, 3

	s := NewSlice([]*int{&a, &b, &c}, 2, 0)
	assert.Len(t, s.Rows, 2)
	assert.True(t, s.Head)
	assert.False(t, s.Tail)

	s = NewSlice([]*int{&c}, 2, 4)
	assert.Len(t, s.Rows, 1)
	assert.False(t, s.Head)
	assert.True(t, s.Tail)

	s = NewSlice[int](nil, 2, 0)
	assert.NotNil(t, s.Rows)
	assert.True(t, s.Tail)

	mapped := MapSlice(NewSlice([]*int{&a, &b}, 1, 3), func(v *int) *int {
		n := *v * 10
		return &n
	})
	assert.Equal(t, 10, *mapped.Rows[0])
	assert.Equal(t, 3, mapped.Offset)
	assert.False(t, mapped.Tail)
}

func TestOrderString(t *testing.T) {
	assert.Equal(t, "price DESC", Desc("price").String())
	assert.Equal(t, "title ASC", Asc("title").String())
}

func TestModesAreEnums(t *testing.T) {
	assert.Equal(t, "UPSERT", SaveMode(0).String())
	assert.Equal(t, "UPDATE_ONLY", SaveModeUpdateOnly.Name())
	assert.Equal(t, IllegalValue, SaveMode(9).Number())
	assert.False(t, SaveMode(9).IsValid())

	assert.Equal(t, "AUTO", DeleteMode(0).String())
	assert.Equal(t, 2, DeleteModePhysical.Number())
	assert.Equal(t, IllegalDesc, DeleteMode(-1).Desc())
}

func TestJsonObjectRoundTrip(t *testing.T) {
	v, err := JsonObject{"a": 1.0}.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	var fromText JsonObject
	require.NoError(t, fromText.Scan(`{"a":1}`))
	assert.Equal(t, 1.0, fromText["a"])

	var fromBytes JsonArray
	require.NoError(t, fromBytes.Scan([]byte(`[{"b":true}]`)))
	assert.Equal(t, true, fromBytes[0]["b"])

	var empty JsonObject
	require.NoError(t, empty.Scan(nil))
	assert.NotNil(t, empty)

	assert.Error(t, empty.Scan(42))

	v, err = JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}
