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

package database_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/kestrel/database"
	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
)

func titles(books []*Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func TestFindByIDReturnsNotFoundError(t *testing.T) {
	c := newTestClient(t)
	_, books := seedBooks(t, c, "Lathe")

	got, err := database.FindByID[Book, int64](context.Background(), c, books[0].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, "Lathe", got.Title)
	assert.Equal(t, 10, got.Price)

	_, err = database.FindByID[Book, int64](context.Background(), c, 404, nil)
	require.Error(t, err)
	assert.True(t, database.IsNotFound(err))
	var nf *database.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Book", nf.Entity)
	assert.Equal(t, int64(404), nf.ID)
	is, kind := database.IsSqlError(err)
	assert.True(t, is)
	assert.Equal(t, database.NoRowsErr, kind)
}

func TestFindByIDsKeepsRequestOrder(t *testing.T) {
	c := newTestClient(t)
	_, books := seedBooks(t, c, "A", "B", "C")
	ids := []int64{books[2].ID, 999, books[0].ID, books[2].ID}

	got, err := database.FindByIDs[Book, int64](context.Background(), c, ids, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, titles(got))

	byID, err := database.FindMapByIDs[Book, int64](context.Background(), c, ids, nil)
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "B", mustFind(t, c, books[1].ID).Title)
	_, missing := byID[999]
	assert.False(t, missing)

	empty, err := database.FindByIDs[Book, int64](context.Background(), c, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func mustFind(t *testing.T, c database.SQLClient, id int64) *Book {
	t.Helper()
	b, err := database.FindByID[Book, int64](context.Background(), c, id, nil)
	require.NoError(t, err)
	return b
}

func TestFindAllOrdersAndValidatesColumns(t *testing.T) {
	c := newTestClient(t)
	seedBooks(t, c, "A", "B", "C")
	ctx := context.Background()

	got, err := database.FindAll[Book](ctx, c, nil, types.Desc("price"))
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, titles(got))

	got, err = database.FindAll[Book](ctx, c, nil, types.Asc("Title"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, titles(got))

	_, err = database.FindAll[Book](ctx, c, nil, types.Asc("price; DROP TABLE books"))
	assert.ErrorIs(t, err, fetcher.ErrUnknownField)
}

func TestFindAllOnEmptyTable(t *testing.T) {
	c := newTestClient(t)
	got, err := database.FindAll[Book](context.Background(), c, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestFindPage(t *testing.T) {
	c := newTestClient(t)
	seedBooks(t, c, "A", "B", "C", "D", "E")
	ctx := context.Background()

	page, err := database.FindPage[Book](ctx, c, types.NewPageParam(1, 2), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, titles(page.Rows))
	assert.Equal(t, 5, page.TotalRowCount)
	assert.Equal(t, 3, page.TotalPageCount)
	assert.Equal(t, 1, page.Index)

	last, err := database.FindPage[Book](ctx, c, types.NewPageParam(0, 2), nil, types.Desc("price"))
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "D"}, titles(last.Rows))

	beyond, err := database.FindPage[Book](ctx, c, types.NewPageParam(9, 2), nil)
	require.NoError(t, err)
	assert.Empty(t, beyond.Rows)
	assert.Equal(t, 5, beyond.TotalRowCount)
}

func TestFindSlice(t *testing.T) {
	c := newTestClient(t)
	seedBooks(t, c, "A", "B", "C", "D", "E")
	ctx := context.Background()

	head, err := database.FindSlice[Book](ctx, c, 2, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, titles(head.Rows))
	assert.True(t, head.Head)
	assert.False(t, head.Tail)

	tail, err := database.FindSlice[Book](ctx, c, 2, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"E"}, titles(tail.Rows))
	assert.False(t, tail.Head)
	assert.True(t, tail.Tail)

	exact, err := database.FindSlice[Book](ctx, c, 5, 0, nil)
	require.NoError(t, err)
	assert.Len(t, exact.Rows, 5)
	assert.True(t, exact.Tail)

	_, err = database.FindSlice[Book](ctx, c, 0, 0, nil)
	assert.ErrorIs(t, err, database.ErrInvalidLimit)
}

func TestFetcherRestrictsColumnsAndLoadsRelations(t *testing.T) {
	c := newTestClient(t)
	author, books := seedBooks(t, c, "Lathe", "Dispossessed")
	ctx := context.Background()

	f := fetcher.New[Book]().Fields("title").Relation("Author", fetcher.New[Author]().Fields("name"))
	got, err := database.FindByID[Book, int64](ctx, c, books[0].ID, f)
	require.NoError(t, err)
	assert.Equal(t, books[0].ID, got.ID)
	assert.Equal(t, "Lathe", got.Title)
	assert.Zero(t, got.Price)
	require.NotNil(t, got.Author)
	assert.Equal(t, author.ID, got.Author.ID)
	assert.Equal(t, "Ursula", got.Author.Name)

	authors, err := database.FindAll[Author](ctx, c, fetcher.New[Author]().Relation("Books", nil))
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Len(t, authors[0].Books, 2)

	_, err = database.FindAll[Book](ctx, c, fetcher.New[Book]().Fields("isbn"))
	assert.ErrorIs(t, err, fetcher.ErrUnknownField)
	_, err = database.FindAll[Book](ctx, c, fetcher.New[Book]().Relation("Publisher", nil))
	assert.ErrorIs(t, err, fetcher.ErrUnknownRelation)
}
