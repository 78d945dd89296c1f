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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/kestrel/cache"
	"github.com/tomoncle/kestrel/database"
	"github.com/uptrace/bun"
)

type Author struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID    int64   `bun:"id,pk,autoincrement"`
	Name  string  `bun:"name,notnull"`
	Books []*Book `bun:"rel:has-many,join:id=author_id"`
}

type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Title     string    `bun:"title,notnull,unique"`
	Price     int       `bun:"price"`
	AuthorID  int64     `bun:"author_id"`
	Author    *Author   `bun:"rel:belongs-to,join:author_id=id"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero"`
}

type Tag struct {
	bun.BaseModel `bun:"table:tags"`

	ID    string `bun:"id,pk"`
	Label string `bun:"label"`
}

func newTestClient(t *testing.T, opts ...database.ClientOption) database.SQLClient {
	t.Helper()
	ctx := context.Background()

	registry := database.NewModelRegistry()
	registry.Register(database.NewModelAdapter((*Author)(nil), 0))
	registry.Register(database.NewModelAdapter((*Book)(nil), 1))
	registry.Register(database.NewModelAdapter((*Tag)(nil), 1))

	manager := database.NewDatabaseManagerWithRegistry(&database.ConnectionConfig{
		Type:   "sqlite",
		DBName: ":memory:",
	}, registry)
	manager.SetLogger(database.NopLogger())
	require.NoError(t, manager.Connect(ctx))
	t.Cleanup(func() { _ = manager.Disconnect() })
	require.NoError(t, manager.CreateTables(ctx))

	opts = append([]database.ClientOption{database.WithLogger(database.NopLogger())}, opts...)
	return database.NewSQLClient(manager.GetDB(), opts...)
}

func newCachedClient(t *testing.T) (database.SQLClient, *cache.MemoryBinder) {
	binder := cache.NewMemoryBinder(0)
	return newTestClient(t, database.WithCache(binder)), binder
}

// seedBooks stores one author and the given titles, priced 10, 20, 30...
func seedBooks(t *testing.T, c database.SQLClient, titles ...string) (*Author, []*Book) {
	t.Helper()
	ctx := context.Background()
	author := &Author{Name: "Ursula"}
	_, err := database.SaveEntity(ctx, c, author)
	require.NoError(t, err)

	books := make([]*Book, len(titles))
	for i, title := range titles {
		books[i] = &Book{Title: title, Price: (i + 1) * 10, AuthorID: author.ID}
	}
	_, err = database.SaveEntities(ctx, c, books)
	require.NoError(t, err)
	return author, books
}
