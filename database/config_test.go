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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestLoadAndExportConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "db.yaml")
	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "postgres"
	cfg.ConnectionConfig.Host = "db.internal"
	cfg.ConnectionConfig.Port = 5432
	cfg.CacheConfig = CacheConfig{Type: "redis", RedisAddr: "cache:6379", TTL: time.Minute, KeyPrefix: "app:"}
	cfg.CreateTables = true
	require.NoError(t, ExportConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFactoryAppliesEnvOverrides(t *testing.T) {
	t.Setenv("DB_TYPE", "sqlite")
	t.Setenv("DB_NAME", ":memory:")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("DB_MAX_OPEN_CONNS", "7")
	t.Setenv("DB_CREATE_TABLES", "")
	t.Setenv("CACHE_TYPE", "memory")
	t.Setenv("CACHE_TTL", "30")

	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "oracle"
	cfg.ConnectionConfig.Port = 1
	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.ConnectionConfig.Type)
	assert.Equal(t, ":memory:", cfg.ConnectionConfig.DBName)
	assert.Equal(t, 1, cfg.ConnectionConfig.Port)
	assert.Equal(t, 7, cfg.ConnectionConfig.MaxOpenConns)
	assert.True(t, cfg.CreateTables)
	assert.Equal(t, 30*time.Second, cfg.CacheConfig.TTL)
	assert.NotNil(t, f.GetCache())
	assert.Nil(t, f.GetClient())
}

func TestFactoryRejectsUnsupportedTypes(t *testing.T) {
	f := NewDatabaseFactory()
	_, err := f.CreateFromConfig(nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.ConnectionConfig.Type = "oracle"
	_, err = f.CreateFromConfig(cfg)
	assert.ErrorContains(t, err, "unsupported database type")

	cfg.ConnectionConfig.Type = "sqlite"
	cfg.CacheConfig.Type = "memcached"
	_, err = f.CreateFromConfig(cfg)
	assert.ErrorContains(t, err, "unsupported cache type")

	assert.Equal(t, "Database manager not initialized", NewDatabaseFactory().GetHealthStatus(context.Background()).LastError)
}

func TestSQLiteDSN(t *testing.T) {
	tests := map[string]string{
		"":                     ":memory:",
		":memory:":             ":memory:",
		"data/app":             "data/app.db",
		"data/app.db":          "data/app.db",
		"file:app?mode=memory": "file:app?mode=memory",
	}
	for name, want := range tests {
		m := &bunManager{config: &ConnectionConfig{Type: "sqlite", DBName: name}}
		assert.Equal(t, want, m.sqliteDSN(), name)
	}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	registry := NewModelRegistry()
	m := NewDatabaseManagerWithRegistry(&ConnectionConfig{Type: "sqlite", DBName: ":memory:"}, registry)
	m.SetLogger(nil)

	assert.ErrorIs(t, m.Ping(ctx), ErrNotConnected)
	assert.ErrorIs(t, m.CreateTables(ctx), ErrNotConnected)
	assert.False(t, m.HealthCheck(ctx).Healthy)

	require.NoError(t, m.Connect(ctx))
	require.NoError(t, m.Connect(ctx))
	assert.NoError(t, m.Ping(ctx))
	assert.True(t, m.HealthCheck(ctx).Healthy)
	assert.Equal(t, 1, m.GetStats().MaxOpenConns)

	require.NoError(t, m.Reconnect(ctx))
	assert.NotNil(t, m.GetSQLDB())
	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Equal(t, &DBStats{}, m.GetStats())

	_, _, err := NewDatabaseManager(&ConnectionConfig{Type: "oracle"}).(*bunManager).open()
	assert.Error(t, err)
}

type registryParent struct {
	bun.BaseModel `bun:"table:registry_parents"`

	ID int64 `bun:"id,pk,autoincrement"`
}

type registryChild struct {
	bun.BaseModel `bun:"table:registry_children"`

	ID       int64 `bun:"id,pk,autoincrement"`
	ParentID int64 `bun:"parent_id"`
}

func TestModelRegistryOrdersByPriority(t *testing.T) {
	r := NewModelRegistry()
	r.Register(NewModelAdapter((*registryChild)(nil), 2))
	r.Register(NewModelAdapter((*registryParent)(nil), 1))
	r.Register(NewModelAdapter((*registryParent)(nil), 0))

	instances := r.Instances()
	require.Len(t, instances, 2)
	assert.IsType(t, (*registryParent)(nil), instances[0])

	m := NewDatabaseManagerWithRegistry(&ConnectionConfig{Type: "sqlite"}, r)
	m.SetLogger(NopLogger())
	ctx := context.Background()
	require.NoError(t, m.Connect(ctx))
	defer m.Disconnect()
	require.NoError(t, m.CreateTables(ctx))
	require.NoError(t, m.CreateTables(ctx))

	n, err := m.GetDB().NewSelect().Model((*registryChild)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIsSqlError(t *testing.T) {
	tests := []struct {
		err  error
		is   bool
		kind SQLError
	}{
		{nil, false, UnknownErr},
		{sql.ErrNoRows, true, NoRowsErr},
		{&NotFoundError{Entity: "Book", ID: 1}, true, NoRowsErr},
		{&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true, DuplicateKeyErr},
		{&mysql.MySQLError{Number: 9999}, true, UnknownErr},
		{errors.New(`pq: duplicate key value violates unique constraint "books_title_key"`), true, DuplicateKeyErr},
		{errors.New("SQL logic error: no such table: books (1)"), true, NoTableErr},
		{errors.New("constraint failed: NOT NULL constraint failed: books.title (1299)"), true, NotNullViolationErr},
		{errors.New("pq: relation \"books\" already exists"), true, ExistTableErr},
		{errors.New("dial tcp: connection refused"), false, UnknownErr},
	}
	for _, tt := range tests {
		is, kind := IsSqlError(tt.err)
		assert.Equal(t, tt.is, is, "%v", tt.err)
		assert.Equal(t, tt.kind, kind, "%v", tt.err)
	}
	assert.Equal(t, "duplicate key", DuplicateKeyErr.String())
	assert.Equal(t, "unknown", SQLError(99).String())
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{Entity: "Book", ID: int64(9)})
	assert.EqualError(t, err, "database: Book not found (id=9)")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestQueryHookOutput(t *testing.T) {
	var buf bytes.Buffer
	hook := &QueryHook{EnvName: "KESTREL_TEST_SQL_DEBUG", Enabled: true, Writer: &buf}
	event := &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()}

	hook.AfterQuery(context.Background(), event)
	assert.Empty(t, buf.String())

	event.Err = errors.New("syntax error")
	hook.AfterQuery(context.Background(), event)
	assert.Contains(t, buf.String(), "SELECT 1")
	assert.Contains(t, buf.String(), "syntax error")

	buf.Reset()
	t.Setenv("KESTREL_TEST_SQL_DEBUG", "0")
	hook.AfterQuery(context.Background(), event)
	assert.Empty(t, buf.String())

	buf.Reset()
	EnableSilentMode(true)
	defer EnableSilentMode(false)
	t.Setenv("KESTREL_TEST_SQL_DEBUG", "2")
	hook.AfterQuery(context.Background(), event)
	assert.Empty(t, buf.String())
}

type recordingLogger struct {
	nopLogger
	warnings []string
}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	hook := &SlowQueryHook{Threshold: time.Millisecond, Logger: logger}
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 2", StartTime: time.Now()})
	assert.Equal(t, []string{"Database slow query detected"}, logger.warnings)
}
