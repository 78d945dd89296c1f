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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/tomoncle/kestrel/cache"
	"github.com/uptrace/bun"
)

var supportedTypes = []string{"mysql", "postgres", "postgresql", "sqlite", "sqlite3"}

// BaseDatabaseFactory wires a database manager, the object cache and the
// SQL client built on them.
type BaseDatabaseFactory struct {
	config  *Config
	manager AbstractDatabaseManager
	binder  cache.Binder
	redis   *redis.Client
	client  SQLClient
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig applies environment overrides to cfg and builds the
// manager and cache binder. Nothing is connected until InitializeDatabase.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *Config) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(cfg)

	dbType := strings.ToLower(cfg.ConnectionConfig.Type)
	supported := false
	for _, t := range supportedTypes {
		if dbType == t {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.ConnectionConfig.Type, supportedTypes)
	}

	binder, err := f.newCacheBinder(&cfg.CacheConfig)
	if err != nil {
		return nil, err
	}

	manager := NewDatabaseManager(&cfg.ConnectionConfig)
	manager.SetLogger(f.logger)

	f.config = cfg
	f.manager = manager
	f.binder = binder
	return manager, nil
}

func (f *BaseDatabaseFactory) newCacheBinder(cfg *CacheConfig) (cache.Binder, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "none":
		return nil, nil
	case "memory":
		return cache.NewMemoryBinder(cfg.TTL), nil
	case "redis":
		f.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return cache.NewRedisBinder(f.redis, cfg.KeyPrefix, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// overrideFromEnv overrides configuration values from environment variables.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *Config) {
	conn := &cfg.ConnectionConfig
	if v := os.Getenv("DB_TYPE"); v != "" {
		conn.Type = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		conn.Host = v
	}
	if v, ok := envInt("DB_PORT"); ok {
		conn.Port = v
	}
	if v := os.Getenv("DB_USERNAME"); v != "" {
		conn.Username = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		conn.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		conn.DBName = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		conn.SSLMode = v
	}
	if v, ok := envInt("DB_MAX_IDLE_CONNS"); ok {
		conn.MaxIdleConns = v
	}
	if v, ok := envInt("DB_MAX_OPEN_CONNS"); ok {
		conn.MaxOpenConns = v
	}
	if v, ok := envInt("DB_CONN_MAX_LIFETIME"); ok {
		conn.ConnMaxLifetime = time.Duration(v) * time.Second
	}
	if v := os.Getenv("DB_ENABLE_RECONNECT"); v != "" {
		conn.EnableReconnect = v == "true"
	}
	if v, ok := envInt("DB_RECONNECT_INTERVAL"); ok {
		conn.ReconnectInterval = time.Duration(v) * time.Second
	}
	if v := os.Getenv("DB_ENABLE_QUERY_LOG"); v != "" {
		conn.EnableQueryLog = v == "true"
	}
	if _, ok := os.LookupEnv("DB_CREATE_TABLES"); ok {
		cfg.CreateTables = true
	}

	if v := os.Getenv("CACHE_TYPE"); v != "" {
		cfg.CacheConfig.Type = v
	}
	if v, ok := envInt("CACHE_TTL"); ok {
		cfg.CacheConfig.TTL = time.Duration(v) * time.Second
	}
	if v := os.Getenv("CACHE_REDIS_ADDR"); v != "" {
		cfg.CacheConfig.RedisAddr = v
	}
	if v := os.Getenv("CACHE_REDIS_PASSWORD"); v != "" {
		cfg.CacheConfig.RedisPassword = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// InitializeDatabase connects, creates the registered tables when
// configured to, and builds the SQL client.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if f.config.CreateTables {
		if err := f.manager.CreateTables(ctx); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	f.client = NewSQLClient(f.manager.GetDB(), WithCache(f.binder), WithLogger(f.logger))
	f.logger.Info("Database initialization completed", "cache", f.config.CacheConfig.Type)
	return nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetClient returns the SQL client, or nil before InitializeDatabase.
func (f *BaseDatabaseFactory) GetClient() SQLClient {
	return f.client
}

func (f *BaseDatabaseFactory) GetCache() cache.Binder {
	return f.binder
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

// Close closes the database connection and the cache client.
func (f *BaseDatabaseFactory) Close() error {
	var err error
	if f.manager != nil {
		err = f.manager.Disconnect()
	}
	if f.redis != nil {
		if cerr := f.redis.Close(); cerr != nil && err == nil {
			err = cerr
		}
		f.redis = nil
	}
	f.client = nil
	return err
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
