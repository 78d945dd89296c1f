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
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

const memoryDSN = ":memory:"

type bunManager struct {
	config   *ConnectionConfig
	registry ModelRegistry
	logger   Logger

	mu        sync.RWMutex
	db        *bun.DB
	sqlDB     *sql.DB
	connected bool
	lastError error
	health    *HealthStatus
	retries   int

	stopHealthCheck chan struct{}
	healthCheckOnce sync.Once
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun.
// Tables are created from the default model registry. A nil config uses
// DefaultConnectionConfig.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	return NewDatabaseManagerWithRegistry(config, DefaultModelRegistry())
}

func NewDatabaseManagerWithRegistry(config *ConnectionConfig, registry ModelRegistry) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	if registry == nil {
		registry = DefaultModelRegistry()
	}
	return &bunManager{
		config:          config,
		registry:        registry,
		logger:          GetLogger(),
		health:          &HealthStatus{},
		stopHealthCheck: make(chan struct{}),
	}
}

func (m *bunManager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected && m.db != nil {
		return nil
	}

	sqlDB, db, err := m.open()
	if err != nil {
		m.lastError = err
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	m.sqlDB, m.db = sqlDB, db
	m.configurePool()

	if m.config.ConnectTimeout <= 0 {
		m.config.ConnectTimeout = 30 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, m.config.ConnectTimeout)
	defer cancel()
	if err := m.db.PingContext(pingCtx); err != nil {
		m.lastError = err
		_ = m.db.Close()
		m.db, m.sqlDB = nil, nil
		return fmt.Errorf("database connection test failed: %w", err)
	}

	m.connected = true
	m.lastError = nil
	m.retries = 0

	if m.config.HealthCheckInterval > 0 && !m.isMemory() {
		m.startHealthCheck()
	}
	m.logger.Info("Database connected", "type", m.config.Type, "host", m.config.Host, "dbname", m.config.DBName)
	return nil
}

func (m *bunManager) open() (*sql.DB, *bun.DB, error) {
	var (
		sqlDB *sql.DB
		db    *bun.DB
		err   error
	)
	switch strings.ToLower(m.config.Type) {
	case "mysql":
		sqlDB, err = sql.Open("mysql", m.mysqlDSN())
		if err == nil {
			db = bun.NewDB(sqlDB, mysqldialect.New())
		}
	case "postgres", "postgresql":
		sqlDB, err = sql.Open("postgres", m.postgresDSN())
		if err == nil {
			db = bun.NewDB(sqlDB, pgdialect.New())
		}
	case "sqlite", "sqlite3":
		sqlDB, err = sql.Open(sqliteshim.ShimName, m.sqliteDSN())
		if err == nil {
			db = bun.NewDB(sqlDB, sqlitedialect.New())
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", m.config.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	db.AddQueryHook(&QueryHook{EnvName: "KESTREL_SQL_DEBUG", Writer: os.Stdout})
	if m.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if m.config.SlowQueryTime > 0 {
		db.AddQueryHook(&SlowQueryHook{Threshold: m.config.SlowQueryTime, Logger: m.logger})
	}
	return sqlDB, db, nil
}

func (m *bunManager) mysqlDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		m.config.Username,
		m.config.Password,
		m.config.Host,
		m.config.Port,
		m.config.DBName,
		m.config.ConnectTimeout,
		m.config.ReadTimeout,
		m.config.WriteTimeout,
	)
}

func (m *bunManager) postgresDSN() string {
	sslMode := m.config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		m.config.Username,
		m.config.Password,
		m.config.Host,
		m.config.Port,
		m.config.DBName,
		sslMode,
		int(m.config.ConnectTimeout.Seconds()),
	)
}

// sqliteDSN accepts a file path with or without the .db suffix, or :memory:.
func (m *bunManager) sqliteDSN() string {
	name := m.config.DBName
	switch {
	case name == "" || name == memoryDSN:
		return memoryDSN
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"):
		return name
	default:
		return name + ".db"
	}
}

func (m *bunManager) isMemory() bool {
	t := strings.ToLower(m.config.Type)
	return (t == "sqlite" || t == "sqlite3") && m.sqliteDSN() == memoryDSN
}

func (m *bunManager) configurePool() {
	if m.sqlDB == nil {
		return
	}
	// every connection to :memory: opens its own empty database
	if m.isMemory() {
		m.sqlDB.SetMaxOpenConns(1)
		m.sqlDB.SetMaxIdleConns(1)
		m.sqlDB.SetConnMaxLifetime(0)
		m.sqlDB.SetConnMaxIdleTime(0)
		return
	}
	m.sqlDB.SetMaxIdleConns(m.config.MaxIdleConns)
	m.sqlDB.SetMaxOpenConns(m.config.MaxOpenConns)
	m.sqlDB.SetConnMaxLifetime(m.config.ConnMaxLifetime)
	m.sqlDB.SetConnMaxIdleTime(m.config.ConnMaxIdleTime)
}

func (m *bunManager) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case m.stopHealthCheck <- struct{}{}:
	default:
	}

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db, m.sqlDB = nil, nil
	m.connected = false
	if err != nil {
		m.logger.Error("Failed to close database connection", "error", err)
	} else {
		m.logger.Info("Database connection closed")
	}
	return err
}

func (m *bunManager) Reconnect(ctx context.Context) error {
	m.logger.Info("Attempting to reconnect to the database")
	if err := m.Disconnect(); err != nil {
		m.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return m.Connect(ctx)
}

func (m *bunManager) Ping(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	return db.PingContext(ctx)
}

func (m *bunManager) GetDB() *bun.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db
}

func (m *bunManager) GetSQLDB() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sqlDB
}

// CreateTables creates the tables of every registered model that does not
// exist yet.
func (m *bunManager) CreateTables(ctx context.Context) error {
	db := m.GetDB()
	if db == nil {
		return ErrNotConnected
	}
	if err := m.registry.CreateTables(ctx, db); err != nil {
		return err
	}
	m.logger.Debug("Registered tables ensured", "count", len(m.registry.Models()))
	return nil
}

func (m *bunManager) HealthCheck(ctx context.Context) *HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Connected: m.connected}
	if m.db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := m.db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	status.Healthy = err == nil
	status.Connected = err == nil
	if err != nil {
		status.LastError = err.Error()
	}
	m.lastError = err

	stats := m.sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections

	m.health = status
	return status
}

func (m *bunManager) startHealthCheck() {
	m.healthCheckOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(m.config.HealthCheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					status := m.HealthCheck(ctx)
					cancel()
					if !status.Healthy && m.config.EnableReconnect {
						m.reconnectWithLimit()
					}
				case <-m.stopHealthCheck:
					return
				}
			}
		}()
	})
}

func (m *bunManager) reconnectWithLimit() {
	if m.retries >= m.config.MaxReconnectTries {
		m.logger.Error("Max reconnect attempts reached, stopping", "tries", m.retries)
		return
	}
	m.retries++
	m.logger.Info("Starting database reconnect", "try", m.retries)
	time.Sleep(m.config.ReconnectInterval)

	ctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()
	if err := m.Reconnect(ctx); err != nil {
		m.logger.Error("Reconnect failed", "error", err, "try", m.retries)
		return
	}
	m.retries = 0
	m.logger.Info("Reconnect succeeded")
}

func (m *bunManager) GetStats() *DBStats {
	sqlDB := m.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (m *bunManager) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger == nil {
		logger = NopLogger()
	}
	m.logger = logger
}
