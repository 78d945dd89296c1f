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
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/uptrace/bun"
)

var silentMode atomic.Bool

// EnableSilentMode mutes the query hooks, e.g. while creating tables.
func EnableSilentMode(b bool) {
	silentMode.Store(b)
}

var operationColors = map[string]*color.Color{
	"SELECT": color.New(color.FgGreen),
	"INSERT": color.New(color.FgBlue),
	"UPDATE": color.New(color.FgYellow),
	"DELETE": color.New(color.FgMagenta),
}

var (
	defaultOperationColor = color.New(color.FgRed)
	errorColor            = color.New(color.BgRed, color.FgHiWhite)
	tagColor              = color.New(color.FgCyan)
)

// QueryHook prints executed statements. The environment variable named by
// EnvName overrides Enabled and Verbose: "0" disables, "1" prints failures,
// "2" prints everything.
type QueryHook struct {
	EnvName string
	Enabled bool
	Verbose bool
	Writer  io.Writer
}

var _ bun.QueryHook = (*QueryHook)(nil)

func NewQueryHook(verbose bool) *QueryHook {
	return &QueryHook{EnvName: "KESTREL_SQL_DEBUG", Enabled: true, Verbose: verbose, Writer: os.Stdout}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silentMode.Load() {
		return
	}
	enabled, verbose := h.Enabled, h.Verbose
	if env, ok := os.LookupEnv(h.EnvName); ok {
		enabled = env != "" && env != "0"
		verbose = env == "2"
	}
	if !enabled {
		return
	}
	if !verbose {
		switch {
		case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows), errors.Is(event.Err, sql.ErrTxDone):
			return
		}
	}

	now := time.Now()
	line := []string{
		now.Format("2006-01-02 15:04:05.000"),
		tagColor.Sprint("[SQL]"),
		fmt.Sprintf("%12s", now.Sub(event.StartTime).Round(time.Microsecond)),
		operationColor(event.Operation()).Sprint(event.Query),
	}
	if event.Err != nil {
		line = append(line, errorColor.Sprintf(" %T: %s ", event.Err, event.Err))
	}
	_, _ = fmt.Fprintln(h.Writer, strings.Join(line, " "))
}

func operationColor(op string) *color.Color {
	if c, ok := operationColors[op]; ok {
		return c
	}
	return defaultOperationColor
}

// SlowQueryHook logs successful statements slower than Threshold.
type SlowQueryHook struct {
	Threshold time.Duration
	Logger    Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if silentMode.Load() || event.Err != nil || h.Logger == nil {
		return
	}
	if d := time.Since(event.StartTime); d > h.Threshold {
		h.Logger.Warn("Database slow query detected",
			"duration", d,
			"slow_threshold", h.Threshold,
			"query", event.Query,
		)
	}
}
