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
	"reflect"

	"github.com/tomoncle/kestrel/cache"
	"github.com/tomoncle/kestrel/fetcher"
	"github.com/tomoncle/kestrel/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

// SQLClient builds and executes the statements behind repository
// operations. Entities are Bun models; lookups by primary key read through
// the optional object cache, and writes evict it.
type SQLClient interface {
	DB() *bun.DB
	// IDB is the executor in use: the database, or the transaction inside
	// RunInTx.
	IDB() bun.IDB
	Cache() cache.Binder
	Logger() Logger
	InTx() bool

	Table(typ reflect.Type) (*schema.Table, error)
	Select(model interface{}, shape fetcher.Shape, orders []types.Order) (*bun.SelectQuery, error)
	Count(ctx context.Context, model interface{}) (int, error)
	Save(ctx context.Context, entity interface{}, opts *SaveOptions) (types.SaveMode, int64, error)
	DeleteByIDs(ctx context.Context, model interface{}, ids []interface{}, mode types.DeleteMode) (int64, error)
	Evict(ctx context.Context, typ reflect.Type, ids ...interface{})
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx SQLClient) error) error
}

type ClientOption func(c *sqlClient)

// WithCache enables the object cache for primary key lookups.
func WithCache(binder cache.Binder) ClientOption {
	return func(c *sqlClient) { c.binder = binder }
}

func WithLogger(logger Logger) ClientOption {
	return func(c *sqlClient) { c.logger = logger }
}

type sqlClient struct {
	db     *bun.DB
	idb    bun.IDB
	binder cache.Binder
	logger Logger
	inTx   bool
	// keys evicted inside the transaction, evicted again after commit
	pending []string
}

var _ SQLClient = (*sqlClient)(nil)

// NewSQLClient returns a SQLClient executing on db.
func NewSQLClient(db *bun.DB, opts ...ClientOption) SQLClient {
	c := &sqlClient{db: db, idb: db, logger: GetLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *sqlClient) DB() *bun.DB { return c.db }

func (c *sqlClient) IDB() bun.IDB { return c.idb }

func (c *sqlClient) Cache() cache.Binder { return c.binder }

func (c *sqlClient) Logger() Logger { return c.logger }

func (c *sqlClient) InTx() bool { return c.inTx }

// Table resolves the Bun table of an entity type. Pointers and slices are
// unwrapped, so *E, []*E and *[]*E all resolve to the table of E.
func (c *sqlClient) Table(typ reflect.Type) (*schema.Table, error) {
	for typ != nil && (typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice) {
		typ = typ.Elem()
	}
	return fetcher.TableOf(c.db, typ)
}

func (c *sqlClient) Select(model interface{}, shape fetcher.Shape, orders []types.Order) (*bun.SelectQuery, error) {
	table, err := c.Table(reflect.TypeOf(model))
	if err != nil {
		return nil, err
	}
	q := c.idb.NewSelect().Model(model)
	if shape != nil {
		if shape.EntityType() != table.Type {
			return nil, fmt.Errorf("database: fetcher of %s cannot shape %s", shape.EntityType(), table.Type)
		}
		if err := shape.Validate(c.db); err != nil {
			return nil, err
		}
		q = fetcher.Apply(shape, q)
	}
	for _, o := range orders {
		field, ok := lookupField(table, o.Column)
		if !ok {
			return nil, fmt.Errorf("%w: cannot order %s by %s", fetcher.ErrUnknownField, table.Type.Name(), o.Column)
		}
		if o.Desc {
			q = q.OrderExpr("?TableAlias.? DESC", bun.Ident(field.Name))
		} else {
			q = q.OrderExpr("?TableAlias.? ASC", bun.Ident(field.Name))
		}
	}
	return q, nil
}

func (c *sqlClient) Count(ctx context.Context, model interface{}) (int, error) {
	return c.idb.NewSelect().Model(model).Count(ctx)
}

func (c *sqlClient) Save(ctx context.Context, entity interface{}, opts *SaveOptions) (types.SaveMode, int64, error) {
	if opts == nil {
		opts = NewSaveOptions()
	}
	v := reflect.ValueOf(entity)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return opts.Mode, 0, fmt.Errorf("database: save requires a non-nil entity pointer, got %T", entity)
	}
	table, err := c.Table(v.Type())
	if err != nil {
		return opts.Mode, 0, err
	}
	if len(table.PKs) == 0 {
		return opts.Mode, 0, fmt.Errorf("%w: %s", ErrNoPrimaryKey, table.Type.Name())
	}

	mode := opts.Mode
	if mode == types.SaveModeUpsert && hasZeroPK(table, v.Elem()) {
		mode = types.SaveModeInsertOnly
	}

	var res sql.Result
	switch mode {
	case types.SaveModeInsertOnly:
		res, err = c.idb.NewInsert().Model(entity).Exec(ctx)
	case types.SaveModeUpdateOnly:
		q := c.idb.NewUpdate().Model(entity).WherePK()
		if len(opts.UpdateColumns) > 0 {
			q = q.Column(opts.UpdateColumns...)
		}
		res, err = q.Exec(ctx)
	default:
		res, err = c.upsert(ctx, table, entity, opts)
	}
	if err != nil {
		return mode, 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return mode, 0, err
	}
	c.Evict(ctx, table.Type, pkValue(table, v.Elem()))
	return mode, affected, nil
}

func (c *sqlClient) upsert(ctx context.Context, table *schema.Table, entity interface{}, opts *SaveOptions) (sql.Result, error) {
	columns := opts.UpdateColumns
	if len(columns) == 0 {
		for _, f := range table.Fields {
			if !f.IsPK {
				columns = append(columns, f.Name)
			}
		}
	}
	keys := opts.ConflictColumns
	if len(keys) == 0 {
		for _, pk := range table.PKs {
			keys = append(keys, pk.Name)
		}
	}

	q := c.idb.NewInsert().Model(entity)
	switch {
	case c.db.HasFeature(feature.InsertOnConflict):
		if len(columns) == 0 {
			return q.On("CONFLICT (?) DO NOTHING", bun.In(idents(keys))).Exec(ctx)
		}
		q = q.On("CONFLICT (?) DO UPDATE", bun.In(idents(keys)))
		for _, col := range columns {
			q = q.Set("? = EXCLUDED.?", bun.Ident(col), bun.Ident(col))
		}
		return q.Exec(ctx)
	case c.db.HasFeature(feature.InsertOnDuplicateKey):
		q = q.On("DUPLICATE KEY UPDATE")
		for _, col := range columns {
			q = q.Set("? = VALUES(?)", bun.Ident(col), bun.Ident(col))
		}
		return q.Exec(ctx)
	default:
		res, insertErr := q.Exec(ctx)
		if insertErr == nil {
			return res, nil
		}
		res, updateErr := c.idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
		if updateErr != nil {
			return nil, fmt.Errorf("upsert failed for entity: insert error: %v, update error: %w", insertErr, updateErr)
		}
		return res, nil
	}
}

func (c *sqlClient) DeleteByIDs(ctx context.Context, model interface{}, ids []interface{}, mode types.DeleteMode) (int64, error) {
	table, err := c.Table(reflect.TypeOf(model))
	if err != nil {
		return 0, err
	}
	pk, err := singlePK(table)
	if err != nil {
		return 0, err
	}
	if mode == types.DeleteModeLogical && table.SoftDeleteField == nil {
		return 0, fmt.Errorf("%w: %s", ErrLogicalDeleteUnsupported, table.Type.Name())
	}
	if len(ids) == 0 {
		return 0, nil
	}

	q := c.idb.NewDelete().
		Model(reflect.New(table.Type).Interface()).
		Where("? IN (?)", bun.Ident(pk.Name), bun.In(ids))
	if mode == types.DeleteModePhysical {
		q = q.ForceDelete()
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	c.Evict(ctx, table.Type, ids...)
	return affected, nil
}

// Evict drops cached entries of typ. Cache failures are logged, not returned.
// Inside a transaction the keys are evicted again once it commits, so rows
// read by other connections before the commit do not stay cached.
func (c *sqlClient) Evict(ctx context.Context, typ reflect.Type, ids ...interface{}) {
	if c.binder == nil || len(ids) == 0 {
		return
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	keys := cache.Keys(typ.Name(), ids)
	if c.inTx {
		c.pending = append(c.pending, keys...)
	}
	c.evictKeys(ctx, keys)
}

func (c *sqlClient) evictKeys(ctx context.Context, keys []string) {
	if err := c.binder.DeleteAll(ctx, keys); err != nil && c.logger != nil {
		c.logger.Warn("Failed to evict cached entities", "keys", len(keys), "error", err)
	}
}

// RunInTx runs fn in a transaction. Nested calls join the outer transaction.
func (c *sqlClient) RunInTx(ctx context.Context, fn func(ctx context.Context, tx SQLClient) error) error {
	if c.inTx {
		return fn(ctx, c)
	}
	txc := &sqlClient{db: c.db, binder: c.binder, logger: c.logger, inTx: true}
	err := c.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		txc.idb = tx
		return fn(ctx, txc)
	})
	if err == nil && c.binder != nil && len(txc.pending) > 0 {
		c.evictKeys(ctx, txc.pending)
	}
	return err
}

func lookupField(table *schema.Table, name string) (*schema.Field, bool) {
	if f, ok := table.FieldMap[name]; ok {
		return f, true
	}
	for _, f := range table.Fields {
		if f.GoName == name {
			return f, true
		}
	}
	return nil, false
}

func singlePK(table *schema.Table) (*schema.Field, error) {
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s declares %d primary key columns, need exactly one",
			ErrNoPrimaryKey, table.Type.Name(), len(table.PKs))
	}
	return table.PKs[0], nil
}

func hasZeroPK(table *schema.Table, strct reflect.Value) bool {
	for _, pk := range table.PKs {
		v, err := strct.FieldByIndexErr(pk.Index)
		if err != nil || v.IsZero() {
			return true
		}
	}
	return false
}

func pkValue(table *schema.Table, strct reflect.Value) interface{} {
	if len(table.PKs) == 0 {
		return nil
	}
	v, err := strct.FieldByIndexErr(table.PKs[0].Index)
	if err != nil {
		return nil
	}
	return v.Interface()
}

func idents(names []string) []bun.Ident {
	out := make([]bun.Ident, len(names))
	for i, n := range names {
		out[i] = bun.Ident(n)
	}
	return out
}
