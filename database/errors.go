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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound is returned when no row matches a primary key lookup.
	ErrNotFound = errors.New("database: entity not found")

	ErrNoPrimaryKey             = errors.New("database: entity has no primary key")
	ErrLogicalDeleteUnsupported = errors.New("database: entity has no soft delete column")
	ErrNotConnected             = errors.New("database not connected")
	ErrNilEntity                = errors.New("database: nil entity")
	ErrInvalidLimit             = errors.New("database: slice limit must be positive")
)

// NotFoundError reports a missing entity. It matches both ErrNotFound and
// sql.ErrNoRows.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("database: %s not found (id=%v)", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == sql.ErrNoRows
}

// IsNotFound reports whether err means a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}

type SQLError int

const (
	UnknownErr SQLError = iota
	NoRowsErr
	NoIndexErr
	NoColumnErr
	ExistIndexErr
	ExistColumnErr
	NoTableErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DataTruncatedErr
	InvalidTypeCastErr
)

var sqlErrorNames = [...]string{
	"unknown", "no rows", "no index", "no column", "index exists", "column exists",
	"no table", "table exists", "duplicate key", "not null violation",
	"foreign key violation", "check constraint violation", "data truncated",
	"invalid type cast",
}

func (e SQLError) String() string {
	if int(e) < len(sqlErrorNames) {
		return sqlErrorNames[e]
	}
	return sqlErrorNames[UnknownErr]
}

var mysqlErrors = map[uint16]SQLError{
	1091: NoIndexErr,
	1054: NoColumnErr,
	1061: ExistIndexErr,
	1060: ExistColumnErr,
	1146: NoTableErr,
	1050: ExistTableErr,
	1062: DuplicateKeyErr,
	1048: NotNullViolationErr,
	1216: ForeignKeyViolationErr,
	1217: ForeignKeyViolationErr,
	1451: ForeignKeyViolationErr,
	1452: ForeignKeyViolationErr,
	3819: CheckConstraintViolationErr,
	1265: DataTruncatedErr,
	1406: DataTruncatedErr,
}

// messageErrors is checked in order; postgres (lib/pq) and sqlite report
// constraint failures only through the message text.
var messageErrors = []struct {
	kind  SQLError
	match func(s string) bool
}{
	{NoColumnErr, containsAny("sqlstate 42703", "undefined column", "no such column")},
	{NoIndexErr, func(s string) bool {
		return containsAny("sqlstate 42704", "no such index")(s) || (strings.Contains(s, "does not exist") && strings.Contains(s, "index"))
	}},
	{NoTableErr, containsAny("sqlstate 42p01", "undefined table", "no such table")},
	{ExistIndexErr, func(s string) bool { return strings.Contains(s, "already exists") && strings.Contains(s, "index") }},
	{ExistTableErr, func(s string) bool {
		return strings.Contains(s, "already exists") && (strings.Contains(s, "table") || strings.Contains(s, "relation"))
	}},
	{DuplicateKeyErr, containsAny("duplicate key value", "unique constraint failed", "sqlstate 23505")},
	{NotNullViolationErr, containsAny("not-null constraint", "sqlstate 23502", "not null constraint failed")},
	{ForeignKeyViolationErr, containsAny("foreign key violation", "foreign key constraint failed", "sqlstate 23503")},
	{CheckConstraintViolationErr, containsAny("check constraint", "sqlstate 23514")},
	{DataTruncatedErr, containsAny("string data right truncation", "sqlstate 22001", "data truncated")},
	{InvalidTypeCastErr, containsAny("datatype mismatch", "sqlstate 42804")},
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

// IsSqlError classifies a driver error.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	if IsNotFound(err) {
		return true, NoRowsErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		if kind, ok := mysqlErrors[mysqlErr.Number]; ok {
			return true, kind
		}
		return true, UnknownErr
	}
	s := strings.ToLower(err.Error())
	for _, m := range messageErrors {
		if m.match(s) {
			return true, m.kind
		}
	}
	return false, UnknownErr
}
