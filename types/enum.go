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

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// SaveMode decides which statement a save command issues.
type SaveMode int

const (
	// SaveModeUpsert inserts rows with an unset primary key and upserts the rest.
	SaveModeUpsert SaveMode = iota
	SaveModeInsertOnly
	SaveModeUpdateOnly
)

var _ BaseEnum = SaveModeUpsert

var saveModeNames = map[SaveMode][2]string{
	SaveModeUpsert:     {"UPSERT", "insert new rows, update existing rows"},
	SaveModeInsertOnly: {"INSERT_ONLY", "always insert"},
	SaveModeUpdateOnly: {"UPDATE_ONLY", "update by primary key"},
}

func (m SaveMode) IsValid() bool {
	_, ok := saveModeNames[m]
	return ok
}

func (m SaveMode) Number() int {
	if !m.IsValid() {
		return IllegalValue
	}
	return int(m)
}

func (m SaveMode) Name() string {
	if v, ok := saveModeNames[m]; ok {
		return v[0]
	}
	return IllegalName
}

func (m SaveMode) Desc() string {
	if v, ok := saveModeNames[m]; ok {
		return v[1]
	}
	return IllegalDesc
}

func (m SaveMode) String() string { return m.Name() }

// DeleteMode decides between soft and hard deletes.
type DeleteMode int

const (
	// DeleteModeAuto soft deletes when the table has a soft delete column and
	// hard deletes otherwise.
	DeleteModeAuto DeleteMode = iota
	DeleteModeLogical
	DeleteModePhysical
)

var _ BaseEnum = DeleteModeAuto

var deleteModeNames = map[DeleteMode][2]string{
	DeleteModeAuto:     {"AUTO", "logical when supported by the table"},
	DeleteModeLogical:  {"LOGICAL", "mark rows as deleted"},
	DeleteModePhysical: {"PHYSICAL", "remove rows"},
}

func (m DeleteMode) IsValid() bool {
	_, ok := deleteModeNames[m]
	return ok
}

func (m DeleteMode) Number() int {
	if !m.IsValid() {
		return IllegalValue
	}
	return int(m)
}

func (m DeleteMode) Name() string {
	if v, ok := deleteModeNames[m]; ok {
		return v[0]
	}
	return IllegalName
}

func (m DeleteMode) Desc() string {
	if v, ok := deleteModeNames[m]; ok {
		return v[1]
	}
	return IllegalDesc
}

func (m DeleteMode) String() string { return m.Name() }
