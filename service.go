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

package kestrel

import (
	"context"
	"sync"

	"github.com/tomoncle/kestrel/database"
	"github.com/tomoncle/kestrel/repository"
	"github.com/tomoncle/kestrel/types"
)

type Service[E any, ID comparable] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id ID) (*E, error)

	// GetMany returns the entities with the given identifiers, in order.
	GetMany(ctx context.Context, ids []ID) ([]*E, error)

	// All returns all entities.
	All(ctx context.Context, orders ...types.Order) ([]*E, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter, orders ...types.Order) ([]*E, error)

	// Page returns one page of entities.
	Page(ctx context.Context, param types.PageParam, orders ...types.Order) (*types.Page[E], error)

	// Save upserts one or more entities.
	Save(ctx context.Context, models ...*E) error

	// Create inserts entities and fails on existing keys.
	Create(ctx context.Context, models ...*E) error

	// Update modifies existing entities.
	Update(ctx context.Context, models ...*E) error

	// Delete removes entities by identifier.
	Delete(ctx context.Context, ids ...ID) error

	// Repository returns the repository the service delegates to.
	Repository() (repository.Repository[E, ID], error)
}

type baseServiceImpl[E any, ID comparable] struct {
	client database.SQLClient

	mu    sync.Mutex
	bound database.SQLClient
	repo  repository.Repository[E, ID]
}

// NewService returns a Service backed by the global SQL client. The
// repository is resolved on first use, so the service may be created before
// database.InitDB.
func NewService[E any, ID comparable]() Service[E, ID] {
	return &baseServiceImpl[E, ID]{}
}

// NewServiceWithClient returns a Service backed by client.
func NewServiceWithClient[E any, ID comparable](client database.SQLClient) Service[E, ID] {
	return &baseServiceImpl[E, ID]{client: client}
}

// Repository binds to the explicit client, or to the current global client.
// A service without an explicit client rebinds when the global client changes.
func (s *baseServiceImpl[E, ID]) Repository() (repository.Repository[E, ID], error) {
	client := s.client
	if client == nil {
		client = database.GetSQLClient()
	}
	if client == nil {
		return nil, database.ErrNotConnected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil && s.bound == client {
		return s.repo, nil
	}
	repo, err := repository.NewBase[E, ID](client)
	if err != nil {
		return nil, err
	}
	s.bound, s.repo = client, repo
	return s.repo, nil
}

func (s *baseServiceImpl[E, ID]) Get(ctx context.Context, id ID) (*E, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.FindByID(ctx, id, nil)
}

func (s *baseServiceImpl[E, ID]) GetMany(ctx context.Context, ids []ID) ([]*E, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.FindByIDs(ctx, ids, nil)
}

func (s *baseServiceImpl[E, ID]) All(ctx context.Context, orders ...types.Order) ([]*E, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.FindAll(ctx, nil, orders...)
}

func (s *baseServiceImpl[E, ID]) List(ctx context.Context, filter *types.QueryFilter, orders ...types.Order) ([]*E, error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.List(ctx, filter, nil, orders...)
}

func (s *baseServiceImpl[E, ID]) Page(ctx context.Context, param types.PageParam, orders ...types.Order) (*types.Page[E], error) {
	repo, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return repo.FindPage(ctx, param, nil, orders...)
}

func (s *baseServiceImpl[E, ID]) Save(ctx context.Context, models ...*E) error {
	return s.save(ctx, types.SaveModeUpsert, models)
}

func (s *baseServiceImpl[E, ID]) Create(ctx context.Context, models ...*E) error {
	return s.save(ctx, types.SaveModeInsertOnly, models)
}

func (s *baseServiceImpl[E, ID]) Update(ctx context.Context, models ...*E) error {
	return s.save(ctx, types.SaveModeUpdateOnly, models)
}

func (s *baseServiceImpl[E, ID]) save(ctx context.Context, mode types.SaveMode, models []*E) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	if len(models) == 1 {
		_, err = repo.SaveEntity(ctx, models[0], database.WithMode(mode))
		return err
	}
	_, err = repo.SaveEntities(ctx, models, database.WithMode(mode))
	return err
}

func (s *baseServiceImpl[E, ID]) Delete(ctx context.Context, ids ...ID) error {
	repo, err := s.Repository()
	if err != nil {
		return err
	}
	_, err = repo.DeleteByIDs(ctx, ids, types.DeleteModeAuto)
	return err
}
