/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"log/slog"
	"strings"

	"mockupstudio/internal/domain"
)

// SaveOptions carries the payload and metadata of a save.
type SaveOptions struct {
	Title       string
	Description string
	IsPublic    bool
	PreviewURL  string
	CanvasData  domain.CanvasData
}

// Adapter is the persistence contract used by manual saves and the auto-save
// scheduler. Failures are returned, never panicked, and carry a
// domain error class.
type Adapter interface {
	Save(ctx context.Context, opts SaveOptions) (*domain.Design, error)
	Update(ctx context.Context, id string, opts SaveOptions) (*domain.Design, error)
	Load(ctx context.Context, id string) (*domain.Design, error)
	Delete(ctx context.Context, id string) error
}

// StoreAdapter implements Adapter over a DesignStore for one owner.
type StoreAdapter struct {
	store DesignStore
	owner string
	quota int
	log   *slog.Logger
}

// AdapterOption configures a StoreAdapter.
type AdapterOption func(*StoreAdapter)

// WithQuota limits how many designs the owner may create. Zero means no limit.
func WithQuota(n int) AdapterOption { return func(a *StoreAdapter) { a.quota = n } }

func WithLogger(l *slog.Logger) AdapterOption { return func(a *StoreAdapter) { a.log = l } }

// NewAdapter binds store to owner. An empty owner makes every call fail with
// domain.ErrAuthRequired.
func NewAdapter(store DesignStore, owner string, opts ...AdapterOption) *StoreAdapter {
	a := &StoreAdapter{store: store, owner: owner, log: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *StoreAdapter) Owner() string { return a.owner }

func (a *StoreAdapter) authorize() error {
	if strings.TrimSpace(a.owner) == "" {
		return domain.ErrAuthRequired
	}
	return nil
}

func validateSave(opts SaveOptions) error {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Validationf("title is required")
	}
	c := opts.CanvasData.Canvas
	if !(c.Width > 0 && c.Height > 0) {
		return domain.Validationf("invalid canvas size %gx%g", c.Width, c.Height)
	}
	for _, el := range opts.CanvasData.Elements {
		if err := el.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a *StoreAdapter) design(id string, opts SaveOptions) *domain.Design {
	return &domain.Design{
		ID:          id,
		OwnerID:     a.owner,
		Title:       strings.TrimSpace(opts.Title),
		Description: opts.Description,
		CanvasData:  opts.CanvasData,
		PreviewURL:  opts.PreviewURL,
		IsPublic:    opts.IsPublic,
	}
}

// Save creates a new design. It fails with domain.ErrLimitExceeded when the
// owner has reached the quota.
func (a *StoreAdapter) Save(ctx context.Context, opts SaveOptions) (*domain.Design, error) {
	if err := a.authorize(); err != nil {
		return nil, err
	}
	if err := validateSave(opts); err != nil {
		return nil, err
	}
	if a.quota > 0 {
		n, err := a.store.Count(ctx, a.owner)
		if err != nil {
			return nil, domain.PersistenceError("count designs", err)
		}
		if n >= a.quota {
			return nil, domain.ErrLimitExceeded
		}
	}
	d := a.design("", opts)
	if err := a.store.Create(ctx, d); err != nil {
		a.log.Warn("create design failed", slog.Any("err", err))
		return nil, domain.PersistenceError("create design", err)
	}
	a.log.Info("design created", slog.String("design_id", d.ID), slog.Int("elements", len(d.CanvasData.Elements)))
	return d, nil
}

// Update overwrites an existing design.
func (a *StoreAdapter) Update(ctx context.Context, id string, opts SaveOptions) (*domain.Design, error) {
	if err := a.authorize(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, domain.Validationf("design id is required")
	}
	if err := validateSave(opts); err != nil {
		return nil, err
	}
	d := a.design(id, opts)
	if err := a.store.Update(ctx, d); err != nil {
		a.log.Warn("update design failed", slog.String("design_id", id), slog.Any("err", err))
		return nil, domain.PersistenceError("update design", err)
	}
	a.log.Debug("design updated", slog.String("design_id", id))
	return d, nil
}

func (a *StoreAdapter) Load(ctx context.Context, id string) (*domain.Design, error) {
	if err := a.authorize(); err != nil {
		return nil, err
	}
	d, err := a.store.Get(ctx, a.owner, id)
	if err != nil {
		return nil, domain.PersistenceError("load design", err)
	}
	return d, nil
}

func (a *StoreAdapter) Delete(ctx context.Context, id string) error {
	if err := a.authorize(); err != nil {
		return err
	}
	if err := a.store.Delete(ctx, a.owner, id); err != nil {
		return domain.PersistenceError("delete design", err)
	}
	return nil
}

// List returns the owner's designs.
func (a *StoreAdapter) List(ctx context.Context) ([]Summary, error) {
	if err := a.authorize(); err != nil {
		return nil, err
	}
	out, err := a.store.List(ctx, a.owner)
	if err != nil {
		return nil, domain.PersistenceError("list designs", err)
	}
	return out, nil
}
