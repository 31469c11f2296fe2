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
	"errors"
	"testing"

	"mockupstudio/internal/domain"
	applog "mockupstudio/internal/log"
)

type failingStore struct {
	*MemoryStore
	err error
}

func (f failingStore) Create(context.Context, *domain.Design) error { return f.err }

func saveOpts(title string) SaveOptions {
	return SaveOptions{Title: title, CanvasData: sampleData()}
}

func TestAdapterSaveUpdateLoadDelete(t *testing.T) {
	a := NewAdapter(NewMemoryStore(), "alice", WithLogger(applog.Discard()))
	ctx := context.Background()
	d, err := a.Save(ctx, saveOpts("  Home  "))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if d.ID == "" || d.Title != "Home" || d.OwnerID != "alice" {
		t.Fatalf("Save returned %+v", d)
	}
	if _, err := a.Update(ctx, d.ID, saveOpts("Home v2")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := a.Load(ctx, d.ID)
	if err != nil || got.Title != "Home v2" {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	list, err := a.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}
	if err := a.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := a.Load(ctx, d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Load deleted err = %v", err)
	}
}

func TestAdapterRequiresOwner(t *testing.T) {
	a := NewAdapter(NewMemoryStore(), "")
	ctx := context.Background()
	if _, err := a.Save(ctx, saveOpts("x")); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("Save err = %v", err)
	}
	if _, err := a.Load(ctx, "id"); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("Load err = %v", err)
	}
	if err := a.Delete(ctx, "id"); !errors.Is(err, domain.ErrAuthRequired) {
		t.Fatalf("Delete err = %v", err)
	}
}

func TestAdapterValidation(t *testing.T) {
	a := NewAdapter(NewMemoryStore(), "alice")
	ctx := context.Background()
	if _, err := a.Save(ctx, saveOpts("   ")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("blank title err = %v", err)
	}
	bad := saveOpts("x")
	bad.CanvasData.Canvas.Width = 0
	if _, err := a.Save(ctx, bad); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("zero canvas err = %v", err)
	}
	if _, err := a.Update(ctx, "", saveOpts("x")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("empty id err = %v", err)
	}
}

func TestAdapterQuota(t *testing.T) {
	a := NewAdapter(NewMemoryStore(), "alice", WithQuota(2))
	ctx := context.Background()
	var last *domain.Design
	for i := 0; i < 2; i++ {
		d, err := a.Save(ctx, saveOpts("d"))
		if err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
		last = d
	}
	if _, err := a.Save(ctx, saveOpts("d")); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("over quota err = %v", err)
	}
	if domain.IsRetryable(domain.ErrLimitExceeded) {
		t.Fatalf("limit errors must not be retried")
	}
	// updates are not creations
	if _, err := a.Update(ctx, last.ID, saveOpts("d2")); err != nil {
		t.Fatalf("Update at quota: %v", err)
	}
}

func TestAdapterWrapsBackendErrors(t *testing.T) {
	a := NewAdapter(failingStore{MemoryStore: NewMemoryStore(), err: errors.New("disk full")}, "alice")
	_, err := a.Save(context.Background(), saveOpts("x"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatalf("persistence errors should be retryable")
	}
}
