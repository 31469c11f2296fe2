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
	"time"

	"mockupstudio/internal/domain"
)

func sampleData() domain.CanvasData {
	title := domain.NewText("Sign in")
	title.ID, title.X, title.Y = "t1", 40, 80
	bg := domain.NewShape(domain.ShapeRect, 1080, 1920)
	bg.ID = "s1"
	bg.ZIndex = 0
	title.ZIndex = 1
	shot := domain.NewImage("https://cdn.example.com/shot.png", 900, 1600)
	shot.ID, shot.ZIndex = "i1", 2
	return domain.CanvasData{Canvas: domain.DefaultCanvas(), Elements: []domain.Element{bg, title, shot}}
}

// exerciseStore runs the behaviour every DesignStore must share.
func exerciseStore(t *testing.T, st DesignStore) {
	t.Helper()
	ctx := context.Background()

	d := &domain.Design{OwnerID: "alice", Title: "Login", CanvasData: sampleData()}
	if err := st.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if d.ID == "" || d.CreatedAt.IsZero() || !d.CreatedAt.Equal(d.UpdatedAt) {
		t.Fatalf("Create did not stamp id/timestamps: %+v", d)
	}

	got, err := st.Get(ctx, "alice", d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Login" || len(got.CanvasData.Elements) != 3 {
		t.Fatalf("Get returned %q with %d elements", got.Title, len(got.CanvasData.Elements))
	}
	if got.CanvasData.Version != domain.FormatVersion {
		t.Fatalf("version = %d", got.CanvasData.Version)
	}
	if k := got.CanvasData.Elements[1].Kind(); k != domain.KindText {
		t.Fatalf("element 1 kind = %q", k)
	}
	if txt, ok := got.CanvasData.Elements[1].Data.(domain.TextData); !ok || txt.Content != "Sign in" {
		t.Fatalf("text payload lost: %#v", got.CanvasData.Elements[1].Data)
	}

	if _, err := st.Get(ctx, "mallory", d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign Get err = %v, want ErrNotFound", err)
	}

	time.Sleep(2 * time.Millisecond)
	d.Title = "Login v2"
	d.CanvasData.Elements = d.CanvasData.Elements[:2]
	if err := st.Update(ctx, d); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = st.Get(ctx, "alice", d.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Title != "Login v2" || len(got.CanvasData.Elements) != 2 {
		t.Fatalf("update not persisted: %q %d", got.Title, len(got.CanvasData.Elements))
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("UpdatedAt %v not after CreatedAt %v", got.UpdatedAt, got.CreatedAt)
	}

	missing := &domain.Design{ID: "nope", OwnerID: "alice", Title: "x", CanvasData: sampleData()}
	if err := st.Update(ctx, missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update missing err = %v", err)
	}
	foreign := *d
	foreign.OwnerID = "mallory"
	if err := st.Update(ctx, &foreign); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign Update err = %v", err)
	}

	time.Sleep(2 * time.Millisecond)
	second := &domain.Design{OwnerID: "alice", Title: "Onboarding", CanvasData: sampleData()}
	if err := st.Create(ctx, second); err != nil {
		t.Fatalf("Create second: %v", err)
	}
	list, err := st.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("List = %+v, want newest first", list)
	}
	if n, err := st.Count(ctx, "alice"); err != nil || n != 2 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	if n, err := st.Count(ctx, "bob"); err != nil || n != 0 {
		t.Fatalf("Count other owner = %d, %v", n, err)
	}

	if err := st.Delete(ctx, "mallory", d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign Delete err = %v", err)
	}
	if err := st.Delete(ctx, "alice", d.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.Get(ctx, "alice", d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get deleted err = %v", err)
	}
	if err := st.Delete(ctx, "alice", d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Delete err = %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreDoesNotShareState(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	d := &domain.Design{OwnerID: "alice", Title: "A", CanvasData: sampleData()}
	if err := st.Create(ctx, d); err != nil {
		t.Fatal(err)
	}
	d.CanvasData.Elements[0].X = 999
	got, _ := st.Get(ctx, "alice", d.ID)
	if got.CanvasData.Elements[0].X == 999 {
		t.Fatalf("store shares element slice with caller")
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()
	st, err := Open(ctx, Options{}, nil)
	if err != nil {
		t.Fatalf("Open default: %v", err)
	}
	if _, ok := st.(*MemoryStore); !ok {
		t.Fatalf("default backend = %T", st)
	}
	st, err = Open(ctx, Options{Kind: "SQLite", SQLitePath: t.TempDir() + "/d.db"}, nil)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*SQLStore); !ok {
		t.Fatalf("sqlite backend = %T", st)
	}
	if _, err := Open(ctx, Options{Kind: "floppy"}, nil); err == nil {
		t.Fatalf("unknown backend accepted")
	}
}
