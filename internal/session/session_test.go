/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mockupstudio/internal/autosave"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/geometry"
	"mockupstudio/internal/keymap"
	"mockupstudio/internal/storage"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// countingAdapter wraps a StoreAdapter and can inject failures.
type countingAdapter struct {
	inner *storage.StoreAdapter

	mu        sync.Mutex
	saves     int
	updates   int
	failWith  error
	limitHits bool
}

func (a *countingAdapter) fail() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.failWith
}

func (a *countingAdapter) Save(ctx context.Context, o storage.SaveOptions) (*domain.Design, error) {
	a.mu.Lock()
	a.saves++
	limit := a.limitHits
	a.mu.Unlock()
	if limit {
		return nil, domain.ErrLimitExceeded
	}
	if err := a.fail(); err != nil {
		return nil, err
	}
	return a.inner.Save(ctx, o)
}

func (a *countingAdapter) Update(ctx context.Context, id string, o storage.SaveOptions) (*domain.Design, error) {
	a.mu.Lock()
	a.updates++
	a.mu.Unlock()
	if err := a.fail(); err != nil {
		return nil, err
	}
	return a.inner.Update(ctx, id, o)
}

func (a *countingAdapter) Load(ctx context.Context, id string) (*domain.Design, error) {
	return a.inner.Load(ctx, id)
}

func (a *countingAdapter) Delete(ctx context.Context, id string) error {
	return a.inner.Delete(ctx, id)
}

func (a *countingAdapter) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves, a.updates
}

func newSession(t *testing.T, opts Options) (*Session, *countingAdapter, *autosave.FakeClock) {
	t.Helper()
	clk := autosave.NewFakeClock(t0)
	ad := &countingAdapter{inner: storage.NewAdapter(storage.NewMemoryStore(), "user-1")}
	if opts.Autosave == (autosave.Config{}) {
		opts.Autosave = autosave.Config{Interval: 30 * time.Second, Floor: 10 * time.Second, Debounce: 5 * time.Second, StatusHold: 2 * time.Second}
	}
	opts.Clock = clk
	s := New(ad, opts)
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, ad, clk
}

func addBox(t *testing.T, s *Session, x, y float64) string {
	t.Helper()
	el := domain.NewShape(domain.ShapeRect, 10, 10)
	el.X, el.Y = x, y
	id, err := s.Store().AddElement(el)
	if err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	return id
}

func TestSaveCreatesThenUpdates(t *testing.T) {
	s, ad, clk := newSession(t, Options{})
	ctx := context.Background()

	if out, err := s.Save(ctx); out != autosave.Clean || err != nil {
		t.Fatalf("save of empty session = %s, %v", out, err)
	}
	addBox(t, s, 0, 0)
	out, err := s.Save(ctx)
	if out != autosave.Saved || err != nil {
		t.Fatalf("first save = %s, %v", out, err)
	}
	d := s.Design()
	if d == nil || d.ID == "" || d.Title != DefaultTitle {
		t.Fatalf("design after first save = %#v", d)
	}
	if s.Dirty() {
		t.Fatalf("session dirty after save")
	}

	addBox(t, s, 50, 0)
	if out, _ := s.Save(ctx); out != autosave.Debounced {
		t.Fatalf("save inside debounce window = %s", out)
	}
	clk.Advance(6 * time.Second)
	if out, err := s.Save(ctx); out != autosave.Saved || err != nil {
		t.Fatalf("second save = %s, %v", out, err)
	}
	if got := s.Design(); got.ID != d.ID || len(got.CanvasData.Elements) != 2 {
		t.Fatalf("second save must update %s, got %#v", d.ID, got)
	}
	if saves, updates := ad.counts(); saves != 1 || updates != 1 {
		t.Fatalf("adapter calls = %d saves, %d updates", saves, updates)
	}
}

func TestFailedUpdateKeepsReferenceAndDirty(t *testing.T) {
	s, ad, clk := newSession(t, Options{})
	ctx := context.Background()
	addBox(t, s, 0, 0)
	if _, err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	before := s.Design()

	ad.mu.Lock()
	ad.failWith = domain.PersistenceError("update", errors.New("connection reset"))
	ad.mu.Unlock()
	addBox(t, s, 20, 0)
	clk.Advance(6 * time.Second)
	out, err := s.Save(ctx)
	if out != autosave.Failed || !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("save = %s, %v", out, err)
	}
	if !s.Dirty() {
		t.Fatalf("failed save must leave the session dirty")
	}
	if got := s.Design(); got.ID != before.ID || !got.UpdatedAt.Equal(before.UpdatedAt) || len(got.CanvasData.Elements) != 1 {
		t.Fatalf("design reference changed after a failed save: %#v", got)
	}
}

func TestLimitExceededSurfacesOnceAndBlocksCreation(t *testing.T) {
	var limits int
	s, ad, clk := newSession(t, Options{OnLimit: func(error) { limits++ }})
	ctx := context.Background()
	ad.limitHits = true
	addBox(t, s, 0, 0)

	if _, err := s.Save(ctx); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("first save err = %v", err)
	}
	clk.Advance(6 * time.Second)
	if _, err := s.Save(ctx); !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("second save err = %v", err)
	}
	if limits != 1 {
		t.Fatalf("OnLimit called %d times, want 1", limits)
	}
	if saves, _ := ad.counts(); saves != 1 {
		t.Fatalf("blocked creation still reached the adapter: %d calls", saves)
	}
	if s.LimitBlocked() == nil || s.Scheduler().Halted() == nil {
		t.Fatalf("expected creation block and halted auto-save")
	}

	ad.mu.Lock()
	ad.limitHits = false
	ad.mu.Unlock()
	s.ResolveLimit()
	clk.Advance(6 * time.Second)
	if out, err := s.Save(ctx); out != autosave.Saved || err != nil {
		t.Fatalf("save after resolve = %s, %v", out, err)
	}
	if s.Scheduler().Halted() != nil {
		t.Fatalf("scheduler still halted")
	}
}

func TestMetaChangesAreSaved(t *testing.T) {
	s, _, clk := newSession(t, Options{})
	ctx := context.Background()
	addBox(t, s, 0, 0)
	if _, err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	s.SetMeta(Meta{Title: "  Onboarding  ", Description: "first run", IsPublic: true})
	if !s.Dirty() {
		t.Fatalf("metadata change must mark the session dirty")
	}
	clk.Advance(6 * time.Second)
	if out, err := s.Save(ctx); out != autosave.Saved || err != nil {
		t.Fatalf("save = %s, %v", out, err)
	}
	d := s.Design()
	if d.Title != "Onboarding" || d.Description != "first run" || !d.IsPublic {
		t.Fatalf("metadata not persisted: %#v", d)
	}
	if s.Dirty() {
		t.Fatalf("still dirty after saving metadata")
	}

	s.SetMeta(Meta{Title: ""})
	if got := s.Meta().Title; got != DefaultTitle {
		t.Fatalf("empty title = %q, want %q", got, DefaultTitle)
	}
}

func TestOpenReplacesDocument(t *testing.T) {
	s, ad, _ := newSession(t, Options{})
	ctx := context.Background()

	other := domain.CanvasData{Canvas: domain.DefaultCanvas(), Version: domain.FormatVersion}
	txt := domain.NewText("Hello")
	txt.ID = "txt-1"
	other.Elements = []domain.Element{txt}
	d, err := ad.inner.Save(ctx, storage.SaveOptions{Title: "Stored", CanvasData: other})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	addBox(t, s, 0, 0)
	if err := s.Open(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("open missing = %v", err)
	}
	if s.Store().Len() != 1 || s.Design() != nil {
		t.Fatalf("failed open must keep the current document")
	}

	if err := s.Open(ctx, d.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Dirty() || s.Store().Len() != 1 || s.Meta().Title != "Stored" || s.Design().ID != d.ID {
		t.Fatalf("unexpected state after open: dirty=%v len=%d meta=%#v", s.Dirty(), s.Store().Len(), s.Meta())
	}
	if _, ok := s.Store().Element("txt-1"); !ok {
		t.Fatalf("loaded element missing")
	}
	if s.Store().CanUndo() {
		t.Fatalf("open must start with an empty history")
	}
}

func TestDeleteForgetsDesign(t *testing.T) {
	s, ad, _ := newSession(t, Options{})
	ctx := context.Background()
	if err := s.Delete(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("delete unsaved = %v", err)
	}
	addBox(t, s, 0, 0)
	if _, err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	id := s.Design().ID
	if err := s.Delete(ctx); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Design() != nil || !s.Dirty() {
		t.Fatalf("after delete: design=%v dirty=%v", s.Design(), s.Dirty())
	}
	if _, err := ad.Load(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted design still loads: %v", err)
	}
}

func TestCommandSurface(t *testing.T) {
	s, _, _ := newSession(t, Options{})
	a := addBox(t, s, 10, 0)
	b := addBox(t, s, 30, 5)
	c := addBox(t, s, 50, 9)

	s.Store().SelectAll()
	if !s.Align(geometry.EdgeLeft) {
		t.Fatalf("align did nothing")
	}
	for _, id := range []string{a, b, c} {
		if el, _ := s.Store().Element(id); el.X != 10 {
			t.Fatalf("%s x = %g, want 10", id, el.X)
		}
	}
	if el, _ := s.Store().Element(c); el.Y != 9 {
		t.Fatalf("align changed y: %g", el.Y)
	}

	if !s.Undo() || !s.Redo() {
		t.Fatalf("undo/redo unavailable")
	}

	clones := s.DuplicateSelected()
	if len(clones) != 3 || s.Store().Len() != 6 {
		t.Fatalf("duplicate = %v, len %d", clones, s.Store().Len())
	}
	if n := s.DeleteSelected(); n != 3 || s.Store().Len() != 3 {
		t.Fatalf("delete selected removed %d", n)
	}
	if len(s.Store().Selected()) != 0 {
		t.Fatalf("selection not pruned")
	}

	if err := s.SetTool(domain.ToolText); err != nil || s.Store().Tool() != domain.ToolText {
		t.Fatalf("SetTool: %v", err)
	}
	if err := s.SetTool("lasso"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown tool err = %v", err)
	}
	if z := s.SetZoom(100); z != 8 {
		t.Fatalf("zoom clamp = %g", z)
	}
}

func TestDistributeThroughSession(t *testing.T) {
	s, _, _ := newSession(t, Options{})
	a := addBox(t, s, 0, 0)
	b := addBox(t, s, 70, 0)
	c := addBox(t, s, 100, 0)
	s.Store().Select([]string{a, b}, editor.Replace)
	if s.Distribute(geometry.AxisHorizontal) {
		t.Fatalf("distribute with two elements must be a no-op")
	}
	s.Store().SelectAll()
	if !s.Distribute(geometry.AxisHorizontal) {
		t.Fatalf("distribute did nothing")
	}
	if el, _ := s.Store().Element(b); el.X != 45 {
		t.Fatalf("middle x = %g, want 45", el.X)
	}
	if el, _ := s.Store().Element(c); el.X != 100 {
		t.Fatalf("anchor moved: %g", el.X)
	}
}

func TestHandleKeyRespectsTextEntry(t *testing.T) {
	s, _, _ := newSession(t, Options{})
	addBox(t, s, 0, 0)

	ev := keymap.Event{Key: "z", Ctrl: true, Target: keymap.Target{Tag: "input", InputType: "text"}}
	if a, err := s.HandleKey(ev); a != keymap.None || err != nil {
		t.Fatalf("text entry dispatch = %q, %v", a, err)
	}
	if s.Store().Len() != 1 {
		t.Fatalf("store mutated while typing")
	}

	ev.Target = keymap.Target{Tag: "canvas"}
	if a, err := s.HandleKey(ev); a != keymap.Undo || err != nil {
		t.Fatalf("dispatch = %q, %v", a, err)
	}
	if s.Store().Len() != 0 {
		t.Fatalf("ctrl+z did not undo the add")
	}

	if a, _ := s.HandleKey(keymap.Event{Key: "q", Ctrl: true, Alt: true}); a != keymap.None {
		t.Fatalf("unbound combo = %q", a)
	}
}

func TestPerformEveryAction(t *testing.T) {
	s, _, _ := newSession(t, Options{ViewportW: 800, ViewportH: 600})
	addBox(t, s, 0, 0)
	addBox(t, s, 40, 0)
	for _, a := range keymap.Actions {
		if err := s.Perform(a); err != nil {
			t.Fatalf("Perform(%s): %v", a, err)
		}
	}
	if err := s.Perform("explode"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("unknown action err = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Scheduler().Wait(ctx)
}

func TestPerformSaveRunsInBackground(t *testing.T) {
	s, ad, _ := newSession(t, Options{})
	addBox(t, s, 0, 0)
	if err := s.Perform(keymap.Save); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Scheduler().Wait(ctx)
	if saves, _ := ad.counts(); saves != 1 || s.Dirty() {
		t.Fatalf("background save: saves=%d dirty=%v", saves, s.Dirty())
	}
}

func TestVisibilityLost(t *testing.T) {
	s, ad, _ := newSession(t, Options{})
	addBox(t, s, 0, 0)
	s.VisibilityLost()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Scheduler().Wait(ctx)
	if saves, _ := ad.counts(); saves != 1 {
		t.Fatalf("visibility save calls = %d", saves)
	}

	s2, ad2, _ := newSession(t, Options{SkipVisibilitySave: true})
	addBox(t, s2, 0, 0)
	s2.VisibilityLost()
	s2.Scheduler().Wait(ctx)
	if saves, _ := ad2.counts(); saves != 0 {
		t.Fatalf("visibility save ran although disabled")
	}
}

func TestPeriodicSaveThroughSession(t *testing.T) {
	s, ad, clk := newSession(t, Options{})
	s.Start(context.Background())
	addBox(t, s, 0, 0)
	clk.Advance(30 * time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if saves, _ := ad.counts(); saves == 1 && !s.Dirty() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("periodic save did not run")
}

func TestDirtyIndicator(t *testing.T) {
	var (
		mu    sync.Mutex
		flips []bool
	)
	s, _, _ := newSession(t, Options{OnDirty: func(d bool) {
		mu.Lock()
		flips = append(flips, d)
		mu.Unlock()
	}})
	addBox(t, s, 0, 0)
	addBox(t, s, 10, 0)
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(flips) != 2 || !flips[0] || flips[1] {
		t.Fatalf("dirty flips = %v, want [true false]", flips)
	}
	if s.Design() != nil || s.Store().Len() != 0 {
		t.Fatalf("reset did not start a new design")
	}
}

// gatedAdapter holds the next Save or Update until the test releases it.
type gatedAdapter struct {
	*countingAdapter

	gateMu  sync.Mutex
	started chan struct{}
	release chan struct{}
}

func (a *gatedAdapter) arm() (started, release chan struct{}) {
	a.gateMu.Lock()
	defer a.gateMu.Unlock()
	a.started, a.release = make(chan struct{}), make(chan struct{})
	return a.started, a.release
}

func (a *gatedAdapter) wait() {
	a.gateMu.Lock()
	started, release := a.started, a.release
	a.started, a.release = nil, nil
	a.gateMu.Unlock()
	if release != nil {
		close(started)
		<-release
	}
}

func (a *gatedAdapter) Save(ctx context.Context, o storage.SaveOptions) (*domain.Design, error) {
	a.wait()
	return a.countingAdapter.Save(ctx, o)
}

func (a *gatedAdapter) Update(ctx context.Context, id string, o storage.SaveOptions) (*domain.Design, error) {
	a.wait()
	return a.countingAdapter.Update(ctx, id, o)
}

func newGatedSession(t *testing.T) (*Session, *gatedAdapter, *autosave.FakeClock) {
	t.Helper()
	clk := autosave.NewFakeClock(t0)
	ad := &gatedAdapter{countingAdapter: &countingAdapter{inner: storage.NewAdapter(storage.NewMemoryStore(), "user-1")}}
	s := New(ad, Options{
		Clock:    clk,
		Autosave: autosave.Config{Interval: 30 * time.Second, Floor: 10 * time.Second, Debounce: 5 * time.Second, StatusHold: 2 * time.Second},
	})
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, ad, clk
}

func TestSaveFinishingAfterOpenKeepsOpenedDesign(t *testing.T) {
	s, ad, clk := newGatedSession(t)
	ctx := context.Background()

	addBox(t, s, 0, 0)
	if _, err := s.Save(ctx); err != nil {
		t.Fatalf("first save: %v", err)
	}
	a := s.Design()
	other := domain.CanvasData{Canvas: domain.DefaultCanvas(), Version: domain.FormatVersion}
	txt := domain.NewText("B")
	txt.ID = "txt-b"
	other.Elements = []domain.Element{txt}
	b, err := ad.inner.Save(ctx, storage.SaveOptions{Title: "B", CanvasData: other})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	addBox(t, s, 20, 0)
	clk.Advance(6 * time.Second)
	started, release := ad.arm()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Save(ctx)
	}()
	<-started
	if err := s.Open(ctx, b.ID); err != nil {
		t.Fatalf("open: %v", err)
	}
	close(release)
	<-done

	if got := s.Design(); got == nil || got.ID != b.ID {
		t.Fatalf("design after stale save = %#v, want %s", got, b.ID)
	}
	if s.Dirty() {
		t.Fatalf("stale save must not change the dirty state of the opened design")
	}

	addBox(t, s, 40, 0)
	clk.Advance(6 * time.Second)
	if out, err := s.Save(ctx); out != autosave.Saved || err != nil {
		t.Fatalf("save after open = %s, %v", out, err)
	}
	storedA, err := ad.inner.Load(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(storedA.CanvasData.Elements); n != 2 {
		t.Fatalf("design A has %d elements, want 2", n)
	}
	for _, el := range storedA.CanvasData.Elements {
		if el.ID == "txt-b" {
			t.Fatalf("design A was overwritten with B's canvas")
		}
	}
	storedB, err := ad.inner.Load(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(storedB.CanvasData.Elements); n != 2 {
		t.Fatalf("design B has %d elements, want 2", n)
	}
}

func TestCreateFinishingAfterResetIsForgotten(t *testing.T) {
	s, ad, clk := newGatedSession(t)
	ctx := context.Background()

	addBox(t, s, 0, 0)
	started, release := ad.arm()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Save(ctx)
	}()
	<-started
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	if s.Design() != nil || s.Dirty() {
		t.Fatalf("after reset: design=%v dirty=%v", s.Design(), s.Dirty())
	}
	addBox(t, s, 10, 10)
	clk.Advance(6 * time.Second)
	if _, err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	if saves, updates := ad.counts(); saves != 2 || updates != 0 {
		t.Fatalf("saves=%d updates=%d, want a second create", saves, updates)
	}
}

func TestSaveFinishingAfterDeleteDoesNotRestoreReference(t *testing.T) {
	s, ad, clk := newGatedSession(t)
	ctx := context.Background()

	addBox(t, s, 0, 0)
	if _, err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}
	addBox(t, s, 10, 0)
	clk.Advance(6 * time.Second)
	started, release := ad.arm()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Save(ctx)
	}()
	<-started
	if err := s.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	close(release)
	<-done

	if s.Design() != nil || !s.Dirty() {
		t.Fatalf("after delete: design=%v dirty=%v", s.Design(), s.Dirty())
	}
}
