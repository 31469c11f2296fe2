/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session is the command surface of one editing session. It binds a
// document store to a persistence adapter, the auto-save scheduler and the
// keyboard dispatcher.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mockupstudio/internal/autosave"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/geometry"
	"mockupstudio/internal/keymap"
	"mockupstudio/internal/storage"
)

// DefaultTitle names designs saved before the user picked a title.
const DefaultTitle = "Untitled design"

// Meta is the design metadata saved alongside the canvas.
type Meta struct {
	Title       string
	Description string
	IsPublic    bool
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	Editor   editor.Options
	Autosave autosave.Config
	Clock    autosave.Clock
	Logger   *slog.Logger
	// Viewport is the size of the visible area used by fit-to-screen.
	ViewportW, ViewportH float64
	// SkipVisibilitySave disables the save on VisibilityLost.
	SkipVisibilitySave bool
	// OnStatus receives every auto-save status transition.
	OnStatus func(autosave.Status, error)
	// OnDirty is called when the unsaved-changes indicator flips.
	OnDirty func(dirty bool)
	// OnLimit is called once when the design quota blocks creation.
	OnLimit func(error)
}

// Session owns the editor state of one design.
type Session struct {
	store   *editor.Store
	adapter storage.Adapter
	sched   *autosave.Scheduler
	keys    *keymap.Dispatcher
	log     *slog.Logger
	opts    Options
	unsub   func()

	mu        sync.Mutex
	design    *domain.Design // nil until the first successful save or Open
	meta      Meta
	metaGen   uint64
	savedMeta uint64
	pending   pendingSave
	limit     error  // sticky quota failure blocking creation
	dirty     bool   // last value reported to OnDirty
	gen       uint64 // bumped when Open, Reset or Delete replace the document
}

// pendingSave is the metadata captured with the checkpoint being persisted.
// session is the generation the checkpoint was taken in.
type pendingSave struct {
	meta    Meta
	gen     uint64
	session uint64
}

// New returns a session with an empty document. Call Start to arm auto-save.
func New(adapter storage.Adapter, opts Options) *Session {
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}
	if opts.Editor.Logger == nil {
		opts.Editor.Logger = l.With(slog.String("component", "editor"))
	}
	s := &Session{
		store:   editor.NewStore(opts.Editor),
		adapter: adapter,
		keys:    keymap.NewDispatcher(l.With(slog.String("component", "keymap"))),
		log:     l,
		opts:    opts,
		meta:    Meta{Title: DefaultTitle},
	}
	s.sched = autosave.New(document{s}, s.persist, autosave.Options{
		Config:   opts.Autosave,
		Clock:    opts.Clock,
		Logger:   l.With(slog.String("component", "autosave")),
		OnStatus: opts.OnStatus,
	})
	s.unsub = s.store.Subscribe(func(editor.Change) { s.reportDirty() })
	return s
}

// Store exposes the document store to the rendering layer.
func (s *Session) Store() *editor.Store { return s.store }

// Scheduler exposes the auto-save scheduler for status display.
func (s *Session) Scheduler() *autosave.Scheduler { return s.sched }

// Dispatcher exposes the shortcut table.
func (s *Session) Dispatcher() *keymap.Dispatcher { return s.keys }

// Start arms periodic auto-save. Saves it triggers run with ctx.
func (s *Session) Start(ctx context.Context) { s.sched.Start(ctx) }

// Close stops auto-save, waits for saves in flight and detaches observers.
// Unsaved changes are not written; call Save first to keep them.
func (s *Session) Close(ctx context.Context) {
	s.sched.Stop()
	s.sched.Wait(ctx)
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Design returns a copy of the current persisted design reference, or nil
// when nothing has been saved yet.
func (s *Session) Design() *domain.Design {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.design == nil {
		return nil
	}
	d := *s.design
	return &d
}

// Meta returns the metadata that the next save writes.
func (s *Session) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// SetMeta changes the design metadata. An empty title falls back to
// DefaultTitle. A change marks the session dirty.
func (s *Session) SetMeta(m Meta) {
	m.Title = strings.TrimSpace(m.Title)
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	s.mu.Lock()
	if m == s.meta {
		s.mu.Unlock()
		return
	}
	s.meta = m
	s.metaGen++
	s.mu.Unlock()
	s.reportDirty()
}

// Dirty reports whether the canvas or the metadata has unsaved changes.
func (s *Session) Dirty() bool {
	if s.store.Dirty() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metaGen != s.savedMeta
}

func (s *Session) reportDirty() {
	if s.opts.OnDirty == nil {
		return
	}
	d := s.Dirty()
	s.mu.Lock()
	changed := d != s.dirty
	s.dirty = d
	s.mu.Unlock()
	if changed {
		s.opts.OnDirty(d)
	}
}

// document adapts the session to autosave.Document so metadata edits count
// as unsaved changes.
type document struct{ s *Session }

func (d document) Dirty() bool { return d.s.Dirty() }

func (d document) Checkpoint() (domain.CanvasData, uint64) {
	data, rev := d.s.store.Checkpoint()
	d.s.mu.Lock()
	d.s.pending = pendingSave{meta: d.s.meta, gen: d.s.metaGen, session: d.s.gen}
	d.s.mu.Unlock()
	return data, rev
}

func (d document) MarkSaved(rev uint64) {
	d.s.mu.Lock()
	if d.s.pending.session != d.s.gen {
		d.s.mu.Unlock()
		return
	}
	if d.s.pending.gen > d.s.savedMeta {
		d.s.savedMeta = d.s.pending.gen
	}
	d.s.mu.Unlock()
	d.s.store.MarkSaved(rev)
	d.s.reportDirty()
}

// persist creates the design on the first save and updates it afterwards.
// The design reference changes only after a successful round trip, and only
// while the session still holds the document the checkpoint came from.
func (s *Session) persist(ctx context.Context, data domain.CanvasData) error {
	s.mu.Lock()
	cur, p, limit := s.design, s.pending, s.limit
	stale := s.gen != p.session
	s.mu.Unlock()
	if stale {
		s.log.Info("checkpoint dropped, document replaced")
		return nil
	}

	opts := storage.SaveOptions{
		Title:       p.meta.Title,
		Description: p.meta.Description,
		IsPublic:    p.meta.IsPublic,
		CanvasData:  data,
	}
	var (
		d   *domain.Design
		err error
	)
	if cur == nil {
		if limit != nil {
			return limit
		}
		d, err = s.adapter.Save(ctx, opts)
	} else {
		opts.PreviewURL = cur.PreviewURL
		d, err = s.adapter.Update(ctx, cur.ID, opts)
	}
	s.mu.Lock()
	stale = s.gen != p.session
	if err == nil && !stale {
		s.design = d
	}
	s.mu.Unlock()
	if stale {
		s.log.Info("save result dropped, document replaced", slog.Any("err", err))
		return nil
	}
	if err != nil {
		if cur == nil && errors.Is(err, domain.ErrLimitExceeded) {
			s.blockCreation(err)
		}
		return err
	}
	if cur == nil {
		s.log.Info("design created", slog.String("id", d.ID), slog.String("title", d.Title))
	}
	return nil
}

func (s *Session) blockCreation(err error) {
	s.mu.Lock()
	first := s.limit == nil
	s.limit = err
	s.mu.Unlock()
	if first {
		s.log.Warn("design limit reached, creation blocked", slog.Any("err", err))
		if s.opts.OnLimit != nil {
			s.opts.OnLimit(err)
		}
	}
}

// LimitBlocked returns the quota error that blocks creation, if any.
func (s *Session) LimitBlocked() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.limit
}

// ResolveLimit lifts the creation block after the quota was resolved
// externally and re-enables automatic saves.
func (s *Session) ResolveLimit() {
	s.mu.Lock()
	s.limit = nil
	s.mu.Unlock()
	s.sched.Resume()
}

// Save runs a manual save and waits for it. Failures leave the document dirty.
func (s *Session) Save(ctx context.Context) (autosave.Outcome, error) {
	return s.sched.Trigger(ctx, autosave.ReasonManual)
}

// VisibilityLost saves a dirty document once in the background.
func (s *Session) VisibilityLost() {
	if s.opts.SkipVisibilitySave {
		return
	}
	s.sched.VisibilityLost()
}

// Open loads a design and replaces the document. The current document is kept
// when loading fails.
func (s *Session) Open(ctx context.Context, id string) error {
	d, err := s.adapter.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Load(d.CanvasData); err != nil {
		return err
	}
	s.mu.Lock()
	s.design = d
	s.meta = Meta{Title: d.Title, Description: d.Description, IsPublic: d.IsPublic}
	s.savedMeta = s.metaGen
	s.gen++
	s.mu.Unlock()
	s.sched.Resume()
	s.reportDirty()
	s.log.Info("design opened", slog.String("id", d.ID), slog.Int("elements", len(d.CanvasData.Elements)))
	return nil
}

// Reset starts a new, unsaved design on the default canvas.
func (s *Session) Reset() error {
	if err := s.store.Load(domain.CanvasData{Canvas: domain.DefaultCanvas(), Version: domain.FormatVersion, Timestamp: time.Now().UTC()}); err != nil {
		return err
	}
	s.mu.Lock()
	s.design = nil
	s.meta = Meta{Title: DefaultTitle}
	s.savedMeta = s.metaGen
	s.gen++
	s.mu.Unlock()
	s.reportDirty()
	return nil
}

// Delete removes the current design from storage and forgets the reference.
// The canvas stays open as an unsaved document.
func (s *Session) Delete(ctx context.Context) error {
	s.mu.Lock()
	cur := s.design
	s.mu.Unlock()
	if cur == nil {
		return domain.NotFoundf("design has not been saved")
	}
	if err := s.adapter.Delete(ctx, cur.ID); err != nil {
		return err
	}
	s.mu.Lock()
	s.design = nil
	s.metaGen++
	s.gen++
	s.mu.Unlock()
	s.reportDirty()
	return nil
}

func (s *Session) Undo() bool { return s.store.Undo() }
func (s *Session) Redo() bool { return s.store.Redo() }

// DuplicateSelected clones the selection; the clones become the selection.
func (s *Session) DuplicateSelected() []string {
	return s.store.DuplicateElements(s.store.Selected())
}

// DeleteSelected removes the selected elements.
func (s *Session) DeleteSelected() int {
	return s.store.DeleteElements(s.store.Selected())
}

// Align aligns the selection; fewer than two selected elements is a no-op.
func (s *Session) Align(edge geometry.Edge) bool {
	return s.store.AlignElements(s.store.Selected(), edge)
}

// Distribute spaces the selection evenly; it needs at least three elements.
func (s *Session) Distribute(axis geometry.Axis) bool {
	return s.store.DistributeElements(s.store.Selected(), axis)
}

func (s *Session) SetTool(t domain.Tool) error { return s.store.SetTool(t) }

func (s *Session) SetZoom(f float64) float64 { return s.store.SetZoom(f) }

// SetViewport records the visible area used by fit-to-screen.
func (s *Session) SetViewport(w, h float64) {
	s.mu.Lock()
	s.opts.ViewportW, s.opts.ViewportH = w, h
	s.mu.Unlock()
}

// HandleKey resolves a key event and performs its action. Events from text
// entry controls and unbound combinations do nothing.
func (s *Session) HandleKey(ev keymap.Event) (keymap.Action, error) {
	return s.keys.Dispatch(ev, s)
}

// Perform executes a dispatcher action. Save is queued in the background so
// input handling never waits on storage.
func (s *Session) Perform(a keymap.Action) error {
	switch a {
	case keymap.Undo:
		s.Undo()
	case keymap.Redo:
		s.Redo()
	case keymap.Save:
		s.sched.Request(autosave.ReasonManual)
	case keymap.SelectAll:
		s.store.SelectAll()
	case keymap.ClearSelection:
		s.store.ClearSelection()
	case keymap.Copy:
		s.store.Copy()
	case keymap.Cut:
		s.store.Cut()
	case keymap.Paste:
		s.store.Paste()
	case keymap.Duplicate:
		s.DuplicateSelected()
	case keymap.DeleteSelected:
		s.DeleteSelected()
	case keymap.ToolSelect:
		return s.SetTool(domain.ToolSelect)
	case keymap.ToolText:
		return s.SetTool(domain.ToolText)
	case keymap.ToolImage:
		return s.SetTool(domain.ToolImage)
	case keymap.ToolShape:
		return s.SetTool(domain.ToolShape)
	case keymap.ToolFrame:
		return s.SetTool(domain.ToolFrame)
	case keymap.FitToScreen:
		s.mu.Lock()
		w, h := s.opts.ViewportW, s.opts.ViewportH
		s.mu.Unlock()
		s.store.FitToScreen(w, h)
	case keymap.ZoomToActual:
		s.store.ZoomToActual()
	case keymap.ZoomIn:
		s.store.ZoomIn()
	case keymap.ZoomOut:
		s.store.ZoomOut()
	case keymap.BringForward:
		s.store.BringForward(s.store.Selected()...)
	case keymap.SendBackward:
		s.store.SendBackward(s.store.Selected()...)
	case keymap.BringToFront:
		s.store.BringToFront(s.store.Selected()...)
	case keymap.SendToBack:
		s.store.SendToBack(s.store.Selected()...)
	case keymap.None:
	default:
		return domain.Validationf("unknown action %q", a)
	}
	return nil
}
