/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor holds the in-memory state of one open mockup: the canvas,
// its elements, the selection and the undo history. Every mutation is applied
// under a single lock so observers never see a half-applied change.
package editor

import (
	"encoding/json"
	"iter"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/undo"
)

// Options configures a Store. Zero values select defaults.
type Options struct {
	History undo.Config
	// DuplicateOffset is added to x and y of duplicated and pasted elements.
	DuplicateOffset float64
	// NewID generates element ids; defaults to random UUIDs.
	NewID  func() string
	Now    func() time.Time
	Logger *slog.Logger
}

// DefaultDuplicateOffset shifts clones so they do not cover their source.
const DefaultDuplicateOffset = 10

// Store is the document store of an editing session.
type Store struct {
	mu sync.RWMutex

	log     *slog.Logger
	newID   func() string
	now     func() time.Time
	offset  float64
	history *undo.History

	canvas    domain.Canvas
	elements  []domain.Element // ascending by ZIndex
	selection map[string]struct{}
	clipboard []domain.Element
	tool      domain.Tool

	revision      uint64
	savedRevision uint64

	subMu  sync.Mutex
	subs   map[int]func(Change)
	nextID int
}

// NewStore returns an empty document on the default canvas.
func NewStore(opts Options) *Store {
	if opts.DuplicateOffset == 0 {
		opts.DuplicateOffset = DefaultDuplicateOffset
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		log:       opts.Logger,
		newID:     opts.NewID,
		now:       opts.Now,
		offset:    opts.DuplicateOffset,
		history:   undo.New(opts.History),
		canvas:    domain.DefaultCanvas(),
		selection: map[string]struct{}{},
		tool:      domain.ToolSelect,
		subs:      map[int]func(Change){},
	}
}

// state is the part of the document captured by history snapshots.
type state struct {
	Canvas   domain.Canvas    `json:"canvas"`
	Elements []domain.Element `json:"elements"`
}

// mutate runs fn under the write lock. When fn reports a change, the state
// captured before fn ran is pushed onto the history and the revision advances.
// fn must validate before touching state so a failed call changes nothing.
func (s *Store) mutate(label string, kind ChangeKind, fn func() ([]string, bool, error)) error {
	s.mu.Lock()
	before, encErr := s.captureLocked(label)
	ids, changed, err := fn()
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}
	if encErr != nil {
		s.log.Warn("history snapshot skipped", slog.String("op", label), slog.Any("err", encErr))
	} else {
		s.history.Push(before)
	}
	s.revision++
	rev := s.revision
	s.mu.Unlock()
	s.log.Debug("document mutated", slog.String("op", label), slog.Int("elements", len(ids)), slog.Uint64("rev", rev))
	s.notify(Change{Kind: kind, Op: label, IDs: ids, Revision: rev})
	return nil
}

func (s *Store) captureLocked(label string) (undo.Snapshot, error) {
	blob, err := json.Marshal(state{Canvas: s.canvas, Elements: s.elements})
	if err != nil {
		return undo.Snapshot{}, err
	}
	return undo.Snapshot{Blob: blob, Label: label, TS: s.now()}, nil
}

func (s *Store) indexLocked(id string) int {
	for i := range s.elements {
		if s.elements[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) maxZLocked() int {
	if len(s.elements) == 0 {
		return -1
	}
	return s.elements[len(s.elements)-1].ZIndex
}

// freshIDLocked returns a generated id not used by any element.
func (s *Store) freshIDLocked(taken map[string]struct{}) string {
	for {
		id := s.newID()
		if _, dup := taken[id]; dup {
			continue
		}
		if s.indexLocked(id) >= 0 {
			continue
		}
		if taken != nil {
			taken[id] = struct{}{}
		}
		return id
	}
}

func normalize(el *domain.Element) {
	el.Opacity = domain.ClampOpacity(el.Opacity)
	if el.ScaleX == 0 {
		el.ScaleX = 1
	}
	if el.ScaleY == 0 {
		el.ScaleY = 1
	}
	if len(el.Style) == 0 {
		el.Style = nil
	}
	if img, ok := el.Data.(domain.ImageData); ok && img.Filters != nil && len(img.Filters) == 0 {
		img.Filters = nil
		el.Data = img
	}
}

// AddElement inserts a copy of el with a fresh id on top of the stack and
// returns the id. Any id or zIndex carried by el is ignored.
func (s *Store) AddElement(el domain.Element) (string, error) {
	if err := el.Validate(); err != nil {
		return "", err
	}
	var id string
	err := s.mutate("add_element", ChangeElements, func() ([]string, bool, error) {
		n := el.Clone()
		normalize(&n)
		n.ID = s.freshIDLocked(nil)
		n.ZIndex = s.maxZLocked() + 1
		s.elements = append(s.elements, n)
		id = n.ID
		return []string{id}, true, nil
	})
	return id, err
}

// Patch lists the fields UpdateElement may change. Nil fields are left alone.
// Style entries are merged; an empty value removes the key.
type Patch struct {
	X, Y, Width, Height      *float64
	Rotation, ScaleX, ScaleY *float64
	Opacity                  *float64
	Visible, Locked          *bool
	Style                    map[string]string
	// Data replaces the payload; it must keep the element's kind.
	Data domain.ElementData
}

// F and B build Patch field values.
func F(v float64) *float64 { return &v }
func B(v bool) *bool       { return &v }

func (p Patch) apply(el *domain.Element) error {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&el.X, p.X)
	set(&el.Y, p.Y)
	set(&el.Width, p.Width)
	set(&el.Height, p.Height)
	set(&el.Rotation, p.Rotation)
	set(&el.ScaleX, p.ScaleX)
	set(&el.ScaleY, p.ScaleY)
	if p.Opacity != nil {
		el.Opacity = domain.ClampOpacity(*p.Opacity)
	}
	if p.Visible != nil {
		el.Visible = *p.Visible
	}
	if p.Locked != nil {
		el.Locked = *p.Locked
	}
	for k, v := range p.Style {
		if el.Style == nil {
			el.Style = map[string]string{}
		}
		if v == "" {
			delete(el.Style, k)
		} else {
			el.Style[k] = v
		}
	}
	if len(el.Style) == 0 {
		el.Style = nil
	}
	if p.Data != nil {
		if p.Data.Kind() != el.Kind() {
			return domain.Validationf("cannot change element %q from %s to %s", el.ID, el.Kind(), p.Data.Kind())
		}
		el.Data = domain.Element{Data: p.Data}.Clone().Data
	}
	return el.Validate()
}

// UpdateElement merges p into the element with the given id. A missing id is
// a silent no-op; stale ids from late UI events are expected.
func (s *Store) UpdateElement(id string, p Patch) error {
	return s.mutate("update_element", ChangeElements, func() ([]string, bool, error) {
		i := s.indexLocked(id)
		if i < 0 {
			s.log.Debug("update of missing element ignored", slog.String("id", id))
			return nil, false, nil
		}
		next := s.elements[i].Clone()
		if err := p.apply(&next); err != nil {
			return nil, false, err
		}
		if reflect.DeepEqual(next, s.elements[i]) {
			return nil, false, nil
		}
		s.elements[i] = next
		return []string{id}, true, nil
	})
}

// DeleteElements removes the listed elements and prunes them from the
// selection in the same step. It returns the number removed.
func (s *Store) DeleteElements(ids []string) int {
	removed := 0
	_ = s.mutate("delete_elements", ChangeElements, func() ([]string, bool, error) {
		drop := toSet(ids)
		kept := s.elements[:0:0]
		var gone []string
		for _, el := range s.elements {
			if _, ok := drop[el.ID]; ok {
				gone = append(gone, el.ID)
				delete(s.selection, el.ID)
				continue
			}
			kept = append(kept, el)
		}
		if len(gone) == 0 {
			return nil, false, nil
		}
		s.elements = kept
		removed = len(gone)
		return gone, true, nil
	})
	return removed
}

// DuplicateElements clones the listed elements in paint order with fresh ids,
// the duplicate offset and new top zIndex values. The clones replace the
// selection. Missing ids are skipped.
func (s *Store) DuplicateElements(ids []string) []string {
	var out []string
	_ = s.mutate("duplicate_elements", ChangeElements, func() ([]string, bool, error) {
		want := toSet(ids)
		var src []domain.Element
		for _, el := range s.elements {
			if _, ok := want[el.ID]; ok {
				src = append(src, el)
			}
		}
		if len(src) == 0 {
			return nil, false, nil
		}
		out = s.insertClonesLocked(src, s.offset)
		return out, true, nil
	})
	return out
}

// insertClonesLocked appends offset clones of src on top and selects them.
func (s *Store) insertClonesLocked(src []domain.Element, offset float64) []string {
	z := s.maxZLocked()
	taken := map[string]struct{}{}
	ids := make([]string, 0, len(src))
	for _, el := range src {
		c := el.Clone()
		c.ID = s.freshIDLocked(taken)
		c.X += offset
		c.Y += offset
		z++
		c.ZIndex = z
		s.elements = append(s.elements, c)
		ids = append(ids, c.ID)
	}
	s.selection = toSet(ids)
	return ids
}

func validSize(w, h float64) bool {
	return w > 0 && h > 0 && !math.IsInf(w, 0) && !math.IsInf(h, 0)
}

// SetCanvasSize resizes the canvas; both dimensions must be positive.
func (s *Store) SetCanvasSize(width, height float64) error {
	if !validSize(width, height) {
		return domain.Validationf("invalid canvas size %gx%g", width, height)
	}
	return s.mutate("set_canvas_size", ChangeCanvas, func() ([]string, bool, error) {
		if s.canvas.Width == width && s.canvas.Height == height {
			return nil, false, nil
		}
		s.canvas.Width, s.canvas.Height = width, height
		return nil, true, nil
	})
}

// SetBackgroundColor sets the canvas background.
func (s *Store) SetBackgroundColor(color string) error {
	if color == "" {
		return domain.Validationf("background color must not be empty")
	}
	return s.mutate("set_background", ChangeCanvas, func() ([]string, bool, error) {
		if s.canvas.Background == color {
			return nil, false, nil
		}
		s.canvas.Background = color
		return nil, true, nil
	})
}

// ImportCanvas replaces all elements with copies of els. Elements keep their
// relative zIndex order and are renumbered densely; empty or duplicate ids are
// regenerated. The selection is cleared.
func (s *Store) ImportCanvas(els []domain.Element) error {
	for _, el := range els {
		if err := el.Validate(); err != nil {
			return err
		}
	}
	return s.mutate("import_canvas", ChangeElements, func() ([]string, bool, error) {
		s.elements = s.prepareLocked(els)
		s.selection = map[string]struct{}{}
		return elementIDs(s.elements), true, nil
	})
}

// prepareLocked clones, sorts and renumbers els for installation as the
// element list, regenerating empty and duplicate ids.
func (s *Store) prepareLocked(els []domain.Element) []domain.Element {
	out := make([]domain.Element, len(els))
	for i, el := range els {
		out[i] = el.Clone()
		normalize(&out[i])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	seen := map[string]struct{}{}
	for i := range out {
		out[i].ZIndex = i
		if _, dup := seen[out[i].ID]; out[i].ID == "" || dup {
			for {
				id := s.newID()
				if _, used := seen[id]; !used && !containsID(out, id) {
					out[i].ID = id
					break
				}
			}
		}
		seen[out[i].ID] = struct{}{}
	}
	return out
}

// ExportCanvas yields the elements ascending by zIndex. The sequence is lazy:
// state is read when iteration starts, and each range over it starts afresh.
func (s *Store) ExportCanvas() iter.Seq[domain.Element] {
	return func(yield func(domain.Element) bool) {
		s.mu.RLock()
		els := make([]domain.Element, len(s.elements))
		for i, el := range s.elements {
			els[i] = el.Clone()
		}
		s.mu.RUnlock()
		for _, el := range els {
			if !yield(el) {
				return
			}
		}
	}
}

// Elements returns a copy of all elements ascending by zIndex.
func (s *Store) Elements() []domain.Element {
	var out []domain.Element
	for el := range s.ExportCanvas() {
		out = append(out, el)
	}
	return out
}

// Element returns a copy of the element with the given id.
func (s *Store) Element(id string) (domain.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.elements[i].Clone(), true
	}
	return domain.Element{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.elements)
}

func (s *Store) Canvas() domain.Canvas {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canvas
}

// Revision increases with every document mutation, including undo and redo.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Dirty reports whether the document changed since the last MarkSaved.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision != s.savedRevision
}

// Checkpoint returns the serializable document together with the revision it
// reflects. Pass the revision to MarkSaved once the payload is persisted.
func (s *Store) Checkpoint() (domain.CanvasData, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	els := make([]domain.Element, len(s.elements))
	for i, el := range s.elements {
		els[i] = el.Clone()
	}
	return domain.CanvasData{
		Canvas:    s.canvas,
		Elements:  els,
		Version:   domain.FormatVersion,
		Timestamp: s.now().UTC(),
	}, s.revision
}

// MarkSaved records that the document at revision rev is persisted. Edits
// made after the checkpoint keep the document dirty.
func (s *Store) MarkSaved(rev uint64) {
	s.mu.Lock()
	if rev > s.revision || rev < s.savedRevision {
		s.mu.Unlock()
		return
	}
	s.savedRevision = rev
	dirty := s.revision != s.savedRevision
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSaved, Revision: rev, Dirty: dirty})
}

// Load installs data as a clean document and clears the selection and history.
func (s *Store) Load(data domain.CanvasData) error {
	if !validSize(data.Canvas.Width, data.Canvas.Height) {
		return domain.Validationf("invalid canvas size %gx%g", data.Canvas.Width, data.Canvas.Height)
	}
	for _, el := range data.Elements {
		if err := el.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.canvas = data.Canvas
	if s.canvas.Zoom <= 0 {
		s.canvas.Zoom = 1
	}
	s.elements = s.prepareLocked(data.Elements)
	s.selection = map[string]struct{}{}
	s.history.Clear()
	s.revision++
	s.savedRevision = s.revision
	rev := s.revision
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeLoad, Revision: rev})
	return nil
}

func toSet(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func elementIDs(els []domain.Element) []string {
	ids := make([]string, len(els))
	for i, el := range els {
		ids[i] = el.ID
	}
	return ids
}

func containsID(els []domain.Element, id string) bool {
	for _, el := range els {
		if el.ID == id {
			return true
		}
	}
	return false
}
