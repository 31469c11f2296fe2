/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"strings"

	"mockupstudio/internal/domain"
)

// SelectMode controls how Select combines ids with the current selection.
type SelectMode int

const (
	Replace SelectMode = iota
	Add
	Toggle
)

// ParseSelectMode accepts replace, add and toggle.
func ParseSelectMode(s string) (SelectMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "replace":
		return Replace, nil
	case "add":
		return Add, nil
	case "toggle":
		return Toggle, nil
	}
	return Replace, fmt.Errorf("unknown selection mode %q", s)
}

// Select updates the selection. Ids of missing elements are ignored so the
// selection stays a subset of the document. Selection is navigation state:
// it pushes no history and does not dirty the document.
func (s *Store) Select(ids []string, mode SelectMode) {
	s.mu.Lock()
	next := map[string]struct{}{}
	if mode != Replace {
		for id := range s.selection {
			next[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if s.indexLocked(id) < 0 {
			continue
		}
		if _, on := next[id]; on && mode == Toggle {
			delete(next, id)
			continue
		}
		next[id] = struct{}{}
	}
	s.setSelectionLocked(next)
}

// SelectAll selects every element.
func (s *Store) SelectAll() {
	s.mu.Lock()
	s.setSelectionLocked(toSet(elementIDs(s.elements)))
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.setSelectionLocked(map[string]struct{}{})
}

// setSelectionLocked installs next and releases the lock before notifying.
func (s *Store) setSelectionLocked(next map[string]struct{}) {
	if sameSet(next, s.selection) {
		s.mu.Unlock()
		return
	}
	s.selection = next
	ids := s.selectedLocked()
	rev := s.revision
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeSelection, IDs: ids, Revision: rev})
}

// Selected returns the selected ids in paint order.
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

// SelectedElements returns copies of the selected elements in paint order.
func (s *Store) SelectedElements() []domain.Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Element
	for _, el := range s.elements {
		if _, ok := s.selection[el.ID]; ok {
			out = append(out, el.Clone())
		}
	}
	return out
}

func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selection[id]
	return ok
}

func (s *Store) selectedLocked() []string {
	ids := make([]string, 0, len(s.selection))
	for _, el := range s.elements {
		if _, ok := s.selection[el.ID]; ok {
			ids = append(ids, el.ID)
		}
	}
	return ids
}

// pruneSelectionLocked drops ids no longer present in the document.
func (s *Store) pruneSelectionLocked() {
	for id := range s.selection {
		if s.indexLocked(id) < 0 {
			delete(s.selection, id)
		}
	}
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
