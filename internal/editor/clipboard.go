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

import "mockupstudio/internal/domain"

// Copy puts copies of the selected elements on the clipboard and returns how
// many were copied. An empty selection leaves the clipboard unchanged.
func (s *Store) Copy() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf []domain.Element
	for _, el := range s.elements {
		if _, ok := s.selection[el.ID]; ok {
			buf = append(buf, el.Clone())
		}
	}
	if len(buf) == 0 {
		return 0
	}
	s.clipboard = buf
	return len(buf)
}

// Cut copies the selection and then deletes it as one history entry.
func (s *Store) Cut() int {
	if s.Copy() == 0 {
		return 0
	}
	return s.DeleteElements(s.Selected())
}

// Paste inserts offset clones of the clipboard on top of the stack, selects
// them and returns their ids. Repeated pastes keep stepping the offset.
func (s *Store) Paste() []string {
	var out []string
	_ = s.mutate("paste", ChangeElements, func() ([]string, bool, error) {
		if len(s.clipboard) == 0 {
			return nil, false, nil
		}
		out = s.insertClonesLocked(s.clipboard, s.offset)
		// the next paste lands one offset further
		for i := range s.clipboard {
			s.clipboard[i].X += s.offset
			s.clipboard[i].Y += s.offset
		}
		return out, true, nil
	})
	return out
}

// ClipboardLen reports how many elements are on the clipboard.
func (s *Store) ClipboardLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clipboard)
}
