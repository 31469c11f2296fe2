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

// ChangeKind classifies a Change.
type ChangeKind string

const (
	ChangeElements  ChangeKind = "elements"
	ChangeCanvas    ChangeKind = "canvas"
	ChangeSelection ChangeKind = "selection"
	ChangeViewport  ChangeKind = "viewport"
	ChangeTool      ChangeKind = "tool"
	ChangeHistory   ChangeKind = "history"
	ChangeLoad      ChangeKind = "load"
	ChangeSaved     ChangeKind = "saved"
)

// Change describes a completed state change. Revision is the document
// revision after the change; Dirty is only meaningful for ChangeSaved.
type Change struct {
	Kind     ChangeKind
	Op       string
	IDs      []string
	Revision uint64
	Dirty    bool
}

// Subscribe registers fn to be called synchronously after every change, in
// the goroutine that made it. The returned func unregisters fn.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}
