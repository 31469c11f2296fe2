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

// ZOrder names a reordering operation.
type ZOrder string

const (
	BringForward ZOrder = "bring_forward"
	SendBackward ZOrder = "send_backward"
	BringToFront ZOrder = "bring_to_front"
	SendToBack   ZOrder = "send_to_back"
)

// Reorder moves the listed elements in the stacking order and renumbers every
// zIndex densely from 0. Untouched elements keep their relative order, and so
// do moved elements among themselves. An order that does not change pushes no
// history.
func (s *Store) Reorder(op ZOrder, ids []string) {
	_ = s.mutate(string(op), ChangeElements, func() ([]string, bool, error) {
		moving := toSet(ids)
		order := reorder(s.elements, moving, op)
		if order == nil {
			return nil, false, nil
		}
		for i := range order {
			order[i].ZIndex = i
		}
		s.elements = order
		return s.movedIDs(moving), true, nil
	})
}

func (s *Store) BringForward(ids ...string) { s.Reorder(BringForward, ids) }
func (s *Store) SendBackward(ids ...string) { s.Reorder(SendBackward, ids) }
func (s *Store) BringToFront(ids ...string) { s.Reorder(BringToFront, ids) }
func (s *Store) SendToBack(ids ...string)   { s.Reorder(SendToBack, ids) }

func (s *Store) movedIDs(set map[string]struct{}) []string {
	var ids []string
	for _, el := range s.elements {
		if _, ok := set[el.ID]; ok {
			ids = append(ids, el.ID)
		}
	}
	return ids
}

// reorder returns the new paint order, or nil when it equals the current one.
func reorder(cur []domain.Element, moving map[string]struct{}, op ZOrder) []domain.Element {
	in := func(el domain.Element) bool {
		_, ok := moving[el.ID]
		return ok
	}
	out := append([]domain.Element(nil), cur...)
	switch op {
	case BringToFront, SendToBack:
		var rest, picked []domain.Element
		for _, el := range cur {
			if in(el) {
				picked = append(picked, el)
			} else {
				rest = append(rest, el)
			}
		}
		if op == BringToFront {
			out = append(rest, picked...)
		} else {
			out = append(picked, rest...)
		}
	case BringForward:
		// walk from the top so a block of moving elements climbs together
		for i := len(out) - 2; i >= 0; i-- {
			if in(out[i]) && !in(out[i+1]) {
				out[i], out[i+1] = out[i+1], out[i]
			}
		}
	case SendBackward:
		for i := 1; i < len(out); i++ {
			if in(out[i]) && !in(out[i-1]) {
				out[i], out[i-1] = out[i-1], out[i]
			}
		}
	default:
		return nil
	}
	for i := range out {
		if out[i].ID != cur[i].ID {
			return out
		}
	}
	return nil
}
