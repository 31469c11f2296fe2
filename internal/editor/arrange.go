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
	"math"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/geometry"
)

func rectOf(el domain.Element) geometry.Rect {
	return geometry.R(el.X, el.Y, el.Width, el.Height)
}

// AlignElements aligns the listed elements to an edge or center axis of their
// common bounding box. Fewer than two elements is a no-op.
func (s *Store) AlignElements(ids []string, edge geometry.Edge) bool {
	return s.arrange("align_"+string(edge), ids, func(rs []geometry.Rect) []geometry.Rect {
		if len(rs) < geometry.MinAlign {
			return nil
		}
		return geometry.Align(rs, edge)
	})
}

// DistributeElements spaces the listed elements evenly along axis, keeping
// the outermost two fixed. Fewer than three elements is a no-op.
func (s *Store) DistributeElements(ids []string, axis geometry.Axis) bool {
	return s.arrange("distribute_"+string(axis), ids, func(rs []geometry.Rect) []geometry.Rect {
		if len(rs) < geometry.MinDistribute {
			return nil
		}
		return geometry.Distribute(rs, axis)
	})
}

// MoveElements offsets the listed elements by dx, dy as one history entry.
// Locked elements stay put.
func (s *Store) MoveElements(ids []string, dx, dy float64) bool {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return false
	}
	want := toSet(ids)
	var changed bool
	_ = s.mutate("move_elements", ChangeElements, func() ([]string, bool, error) {
		var moved []string
		for i := range s.elements {
			el := &s.elements[i]
			if _, ok := want[el.ID]; !ok || el.Locked || (dx == 0 && dy == 0) {
				continue
			}
			el.X += dx
			el.Y += dy
			moved = append(moved, el.ID)
		}
		changed = len(moved) > 0
		return moved, changed, nil
	})
	return changed
}

// arrange applies fn to the boxes of the listed elements in paint order and
// writes back the positions it returns. A nil result means no-op.
func (s *Store) arrange(op string, ids []string, fn func([]geometry.Rect) []geometry.Rect) bool {
	want := toSet(ids)
	var changed bool
	_ = s.mutate(op, ChangeElements, func() ([]string, bool, error) {
		var idx []int
		var rs []geometry.Rect
		for i, el := range s.elements {
			if _, ok := want[el.ID]; ok {
				idx = append(idx, i)
				rs = append(rs, rectOf(el))
			}
		}
		out := fn(rs)
		if out == nil {
			return nil, false, nil
		}
		var moved []string
		for k, i := range idx {
			el := &s.elements[i]
			if el.X != out[k].X || el.Y != out[k].Y {
				el.X, el.Y = out[k].X, out[k].Y
				moved = append(moved, el.ID)
			}
		}
		changed = len(moved) > 0
		return moved, changed, nil
	})
	return changed
}

// SnapCandidates returns the anchors a dragged element can snap to: the
// canvas bounds and every other visible element.
func (s *Store) SnapCandidates(id string) []geometry.Anchor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	anchors := []geometry.Anchor{{Rect: geometry.R(0, 0, s.canvas.Width, s.canvas.Height), Weight: 2}}
	for _, el := range s.elements {
		if el.ID == id || !el.Visible {
			continue
		}
		anchors = append(anchors, geometry.Anchor{Rect: rectOf(el), Weight: 1})
	}
	return anchors
}

// SnapPosition proposes where element id would land if dragged to x, y,
// snapped to nearby guides. It does not move the element.
func (s *Store) SnapPosition(id string, x, y float64, opts geometry.SnapOptions) (geometry.Rect, []geometry.GuideLine, bool) {
	el, ok := s.Element(id)
	if !ok {
		return geometry.Rect{}, nil, false
	}
	r, guides := geometry.Snap(geometry.R(x, y, el.Width, el.Height), s.SnapCandidates(id), opts)
	return r, guides, true
}

// ElementAt returns the topmost visible element under canvas point x, y,
// honoring rotation and scale.
func (s *Store) ElementAt(x, y float64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.elements) - 1; i >= 0; i-- {
		el := s.elements[i]
		if !el.Visible {
			continue
		}
		r := rectOf(el)
		m := geometry.ElementTransform(r, el.Rotation, el.ScaleX, el.ScaleY)
		if geometry.HitTransformed(r, m, geometry.Pt{X: x, Y: y}) {
			return el.ID, true
		}
	}
	return "", false
}
