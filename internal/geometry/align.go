/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package geometry

import (
	"fmt"
	"sort"
	"strings"
)

// Edge is an alignment target.
type Edge string

const (
	EdgeLeft   Edge = "left"
	EdgeCenter Edge = "center" // horizontal center axis
	EdgeRight  Edge = "right"
	EdgeTop    Edge = "top"
	EdgeMiddle Edge = "middle" // vertical center axis
	EdgeBottom Edge = "bottom"
)

// ParseEdge accepts the edge names case-insensitively.
func ParseEdge(s string) (Edge, error) {
	e := Edge(strings.ToLower(strings.TrimSpace(s)))
	switch e {
	case EdgeLeft, EdgeCenter, EdgeRight, EdgeTop, EdgeMiddle, EdgeBottom:
		return e, nil
	}
	return "", fmt.Errorf("unknown alignment edge %q", s)
}

// Axis is a distribution direction.
type Axis string

const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// ParseAxis accepts the axis names case-insensitively.
func ParseAxis(s string) (Axis, error) {
	a := Axis(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case AxisHorizontal, AxisVertical:
		return a, nil
	}
	return "", fmt.Errorf("unknown distribution axis %q", s)
}

// MinAlign and MinDistribute are the smallest selections the operations act on.
const (
	MinAlign      = 2
	MinDistribute = 3
)

// Align returns a copy of rs with each rect moved onto the requested edge or
// center axis of their common bounding box. Only x changes for left, center and
// right; only y changes for top, middle and bottom. Fewer than MinAlign rects
// are returned unchanged.
func Align(rs []Rect, edge Edge) []Rect {
	out := append([]Rect(nil), rs...)
	if len(rs) < MinAlign {
		return out
	}
	box, _ := Bounds(rs)
	for i := range out {
		r := &out[i]
		switch edge {
		case EdgeLeft:
			r.X = box.X
		case EdgeCenter:
			r.X = box.CenterX() - r.W/2
		case EdgeRight:
			r.X = box.Right() - r.W
		case EdgeTop:
			r.Y = box.Y
		case EdgeMiddle:
			r.Y = box.CenterY() - r.H/2
		case EdgeBottom:
			r.Y = box.Bottom() - r.H
		}
	}
	return out
}

// Distribute returns a copy of rs with interior rects respaced along axis.
// Rects are ordered by their position on the axis (input order breaks ties);
// the first and last stay fixed as anchors. The step is
// (last.pos - (first.pos + first.size)) / (n - 1) and the i-th rect in axis
// order is placed at first.pos + i*step. Fewer than MinDistribute rects are
// returned unchanged. Results keep the input index order.
func Distribute(rs []Rect, axis Axis) []Rect {
	out := append([]Rect(nil), rs...)
	n := len(rs)
	if n < MinDistribute {
		return out
	}
	pos := func(r Rect) float64 {
		if axis == AxisVertical {
			return r.Y
		}
		return r.X
	}
	size := func(r Rect) float64 {
		if axis == AxisVertical {
			return r.H
		}
		return r.W
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return pos(rs[order[a]]) < pos(rs[order[b]]) })

	first, last := rs[order[0]], rs[order[n-1]]
	step := (pos(last) - (pos(first) + size(first))) / float64(n-1)
	for i := 1; i < n-1; i++ {
		idx := order[i]
		p := pos(first) + float64(i)*step
		if axis == AxisVertical {
			out[idx].Y = p
		} else {
			out[idx].X = p
		}
	}
	return out
}
