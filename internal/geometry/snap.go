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

// Smart guides: snapping a rect that is being dragged against the edges and
// centers of the other elements and the canvas itself. Deterministic so the
// rendering layer and tests see the same guides.

import "math"

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance in canvas units at which snapping occurs.
	Threshold float64
	Edges     bool
	Centers   bool
}

// DefaultSnapOptions snaps to edges and centers within 6 units.
func DefaultSnapOptions() SnapOptions { return SnapOptions{Threshold: 6, Edges: true, Centers: true} }

// Anchor is a static reference rect. Higher Weight wins ties.
type Anchor struct {
	Rect   Rect
	Weight float64
}

type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// GuideLine describes a guide produced by a snap, for decoration by the
// rendering layer. Position is the x of a vertical guide or the y of a
// horizontal one, rounded to 3 places.
type GuideLine struct {
	Orientation Orientation
	Kind        string // "edge" or "center"
	Position    float64
	From, To    Pt
}

type candidate struct {
	delta float64
	dist  float64
	guide GuideLine
	found bool
}

func (c *candidate) consider(delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	if weight < 1 {
		weight = 1
	}
	if !c.found || dist/weight < c.dist {
		c.delta, c.dist, c.guide, c.found = delta, dist/weight, g, true
	}
}

// Snap moves the rect onto the nearest anchor feature within the threshold,
// independently in x and y, and returns the guides to draw.
func Snap(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	var bx, by candidate
	for _, a := range anchors {
		ar := a.Rect
		if opts.Edges {
			for _, pair := range [][2]float64{
				{moving.X, ar.X}, {moving.Right(), ar.Right()},
				{moving.X, ar.Right()}, {moving.Right(), ar.X},
			} {
				bx.consider(pair[0]-pair[1], opts.Threshold, a.Weight, verticalGuide(pair[1], moving, ar, "edge"))
			}
			for _, pair := range [][2]float64{
				{moving.Y, ar.Y}, {moving.Bottom(), ar.Bottom()},
				{moving.Y, ar.Bottom()}, {moving.Bottom(), ar.Y},
			} {
				by.consider(pair[0]-pair[1], opts.Threshold, a.Weight, horizontalGuide(pair[1], moving, ar, "edge"))
			}
		}
		if opts.Centers {
			bx.consider(moving.CenterX()-ar.CenterX(), opts.Threshold, a.Weight, verticalGuide(ar.CenterX(), moving, ar, "center"))
			by.consider(moving.CenterY()-ar.CenterY(), opts.Threshold, a.Weight, horizontalGuide(ar.CenterY(), moving, ar, "center"))
		}
	}

	snapped := moving
	var guides []GuideLine
	if bx.found {
		snapped.X = Round(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.found {
		snapped.Y = Round(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

func verticalGuide(x float64, a, b Rect, kind string) GuideLine {
	x = Round(x, 3)
	return GuideLine{
		Orientation: Vertical,
		Kind:        kind,
		Position:    x,
		From:        Pt{x, math.Min(a.Y, b.Y)},
		To:          Pt{x, math.Max(a.Bottom(), b.Bottom())},
	}
}

func horizontalGuide(y float64, a, b Rect, kind string) GuideLine {
	y = Round(y, 3)
	return GuideLine{
		Orientation: Horizontal,
		Kind:        kind,
		Position:    y,
		From:        Pt{math.Min(a.X, b.X), y},
		To:          Pt{math.Max(a.Right(), b.Right()), y},
	}
}
