/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

import (
	"strings"

	"golang.org/x/image/font"
)

// Line is one laid out line.
type Line struct {
	Text  string
	Width float64
}

// TextBox is text broken into lines for a box width.
type TextBox struct {
	Lines      []Line
	Width      float64 // widest line
	LineHeight float64 // baseline to baseline
	Metrics    Metrics
}

// Height is the total height of all lines.
func (b TextBox) Height() float64 { return float64(len(b.Lines)) * b.LineHeight }

// Layout breaks text into lines no wider than maxWidth, splitting on spaces
// and hard line breaks. A word wider than maxWidth gets a line of its own.
// maxWidth <= 0 disables wrapping. lineHeight scales the face height; values
// <= 0 mean 1.
func Layout(p Provider, spec FontSpec, text string, maxWidth, lineHeight float64) TextBox {
	if p == nil {
		p = BasicProvider{}
	}
	if lineHeight <= 0 {
		lineHeight = 1
	}
	face, met := p.Resolve(spec)
	box := TextBox{Metrics: met, LineHeight: met.Height() * lineHeight}
	space := Advance(face, " ")
	for _, para := range strings.Split(text, "\n") {
		var cur []string
		var w float64
		flush := func() {
			line := Line{Text: strings.Join(cur, " "), Width: w}
			box.Lines = append(box.Lines, line)
			if w > box.Width {
				box.Width = w
			}
			cur, w = nil, 0
		}
		for _, word := range strings.Fields(para) {
			ww := Advance(face, word)
			if len(cur) > 0 && maxWidth > 0 && w+space+ww > maxWidth {
				flush()
			}
			if len(cur) > 0 {
				w += space
			}
			cur = append(cur, word)
			w += ww
		}
		flush()
	}
	return box
}

// Advance is the width of s in face, in pixels.
func Advance(face font.Face, s string) float64 {
	return float64(font.MeasureString(face, s)) / 64
}

// Measure returns the unwrapped width and the line height of text.
func Measure(p Provider, spec FontSpec, text string) (w, h float64) {
	b := Layout(p, spec, text, 0, 1)
	return b.Width, b.Height()
}
