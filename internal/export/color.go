/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export renders a canvas payload to PDF, PNG and SVG. Renderers draw
// a wireframe of the mockup: shapes with their fill and stroke, text in a
// built-in font and images as labelled placeholders. Remote image sources are
// never fetched.
package export

import (
	"image/color"
	"strconv"
	"strings"
)

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	// placeholder fill for image elements
	imageFill = color.RGBA{R: 203, G: 213, B: 225, A: 255}
	guideRed  = color.RGBA{R: 255, A: 255}
)

// ParseColor reads #rgb, #rrggbb and #rrggbbaa. The second result is false
// for empty or unparseable input.
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(s) {
	case 3:
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]}) + "ff"
	case 6:
		s += "ff"
	case 8:
	default:
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, true
}

func colorOr(s string, def color.RGBA) color.RGBA {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return def
}

func hex(c color.RGBA) string {
	return "#" + strconv.FormatUint(uint64(c.R)<<16|uint64(c.G)<<8|uint64(c.B)|1<<24, 16)[1:]
}
