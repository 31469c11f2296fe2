/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"math"
	"strings"

	"mockupstudio/internal/domain"
)

// SVGOptions controls SVG export. Scale multiplies the width and height
// attributes; the viewBox stays in canvas units.
type SVGOptions struct {
	Scale         float64
	IncludeGuides bool
}

// WriteSVG renders data as a standalone SVG document.
func WriteSVG(w io.Writer, data domain.CanvasData, opt SVGOptions) error {
	c := data.Canvas
	if !(c.Width > 0 && c.Height > 0) {
		return domain.Validationf("invalid canvas size %gx%g", c.Width, c.Height)
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"0 0 %g %g\">\n",
		int(math.Round(c.Width*scale)), int(math.Round(c.Height*scale)), c.Width, c.Height)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"%s\"/>\n", c.Width, c.Height, hex(colorOr(c.Background, white)))

	for _, el := range paintOrder(data.Elements) {
		attrs := fmt.Sprintf(" data-id=\"%s\"", esc(el.ID))
		if o := domain.ClampOpacity(el.Opacity); o < 1 {
			attrs += fmt.Sprintf(" opacity=\"%g\"", o)
		}
		if t := svgTransform(el); t != "" {
			attrs += fmt.Sprintf(" transform=\"%s\"", t)
		}
		wf("  <g%s>\n", attrs)
		switch d := el.Data.(type) {
		case domain.ShapeData:
			paint := svgPaint(d)
			switch d.Shape {
			case domain.ShapeEllipse:
				wf("    <ellipse cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\"%s/>\n", el.X+el.Width/2, el.Y+el.Height/2, el.Width/2, el.Height/2, paint)
			case domain.ShapeTriangle:
				wf("    <polygon points=\"%g,%g %g,%g %g,%g\"%s/>\n", el.X+el.Width/2, el.Y, el.X+el.Width, el.Y+el.Height, el.X, el.Y+el.Height, paint)
			case domain.ShapeLine:
				wf("    <line x1=\"%g\" y1=\"%g\" x2=\"%g\" y2=\"%g\"%s/>\n", el.X, el.Y, el.X+el.Width, el.Y+el.Height, paint)
			default:
				wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" rx=\"%g\"%s/>\n", el.X, el.Y, el.Width, el.Height, d.CornerRadius, paint)
			}
		case domain.ImageData:
			if strings.HasPrefix(d.Source, "data:image/") || strings.HasPrefix(d.Source, "http") {
				wf("    <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" href=\"%s\" preserveAspectRatio=\"%s\"/>\n",
					el.X, el.Y, el.Width, el.Height, esc(d.Source), aspectFor(d.Fit))
			} else {
				wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\" stroke=\"#000000\"/>\n", el.X, el.Y, el.Width, el.Height, hex(imageFill))
			}
		case domain.TextData:
			size := d.FontSize
			if size <= 0 {
				size = 16
			}
			lh := d.LineHeight
			if lh <= 0 {
				lh = 1.2
			}
			x, anchor := el.X, "start"
			switch d.Align {
			case "center":
				x, anchor = el.X+el.Width/2, "middle"
			case "right":
				x, anchor = el.X+el.Width, "end"
			}
			family := d.FontFamily
			if family == "" {
				family = "sans-serif"
			}
			weight := d.FontWeight
			if weight <= 0 {
				weight = 400
			}
			wf("    <text font-family=\"%s\" font-size=\"%g\" font-weight=\"%d\" fill=\"%s\" text-anchor=\"%s\">\n",
				esc(family), size, weight, hex(colorOr(d.Color, black)), anchor)
			for i, line := range strings.Split(d.Content, "\n") {
				wf("      <tspan x=\"%g\" y=\"%g\">%s</tspan>\n", x, el.Y+size+float64(i)*size*lh, esc(line))
			}
			wf("    </text>\n")
		}
		if opt.IncludeGuides {
			wf("    <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"0.5\"/>\n", el.X, el.Y, el.Width, el.Height, hex(guideRed))
		}
		wf("  </g>\n")
	}
	if opt.IncludeGuides {
		wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"none\" stroke=\"%s\" stroke-width=\"1\"/>\n", c.Width, c.Height, hex(guideRed))
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func svgTransform(el domain.Element) string {
	cx, cy := el.X+el.Width/2, el.Y+el.Height/2
	var parts []string
	if el.Rotation != 0 {
		parts = append(parts, fmt.Sprintf("rotate(%g %g %g)", el.Rotation, cx, cy))
	}
	if el.ScaleX != 0 && el.ScaleY != 0 && (el.ScaleX != 1 || el.ScaleY != 1) {
		parts = append(parts, fmt.Sprintf("translate(%g %g) scale(%g %g) translate(%g %g)", cx, cy, el.ScaleX, el.ScaleY, -cx, -cy))
	}
	return strings.Join(parts, " ")
}

func svgPaint(d domain.ShapeData) string {
	fill := "none"
	if c, ok := ParseColor(d.Fill); ok && d.Shape != domain.ShapeFrame && d.Shape != domain.ShapeLine {
		fill = hex(c)
	}
	stroke, width := "none", d.StrokeWidth
	if c, ok := ParseColor(d.Stroke); ok {
		stroke = hex(c)
	}
	if d.Shape == domain.ShapeFrame || d.Shape == domain.ShapeLine {
		if stroke == "none" {
			stroke = hex(black)
		}
		if width <= 0 {
			width = 1
			if d.Shape == domain.ShapeFrame {
				width = 12
			}
		}
	}
	if stroke == "none" || width <= 0 {
		return fmt.Sprintf(" fill=\"%s\"", fill)
	}
	return fmt.Sprintf(" fill=\"%s\" stroke=\"%s\" stroke-width=\"%g\"", fill, stroke, width)
}

func aspectFor(fit domain.ImageFit) string {
	switch fit {
	case domain.FitContain:
		return "xMidYMid meet"
	case domain.FitFill:
		return "none"
	default:
		return "xMidYMid slice"
	}
}

func esc(s string) string { return html.EscapeString(s) }
