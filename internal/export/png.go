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
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/geometry"
	"mockupstudio/internal/textlayout"
)

// fonts resolves text faces for raster output.
var fonts textlayout.Provider = textlayout.Default()

// MaxRasterPixels bounds the size of a rendered image.
const MaxRasterPixels = 40_000_000

// Render rasterizes data at scale pixels per canvas unit.
func Render(data domain.CanvasData, scale float64) (*image.RGBA, error) {
	c := data.Canvas
	if !(c.Width > 0 && c.Height > 0) {
		return nil, domain.Validationf("invalid canvas size %gx%g", c.Width, c.Height)
	}
	if scale <= 0 {
		scale = 1
	}
	pw := int(math.Ceil(c.Width * scale))
	ph := int(math.Ceil(c.Height * scale))
	if pw*ph > MaxRasterPixels {
		return nil, domain.Validationf("render of %dx%d pixels exceeds the limit", pw, ph)
	}
	img := image.NewRGBA(image.Rect(0, 0, pw, ph))
	xdraw.Draw(img, img.Bounds(), &image.Uniform{C: colorOr(c.Background, white)}, image.Point{}, xdraw.Src)
	for _, el := range paintOrder(data.Elements) {
		rasterElement(img, el, scale)
	}
	return img, nil
}

// hitFunc reports whether a point in element-local canvas units is painted.
type hitFunc func(p geometry.Pt) bool

func rasterElement(img *image.RGBA, el domain.Element, scale float64) {
	box := geometry.R(el.X, el.Y, el.Width, el.Height)
	m := geometry.ElementTransform(box, el.Rotation, el.ScaleX, el.ScaleY)
	inv, ok := m.Invert()
	if !ok {
		return
	}
	alpha := domain.ClampOpacity(el.Opacity)
	paint := func(col color.RGBA, pad float64, hit hitFunc) {
		b := geometry.TransformedBounds(box, m)
		x0 := int(math.Floor((b.X - pad) * scale))
		y0 := int(math.Floor((b.Y - pad) * scale))
		x1 := int(math.Ceil((b.Right() + pad) * scale))
		y1 := int(math.Ceil((b.Bottom() + pad) * scale))
		r := image.Rect(x0, y0, x1, y1).Intersect(img.Bounds())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				p := inv.Apply(geometry.Pt{X: (float64(x) + 0.5) / scale, Y: (float64(y) + 0.5) / scale})
				if hit(p) {
					blend(img, x, y, col, alpha)
				}
			}
		}
	}

	switch d := el.Data.(type) {
	case domain.ShapeData:
		fill, hasFill := ParseColor(d.Fill)
		stroke, hasStroke := ParseColor(d.Stroke)
		width := d.StrokeWidth
		switch d.Shape {
		case domain.ShapeFrame, domain.ShapeLine:
			hasFill = false
			if !hasStroke {
				stroke, hasStroke = black, true
			}
			if width <= 0 {
				width = 1
				if d.Shape == domain.ShapeFrame {
					width = 12
				}
			}
		}
		inside := shapeHit(d.Shape, box)
		if hasFill && d.Shape != domain.ShapeLine {
			paint(fill, 0, inside)
		}
		if hasStroke && width > 0 {
			paint(stroke, width, strokeHit(d.Shape, box, width))
		}
	case domain.ImageData:
		paint(imageFill, 0, box.Contains)
		paint(black, 1, strokeHit(domain.ShapeRect, box, 1))
	case domain.TextData:
		drawText(img, el, d, scale, alpha)
	}
}

func shapeHit(kind domain.ShapeKind, r geometry.Rect) hitFunc {
	switch kind {
	case domain.ShapeEllipse:
		return func(p geometry.Pt) bool {
			if r.W == 0 || r.H == 0 {
				return false
			}
			dx := (p.X - r.CenterX()) / (r.W / 2)
			dy := (p.Y - r.CenterY()) / (r.H / 2)
			return dx*dx+dy*dy <= 1
		}
	case domain.ShapeTriangle:
		a := geometry.Pt{X: r.CenterX(), Y: r.Y}
		b := geometry.Pt{X: r.Right(), Y: r.Bottom()}
		c := geometry.Pt{X: r.X, Y: r.Bottom()}
		return func(p geometry.Pt) bool {
			d1, d2, d3 := cross(a, b, p), cross(b, c, p), cross(c, a, p)
			neg := d1 < 0 || d2 < 0 || d3 < 0
			pos := d1 > 0 || d2 > 0 || d3 > 0
			return !(neg && pos)
		}
	default:
		return r.Contains
	}
}

// strokeHit paints a band of width w centred on the outline.
func strokeHit(kind domain.ShapeKind, r geometry.Rect, w float64) hitFunc {
	half := w / 2
	switch kind {
	case domain.ShapeLine:
		a := geometry.Pt{X: r.X, Y: r.Y}
		b := geometry.Pt{X: r.Right(), Y: r.Bottom()}
		return func(p geometry.Pt) bool { return segmentDist(a, b, p) <= half }
	case domain.ShapeEllipse, domain.ShapeTriangle:
		outer := shapeHit(kind, geometry.R(r.X-half, r.Y-half, r.W+w, r.H+w))
		inner := shapeHit(kind, geometry.R(r.X+half, r.Y+half, r.W-w, r.H-w))
		return func(p geometry.Pt) bool { return outer(p) && !inner(p) }
	default:
		outer := geometry.R(r.X-half, r.Y-half, r.W+w, r.H+w)
		inner := geometry.R(r.X+half, r.Y+half, r.W-w, r.H-w)
		return func(p geometry.Pt) bool {
			return outer.Contains(p) && (inner.W <= 0 || inner.H <= 0 || !inner.Contains(p))
		}
	}
}

func cross(a, b, p geometry.Pt) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
}

func segmentDist(a, b, p geometry.Pt) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := math.Max(0, math.Min(1, ((p.X-a.X)*dx+(p.Y-a.Y)*dy)/l2))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func blend(img *image.RGBA, x, y int, c color.RGBA, opacity float64) {
	a := float64(c.A) / 255 * opacity
	if a <= 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	mix := func(s, d uint8) uint8 { return uint8(math.Round(float64(s)*a + float64(d)*(1-a))) }
	img.SetRGBA(x, y, color.RGBA{
		R: mix(c.R, dst.R),
		G: mix(c.G, dst.G),
		B: mix(c.B, dst.B),
		A: uint8(math.Round(255*a + float64(dst.A)*(1-a))),
	})
}

// drawText word-wraps the content to the element width in the closest
// available face. Rotation is ignored.
func drawText(img *image.RGBA, el domain.Element, d domain.TextData, scale, opacity float64) {
	col := colorOr(d.Color, black)
	col.A = uint8(math.Round(float64(col.A) * opacity))
	spec := textlayout.FontSpec{Family: d.FontFamily, Size: d.FontSize * scale, Weight: d.FontWeight}
	maxW := el.Width * scale
	box := textlayout.Layout(fonts, spec, d.Content, maxW, d.LineHeight)
	face, _ := fonts.Resolve(spec)
	dr := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face}
	for i, line := range box.Lines {
		x := el.X * scale
		if line.Width < maxW {
			switch d.Align {
			case "center":
				x += (maxW - line.Width) / 2
			case "right":
				x += maxW - line.Width
			}
		}
		y := el.Y*scale + box.Metrics.Ascent + float64(i)*box.LineHeight
		dr.Dot = fixed.P(int(math.Round(x)), int(math.Round(y)))
		dr.DrawString(line.Text)
	}
}

// EncodePNG renders data and encodes it.
func EncodePNG(data domain.CanvasData, scale float64) ([]byte, error) {
	img, err := Render(data, scale)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail renders data to fit within maxW x maxH pixels keeping the aspect
// ratio. The canvas is rasterized at twice the target size and downsampled.
func Thumbnail(data domain.CanvasData, maxW, maxH int) ([]byte, error) {
	c := data.Canvas
	if maxW <= 0 || maxH <= 0 {
		return nil, domain.Validationf("invalid thumbnail size %dx%d", maxW, maxH)
	}
	if !(c.Width > 0 && c.Height > 0) {
		return nil, domain.Validationf("invalid canvas size %gx%g", c.Width, c.Height)
	}
	fit := math.Min(float64(maxW)/c.Width, float64(maxH)/c.Height)
	src, err := Render(data, math.Min(1, 2*fit))
	if err != nil {
		return nil, err
	}
	w := max(1, int(math.Round(c.Width*fit)))
	h := max(1, int(math.Round(c.Height*fit)))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportPNG writes a rendering of data to path.
func ExportPNG(path string, data domain.CanvasData, scale float64) error {
	b, err := EncodePNG(data, scale)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
