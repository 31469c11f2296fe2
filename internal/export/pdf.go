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
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/jung-kurt/gofpdf"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/version"
)

// PDFOptions controls PDF export. One canvas unit maps to one point.
type PDFOptions struct {
	Title string
	// IncludeGuides draws the canvas border and each element's box as hairlines.
	IncludeGuides bool
}

// paintOrder returns the visible elements sorted by z-index.
func paintOrder(els []domain.Element) []domain.Element {
	out := make([]domain.Element, 0, len(els))
	for _, el := range els {
		if el.Visible && el.Data != nil {
			out = append(out, el)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ZIndex < out[j].ZIndex })
	return out
}

// WritePDF renders data as a single-page PDF.
func WritePDF(w io.Writer, data domain.CanvasData, opt PDFOptions) error {
	c := data.Canvas
	if !(c.Width > 0 && c.Height > 0) {
		return domain.Validationf("invalid canvas size %gx%g", c.Width, c.Height)
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: c.Width, Ht: c.Height},
	})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("mockupstudio "+version.String(), true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	setFill(pdf, colorOr(c.Background, white))
	pdf.Rect(0, 0, c.Width, c.Height, "F")

	for _, el := range paintOrder(data.Elements) {
		pdf.TransformBegin()
		if el.Rotation != 0 {
			// gofpdf rotates counter-clockwise
			pdf.TransformRotate(-el.Rotation, el.X+el.Width/2, el.Y+el.Height/2)
		}
		if el.ScaleX != 0 && el.ScaleY != 0 && (el.ScaleX != 1 || el.ScaleY != 1) {
			pdf.TransformScale(el.ScaleX*100, el.ScaleY*100, el.X+el.Width/2, el.Y+el.Height/2)
		}
		pdf.SetAlpha(domain.ClampOpacity(el.Opacity), "Normal")
		drawPDFElement(pdf, el, tr)
		pdf.SetAlpha(1, "Normal")
		if opt.IncludeGuides {
			setDraw(pdf, guideRed)
			pdf.SetLineWidth(0.25)
			pdf.Rect(el.X, el.Y, el.Width, el.Height, "D")
		}
		pdf.TransformEnd()
	}
	if opt.IncludeGuides {
		setDraw(pdf, guideRed)
		pdf.SetLineWidth(0.5)
		pdf.Rect(0, 0, c.Width, c.Height, "D")
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return pdf.Output(w)
}

func drawPDFElement(pdf *gofpdf.Fpdf, el domain.Element, tr func(string) string) {
	switch d := el.Data.(type) {
	case domain.ShapeData:
		style := ""
		if fill, ok := ParseColor(d.Fill); ok {
			setFill(pdf, fill)
			style += "F"
		}
		stroke, hasStroke := ParseColor(d.Stroke)
		width := d.StrokeWidth
		if d.Shape == domain.ShapeFrame {
			if !hasStroke {
				stroke, hasStroke = black, true
			}
			if width <= 0 {
				width = 12
			}
			style = ""
		}
		if (hasStroke && width > 0) || d.Shape == domain.ShapeLine {
			if !hasStroke {
				stroke = black
			}
			if width <= 0 {
				width = 1
			}
			setDraw(pdf, stroke)
			pdf.SetLineWidth(width)
			style += "D"
		}
		if style == "" {
			return
		}
		switch d.Shape {
		case domain.ShapeEllipse:
			pdf.Ellipse(el.X+el.Width/2, el.Y+el.Height/2, el.Width/2, el.Height/2, 0, style)
		case domain.ShapeTriangle:
			pdf.Polygon([]gofpdf.PointType{
				{X: el.X + el.Width/2, Y: el.Y},
				{X: el.X + el.Width, Y: el.Y + el.Height},
				{X: el.X, Y: el.Y + el.Height},
			}, style)
		case domain.ShapeLine:
			pdf.Line(el.X, el.Y, el.X+el.Width, el.Y+el.Height)
		default:
			pdf.Rect(el.X, el.Y, el.Width, el.Height, style)
		}
	case domain.ImageData:
		setFill(pdf, imageFill)
		setDraw(pdf, black)
		pdf.SetLineWidth(0.5)
		pdf.Rect(el.X, el.Y, el.Width, el.Height, "FD")
		pdf.Line(el.X, el.Y, el.X+el.Width, el.Y+el.Height)
		pdf.Line(el.X+el.Width, el.Y, el.X, el.Y+el.Height)
		label := d.Alt
		if label == "" {
			label = filepath.Base(d.Source)
		}
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(el.X+4, el.Y+14, tr(label))
	case domain.TextData:
		size := d.FontSize
		if size <= 0 {
			size = 16
		}
		style := ""
		if d.FontWeight >= 600 {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, size)
		tc := colorOr(d.Color, black)
		pdf.SetTextColor(int(tc.R), int(tc.G), int(tc.B))
		lh := d.LineHeight
		if lh <= 0 {
			lh = 1.2
		}
		align := "L"
		switch d.Align {
		case "center":
			align = "C"
		case "right":
			align = "R"
		}
		pdf.SetXY(el.X, el.Y)
		pdf.MultiCell(el.Width, size*lh, tr(d.Content), "", align, false)
	}
}

// ExportPDF writes data to path, creating the parent directory.
func ExportPDF(path string, data domain.CanvasData, opt PDFOptions) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return WritePDF(f, data, opt)
}

func setDraw(pdf *gofpdf.Fpdf, c color.RGBA) { pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }

func setFill(pdf *gofpdf.Fpdf, c color.RGBA) { pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }
