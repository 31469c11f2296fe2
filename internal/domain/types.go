/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the document model of a mockup: the canvas, its positioned
// elements and the persisted Design record wrapping both.

import (
	"math"
	"time"
)

// FormatVersion is written into every serialized CanvasData payload.
const FormatVersion = 1

// Canvas holds the document-level properties of a mockup.
// Zoom and pan are view state; they travel with the canvas but never dirty it.
type Canvas struct {
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Zoom       float64 `json:"zoom"`
	PanX       float64 `json:"panX"`
	PanY       float64 `json:"panY"`
	Background string  `json:"backgroundColor"`
}

// DefaultCanvas is a portrait phone screenshot at 1x zoom.
func DefaultCanvas() Canvas {
	return Canvas{Width: 1080, Height: 1920, Zoom: 1, Background: "#ffffff"}
}

// ElementKind tags the payload carried by an Element.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindImage ElementKind = "image"
	KindShape ElementKind = "shape"
)

// Element is a positioned, stylable item on the canvas.
// Data is one of TextData, ImageData or ShapeData.
type Element struct {
	ID       string            `json:"id"`
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Width    float64           `json:"width"`
	Height   float64           `json:"height"`
	Rotation float64           `json:"rotation"`
	ScaleX   float64           `json:"scaleX"`
	ScaleY   float64           `json:"scaleY"`
	Opacity  float64           `json:"opacity"`
	Visible  bool              `json:"visible"`
	Locked   bool              `json:"locked"`
	ZIndex   int               `json:"zIndex"`
	Style    map[string]string `json:"style,omitempty"`
	Data     ElementData       `json:"-"`
}

// Kind reports the payload kind, or "" when Data is unset.
func (e Element) Kind() ElementKind {
	if e.Data == nil {
		return ""
	}
	return e.Data.Kind()
}

// Clone returns a deep copy; the style map and payload are not shared.
func (e Element) Clone() Element {
	out := e
	if e.Style != nil {
		out.Style = make(map[string]string, len(e.Style))
		for k, v := range e.Style {
			out.Style[k] = v
		}
	}
	if e.Data != nil {
		out.Data = e.Data.cloneData()
	}
	return out
}

// Validate checks the invariants every stored element must satisfy.
func (e Element) Validate() error {
	if e.Data == nil {
		return Validationf("element %q has no payload", e.ID)
	}
	for _, v := range []float64{e.X, e.Y, e.Width, e.Height, e.Rotation, e.ScaleX, e.ScaleY, e.Opacity} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Validationf("element %q has a non-finite coordinate", e.ID)
		}
	}
	if e.Width < 0 || e.Height < 0 {
		return Validationf("element %q has negative size %gx%g", e.ID, e.Width, e.Height)
	}
	return nil
}

// ClampOpacity keeps opacity within [0,1].
func ClampOpacity(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func newElement(data ElementData, w, h float64) Element {
	return Element{Width: w, Height: h, ScaleX: 1, ScaleY: 1, Opacity: 1, Visible: true, Data: data}
}

// NewText returns a visible text element with default box size.
func NewText(content string) Element {
	return newElement(TextData{Content: content, FontFamily: "Inter", FontSize: 32, FontWeight: 400, Color: "#111111", Align: "left", LineHeight: 1.2}, 400, 60)
}

// NewImage returns a visible image element with cover fit.
func NewImage(src string, w, h float64) Element {
	return newElement(ImageData{Source: src, Fit: FitCover}, w, h)
}

// NewShape returns a visible shape element.
func NewShape(kind ShapeKind, w, h float64) Element {
	return newElement(ShapeData{Shape: kind, Fill: "#e5e7eb", Stroke: "", StrokeWidth: 0}, w, h)
}

// CanvasData is the serialized document stored in Design.CanvasData.
type CanvasData struct {
	Canvas    Canvas    `json:"canvas"`
	Elements  []Element `json:"elements"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// Design is the persisted record of a mockup.
type Design struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"-"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CanvasData  CanvasData `json:"canvas_data"`
	PreviewURL  string     `json:"preview_url,omitempty"`
	IsPublic    bool       `json:"is_public"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Tool is the active editing tool.
type Tool string

const (
	ToolSelect Tool = "select"
	ToolText   Tool = "text"
	ToolImage  Tool = "image"
	ToolShape  Tool = "shape"
	ToolFrame  Tool = "frame"
)

// Valid reports whether t is one of the known tools.
func (t Tool) Valid() bool {
	switch t {
	case ToolSelect, ToolText, ToolImage, ToolShape, ToolFrame:
		return true
	}
	return false
}
