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

import (
	"encoding/json"
	"fmt"
)

// ElementData is the kind-specific payload of an Element. The set of
// implementations is closed: TextData, ImageData and ShapeData.
type ElementData interface {
	Kind() ElementKind
	cloneData() ElementData
}

// TextData is the payload of a text element.
type TextData struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight int     `json:"fontWeight"`
	Color      string  `json:"color"`
	Align      string  `json:"align,omitempty"` // left, center, right
	LineHeight float64 `json:"lineHeight,omitempty"`
}

func (TextData) Kind() ElementKind        { return KindText }
func (d TextData) cloneData() ElementData { return d }

// ImageFit controls how an image fills its box.
type ImageFit string

const (
	FitCover   ImageFit = "cover"
	FitContain ImageFit = "contain"
	FitFill    ImageFit = "fill"
)

// ImageData is the payload of an image element. Filters are stored as
// name -> amount and are never evaluated by the editor. An empty map is
// kept as nil so it survives a JSON round trip unchanged.
type ImageData struct {
	Source  string             `json:"src"`
	Fit     ImageFit           `json:"fit"`
	Alt     string             `json:"alt,omitempty"`
	Filters map[string]float64 `json:"filters,omitempty"`
}

func (ImageData) Kind() ElementKind { return KindImage }
func (d ImageData) cloneData() ElementData {
	if len(d.Filters) == 0 {
		d.Filters = nil
	} else {
		f := make(map[string]float64, len(d.Filters))
		for k, v := range d.Filters {
			f[k] = v
		}
		d.Filters = f
	}
	return d
}

// ShapeKind enumerates the primitive shapes.
type ShapeKind string

const (
	ShapeRect     ShapeKind = "rectangle"
	ShapeEllipse  ShapeKind = "ellipse"
	ShapeTriangle ShapeKind = "triangle"
	ShapeLine     ShapeKind = "line"
	// ShapeFrame is a device frame drawn around a screenshot.
	ShapeFrame ShapeKind = "frame"
)

// ShapeData is the payload of a shape element.
type ShapeData struct {
	Shape        ShapeKind `json:"shape"`
	Fill         string    `json:"fill,omitempty"`
	Stroke       string    `json:"stroke,omitempty"`
	StrokeWidth  float64   `json:"strokeWidth,omitempty"`
	CornerRadius float64   `json:"cornerRadius,omitempty"`
}

func (ShapeData) Kind() ElementKind        { return KindShape }
func (d ShapeData) cloneData() ElementData { return d }

// elementJSON is the wire form: the common fields, a "type" tag and the payload under "data".
type elementJSON struct {
	elementFields
	Type ElementKind     `json:"type"`
	Data json.RawMessage `json:"data"`
}

// elementFields strips the methods of Element so encoding does not recurse.
type elementFields Element

// MarshalJSON writes the element as a tagged union.
func (e Element) MarshalJSON() ([]byte, error) {
	if e.Data == nil {
		return nil, Validationf("element %q has no payload", e.ID)
	}
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(elementJSON{elementFields: elementFields(e), Type: e.Data.Kind(), Data: payload})
}

// UnmarshalJSON reads the tagged union written by MarshalJSON.
func (e *Element) UnmarshalJSON(b []byte) error {
	var raw elementJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := decodeData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*e = Element(raw.elementFields)
	e.Data = data
	return nil
}

func decodeData(kind ElementKind, raw json.RawMessage) (ElementData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	switch kind {
	case KindText:
		var d TextData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode text payload: %w", err)
		}
		return d, nil
	case KindImage:
		var d ImageData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		return d, nil
	case KindShape:
		var d ShapeData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("decode shape payload: %w", err)
		}
		return d, nil
	default:
		return nil, Validationf("unknown element type %q", kind)
	}
}
