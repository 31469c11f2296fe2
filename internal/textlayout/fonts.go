/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and line-breaks text for raster export.
package textlayout

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// FontSpec describes a requested font. Size is in pixels.
type FontSpec struct {
	Family string
	Size   float64
	Weight int // 100..900, 0 means 400
	Italic bool
}

func (s FontSpec) bold() bool { return s.Weight >= 600 }

// Metrics are the vertical metrics of a resolved face in pixels.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Height is the distance between baselines at a line height of 1.
func (m Metrics) Height() float64 { return m.Ascent + m.Descent + m.LineGap }

// Provider maps a FontSpec to a concrete face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider ignores the FontSpec and returns the 7x13 bitmap face. Widths are
// deterministic, which makes it the provider of choice in tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	return f, metricsOf(f)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  float64(m.Ascent.Round()),
		Descent: float64(m.Descent.Round()),
		LineGap: float64(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

type faceKey struct {
	fontKey
	size float64
}

// FontLibrary resolves specs against parsed OpenType fonts and caches the
// faces it creates. The Go font family is always registered; it serves any
// family that was not loaded explicitly, and "monospace" maps to Go Mono.
// A FontLibrary is safe for concurrent use.
type FontLibrary struct {
	mu    sync.Mutex
	fonts map[fontKey]*opentype.Font
	faces map[faceKey]font.Face
	err   error
}

var builtin = []struct {
	key  fontKey
	data []byte
}{
	{fontKey{"go", false, false}, goregular.TTF},
	{fontKey{"go", true, false}, gobold.TTF},
	{fontKey{"go", false, true}, goitalic.TTF},
	{fontKey{"go", true, true}, gobolditalic.TTF},
	{fontKey{"monospace", false, false}, gomono.TTF},
	{fontKey{"monospace", true, false}, gomonobold.TTF},
}

// NewFontLibrary returns a library holding the Go fonts.
func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{fonts: map[fontKey]*opentype.Font{}, faces: map[faceKey]font.Face{}}
	for _, b := range builtin {
		f, err := opentype.Parse(b.data)
		if err != nil {
			fl.err = fmt.Errorf("parse builtin font %s: %w", b.key.family, err)
			continue
		}
		fl.fonts[b.key] = f
	}
	return fl
}

var (
	defaultOnce sync.Once
	defaultLib  *FontLibrary
)

// Default returns the process wide library.
func Default() *FontLibrary {
	defaultOnce.Do(func() { defaultLib = NewFontLibrary() })
	return defaultLib
}

// Err reports a builtin font that failed to parse.
func (fl *FontLibrary) Err() error { return fl.err }

// LoadTTF registers a font file for family in the given style.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", path, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.fonts[fontKey{normFamily(family), bold, italic}] = f
	for k := range fl.faces {
		if k.family == normFamily(family) {
			delete(fl.faces, k)
		}
	}
	return nil
}

func normFamily(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	s = strings.Trim(s, `"'`)
	switch s {
	case "mono", "monospace", "courier", "courier new", "menlo", "consolas":
		return "monospace"
	}
	return s
}

// find returns the closest loaded font. Style falls back before family does.
func (fl *FontLibrary) find(k fontKey) (*opentype.Font, fontKey) {
	candidates := []fontKey{
		k,
		{k.family, k.bold, false},
		{k.family, false, false},
	}
	fallback := "go"
	if k.family == "monospace" {
		fallback = "monospace"
	}
	candidates = append(candidates,
		fontKey{fallback, k.bold, k.italic},
		fontKey{fallback, k.bold, false},
		fontKey{fallback, false, false},
	)
	for _, c := range candidates {
		if f, ok := fl.fonts[c]; ok {
			return f, c
		}
	}
	return nil, fontKey{}
}

// Resolve implements Provider. A non-positive size means 16px. When no
// OpenType font is usable the bitmap face is returned.
func (fl *FontLibrary) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.Size <= 0 {
		spec.Size = 16
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	f, key := fl.find(fontKey{normFamily(spec.Family), spec.bold(), spec.Italic})
	if f == nil {
		return BasicProvider{}.Resolve(spec)
	}
	fk := faceKey{key, spec.Size}
	if face, ok := fl.faces[fk]; ok {
		return face, metricsOf(face)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.Size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return BasicProvider{}.Resolve(spec)
	}
	fl.faces[fk] = face
	return face, metricsOf(face)
}
