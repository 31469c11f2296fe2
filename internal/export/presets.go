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
	"io"
	"os"
	"path/filepath"
	"strings"

	"mockupstudio/internal/domain"
)

// Format is an output file format.
type Format string

const (
	FormatPDF Format = "pdf"
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat accepts format names case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatPDF, FormatPNG, FormatSVG:
		return f, nil
	}
	return "", domain.Validationf("unknown export format %q", s)
}

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetStore produces store-ready screenshots: 1x PNG without guides.
	PresetStore PresetName = "store"
	// PresetReview produces annotated files for design review.
	PresetReview PresetName = "review"
)

// BatchOptions controls Batch. Empty Formats means the preset defaults.
type BatchOptions struct {
	Preset        PresetName
	Formats       []string
	Scale         float64 // raster scale for PNG and size scale for SVG
	IncludeGuides *bool
	OutDir        string
	BaseName      string
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetReview:
		return []string{"pdf", "svg"}
	default:
		return []string{"png"}
	}
}

func presetIncludeGuides(p PresetName) bool { return p == PresetReview }

// Write renders data in format f to w.
func Write(w io.Writer, f Format, data domain.CanvasData, scale float64, guides bool, title string) error {
	switch f {
	case FormatPDF:
		return WritePDF(w, data, PDFOptions{Title: title, IncludeGuides: guides})
	case FormatSVG:
		return WriteSVG(w, data, SVGOptions{Scale: scale, IncludeGuides: guides})
	case FormatPNG:
		b, err := EncodePNG(data, scale)
		if err != nil {
			return err
		}
		_, err = io.Copy(w, bytes.NewReader(b))
		return err
	}
	return domain.Validationf("unknown export format %q", f)
}

// Batch writes one file per requested format into opt.OutDir and returns the
// written paths.
func Batch(data domain.CanvasData, title string, opt BatchOptions) ([]string, error) {
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	guides := presetIncludeGuides(opt.Preset)
	if opt.IncludeGuides != nil {
		guides = *opt.IncludeGuides
	}
	base := opt.BaseName
	if base == "" {
		base = slug(title)
	}
	out := opt.OutDir
	if out == "" {
		out = "."
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	var written []string
	for _, name := range formats {
		f, err := ParseFormat(name)
		if err != nil {
			return written, err
		}
		var buf bytes.Buffer
		if err := Write(&buf, f, data, opt.Scale, guides, title); err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		path := filepath.Join(out, base+"."+string(f))
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// slug turns a title into a file name.
func slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "mockup"
	}
	return s
}
