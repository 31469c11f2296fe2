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
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func lines(b TextBox) []string {
	out := make([]string, len(b.Lines))
	for i, l := range b.Lines {
		out[i] = l.Text
	}
	return out
}

func TestLayoutWrapsOnSpaces(t *testing.T) {
	// 7px per glyph: "aaa bbb" is 49px wide.
	b := Layout(BasicProvider{}, FontSpec{}, "aaa bbb ccc", 50, 1)
	got := lines(b)
	if len(got) != 2 || got[0] != "aaa bbb" || got[1] != "ccc" {
		t.Fatalf("lines = %q", got)
	}
	if b.Width != 49 || b.Lines[1].Width != 21 {
		t.Fatalf("widths = %v / %v", b.Width, b.Lines[1].Width)
	}
	if b.Height() != 2*b.LineHeight || b.LineHeight != 13 {
		t.Fatalf("height = %v, line height = %v", b.Height(), b.LineHeight)
	}
}

func TestLayoutHardBreaksAndLongWords(t *testing.T) {
	b := Layout(BasicProvider{}, FontSpec{}, "supercalifragilistic x\n\nend", 40, 1.5)
	got := lines(b)
	want := []string{"supercalifragilistic", "x", "", "end"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
	if b.LineHeight != 19.5 {
		t.Fatalf("line height = %v", b.LineHeight)
	}
}

func TestLayoutWithoutWidthKeepsParagraphs(t *testing.T) {
	b := Layout(nil, FontSpec{}, "one two three", 0, 0)
	if len(b.Lines) != 1 || b.Lines[0].Text != "one two three" {
		t.Fatalf("lines = %q", lines(b))
	}
	if b := Layout(nil, FontSpec{}, "", 100, 1); len(b.Lines) != 1 || b.Lines[0].Width != 0 {
		t.Fatalf("empty text = %+v", b)
	}
}

func TestFontLibraryResolvesGoFonts(t *testing.T) {
	lib := NewFontLibrary()
	if err := lib.Err(); err != nil {
		t.Fatal(err)
	}
	small, _ := Measure(lib, FontSpec{Family: "Inter", Size: 12}, "Hello world")
	large, h := Measure(lib, FontSpec{Family: "Inter", Size: 24}, "Hello world")
	if !(large > small*1.8) || h <= 24 {
		t.Fatalf("scaling: 12px=%v 24px=%v h=%v", small, large, h)
	}
	regular, _ := Measure(lib, FontSpec{Size: 20}, "Wide Words")
	bold, _ := Measure(lib, FontSpec{Size: 20, Weight: 700}, "Wide Words")
	if bold <= regular {
		t.Fatalf("bold %v should be wider than regular %v", bold, regular)
	}
	ii, _ := Measure(lib, FontSpec{Family: "monospace", Size: 20}, "iiii")
	mm, _ := Measure(lib, FontSpec{Family: "Menlo, monospace", Size: 20}, "mmmm")
	if ii != mm {
		t.Fatalf("monospace widths differ: %v vs %v", ii, mm)
	}
	f1, _ := lib.Resolve(FontSpec{Size: 18})
	f2, _ := lib.Resolve(FontSpec{Size: 18})
	if f1 != f2 {
		t.Fatal("faces should be cached")
	}
}

func TestLoadTTF(t *testing.T) {
	lib := NewFontLibrary()
	if err := lib.LoadTTF("Brand", false, false, filepath.Join(t.TempDir(), "nope.ttf")); err == nil {
		t.Fatal("expected read error")
	}
	bad := filepath.Join(t.TempDir(), "bad.ttf")
	if err := os.WriteFile(bad, []byte("not a font"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := lib.LoadTTF("Brand", false, false, bad); err == nil {
		t.Fatal("expected parse error")
	}
	good := filepath.Join(t.TempDir(), "brand.ttf")
	if err := os.WriteFile(good, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := lib.LoadTTF("Brand", false, false, good); err != nil {
		t.Fatal(err)
	}
	w1, _ := Measure(lib, FontSpec{Family: "brand", Size: 16}, "abc")
	w2, _ := Measure(lib, FontSpec{Size: 16}, "abc")
	if w1 != w2 {
		t.Fatalf("brand face should measure like go regular: %v vs %v", w1, w2)
	}
}
