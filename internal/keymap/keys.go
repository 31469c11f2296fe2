/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package keymap turns keyboard events into editor actions through a fixed
// shortcut table.
package keymap

import (
	"sort"
	"strings"
)

// Action identifies an editor command reachable from the keyboard.
type Action string

const (
	None           Action = ""
	Undo           Action = "undo"
	Redo           Action = "redo"
	Save           Action = "save"
	SelectAll      Action = "select-all"
	ClearSelection Action = "clear-selection"
	Copy           Action = "copy"
	Cut            Action = "cut"
	Paste          Action = "paste"
	Duplicate      Action = "duplicate"
	DeleteSelected Action = "delete-selected"
	ToolSelect     Action = "tool-select"
	ToolText       Action = "tool-text"
	ToolImage      Action = "tool-image"
	ToolShape      Action = "tool-shape"
	ToolFrame      Action = "tool-frame"
	FitToScreen    Action = "fit-to-screen"
	ZoomToActual   Action = "zoom-to-actual"
	ZoomIn         Action = "zoom-in"
	ZoomOut        Action = "zoom-out"
	BringForward   Action = "bring-forward"
	SendBackward   Action = "send-backward"
	BringToFront   Action = "bring-to-front"
	SendToBack     Action = "send-to-back"
)

// Actions lists every action in a stable order.
var Actions = []Action{
	Undo, Redo, Save, SelectAll, ClearSelection, Copy, Cut, Paste, Duplicate, DeleteSelected,
	ToolSelect, ToolText, ToolImage, ToolShape, ToolFrame,
	FitToScreen, ZoomToActual, ZoomIn, ZoomOut,
	BringForward, SendBackward, BringToFront, SendToBack,
}

// modifierOrder is the canonical order of modifiers in a normalized combo.
var modifierOrder = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3}

var modifierAlias = map[string]string{
	"control": "ctrl", "ctl": "ctrl",
	"option": "alt", "opt": "alt",
	"cmd": "meta", "command": "meta", "super": "meta", "win": "meta",
}

var keyAlias = map[string]string{
	"esc":      "escape",
	"del":      "delete",
	" ":        "space",
	"spacebar": "space",
	"plus":     "+",
	"minus":    "-",
	"equal":    "=",
}

// Normalize canonicalizes a combo such as "Shift+Ctrl+Z" to "ctrl+shift+z".
// Modifiers are deduplicated and sorted ctrl, alt, shift, meta; the key is
// lower-cased. A trailing "+" is read as the plus key ("ctrl++").
func Normalize(combo string) string {
	combo = strings.ToLower(strings.TrimSpace(combo))
	if combo == "" {
		return ""
	}
	if combo == "+" {
		return Combo(nil, "+")
	}
	if strings.HasSuffix(combo, "++") {
		return Combo(strings.Split(strings.TrimSuffix(combo, "++"), "+"), "+")
	}
	parts := strings.Split(combo, "+")
	return Combo(parts[:len(parts)-1], parts[len(parts)-1])
}

// Combo builds a normalized combo from modifier names and a key name. An
// unknown modifier yields "", which matches no binding.
func Combo(mods []string, key string) string {
	seen := map[string]bool{}
	var ms []string
	for _, m := range mods {
		m = strings.ToLower(strings.TrimSpace(m))
		if a, ok := modifierAlias[m]; ok {
			m = a
		}
		if _, ok := modifierOrder[m]; !ok {
			return ""
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		ms = append(ms, m)
	}
	sort.Slice(ms, func(i, j int) bool { return modifierOrder[ms[i]] < modifierOrder[ms[j]] })
	if key != " " {
		key = strings.ToLower(strings.TrimSpace(key))
	}
	if a, ok := keyAlias[key]; ok {
		key = a
	}
	if key == "" {
		return ""
	}
	return strings.Join(append(ms, key), "+")
}
