/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package keymap

import (
	"log/slog"
	"sort"
	"strings"
)

// defaultBindings is the shortcut table. Ctrl bindings are mirrored on meta
// for macOS by NewDispatcher.
var defaultBindings = map[string]Action{
	"ctrl+z":       Undo,
	"ctrl+shift+z": Redo,
	"ctrl+y":       Redo,
	"ctrl+s":       Save,
	"ctrl+a":       SelectAll,
	"escape":       ClearSelection,
	"ctrl+c":       Copy,
	"ctrl+x":       Cut,
	"ctrl+v":       Paste,
	"ctrl+d":       Duplicate,
	"delete":       DeleteSelected,
	"backspace":    DeleteSelected,
	"v":            ToolSelect,
	"t":            ToolText,
	"i":            ToolImage,
	"s":            ToolShape,
	"f":            ToolFrame,
	"shift+1":      FitToScreen,
	"shift+!":      FitToScreen,
	"shift+0":      ZoomToActual,
	"shift+)":      ZoomToActual,
	"ctrl+=":       ZoomIn,
	"ctrl++":       ZoomIn,
	"ctrl+shift+=": ZoomIn,
	"ctrl+shift++": ZoomIn,
	"ctrl+-":       ZoomOut,
	"ctrl+]":       BringForward,
	"ctrl+[":       SendBackward,
	"ctrl+shift+]": BringToFront,
	"ctrl+shift+}": BringToFront,
	"ctrl+shift+[": SendToBack,
	"ctrl+shift+{": SendToBack,
}

// Target describes the element that has keyboard focus.
type Target struct {
	Tag             string // e.g. "input", "textarea", "div"
	InputType       string // type attribute of an input
	ContentEditable bool
}

// textInputTypes are the input types that accept typed text.
var textInputTypes = map[string]bool{
	"": true, "text": true, "search": true, "email": true, "url": true,
	"tel": true, "password": true, "number": true,
}

// IsTextEntry reports whether typing into t edits text.
func (t Target) IsTextEntry() bool {
	if t.ContentEditable {
		return true
	}
	switch strings.ToLower(t.Tag) {
	case "textarea":
		return true
	case "input":
		return textInputTypes[strings.ToLower(strings.TrimSpace(t.InputType))]
	}
	return false
}

// Event is a key press as reported by the rendering layer.
type Event struct {
	Key                    string
	Ctrl, Alt, Shift, Meta bool
	Target                 Target
}

// Combo returns the normalized combination of the event.
func (e Event) Combo() string {
	var mods []string
	if e.Ctrl {
		mods = append(mods, "ctrl")
	}
	if e.Alt {
		mods = append(mods, "alt")
	}
	if e.Shift {
		mods = append(mods, "shift")
	}
	if e.Meta {
		mods = append(mods, "meta")
	}
	return Combo(mods, e.Key)
}

// Performer executes actions resolved by a Dispatcher.
type Performer interface {
	Perform(Action) error
}

// Dispatcher resolves key events against a fixed table. Resolution depends
// only on the event, never on earlier calls.
type Dispatcher struct {
	table map[string]Action
	log   *slog.Logger
}

// NewDispatcher builds the dispatcher with the default shortcut table.
func NewDispatcher(l *slog.Logger) *Dispatcher {
	if l == nil {
		l = slog.Default()
	}
	t := make(map[string]Action, 2*len(defaultBindings))
	for combo, a := range defaultBindings {
		t[Normalize(combo)] = a
		if strings.HasPrefix(combo, "ctrl+") {
			t[Normalize("meta+"+strings.TrimPrefix(combo, "ctrl+"))] = a
		}
	}
	return &Dispatcher{table: t, log: l}
}

// Lookup returns the action bound to combo, or None.
func (d *Dispatcher) Lookup(combo string) Action {
	return d.table[Normalize(combo)]
}

// Resolve returns the action for ev, or None when the combination is unbound
// or focus is on a text-entry control.
func (d *Dispatcher) Resolve(ev Event) Action {
	if ev.Target.IsTextEntry() {
		return None
	}
	return d.table[ev.Combo()]
}

// Dispatch resolves ev and hands the action to p. It returns None and a nil
// error when nothing was dispatched.
func (d *Dispatcher) Dispatch(ev Event, p Performer) (Action, error) {
	a := d.Resolve(ev)
	if a == None {
		return None, nil
	}
	d.log.Debug("shortcut", slog.String("combo", ev.Combo()), slog.String("action", string(a)))
	return a, p.Perform(a)
}

// Bindings returns the sorted combos bound to each action.
func (d *Dispatcher) Bindings() map[Action][]string {
	out := map[Action][]string{}
	for combo, a := range d.table {
		out[a] = append(out[a], combo)
	}
	for _, v := range out {
		sort.Strings(v)
	}
	return out
}
