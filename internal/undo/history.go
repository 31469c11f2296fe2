/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// DefaultMaxDepth is the undo depth used when Config.MaxDepth is unset.
const DefaultMaxDepth = 50

// Snapshot is an immutable captured document state. Blob content is opaque to
// the history; its size is estimated as len(Blob). TS is when it was captured.
type Snapshot struct {
	Blob  []byte
	Label string
	TS    time.Time
}

// Config controls the depth and memory caps.
type Config struct {
	// MaxDepth bounds the undo stack; the oldest entry is evicted first.
	MaxDepth int
	// MaxBytes is a soft cap over the undo stack; oldest entries are pruned
	// when exceeded. Zero means unlimited.
	MaxBytes int
}

// History is a bounded undo/redo stack pair for a single document.
// It is safe for concurrent use.
type History struct {
	cfg Config
	mu  sync.Mutex

	undo []Snapshot
	redo []Snapshot

	undoBytes int
	evicted   int
}

func New(cfg Config) *History {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &History{cfg: cfg}
}

// Push records the state captured before a mutation and clears the redo stack.
func (h *History) Push(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.redo = nil
	h.undo = append(h.undo, s)
	h.undoBytes += len(s.Blob)
	h.enforceCapsLocked()
}

// Undo pops the most recent snapshot and parks current on the redo stack.
// ok is false when there is nothing to undo; current is then discarded.
func (h *History) Undo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.undo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := h.undo[n-1]
	h.undo = h.undo[:n-1]
	h.undoBytes -= len(s.Blob)
	h.redo = append(h.redo, current)
	return s, true
}

// Redo mirrors Undo: it pops from redo and parks current on the undo stack.
func (h *History) Redo(current Snapshot) (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.redo)
	if n == 0 {
		return Snapshot{}, false
	}
	s := h.redo[n-1]
	h.redo = h.redo[:n-1]
	h.undo = append(h.undo, current)
	h.undoBytes += len(current.Blob)
	h.enforceCapsLocked()
	return s, true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Clear drops both stacks, e.g. when another design is loaded.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo = nil, nil
	h.undoBytes = 0
}

// Stats reports current sizes for diagnostics.
type Stats struct {
	UndoDepth int
	RedoDepth int
	UndoBytes int
	Evicted   int
}

func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{UndoDepth: len(h.undo), RedoDepth: len(h.redo), UndoBytes: h.undoBytes, Evicted: h.evicted}
}

func (h *History) enforceCapsLocked() {
	drop := 0
	if over := len(h.undo) - h.cfg.MaxDepth; over > 0 {
		drop = over
	}
	bytes := h.undoBytes
	for i := 0; i < drop; i++ {
		bytes -= len(h.undo[i].Blob)
	}
	// keep at least the newest entry even if it alone exceeds the byte cap
	for h.cfg.MaxBytes > 0 && bytes > h.cfg.MaxBytes && drop < len(h.undo)-1 {
		bytes -= len(h.undo[drop].Blob)
		drop++
	}
	if drop == 0 {
		return
	}
	h.undo = append([]Snapshot(nil), h.undo[drop:]...)
	h.undoBytes = bytes
	h.evicted += drop
}
