/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"encoding/json"
	"log/slog"

	"mockupstudio/internal/undo"
)

// Undo restores the state captured before the most recent mutation and parks
// the current state for Redo. It reports false when there is nothing to undo.
// Zoom and pan are kept as they are.
func (s *Store) Undo() bool {
	return s.travel("undo", s.history.Undo)
}

// Redo re-applies the most recently undone state.
func (s *Store) Redo() bool {
	return s.travel("redo", s.history.Redo)
}

func (s *Store) CanUndo() bool { return s.history.CanUndo() }
func (s *Store) CanRedo() bool { return s.history.CanRedo() }

// HistoryStats exposes the undo stack sizes for diagnostics.
func (s *Store) HistoryStats() undo.Stats { return s.history.Stats() }

func (s *Store) travel(op string, step func(undo.Snapshot) (undo.Snapshot, bool)) bool {
	s.mu.Lock()
	cur, err := s.captureLocked(op)
	if err != nil {
		s.mu.Unlock()
		s.log.Error("capture for "+op+" failed", slog.Any("err", err))
		return false
	}
	target, ok := step(cur)
	if !ok {
		s.mu.Unlock()
		return false
	}
	var st state
	if err := json.Unmarshal(target.Blob, &st); err != nil {
		// the snapshot was produced by captureLocked, so this means corruption
		s.mu.Unlock()
		s.log.Error(op+" snapshot unreadable", slog.Any("err", err))
		return false
	}
	st.Canvas.Zoom, st.Canvas.PanX, st.Canvas.PanY = s.canvas.Zoom, s.canvas.PanX, s.canvas.PanY
	s.canvas = st.Canvas
	s.elements = st.Elements
	s.pruneSelectionLocked()
	s.revision++
	rev := s.revision
	s.mu.Unlock()
	s.log.Debug("history step", slog.String("op", op), slog.Uint64("rev", rev))
	s.notify(Change{Kind: ChangeHistory, Op: op, Revision: rev})
	return true
}
