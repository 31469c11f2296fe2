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
	"math"

	"mockupstudio/internal/domain"
)

// Zoom limits and the factor applied by ZoomIn and ZoomOut.
const (
	MinZoom  = 0.1
	MaxZoom  = 8.0
	ZoomStep = 1.25
	// FitPadding is the margin kept around the canvas by FitToScreen.
	FitPadding = 40.0
)

// ClampZoom keeps f within [MinZoom, MaxZoom]; non-finite values reset to 1.
func ClampZoom(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, f))
}

// SetZoom sets the view zoom and returns the value applied. Viewport changes
// are navigation: no history entry, no dirty flag.
func (s *Store) SetZoom(f float64) float64 {
	f = ClampZoom(f)
	s.viewport(func(c *domain.Canvas) { c.Zoom = f })
	return f
}

func (s *Store) ZoomIn() float64       { return s.SetZoom(s.Canvas().Zoom * ZoomStep) }
func (s *Store) ZoomOut() float64      { return s.SetZoom(s.Canvas().Zoom / ZoomStep) }
func (s *Store) ZoomToActual() float64 { return s.SetZoom(1) }

// FitToScreen picks the zoom that shows the whole canvas inside a viewport of
// the given size and centers it.
func (s *Store) FitToScreen(viewW, viewH float64) float64 {
	c := s.Canvas()
	if viewW <= 0 || viewH <= 0 || c.Width <= 0 || c.Height <= 0 {
		return c.Zoom
	}
	availW := math.Max(viewW-2*FitPadding, 1)
	availH := math.Max(viewH-2*FitPadding, 1)
	z := ClampZoom(math.Min(availW/c.Width, availH/c.Height))
	s.viewport(func(c *domain.Canvas) {
		c.Zoom = z
		c.PanX = (viewW - c.Width*z) / 2
		c.PanY = (viewH - c.Height*z) / 2
	})
	return z
}

// SetPan moves the view origin.
func (s *Store) SetPan(x, y float64) {
	s.viewport(func(c *domain.Canvas) { c.PanX, c.PanY = x, y })
}

func (s *Store) viewport(fn func(*domain.Canvas)) {
	s.mu.Lock()
	before := s.canvas
	fn(&s.canvas)
	if s.canvas == before {
		s.mu.Unlock()
		return
	}
	rev := s.revision
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeViewport, Revision: rev})
}

// Tool returns the active tool.
func (s *Store) Tool() domain.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tool
}

// SetTool switches the active tool.
func (s *Store) SetTool(t domain.Tool) error {
	if !t.Valid() {
		return domain.Validationf("unknown tool %q", t)
	}
	s.mu.Lock()
	if s.tool == t {
		s.mu.Unlock()
		return nil
	}
	s.tool = t
	rev := s.revision
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeTool, Op: string(t), Revision: rev})
	return nil
}
