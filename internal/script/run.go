/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"mockupstudio/internal/domain"
	"mockupstudio/internal/editor"
	"mockupstudio/internal/geometry"
	"mockupstudio/internal/keymap"
	"mockupstudio/internal/session"
)

// Runner executes commands against a session. Elements created with an
// "as=name" option can be referenced by that name in later commands.
type Runner struct {
	s      *session.Session
	out    io.Writer
	log    *slog.Logger
	labels map[string]string
}

// NewRunner returns a runner writing command feedback to out.
func NewRunner(s *session.Session, out io.Writer, l *slog.Logger) *Runner {
	if out == nil {
		out = io.Discard
	}
	if l == nil {
		l = slog.Default()
	}
	return &Runner{s: s, out: out, log: l, labels: map[string]string{}}
}

// Run applies sc in order and stops at the first failing command.
func (r *Runner) Run(ctx context.Context, sc Script) error {
	if sc.Title != "" {
		m := r.s.Meta()
		m.Title = sc.Title
		r.s.SetMeta(m)
	}
	for _, c := range sc.Commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.Exec(ctx, c); err != nil {
			return fmt.Errorf("%s: %s: %w", fmtPos(c.LineNo, 0), c.Verb, err)
		}
	}
	return nil
}

// Exec runs a single command.
func (r *Runner) Exec(ctx context.Context, c Command) error {
	st := r.s.Store()
	r.log.Debug("script command", slog.String("verb", c.Verb), slog.Int("line", c.LineNo))
	switch c.Verb {
	case "canvas":
		w, h, err := floats2(c.Args, 0)
		if err != nil {
			return err
		}
		if err := st.SetCanvasSize(w, h); err != nil {
			return err
		}
		if bg, ok := c.Opts["background"]; ok {
			return st.SetBackgroundColor(bg)
		}
		return nil
	case "text":
		el := domain.NewText(c.Text)
		td := el.Data.(domain.TextData)
		if v, ok := c.Opts["size"]; ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return domain.Validationf("size %q is not a number", v)
			}
			td.FontSize = f
		}
		td.Color = c.Opt("color", td.Color)
		td.FontFamily = c.Opt("font", td.FontFamily)
		td.Align = c.Opt("align", td.Align)
		el.Data = td
		return r.add(c, el, 0)
	case "image":
		if len(c.Args) < 1 {
			return domain.Validationf("image needs a source")
		}
		el := domain.NewImage(c.Args[0], 0, 0)
		d := el.Data.(domain.ImageData)
		d.Fit = domain.ImageFit(c.Opt("fit", string(d.Fit)))
		d.Alt = c.Text
		el.Data = d
		return r.add(c, el, 1)
	case "shape":
		if len(c.Args) < 1 {
			return domain.Validationf("shape needs a kind")
		}
		kind, err := parseShape(c.Args[0])
		if err != nil {
			return err
		}
		el := domain.NewShape(kind, 0, 0)
		d := el.Data.(domain.ShapeData)
		d.Fill = c.Opt("fill", d.Fill)
		d.Stroke = c.Opt("stroke", d.Stroke)
		if v, ok := c.Opts["stroke_width"]; ok {
			if d.StrokeWidth, err = strconv.ParseFloat(v, 64); err != nil {
				return domain.Validationf("stroke_width %q is not a number", v)
			}
		}
		el.Data = d
		return r.add(c, el, 1)
	case "select":
		return r.selectCmd(c)
	case "align":
		if len(c.Args) != 1 {
			return domain.Validationf("align needs an edge")
		}
		edge, err := geometry.ParseEdge(c.Args[0])
		if err != nil {
			return domain.Validationf("%v", err)
		}
		r.s.Align(edge)
	case "distribute":
		if len(c.Args) != 1 {
			return domain.Validationf("distribute needs an axis")
		}
		axis, err := geometry.ParseAxis(c.Args[0])
		if err != nil {
			return domain.Validationf("%v", err)
		}
		r.s.Distribute(axis)
	case "move":
		dx, dy, err := floats2(c.Args, 0)
		if err != nil {
			return err
		}
		st.MoveElements(st.Selected(), dx, dy)
	case "undo":
		r.s.Undo()
	case "redo":
		r.s.Redo()
	case "duplicate":
		ids := r.s.DuplicateSelected()
		r.label(c, ids...)
	case "delete":
		r.s.DeleteSelected()
	case "tool":
		if len(c.Args) != 1 {
			return domain.Validationf("tool needs a name")
		}
		return r.s.SetTool(domain.Tool(strings.ToLower(c.Args[0])))
	case "zoom":
		if len(c.Args) != 1 {
			return domain.Validationf("zoom needs a factor")
		}
		f, err := strconv.ParseFloat(c.Args[0], 64)
		if err != nil {
			return domain.Validationf("zoom %q is not a number", c.Args[0])
		}
		r.s.SetZoom(f)
	case "key":
		if len(c.Args) != 1 {
			return domain.Validationf("key needs a combination")
		}
		a := r.s.Dispatcher().Lookup(c.Args[0])
		if a == keymap.None {
			return domain.Validationf("no action bound to %q", c.Args[0])
		}
		return r.s.Perform(a)
	case "title":
		m := r.s.Meta()
		m.Title = strings.Join(append(c.Args, c.Text), " ")
		r.s.SetMeta(m)
	case "meta":
		m := r.s.Meta()
		if v, ok := c.Opts["title"]; ok {
			m.Title = v
		}
		if v, ok := c.Opts["description"]; ok {
			m.Description = v
		}
		if c.Text != "" {
			m.Description = c.Text
		}
		if v, ok := c.Opts["public"]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return domain.Validationf("public %q is not a boolean", v)
			}
			m.IsPublic = b
		}
		r.s.SetMeta(m)
	case "save":
		out, err := r.s.Save(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "save: %s\n", out)
	case "list":
		for el := range st.ExportCanvas() {
			_, _ = fmt.Fprintf(r.out, "%s\t%s\tz=%d\t%g,%g\t%gx%g\n", el.ID, el.Kind(), el.ZIndex, el.X, el.Y, el.Width, el.Height)
		}
	default:
		return domain.Validationf("unknown command %q", c.Verb)
	}
	return nil
}

// add places el from the positional args starting at off: x y [w h].
func (r *Runner) add(c Command, el domain.Element, off int) error {
	args := c.Args[min(off, len(c.Args)):]
	if len(args) != 2 && len(args) != 4 {
		return domain.Validationf("%s needs x y [w h]", c.Verb)
	}
	nums, err := parseFloats(args)
	if err != nil {
		return err
	}
	el.X, el.Y = nums[0], nums[1]
	if len(nums) == 4 {
		el.Width, el.Height = nums[2], nums[3]
	} else if el.Width == 0 || el.Height == 0 {
		el.Width, el.Height = 100, 100
	}
	if v, ok := c.Opts["rotation"]; ok {
		if el.Rotation, err = strconv.ParseFloat(v, 64); err != nil {
			return domain.Validationf("rotation %q is not a number", v)
		}
	}
	if v, ok := c.Opts["opacity"]; ok {
		o, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.Validationf("opacity %q is not a number", v)
		}
		el.Opacity = domain.ClampOpacity(o)
	}
	if v, ok := c.Opts["locked"]; ok {
		if el.Locked, err = strconv.ParseBool(v); err != nil {
			return domain.Validationf("locked %q is not a boolean", v)
		}
	}
	id, err := r.s.Store().AddElement(el)
	if err != nil {
		return err
	}
	r.label(c, id)
	_, _ = fmt.Fprintf(r.out, "added %s %s\n", el.Kind(), id)
	return nil
}

func (r *Runner) label(c Command, ids ...string) {
	name, ok := c.Opts["as"]
	if !ok || len(ids) == 0 {
		return
	}
	if len(ids) == 1 {
		r.labels[name] = ids[0]
		return
	}
	for i, id := range ids {
		r.labels[fmt.Sprintf("%s%d", name, i+1)] = id
	}
}

// resolve maps a label or id to an element id.
func (r *Runner) resolve(ref string) string {
	if id, ok := r.labels[ref]; ok {
		return id
	}
	return ref
}

func (r *Runner) selectCmd(c Command) error {
	st := r.s.Store()
	mode := editor.Replace
	if v, ok := c.Opts["mode"]; ok {
		m, err := editor.ParseSelectMode(v)
		if err != nil {
			return domain.Validationf("%v", err)
		}
		mode = m
	}
	if len(c.Args) == 1 {
		switch strings.ToLower(c.Args[0]) {
		case "all":
			st.SelectAll()
			return nil
		case "none":
			st.ClearSelection()
			return nil
		}
	}
	ids := make([]string, 0, len(c.Args))
	for _, a := range c.Args {
		id := r.resolve(a)
		if _, ok := st.Element(id); !ok {
			return domain.NotFoundf("element %q", a)
		}
		ids = append(ids, id)
	}
	st.Select(ids, mode)
	return nil
}

func parseShape(s string) (domain.ShapeKind, error) {
	k := domain.ShapeKind(strings.ToLower(s))
	switch k {
	case domain.ShapeRect, domain.ShapeEllipse, domain.ShapeTriangle, domain.ShapeLine, domain.ShapeFrame:
		return k, nil
	case "rect":
		return domain.ShapeRect, nil
	}
	return "", domain.Validationf("unknown shape %q", s)
}

func parseFloats(args []string) ([]float64, error) {
	out := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, domain.Validationf("%q is not a number", a)
		}
		out[i] = f
	}
	return out, nil
}

func floats2(args []string, off int) (float64, float64, error) {
	if len(args) < off+2 {
		return 0, 0, domain.Validationf("expected two numbers")
	}
	nums, err := parseFloats(args[off : off+2])
	if err != nil {
		return 0, 0, err
	}
	return nums[0], nums[1], nil
}

// RunText parses and runs src. Parse errors are joined and nothing runs.
func RunText(ctx context.Context, r *Runner, src string) error {
	sc, perrs := Parse(src)
	if len(perrs) > 0 {
		errs := make([]error, len(perrs))
		for i, e := range perrs {
			errs[i] = e
		}
		return fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}
	return r.Run(ctx, sc)
}
