/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mockupstudio/internal/autosave"
	"mockupstudio/internal/backend"
	"mockupstudio/internal/config"
	"mockupstudio/internal/crash"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/export"
	applog "mockupstudio/internal/log"
	"mockupstudio/internal/script"
	"mockupstudio/internal/session"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/telemetry"
	"mockupstudio/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Mockup Studio")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  mockupstudio version                          Show version")
	_, _ = fmt.Fprintln(w, "  mockupstudio config                           Print the effective configuration")
	_, _ = fmt.Fprintln(w, "  mockupstudio list                             List designs")
	_, _ = fmt.Fprintln(w, "  mockupstudio new <title> [WxH]                Create an empty design")
	_, _ = fmt.Fprintln(w, "  mockupstudio show <id>                        Print a design summary")
	_, _ = fmt.Fprintln(w, "  mockupstudio apply <id|new> <script|->        Run an edit script and save")
	_, _ = fmt.Fprintln(w, "  mockupstudio export <id> [flags]              Export PNG/PDF/SVG (-format, -preset, -out, -scale)")
	_, _ = fmt.Fprintln(w, "  mockupstudio delete <id>                      Delete a design")
	_, _ = fmt.Fprintln(w, "  mockupstudio recover [dir]                    Save the latest crash snapshot as a new design")
	_, _ = fmt.Fprintln(w, "  mockupstudio login <url> <token>              Use a remote design server")
	_, _ = fmt.Fprintln(w, "  mockupstudio logout                           Forget the remote token")
}

// exitError carries the process exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(format string, args ...any) error {
	return &exitError{code: 2, err: fmt.Errorf(format, args...)}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app holds what every command needs.
type app struct {
	cfg     config.AppConfig
	token   string
	adapter storage.Adapter
	closeFn func() error
	log     *slog.Logger
	in      io.Reader
	out     io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, token, cfgErr := config.Load()
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config file ignored", slog.Any("err", cfgErr))
	}
	if cfg.General.TelemetryOptIn {
		tc := telemetry.FromEnv()
		tc.OptIn = true
		telemetry.NewDefault(tc)
	}

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	a := &app{cfg: cfg, token: token, log: l, in: stdin, out: stdout}
	defer func() {
		if a.closeFn != nil {
			if err := a.closeFn(); err != nil {
				l.Warn("close storage", slog.Any("err", err))
			}
		}
	}()

	err := a.dispatch(ctx, args)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		_, _ = fmt.Fprintln(stderr, "Error:", ee.err)
		if ee.code == 2 {
			usage(stderr)
		}
		return ee.code
	}
	l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
	_, _ = fmt.Fprintln(stderr, "Error:", err)
	return 1
}

func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	a.log.Debug("start", slog.String("cmd", cmd), slog.Int("args", len(rest)))
	switch cmd {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(a.out, version.String())
		return nil
	case "help", "--help", "-h":
		usage(a.out)
		return nil
	case "config":
		return a.printConfig()
	case "login":
		if len(rest) != 2 {
			return usageErr("login requires <url> and <token>")
		}
		a.cfg.Storage.Kind = config.StorageRemote
		a.cfg.Storage.RemoteURL = rest[0]
		if err := config.Save(a.cfg, rest[1]); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, "Using remote designs at", rest[0])
		return nil
	case "logout":
		return config.ClearToken()
	}

	if err := a.openAdapter(ctx); err != nil {
		return err
	}
	switch cmd {
	case "list":
		return a.list(ctx)
	case "new":
		if len(rest) < 1 {
			return usageErr("new requires <title>")
		}
		return a.create(ctx, rest[0], rest[1:])
	case "show":
		if len(rest) != 1 {
			return usageErr("show requires <id>")
		}
		return a.show(ctx, rest[0])
	case "apply":
		if len(rest) != 2 {
			return usageErr("apply requires <id|new> and <script|->")
		}
		return a.apply(ctx, rest[0], rest[1])
	case "export":
		if len(rest) < 1 {
			return usageErr("export requires <id>")
		}
		return a.export(ctx, rest[0], rest[1:])
	case "delete":
		if len(rest) != 1 {
			return usageErr("delete requires <id>")
		}
		if err := a.adapter.Delete(ctx, rest[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, "Deleted", rest[0])
		return nil
	case "recover":
		dir := a.crashDir()
		if len(rest) > 0 {
			dir = rest[0]
		}
		return a.recoverSnapshot(ctx, dir)
	}
	return usageErr("unknown command %q", cmd)
}

// openAdapter binds the configured backend to the local owner, or talks to
// the remote server with the keyring token.
func (a *app) openAdapter(ctx context.Context) error {
	if a.cfg.Storage.Kind == config.StorageRemote {
		if a.cfg.Storage.RemoteURL == "" {
			return usageErr("storage kind remote needs remote_url (see login)")
		}
		a.adapter = backend.NewClient(a.cfg.Storage.RemoteURL, a.token).
			WithHTTPClient(&http.Client{Timeout: a.cfg.RemoteTimeout()})
		return nil
	}
	st, err := storage.Open(ctx, a.cfg.StorageOptions(), applog.WithComponent("storage"))
	if err != nil {
		return err
	}
	a.closeFn = st.Close
	opts := []storage.AdapterOption{storage.WithLogger(applog.WithComponent("storage"))}
	if a.cfg.Storage.Quota > 0 {
		opts = append(opts, storage.WithQuota(a.cfg.Storage.Quota))
	}
	a.adapter = storage.NewAdapter(st, a.cfg.General.Owner, opts...)
	return nil
}

type lister interface {
	List(ctx context.Context) ([]storage.Summary, error)
}

func (a *app) list(ctx context.Context) error {
	ls, ok := a.adapter.(lister)
	if !ok {
		return errors.New("storage backend cannot list designs")
	}
	items, err := ls.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		_, _ = fmt.Fprintln(a.out, "No designs.")
		return nil
	}
	for _, it := range items {
		vis := "private"
		if it.IsPublic {
			vis = "public"
		}
		_, _ = fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n", it.ID, it.UpdatedAt.Local().Format("2006-01-02 15:04"), vis, it.Title)
	}
	return nil
}

func parseSize(s string) (float64, float64, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, usageErr("size must look like 1080x1920, got %q", s)
	}
	w, err1 := strconv.ParseFloat(ws, 64)
	h, err2 := strconv.ParseFloat(hs, 64)
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, usageErr("invalid size %q", s)
	}
	return w, h, nil
}

func (a *app) create(ctx context.Context, title string, rest []string) error {
	data := domain.CanvasData{Canvas: domain.DefaultCanvas(), Version: domain.FormatVersion}
	if len(rest) > 0 {
		w, h, err := parseSize(rest[0])
		if err != nil {
			return err
		}
		data.Canvas.Width, data.Canvas.Height = w, h
	}
	d, err := a.adapter.Save(ctx, storage.SaveOptions{Title: title, CanvasData: data})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, d.ID)
	return nil
}

func (a *app) show(ctx context.Context, id string) error {
	d, err := a.adapter.Load(ctx, id)
	if err != nil {
		return err
	}
	c := d.CanvasData.Canvas
	_, _ = fmt.Fprintf(a.out, "Design: %s\n", d.Title)
	_, _ = fmt.Fprintf(a.out, "ID: %s\n", d.ID)
	if d.Description != "" {
		_, _ = fmt.Fprintf(a.out, "Description: %s\n", d.Description)
	}
	_, _ = fmt.Fprintf(a.out, "Canvas: %gx%g %s\n", c.Width, c.Height, c.Background)
	_, _ = fmt.Fprintf(a.out, "Elements: %d\n", len(d.CanvasData.Elements))
	for _, el := range d.CanvasData.Elements {
		_, _ = fmt.Fprintf(a.out, "  %d\t%s\t%s\t%g,%g %gx%g\n", el.ZIndex, el.Kind(), el.ID, el.X, el.Y, el.Width, el.Height)
	}
	_, _ = fmt.Fprintf(a.out, "Updated: %s\n", d.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func (a *app) crashDir() string {
	if dir, err := config.DataDir(); err == nil {
		return filepath.Join(dir, "crash")
	}
	return ""
}

func (a *app) newSession() *session.Session {
	opts := session.Options{
		Editor:   a.cfg.EditorOptions(),
		Autosave: a.cfg.AutosaveConfig(),
		Logger:   applog.WithComponent("session"),
	}
	if a.cfg.General.TelemetryOptIn {
		opts.OnStatus = telemetry.AutosaveStatus
	}
	opts.OnLimit = func(err error) {
		a.log.Warn("design limit reached", slog.Any("err", err))
	}
	return session.New(a.adapter, opts)
}

func (a *app) apply(ctx context.Context, id, src string) (err error) {
	var text []byte
	if src == "-" {
		text, err = io.ReadAll(a.in)
	} else {
		text, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}

	s := a.newSession()
	defer s.Close(ctx)
	defer crash.Recover(s.Store(), a.crashDir())

	if id != "new" {
		if err := s.Open(ctx, id); err != nil {
			return err
		}
	}
	s.Start(ctx)
	r := script.NewRunner(s, a.out, applog.WithComponent("script"))
	if err := script.RunText(ctx, r, string(text)); err != nil {
		return err
	}
	if s.Dirty() {
		out, err := s.Save(ctx)
		if err != nil {
			return err
		}
		if out == autosave.Debounced {
			// only manual saves are debounced
			if _, err := s.Scheduler().Trigger(ctx, autosave.ReasonVisibility); err != nil {
				return err
			}
		}
	}
	if d := s.Design(); d != nil {
		_, _ = fmt.Fprintln(a.out, "Saved", d.ID)
	}
	return nil
}

func (a *app) export(ctx context.Context, id string, rest []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "", "comma separated formats: png, pdf, svg")
	preset := fs.String("preset", string(export.PresetStore), "store or review")
	outDir := fs.String("out", ".", "output directory")
	scale := fs.Float64("scale", 1, "raster scale")
	if err := fs.Parse(rest); err != nil {
		return usageErr("export: %v", err)
	}
	d, err := a.adapter.Load(ctx, id)
	if err != nil {
		return err
	}
	opt := export.BatchOptions{Preset: export.PresetName(*preset), Scale: *scale, OutDir: *outDir}
	if *format != "" {
		for _, f := range strings.Split(*format, ",") {
			if _, err := export.ParseFormat(f); err != nil {
				return err
			}
			opt.Formats = append(opt.Formats, strings.TrimSpace(f))
		}
	}
	paths, err := export.Batch(d.CanvasData, d.Title, opt)
	if err != nil {
		return err
	}
	for _, p := range paths {
		_, _ = fmt.Fprintln(a.out, p)
	}
	telemetry.Event(telemetry.EventExport, map[string]any{"files": len(paths), "preset": *preset})
	return nil
}

func (a *app) recoverSnapshot(ctx context.Context, dir string) error {
	path, data, err := crash.LatestSnapshot(dir)
	if err != nil {
		return err
	}
	title := "Recovered " + strings.TrimSuffix(filepath.Base(path), ".canvas.json")
	d, err := a.adapter.Save(ctx, storage.SaveOptions{Title: title, CanvasData: data})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Recovered %s as %s\n", path, d.ID)
	return nil
}

// printConfig writes the effective configuration as YAML and lists the keys
// set from the environment.
func (a *app) printConfig() error {
	path, _ := config.ConfigPath()
	_, _ = fmt.Fprintf(a.out, "# %s\n", path)
	b, err := yaml.Marshal(a.cfg)
	if err != nil {
		return err
	}
	_, _ = a.out.Write(b)
	var node yaml.Node
	if err := yaml.Unmarshal(b, &node); err != nil {
		return err
	}
	for _, key := range flattenKeys(&node, "") {
		if env, ok := config.EnvOverrideFor(key); ok {
			_, _ = fmt.Fprintf(a.out, "# %s set by %s\n", key, env)
		}
	}
	if a.token != "" {
		_, _ = fmt.Fprintln(a.out, "# remote token stored in keyring")
	}
	return nil
}

// flattenKeys returns dotted paths of the scalar and sequence leaves of a YAML mapping.
func flattenKeys(n *yaml.Node, prefix string) []string {
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		return flattenKeys(n.Content[0], prefix)
	}
	if n.Kind != yaml.MappingNode {
		return []string{prefix}
	}
	var out []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if prefix != "" {
			key = prefix + "." + key
		}
		out = append(out, flattenKeys(n.Content[i+1], key)...)
	}
	return out
}
