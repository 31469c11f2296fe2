/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package log configures the slog logger shared by the editor, the CLI and
// the design server. Console output is a compact one-line format with the
// component as prefix; JSON goes to the console on request and always to the
// optional rotated log file. Attributes that look like credentials are
// redacted in every handler.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"mockupstudio/internal/version"
)

// Options controls Init. FromEnv reads them from MKS_LOG_LEVEL,
// MKS_LOG_FORMAT (console|json), MKS_LOG_SOURCE and MKS_LOG_FILE.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string // rotated JSON log, empty disables it
	// MaxSizeMB and MaxBackups bound the rotated file; zero means 10 MB and 3 backups.
	MaxSizeMB  int
	MaxBackups int
	// Writer replaces stderr for console output.
	Writer io.Writer
}

var (
	mu      sync.RWMutex
	current *slog.Logger
	closer  io.Closer
)

// L returns the process logger, initialising it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the process logger and slog.Default. A previously opened log
// file is closed.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	jsonOpts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource, ReplaceAttr: redact}

	var console slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		console = slog.NewJSONHandler(out, jsonOpts)
	} else {
		console = newConsoleHandler(out, lvl, opts.AddSource)
	}
	h := withContextAttrs(console)

	var file *lj.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		file = &lj.Logger{
			Filename:   path,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     28,
			Compress:   true,
		}
		h = fanout{h, withContextAttrs(slog.NewJSONHandler(file, jsonOpts))}
	}

	logger := slog.New(h).With(slog.String("app", "mockupstudio"), slog.String("ver", version.String()))

	mu.Lock()
	prev := closer
	current = logger
	closer = nil
	if file != nil {
		closer = file
	}
	mu.Unlock()
	slog.SetDefault(logger)
	if prev != nil {
		_ = prev.Close()
	}
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// FromEnv builds Options from the MKS_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("MKS_LOG_LEVEL", "info"),
		Format:    getenv("MKS_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("MKS_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("MKS_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// WithComponent returns the process logger tagged with a component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String(componentKey, name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// WithDesign tags l with the design being edited or persisted.
func WithDesign(l *slog.Logger, id string) *slog.Logger {
	if id == "" {
		return l
	}
	return l.With(slog.String("design_id", id))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

type ctxKey struct{}

// ContextWithAttrs attaches attributes that are added to every record logged
// with ctx, such as the request id in the design server.
func ContextWithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := append(append(make([]slog.Attr, 0, len(prev)+len(attrs)), prev...), attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

const redacted = "[redacted]"

var secretKeys = []string{"token", "secret", "password", "authorization", "dsn"}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// redact is a slog ReplaceAttr hook.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindGroup && isSecret(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}
