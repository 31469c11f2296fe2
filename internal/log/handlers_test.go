/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newConsoleHandler(&buf, slog.LevelDebug, false)).
		With(slog.String(componentKey, "autosave"), slog.String("reason", "interval"))
	l.Debug("save failed",
		slog.String("err", "disk full: no space"),
		slog.Bool("retryable", true),
		slog.Duration("took", 1500*time.Millisecond),
		slog.Float64("zoom", 1.25),
		slog.String("empty", ""),
	)
	out := buf.String()
	for _, want := range []string{
		"DBG [autosave] save failed",
		"reason=interval",
		`err="disk full: no space"`,
		"retryable=true",
		"took=1.5s",
		"zoom=1.25",
		`empty=""`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "component=") {
		t.Fatalf("component should be the prefix: %q", out)
	}
	if !strings.HasSuffix(out, "\n") || strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line: %q", out)
	}
}

func TestConsoleHandlerGroupsAndRedaction(t *testing.T) {
	var buf bytes.Buffer
	h := newConsoleHandler(&buf, slog.LevelWarn, false)
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info enabled at warn level")
	}
	l := slog.New(h).WithGroup("storage").With(slog.String("kind", "postgres"))
	l.Error("open failed",
		slog.String("postgres_dsn", "postgres://u:p@db/x"),
		slog.Group("req", slog.String("Authorization", "Bearer x"), slog.Int("status", 401)),
	)
	out := buf.String()
	for _, want := range []string{
		"ERR open failed",
		"storage.kind=postgres",
		"storage.postgres_dsn=[redacted]",
		"storage.req.Authorization=[redacted]",
		"storage.req.status=401",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "u:p@db") || strings.Contains(out, "Bearer") {
		t.Fatalf("secret leaked: %q", out)
	}
}

func TestConsoleHandlerSource(t *testing.T) {
	var buf bytes.Buffer
	slog.New(newConsoleHandler(&buf, slog.LevelInfo, true)).Info("where")
	if !strings.Contains(buf.String(), "src=handlers_test.go:") {
		t.Fatalf("source missing: %q", buf.String())
	}
}

type failing struct{ slog.Handler }

func (failing) Enabled(_ context.Context, l slog.Level) bool { return l >= slog.LevelInfo }
func (failing) Handle(context.Context, slog.Record) error    { return errors.New("sink down") }

func TestFanoutJoinsErrors(t *testing.T) {
	var buf bytes.Buffer
	f := fanout{newConsoleHandler(&buf, slog.LevelInfo, false), failing{slog.DiscardHandler}}
	if f.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("no handler accepts debug")
	}
	err := slog.New(f).Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "hi", 0))
	if err == nil || !strings.Contains(err.Error(), "sink down") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(buf.String(), "INF hi") {
		t.Fatalf("healthy handler skipped: %q", buf.String())
	}
}
