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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"

	"mockupstudio/internal/config"
	"mockupstudio/internal/domain"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/version"
)

func setup(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	t.Setenv(config.EnvStorageKind, storage.KindFile)
	t.Setenv(config.EnvStorageDir, filepath.Join(base, "designs"))
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvRemoteURL, "")
	return base
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndUsage(t *testing.T) {
	setup(t)
	code, out, _ := runCLI(t, "", "version")
	if code != 0 || strings.TrimSpace(out) != version.String() {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	code, out, _ = runCLI(t, "")
	if code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("no args: code=%d out=%q", code, out)
	}
	code, _, errOut := runCLI(t, "", "frobnicate")
	if code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown: code=%d err=%q", code, errOut)
	}
	code, _, errOut = runCLI(t, "", "show")
	if code != 2 || !strings.Contains(errOut, "show requires") {
		t.Fatalf("missing arg: code=%d err=%q", code, errOut)
	}
}

func TestDesignLifecycle(t *testing.T) {
	base := setup(t)

	code, out, errOut := runCLI(t, "", "new", "Landing", "400x300")
	if code != 0 {
		t.Fatalf("new: %d %s", code, errOut)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("new printed no id")
	}

	src := "shape rect 10 10 50 50 as=a\nshape rect 100 40 50 50 as=b\nselect a b\nalign top\ntext 0 0 : Hello\n"
	code, out, errOut = runCLI(t, src, "apply", id, "-")
	if code != 0 {
		t.Fatalf("apply: %d %s", code, errOut)
	}
	if !strings.Contains(out, "Saved "+id) {
		t.Fatalf("apply output = %q", out)
	}

	code, out, _ = runCLI(t, "", "show", id)
	if code != 0 || !strings.Contains(out, "Canvas: 400x300") || !strings.Contains(out, "Elements: 3") {
		t.Fatalf("show: %d %q", code, out)
	}

	code, out, _ = runCLI(t, "", "list")
	if code != 0 || !strings.Contains(out, id) || !strings.Contains(out, "Landing") {
		t.Fatalf("list: %d %q", code, out)
	}

	outDir := filepath.Join(base, "out")
	code, out, errOut = runCLI(t, "", "export", id, "-format", "png,svg", "-out", outDir)
	if code != 0 {
		t.Fatalf("export: %d %s", code, errOut)
	}
	files := strings.Fields(out)
	if len(files) != 2 {
		t.Fatalf("export files = %q", out)
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Fatalf("exported file: %v", err)
		}
	}

	if code, _, errOut = runCLI(t, "", "delete", id); code != 0 {
		t.Fatalf("delete: %d %s", code, errOut)
	}
	code, _, errOut = runCLI(t, "", "show", id)
	if code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("show deleted: %d %q", code, errOut)
	}
	code, out, _ = runCLI(t, "", "list")
	if code != 0 || !strings.Contains(out, "No designs.") {
		t.Fatalf("list after delete: %q", out)
	}
}

func TestApplyNewAndScriptErrors(t *testing.T) {
	setup(t)
	code, out, errOut := runCLI(t, "# Fresh\ncanvas 200 100\nshape ellipse 0 0\n", "apply", "new", "-")
	if code != 0 || !strings.Contains(out, "Saved ") {
		t.Fatalf("apply new: %d %q %q", code, out, errOut)
	}
	code, _, errOut = runCLI(t, "align sideways\n", "apply", "new", "-")
	if code != 1 || !strings.Contains(errOut, "line 1") {
		t.Fatalf("bad script: %d %q", code, errOut)
	}
	code, _, _ = runCLI(t, "", "apply", "new", filepath.Join(t.TempDir(), "missing.txt"))
	if code != 1 {
		t.Fatalf("missing script file: %d", code)
	}
}

func TestRecoverSnapshot(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	if code, _, _ := runCLI(t, "", "recover", dir); code != 1 {
		t.Fatalf("recover without snapshot = %d", code)
	}

	el := domain.NewShape(domain.ShapeRect, 20, 20)
	el.ID = "el-1"
	b, err := storage.EncodeCanvasData(domain.CanvasData{
		Canvas:   domain.DefaultCanvas(),
		Elements: []domain.Element{el},
		Version:  domain.FormatVersion,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "crash-20260101-101010.canvas.json"), b, 0o644); err != nil {
		t.Fatal(err)
	}
	code, out, errOut := runCLI(t, "", "recover", dir)
	if code != 0 || !strings.Contains(out, "Recovered ") {
		t.Fatalf("recover: %d %q %q", code, out, errOut)
	}
	id := strings.TrimSpace(out[strings.LastIndex(out, " "):])
	_, out, _ = runCLI(t, "", "show", id)
	if !strings.Contains(out, "Elements: 1") || !strings.Contains(out, "Recovered crash-20260101-101010") {
		t.Fatalf("recovered design: %q", out)
	}
}

func TestConfigMarksEnvOverrides(t *testing.T) {
	setup(t)
	code, out, _ := runCLI(t, "", "config")
	if code != 0 {
		t.Fatalf("config: %d", code)
	}
	if !strings.Contains(out, "kind: file") || !strings.Contains(out, "# storage.kind set by "+config.EnvStorageKind) {
		t.Fatalf("config output = %q", out)
	}
}

func TestLoginLogout(t *testing.T) {
	setup(t)
	t.Setenv(config.EnvStorageKind, "")
	code, out, errOut := runCLI(t, "", "login", "https://designs.example.com", "tok-1")
	if code != 0 || !strings.Contains(out, "https://designs.example.com") {
		t.Fatalf("login: %d %q", code, errOut)
	}
	cfg, tok, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.Kind != config.StorageRemote || cfg.Storage.RemoteURL != "https://designs.example.com" || tok != "tok-1" {
		t.Fatalf("after login: kind=%q url=%q tok=%q", cfg.Storage.Kind, cfg.Storage.RemoteURL, tok)
	}
	if code, _, _ = runCLI(t, "", "logout"); code != 0 {
		t.Fatalf("logout: %d", code)
	}
	if _, tok, _ = config.Load(); tok != "" {
		t.Fatalf("token after logout = %q", tok)
	}
}
