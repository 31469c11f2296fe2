/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mockupstudio/internal/domain"
)

type fixedDoc struct{ data domain.CanvasData }

func (d fixedDoc) Checkpoint() (domain.CanvasData, uint64) { return d.data, 1 }

type panickingDoc struct{}

func (panickingDoc) Checkpoint() (domain.CanvasData, uint64) { panic("broken document") }

func sample() domain.CanvasData {
	txt := domain.NewText("Hello")
	txt.ID = "t1"
	txt.X, txt.Y = 10, 20
	return domain.CanvasData{Canvas: domain.DefaultCanvas(), Elements: []domain.Element{txt}, Version: domain.FormatVersion}
}

// silence redirects stderr for the duration of the test.
func silence(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(io.Discard, r)
		close(done)
	}()
	t.Cleanup(func() {
		_ = w.Close()
		<-done
		os.Stderr = old
	})
}

func interceptExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func findReport(t *testing.T, dir string) string {
	t.Helper()
	files, _ := os.ReadDir(dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log") {
			return filepath.Join(dir, f.Name())
		}
	}
	t.Fatalf("no crash report in %s", dir)
	return ""
}

func TestRecoverWritesReportAndSnapshot(t *testing.T) {
	silence(t)
	code := interceptExit(t)
	dir := t.TempDir()

	func() {
		defer Recover(fixedDoc{sample()}, dir)
		panic("boom")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	b, err := os.ReadFile(findReport(t, dir))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Mockup Studio Crash Report")) || !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("unexpected report: %s", b)
	}
	path, data, err := LatestSnapshot(dir)
	if err != nil {
		t.Fatalf("LatestSnapshot: %v", err)
	}
	if !strings.HasSuffix(path, ".canvas.json") || len(data.Elements) != 1 || data.Elements[0].ID != "t1" {
		t.Fatalf("snapshot %s = %#v", path, data)
	}
}

func TestRecoverSurvivesPanickingDocument(t *testing.T) {
	silence(t)
	code := interceptExit(t)
	dir := t.TempDir()

	func() {
		defer Recover(panickingDoc{}, dir)
		panic("first")
	}()

	if *code != 2 {
		t.Fatalf("exit code = %d, want 2", *code)
	}
	findReport(t, dir)
	if _, _, err := LatestSnapshot(dir); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no snapshot, got %v", err)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	code := interceptExit(t)
	dir := t.TempDir()
	func() {
		defer Recover(fixedDoc{sample()}, dir)
	}()
	if *code != -1 {
		t.Fatalf("exit called without panic")
	}
	if files, _ := os.ReadDir(dir); len(files) != 0 {
		t.Fatalf("unexpected files: %v", files)
	}
}

func TestLatestSnapshotMissingDir(t *testing.T) {
	_, _, err := LatestSnapshot(filepath.Join(t.TempDir(), "nope"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
