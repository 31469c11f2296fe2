/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report and a snapshot of the open canvas.
package crash

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"mockupstudio/internal/domain"
	applog "mockupstudio/internal/log"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/telemetry"
	"mockupstudio/internal/version"
)

// Checkpointer exposes the live document; editor.Store implements it.
type Checkpointer interface {
	Checkpoint() (domain.CanvasData, uint64)
}

const (
	reportPrefix   = "crash-"
	snapshotSuffix = ".canvas.json"
	stampLayout    = "20060102-150405"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Recover captures a panic, logs it with the stack trace, writes a crash report
// into dir (the temp dir when empty) and dumps the canvas of doc next to it.
// It then exits with code 2.
//
// Usage: defer crash.Recover(store, dir)
func Recover(doc Checkpointer, dir string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	stamp := time.Now().Format(stampLayout)
	reportPath, err := writeReport(dir, stamp, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if doc != nil {
		if path, err := writeSnapshot(dir, stamp, doc); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", path))
		}
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

func reportDir(dir string) string {
	if dir == "" {
		return os.TempDir()
	}
	return dir
}

func writeReport(dir, stamp string, panicVal any, stack []byte) (string, error) {
	path := filepath.Join(reportDir(dir), reportPrefix+stamp+".log")

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Mockup Studio Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)

	if err := storage.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return path, err
	}
	// uploaded only when the user opted in
	telemetry.UploadCrash(buf.Bytes())
	return path, nil
}

func writeSnapshot(dir, stamp string, doc Checkpointer) (path string, err error) {
	// the document itself may be what panicked
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("checkpoint panicked: %v", r)
		}
	}()
	data, _ := doc.Checkpoint()
	b, err := storage.EncodeCanvasData(data)
	if err != nil {
		return "", err
	}
	path = filepath.Join(reportDir(dir), reportPrefix+stamp+snapshotSuffix)
	return path, storage.WriteFileAtomic(path, b)
}

// LatestSnapshot returns the newest crash snapshot in dir, decoded and validated.
// It returns domain.ErrNotFound when there is none.
func LatestSnapshot(dir string) (string, domain.CanvasData, error) {
	entries, err := os.ReadDir(reportDir(dir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", domain.CanvasData{}, err
	}
	var names []string
	for _, e := range entries {
		if n := e.Name(); !e.IsDir() && strings.HasPrefix(n, reportPrefix) && strings.HasSuffix(n, snapshotSuffix) {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", domain.CanvasData{}, domain.NotFoundf("no crash snapshot in %s", dir)
	}
	sort.Strings(names)
	path := filepath.Join(reportDir(dir), names[len(names)-1])
	b, err := os.ReadFile(path)
	if err != nil {
		return path, domain.CanvasData{}, err
	}
	data, err := storage.DecodeCanvasData(b)
	return path, data, err
}
