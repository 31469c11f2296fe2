/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mockupstudio/internal/domain"
	applog "mockupstudio/internal/log"
	"mockupstudio/internal/storage"
)

var testSecret = []byte("test-secret")

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, storage.DesignStore) {
	t.Helper()
	st := storage.NewMemoryStore()
	cfg.Secret = string(testSecret)
	srv := httptest.NewServer(NewServer(st, cfg, applog.Discard()).Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func token(t *testing.T, owner string) string {
	t.Helper()
	tok, _, err := SignToken(testSecret, owner, time.Minute)
	if err != nil {
		t.Fatalf("SignToken: %v", err)
	}
	return tok
}

func sampleData() domain.CanvasData {
	el := domain.NewShape(domain.ShapeRect, 100, 100)
	el.ID = "s1"
	txt := domain.NewText("Welcome")
	txt.ID, txt.ZIndex = "t1", 1
	return domain.CanvasData{Canvas: domain.Canvas{Width: 390, Height: 844, Zoom: 1, Background: "#ffffff"}, Elements: []domain.Element{el, txt}}
}

func TestTokenRoundTrip(t *testing.T) {
	tok := token(t, "alice")
	c, err := ParseToken(testSecret, tok)
	if err != nil || c.Subject != "alice" {
		t.Fatalf("ParseToken = %+v, %v", c, err)
	}
	if _, err := ParseToken([]byte("other"), tok); err == nil {
		t.Fatalf("token accepted with the wrong secret")
	}
	expired, _, _ := SignToken(testSecret, "alice", -time.Minute)
	if _, err := ParseToken(testSecret, expired); err == nil {
		t.Fatalf("expired token accepted")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[error]int{
		domain.Validationf("x"):                           http.StatusBadRequest,
		domain.ErrAuthRequired:                            http.StatusUnauthorized,
		domain.ErrLimitExceeded:                           http.StatusForbidden,
		domain.NotFoundf("x"):                             http.StatusNotFound,
		domain.PersistenceError("op", errors.New("boom")): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := StatusFor(err); got != want {
			t.Errorf("StatusFor(%v) = %d, want %d", err, got, want)
		}
		if want != http.StatusInternalServerError && !errors.Is(errorFor(want), errClass(err)) {
			t.Errorf("errorFor(%d) does not invert", want)
		}
	}
}

func errClass(err error) error {
	for _, c := range []error{domain.ErrValidation, domain.ErrAuthRequired, domain.ErrLimitExceeded, domain.ErrNotFound} {
		if errors.Is(err, c) {
			return c
		}
	}
	return domain.ErrPersistence
}

func TestDesignsRequireAuth(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	resp, err := http.Get(srv.URL + "/api/designs")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/designs", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", resp.StatusCode)
	}
}

func TestRejectsInvalidCanvasData(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	body := `{"title":"x","canvas_data":{"canvas":{"width":-1,"height":5},"elements":[],"version":1}}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/designs", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var e map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&e)
	if !strings.Contains(e["error"], "canvas_data") {
		t.Fatalf("error = %q", e["error"])
	}
}

func TestIssueTokenOnlyWhenEnabled(t *testing.T) {
	srv, _ := newTestServer(t, DefaultConfig())
	resp, err := http.Post(srv.URL+"/api/auth/token", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatalf("token endpoint enabled by default")
	}

	cfg := DefaultConfig()
	cfg.IssueTokens = true
	srv, _ = newTestServer(t, cfg)
	resp, err = http.Post(srv.URL+"/api/auth/token", "application/json", strings.NewReader(`{"subject":"bob"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		t.Fatalf("token response: %+v, %v", out, err)
	}
	if c, err := ParseToken(testSecret, out.Token); err != nil || c.Subject != "bob" {
		t.Fatalf("issued token = %+v, %v", c, err)
	}
}

func TestPreviewAndExport(t *testing.T) {
	srv, st := newTestServer(t, DefaultConfig())
	d := &domain.Design{OwnerID: "alice", Title: "Home", CanvasData: sampleData()}
	if err := st.Create(context.Background(), d); err != nil {
		t.Fatal(err)
	}
	get := func(path string) *http.Response {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		req.Header.Set("Authorization", "Bearer "+token(t, "alice"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	resp := get("/api/designs/" + d.ID + "/preview.png?w=64&h=64")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("preview: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	resp = get("/api/designs/" + d.ID + "/export.svg")
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(buf.String(), "<svg") {
		t.Fatalf("svg export: %d", resp.StatusCode)
	}
	if resp := get("/api/designs/" + d.ID + "/export.gif"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("gif export status = %d", resp.StatusCode)
	}
	if resp := get("/api/designs/" + d.ID + "/revisions"); resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("revisions on memory store = %d", resp.StatusCode)
	}
}

func TestPruneScheduleValidation(t *testing.T) {
	st, err := storage.OpenSQLite(context.Background(), t.TempDir()+"/p.db", applog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	cfg := DefaultConfig()
	cfg.PruneSchedule = "not a schedule"
	s := NewServer(st, cfg, applog.Discard())
	if err := s.StartPrune(context.Background()); err == nil {
		t.Fatalf("invalid schedule accepted")
	}
	cfg.PruneSchedule = "@every 1h"
	s = NewServer(st, cfg, applog.Discard())
	if err := s.StartPrune(context.Background()); err != nil {
		t.Fatalf("StartPrune: %v", err)
	}
	s.StopPrune()
}
