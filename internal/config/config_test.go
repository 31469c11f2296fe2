/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"mockupstudio/internal/storage"
)

// isolate points the config file at a temp dir and mocks the keyring.
func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	pathOverride = p
	keyring.MockInit()
	t.Cleanup(func() { pathOverride = "" })
	return p
}

func TestDefaultsWithoutFile(t *testing.T) {
	p := isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
	if cfg.Editor.HistoryDepth != 50 || cfg.Editor.AutosaveIntervalMs != 30000 || cfg.Editor.AutosaveFloorMs != 10000 {
		t.Fatalf("unexpected editor defaults: %#v", cfg.Editor)
	}
	if cfg.Storage.Kind != storage.KindSQLite {
		t.Fatalf("Storage.Kind = %q", cfg.Storage.Kind)
	}
	if want := filepath.Join(filepath.Dir(p), "data", "designs.db"); cfg.Storage.SQLitePath != want {
		t.Fatalf("SQLitePath = %q, want %q", cfg.Storage.SQLitePath, want)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Editor.AutosaveIntervalMs = 45000
	cfg.Storage.Kind = "postgres"
	cfg.Storage.PostgresDSN = "postgres://localhost/mks"
	cfg.Server.AllowedOrigins = []string{"https://app.example"}
	if err := Save(cfg, "tok-123"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "tok-123" {
		t.Fatalf("token = %q", tok)
	}
	if got.Editor.AutosaveIntervalMs != 45000 || got.Storage.Kind != "postgres" || got.Storage.PostgresDSN != "postgres://localhost/mks" {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if len(got.Server.AllowedOrigins) != 1 || got.Server.AllowedOrigins[0] != "https://app.example" {
		t.Fatalf("origins = %v", got.Server.AllowedOrigins)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, tok, _ = Load(); tok != "" {
		t.Fatalf("token after clear = %q", tok)
	}
	if err := ClearToken(); err != nil {
		t.Fatalf("second ClearToken: %v", err)
	}
}

func TestMalformedFileKeepsDefaults(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("editor: [not a map"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Editor.HistoryDepth != 50 {
		t.Fatalf("defaults lost: %#v", cfg.Editor)
	}
}

func TestEnvOverridesStorage(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageKind, "S3")
	t.Setenv(EnvS3Bucket, "designs")
	t.Setenv(EnvQuota, "3")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Kind != "s3" || cfg.Storage.S3Bucket != "designs" || cfg.Storage.Quota != 3 {
		t.Fatalf("storage overrides not applied: %#v", cfg.Storage)
	}
	if got := cfg.StorageOptions(); got.Kind != "s3" || got.S3Bucket != "designs" {
		t.Fatalf("StorageOptions = %#v", got)
	}
	if sc := cfg.ServerConfig(); sc.Quota != 3 {
		t.Fatalf("ServerConfig.Quota = %d", sc.Quota)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "yes")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestEnvOverridesServer(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAllowedOrigins, "https://a.test, https://b.test,")
	t.Setenv(EnvJWTSecret, "s3cret")
	t.Setenv(EnvIssueTokens, "1")
	cfg, _, _ := Load()
	sc := cfg.ServerConfig()
	if len(sc.AllowedOrigins) != 2 || sc.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("origins = %v", sc.AllowedOrigins)
	}
	if sc.Secret != "s3cret" || !sc.IssueTokens {
		t.Fatalf("server config = %#v", sc)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := AppConfig{}
	src.Logging.Level = " DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/mks.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/mks.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	if dst.Editor.HistoryDepth != 50 {
		t.Fatalf("zero values must not clobber defaults: %#v", dst.Editor)
	}
	opts := dst.LogOptions()
	if opts.Level != "debug" || !opts.AddSource {
		t.Fatalf("LogOptions = %#v", opts)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolate(t)
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/tmp/x.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/tmp/x.log" {
		t.Fatalf("logging env overrides not applied: %#v", cfg.Logging)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	t.Setenv(EnvServerAddr, ":9999")
	if name, ok := EnvOverrideFor("server.addr"); !ok || name != EnvServerAddr {
		t.Fatalf("EnvOverrideFor(server.addr) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}

func TestDurations(t *testing.T) {
	cfg := Defaults()
	ac := cfg.AutosaveConfig()
	if ac.Interval != 30*time.Second || ac.Floor != 10*time.Second || ac.Debounce != 5*time.Second || ac.StatusHold != 2*time.Second {
		t.Fatalf("AutosaveConfig = %#v", ac)
	}
	cfg.Storage.TimeoutMs = 0
	if cfg.RemoteTimeout() != 15*time.Second {
		t.Fatalf("RemoteTimeout = %v", cfg.RemoteTimeout())
	}
	if eo := cfg.EditorOptions(); eo.History.MaxDepth != 50 || eo.DuplicateOffset != 10 {
		t.Fatalf("EditorOptions = %#v", eo)
	}
}

func TestHistoryMaxBytesReachesEditor(t *testing.T) {
	p := isolate(t)
	if eo := Defaults().EditorOptions(); eo.History.MaxBytes != DefaultHistoryMaxBytes {
		t.Fatalf("default MaxBytes = %d", eo.History.MaxBytes)
	}
	if err := os.WriteFile(p, []byte("editor:\n  history_max_bytes: 4096\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.EditorOptions().History.MaxBytes; got != 4096 {
		t.Fatalf("file MaxBytes = %d, want 4096", got)
	}
	t.Setenv(EnvHistoryMaxBytes, "8192")
	cfg, _, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := cfg.EditorOptions().History.MaxBytes; got != 8192 {
		t.Fatalf("env MaxBytes = %d, want 8192", got)
	}
}
