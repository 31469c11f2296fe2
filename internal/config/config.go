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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"mockupstudio/internal/autosave"
	"mockupstudio/internal/backend"
	"mockupstudio/internal/editor"
	mlog "mockupstudio/internal/log"
	"mockupstudio/internal/storage"
	"mockupstudio/internal/undo"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	// Owner is the local identity used when no remote account is configured.
	Owner string `yaml:"owner"`
}

// DefaultHistoryMaxBytes caps the encoded snapshots kept for undo.
const DefaultHistoryMaxBytes = 64 << 20

// EditorConfig holds durations in milliseconds to keep the YAML flat.
type EditorConfig struct {
	HistoryDepth       int     `yaml:"history_depth"`
	HistoryMaxBytes    int     `yaml:"history_max_bytes"` // 0 means unbounded
	DuplicateOffset    float64 `yaml:"duplicate_offset"`
	AutosaveIntervalMs int     `yaml:"autosave_interval_ms"`
	AutosaveFloorMs    int     `yaml:"autosave_floor_ms"`
	ManualDebounceMs   int     `yaml:"manual_debounce_ms"`
	StatusHoldMs       int     `yaml:"status_hold_ms"`
	AutosaveOnHide     bool    `yaml:"autosave_on_hide"`
}

// StorageConfig selects the persistence backend. Kind "remote" talks to a
// design API server at RemoteURL with the token kept in the OS keyring.
type StorageConfig struct {
	Kind        string `yaml:"kind"`
	Dir         string `yaml:"dir"`
	Backups     int    `yaml:"backups"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Prefix    string `yaml:"s3_prefix"`
	RemoteURL   string `yaml:"remote_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	Quota       int    `yaml:"quota"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	KeepRevisions  int      `yaml:"keep_revisions"`
	PruneSchedule  string   `yaml:"prune_schedule"`
	IssueTokens    bool     `yaml:"issue_tokens"`
	// Secret is never written to disk; set it through MKS_JWT_SECRET.
	Secret string `yaml:"-"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// StorageRemote is the storage kind served by the design API client.
const StorageRemote = "remote"

// Defaults returns the application defaults.
func Defaults() AppConfig {
	as := autosave.DefaultConfig()
	srv := backend.DefaultConfig()
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{Theme: "system", Owner: "local"},
		Editor: EditorConfig{
			HistoryDepth:       undo.DefaultMaxDepth,
			HistoryMaxBytes:    DefaultHistoryMaxBytes,
			DuplicateOffset:    editor.DefaultDuplicateOffset,
			AutosaveIntervalMs: int(as.Interval / time.Millisecond),
			AutosaveFloorMs:    int(as.Floor / time.Millisecond),
			ManualDebounceMs:   int(as.Debounce / time.Millisecond),
			StatusHoldMs:       int(as.StatusHold / time.Millisecond),
			AutosaveOnHide:     true,
		},
		Storage: StorageConfig{Kind: storage.KindSQLite, Backups: 5, TimeoutMs: 15000},
		Server: ServerConfig{
			Addr:           srv.Addr,
			AllowedOrigins: srv.AllowedOrigins,
			KeepRevisions:  srv.KeepRevisions,
			PruneSchedule:  srv.PruneSchedule,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvOwner           = "MKS_OWNER"
	EnvTelemetryOptIn  = "MKS_TELEMETRY_OPT_IN"
	EnvAutosaveMs      = "MKS_AUTOSAVE_INTERVAL_MS"
	EnvHistoryDepth    = "MKS_HISTORY_DEPTH"
	EnvHistoryMaxBytes = "MKS_HISTORY_MAX_BYTES"
	EnvStorageKind     = "MKS_STORAGE"
	EnvStorageDir      = "MKS_STORAGE_DIR"
	EnvSQLitePath      = "MKS_SQLITE_PATH"
	EnvPostgresDSN     = "MKS_PG_DSN"
	EnvS3Bucket        = "MKS_S3_BUCKET"
	EnvS3Prefix        = "MKS_S3_PREFIX"
	EnvRemoteURL       = "MKS_REMOTE_URL"
	EnvRemoteTimeoutMs = "MKS_REMOTE_TIMEOUT_MS"
	EnvQuota           = "MKS_QUOTA"
	EnvServerAddr      = "MKS_ADDR"
	EnvAllowedOrigins  = "MKS_ALLOWED_ORIGINS"
	EnvIssueTokens     = "MKS_ISSUE_TOKENS"
	EnvJWTSecret       = "MKS_JWT_SECRET"
	EnvLogLevel        = "MKS_LOG_LEVEL"
	EnvLogFormat       = "MKS_LOG_FORMAT"
	EnvLogSource       = "MKS_LOG_SOURCE"
	EnvLogFile         = "MKS_LOG_FILE"
)

// envKeys maps YAML keys to the env var overriding them.
var envKeys = map[string]string{
	"general.owner":               EnvOwner,
	"general.telemetry_opt_in":    EnvTelemetryOptIn,
	"editor.autosave_interval_ms": EnvAutosaveMs,
	"editor.history_depth":        EnvHistoryDepth,
	"editor.history_max_bytes":    EnvHistoryMaxBytes,
	"storage.kind":                EnvStorageKind,
	"storage.dir":                 EnvStorageDir,
	"storage.sqlite_path":         EnvSQLitePath,
	"storage.postgres_dsn":        EnvPostgresDSN,
	"storage.s3_bucket":           EnvS3Bucket,
	"storage.s3_prefix":           EnvS3Prefix,
	"storage.remote_url":          EnvRemoteURL,
	"storage.timeout_ms":          EnvRemoteTimeoutMs,
	"storage.quota":               EnvQuota,
	"server.addr":                 EnvServerAddr,
	"server.allowed_origins":      EnvAllowedOrigins,
	"server.issue_tokens":         EnvIssueTokens,
	"logging.level":               EnvLogLevel,
	"logging.format":              EnvLogFormat,
	"logging.source":              EnvLogSource,
	"logging.file":                EnvLogFile,
}

// Service/keys for OS keyring.
const (
	keyringService = "MockupStudio"
	keyringToken   = "remote_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring stores secrets in the OS keychain via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// SetTokenStore replaces the keyring backend and returns the previous one.
func SetTokenStore(ts TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = ts
	return prev
}

// pathOverride is used by tests to redirect ConfigPath.
var pathOverride string

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if pathOverride != "" {
		return pathOverride, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "MockupStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "MockupStudio")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = filepath.Join(xdg, "mockupstudio")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "mockupstudio")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// DataDir is the directory next to the config file that holds local designs.
func DataDir() (string, error) {
	p, err := ConfigPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(p), "data"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The remote token comes from the keyring and is returned separately.
// A malformed file is reported but the defaults are still returned.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	var parseErr error
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			parseErr = fmt.Errorf("parse %s: %w", path, err)
		} else {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	fillPaths(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, parseErr
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// ClearToken removes the remote token from the keyring.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	setStr(&dst.General.Theme, src.General.Theme)
	setStr(&dst.General.Owner, src.General.Owner)

	setInt(&dst.Editor.HistoryDepth, src.Editor.HistoryDepth)
	setInt(&dst.Editor.HistoryMaxBytes, src.Editor.HistoryMaxBytes)
	if src.Editor.DuplicateOffset != 0 {
		dst.Editor.DuplicateOffset = src.Editor.DuplicateOffset
	}
	setInt(&dst.Editor.AutosaveIntervalMs, src.Editor.AutosaveIntervalMs)
	setInt(&dst.Editor.AutosaveFloorMs, src.Editor.AutosaveFloorMs)
	setInt(&dst.Editor.ManualDebounceMs, src.Editor.ManualDebounceMs)
	setInt(&dst.Editor.StatusHoldMs, src.Editor.StatusHoldMs)
	dst.Editor.AutosaveOnHide = src.Editor.AutosaveOnHide

	if k := strings.ToLower(strings.TrimSpace(src.Storage.Kind)); k != "" {
		dst.Storage.Kind = k
	}
	setStr(&dst.Storage.Dir, src.Storage.Dir)
	setInt(&dst.Storage.Backups, src.Storage.Backups)
	setStr(&dst.Storage.SQLitePath, src.Storage.SQLitePath)
	setStr(&dst.Storage.PostgresDSN, src.Storage.PostgresDSN)
	setStr(&dst.Storage.S3Bucket, src.Storage.S3Bucket)
	setStr(&dst.Storage.S3Prefix, src.Storage.S3Prefix)
	setStr(&dst.Storage.RemoteURL, src.Storage.RemoteURL)
	setInt(&dst.Storage.TimeoutMs, src.Storage.TimeoutMs)
	setInt(&dst.Storage.Quota, src.Storage.Quota)

	setStr(&dst.Server.Addr, src.Server.Addr)
	if len(src.Server.AllowedOrigins) > 0 {
		dst.Server.AllowedOrigins = append([]string(nil), src.Server.AllowedOrigins...)
	}
	setInt(&dst.Server.KeepRevisions, src.Server.KeepRevisions)
	setStr(&dst.Server.PruneSchedule, src.Server.PruneSchedule)
	dst.Server.IssueTokens = src.Server.IssueTokens

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	setStr(&dst.Logging.File, src.Logging.File)
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	envStr(EnvOwner, &cfg.General.Owner)
	envBool(EnvTelemetryOptIn, &cfg.General.TelemetryOptIn)
	envInt(EnvAutosaveMs, &cfg.Editor.AutosaveIntervalMs)
	envInt(EnvHistoryDepth, &cfg.Editor.HistoryDepth)
	envInt(EnvHistoryMaxBytes, &cfg.Editor.HistoryMaxBytes)
	if v := strings.TrimSpace(os.Getenv(EnvStorageKind)); v != "" {
		cfg.Storage.Kind = strings.ToLower(v)
	}
	envStr(EnvStorageDir, &cfg.Storage.Dir)
	envStr(EnvSQLitePath, &cfg.Storage.SQLitePath)
	envStr(EnvPostgresDSN, &cfg.Storage.PostgresDSN)
	envStr(EnvS3Bucket, &cfg.Storage.S3Bucket)
	envStr(EnvS3Prefix, &cfg.Storage.S3Prefix)
	envStr(EnvRemoteURL, &cfg.Storage.RemoteURL)
	envInt(EnvRemoteTimeoutMs, &cfg.Storage.TimeoutMs)
	envInt(EnvQuota, &cfg.Storage.Quota)
	envStr(EnvServerAddr, &cfg.Server.Addr)
	if v := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.Server.AllowedOrigins = origins
	}
	envBool(EnvIssueTokens, &cfg.Server.IssueTokens)
	envStr(EnvJWTSecret, &cfg.Server.Secret)
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	envBool(EnvLogSource, &cfg.Logging.Source)
	envStr(EnvLogFile, &cfg.Logging.File)
}

func envStr(name string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(name string, dst *bool) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		lv := strings.ToLower(v)
		*dst = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
}

// fillPaths places local stores under the data dir when no path was given.
func fillPaths(cfg *AppConfig) {
	if cfg.Storage.Dir != "" && cfg.Storage.SQLitePath != "" {
		return
	}
	dir, err := DataDir()
	if err != nil {
		return
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(dir, "designs")
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = filepath.Join(dir, "designs.db")
	}
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// LogOptions converts the logging section for mlog.Init.
func (c AppConfig) LogOptions() mlog.Options {
	return mlog.Options{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.Source, File: c.Logging.File}
}

// StorageOptions converts the storage section for storage.Open.
func (c AppConfig) StorageOptions() storage.Options {
	return storage.Options{
		Kind:        c.Storage.Kind,
		Dir:         c.Storage.Dir,
		Backups:     c.Storage.Backups,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		S3Bucket:    c.Storage.S3Bucket,
		S3Prefix:    c.Storage.S3Prefix,
	}
}

// RemoteTimeout is the HTTP timeout for the remote design API.
func (c AppConfig) RemoteTimeout() time.Duration {
	if c.Storage.TimeoutMs <= 0 {
		return ms(Defaults().Storage.TimeoutMs)
	}
	return ms(c.Storage.TimeoutMs)
}

// ServerConfig converts the server section for backend.NewServer.
func (c AppConfig) ServerConfig() backend.Config {
	bc := backend.DefaultConfig()
	setStr(&bc.Addr, c.Server.Addr)
	if len(c.Server.AllowedOrigins) > 0 {
		bc.AllowedOrigins = c.Server.AllowedOrigins
	}
	if c.Server.KeepRevisions > 0 {
		bc.KeepRevisions = c.Server.KeepRevisions
	}
	setStr(&bc.PruneSchedule, c.Server.PruneSchedule)
	bc.IssueTokens = c.Server.IssueTokens
	bc.Secret = c.Server.Secret
	bc.Quota = c.Storage.Quota
	return bc
}

// AutosaveConfig converts the editor section for autosave.New.
// The scheduler itself enforces the floor.
func (c AppConfig) AutosaveConfig() autosave.Config {
	return autosave.Config{
		Interval:   ms(c.Editor.AutosaveIntervalMs),
		Floor:      ms(c.Editor.AutosaveFloorMs),
		Debounce:   ms(c.Editor.ManualDebounceMs),
		StatusHold: ms(c.Editor.StatusHoldMs),
	}
}

// EditorOptions converts the editor section for editor.NewStore.
func (c AppConfig) EditorOptions() editor.Options {
	return editor.Options{
		History:         undo.Config{MaxDepth: c.Editor.HistoryDepth, MaxBytes: c.Editor.HistoryMaxBytes},
		DuplicateOffset: c.Editor.DuplicateOffset,
	}
}
