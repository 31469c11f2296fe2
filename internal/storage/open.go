/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend kinds accepted by Open.
const (
	KindMemory   = "memory"
	KindFile     = "file"
	KindSQLite   = "sqlite"
	KindPostgres = "postgres"
	KindS3       = "s3"
)

// Options selects and configures a backend.
type Options struct {
	Kind        string
	Dir         string
	Backups     int
	SQLitePath  string
	PostgresDSN string
	S3Bucket    string
	S3Prefix    string
}

// Open returns the configured backend. An empty kind selects memory.
func Open(ctx context.Context, opts Options, l *slog.Logger) (DesignStore, error) {
	if l == nil {
		l = slog.Default()
	}
	kind := strings.ToLower(strings.TrimSpace(opts.Kind))
	var (
		st  DesignStore
		err error
	)
	switch kind {
	case "", KindMemory:
		kind = KindMemory
		st = NewMemoryStore()
	case KindFile:
		st, err = OpenFileStore(opts.Dir, opts.Backups, l)
	case KindSQLite:
		st, err = OpenSQLite(ctx, opts.SQLitePath, l)
	case KindPostgres:
		st, err = OpenPostgres(ctx, opts.PostgresDSN, l)
	case KindS3:
		st, err = OpenS3(ctx, opts.S3Bucket, opts.S3Prefix, l)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Kind)
	}
	if err != nil {
		return nil, err
	}
	l.Info("use storage", slog.String("kind", kind))
	return st, nil
}
