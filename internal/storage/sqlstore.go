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
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mockupstudio/internal/domain"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name        string
	numberedArg bool // $1, $2 instead of ?
}

var (
	sqliteDialect   = dialect{name: "sqlite"}
	postgresDialect = dialect{name: "postgres", numberedArg: true}
)

// rebind rewrites ? placeholders for the dialect.
func (d dialect) rebind(q string) string {
	if !d.numberedArg {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// language=SQL
const (
	insertDesignSQL = `INSERT INTO designs (id, owner_id, title, description, canvas_data, preview_url, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	updateDesignSQL = `UPDATE designs SET title = ?, description = ?, canvas_data = ?, preview_url = ?, is_public = ?, updated_at = ?
		WHERE owner_id = ? AND id = ?`
	selectCreatedSQL  = `SELECT created_at FROM designs WHERE owner_id = ? AND id = ?`
	selectDesignSQL   = `SELECT title, description, canvas_data, preview_url, is_public, created_at, updated_at FROM designs WHERE owner_id = ? AND id = ?`
	deleteDesignSQL   = `DELETE FROM designs WHERE owner_id = ? AND id = ?`
	deleteRevsSQL     = `DELETE FROM design_revisions WHERE design_id = ?`
	listDesignsSQL    = `SELECT id, title, preview_url, is_public, updated_at FROM designs WHERE owner_id = ? ORDER BY updated_at DESC, id DESC`
	countDesignsSQL   = `SELECT COUNT(*) FROM designs WHERE owner_id = ?`
	insertRevisionSQL = `INSERT INTO design_revisions (design_id, canvas_data, created_at) VALUES (?, ?, ?)`
	listRevisionsSQL  = `SELECT r.id, r.canvas_data, r.created_at FROM design_revisions r
		JOIN designs d ON d.id = r.design_id
		WHERE d.owner_id = ? AND r.design_id = ? ORDER BY r.id DESC LIMIT ?`
	revisedDesignsSQL = `SELECT DISTINCT design_id FROM design_revisions`
	pruneRevisionsSQL = `DELETE FROM design_revisions WHERE design_id = ? AND id NOT IN (
		SELECT id FROM design_revisions WHERE design_id = ? ORDER BY id DESC LIMIT ?
	)`
)

// SQLStore is a DesignStore over database/sql. Every create and update also
// appends a revision row.
type SQLStore struct {
	db         *sql.DB
	dialect    dialect
	log        *slog.Logger
	now        func() time.Time
	previewCap int64
}

func newSQLStore(db *sql.DB, d dialect, l *slog.Logger) *SQLStore {
	return &SQLStore{db: db, dialect: d, log: l, now: time.Now, previewCap: DefaultPreviewCap}
}

func nowNanos() int64 { return time.Now().UTC().UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) q(query string) string { return s.dialect.rebind(query) }

func (s *SQLStore) Create(ctx context.Context, d *domain.Design) error {
	blob, err := EncodeCanvasData(d.CanvasData)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	id := newDesignID()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, s.q(insertDesignSQL), id, d.OwnerID, d.Title, d.Description, string(blob), d.PreviewURL, d.IsPublic, now.UnixNano(), now.UnixNano()); err != nil {
		return fmt.Errorf("insert design: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(insertRevisionSQL), id, string(blob), now.UnixNano()); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.ID = id
	d.CreatedAt, d.UpdatedAt = fromNanos(now.UnixNano()), fromNanos(now.UnixNano())
	s.log.Debug("design created", slog.String("design_id", id), slog.Int("bytes", len(blob)))
	return nil
}

func (s *SQLStore) Update(ctx context.Context, d *domain.Design) error {
	blob, err := EncodeCanvasData(d.CanvasData)
	if err != nil {
		return err
	}
	now := s.now().UTC().UnixNano()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	var created int64
	err = tx.QueryRowContext(ctx, s.q(selectCreatedSQL), d.OwnerID, d.ID).Scan(&created)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(d.ID)
	}
	if err != nil {
		return fmt.Errorf("select design: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(updateDesignSQL), d.Title, d.Description, string(blob), d.PreviewURL, d.IsPublic, now, d.OwnerID, d.ID); err != nil {
		return fmt.Errorf("update design: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(insertRevisionSQL), d.ID, string(blob), now); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(invalidatePrevsSQL), d.ID); err != nil {
		return fmt.Errorf("invalidate previews: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	d.CreatedAt, d.UpdatedAt = fromNanos(created), fromNanos(now)
	return nil
}

func (s *SQLStore) Get(ctx context.Context, ownerID, id string) (*domain.Design, error) {
	d := &domain.Design{ID: id, OwnerID: ownerID}
	var blob []byte
	var created, updated int64
	err := s.db.QueryRowContext(ctx, s.q(selectDesignSQL), ownerID, id).
		Scan(&d.Title, &d.Description, &blob, &d.PreviewURL, &d.IsPublic, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select design: %w", err)
	}
	data, err := DecodeCanvasData(blob)
	if err != nil {
		return nil, fmt.Errorf("design %s: %w", id, err)
	}
	d.CanvasData = data
	d.CreatedAt, d.UpdatedAt = fromNanos(created), fromNanos(updated)
	return d, nil
}

func (s *SQLStore) Delete(ctx context.Context, ownerID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	res, err := tx.ExecContext(ctx, s.q(deleteDesignSQL), ownerID, id)
	if err != nil {
		return fmt.Errorf("delete design: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(id)
	}
	if _, err := tx.ExecContext(ctx, s.q(deleteRevsSQL), id); err != nil {
		return fmt.Errorf("delete revisions: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) List(ctx context.Context, ownerID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(listDesignsSQL), ownerID)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Summary{}
	for rows.Next() {
		var sum Summary
		var updated int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.PreviewURL, &sum.IsPublic, &updated); err != nil {
			return nil, err
		}
		sum.UpdatedAt = fromNanos(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) Count(ctx context.Context, ownerID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, s.q(countDesignsSQL), ownerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count designs: %w", err)
	}
	return n, nil
}

// Revisions returns up to limit stored payloads of a design, newest first.
func (s *SQLStore) Revisions(ctx context.Context, ownerID, id string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(listRevisionsSQL), ownerID, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var r Revision
		var blob []byte
		var created int64
		if err := rows.Scan(&r.ID, &blob, &created); err != nil {
			return nil, err
		}
		if r.CanvasData, err = DecodeCanvasData(blob); err != nil {
			s.log.Warn("skipping unreadable revision", slog.Int64("revision", r.ID), slog.Any("err", err))
			continue
		}
		r.CreatedAt = fromNanos(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneRevisions keeps the newest keep revisions of each design.
func (s *SQLStore) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	rows, err := s.db.QueryContext(ctx, revisedDesignsSQL)
	if err != nil {
		return 0, fmt.Errorf("list revised designs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx, s.q(pruneRevisionsSQL), id, id, keep)
		if err != nil {
			return total, fmt.Errorf("prune revisions of %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if total > 0 {
		s.log.Info("revisions pruned", slog.Int64("deleted", total), slog.Int("keep", keep))
	}
	return total, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }
