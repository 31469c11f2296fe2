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
	"strings"
)

// DefaultPreviewCap bounds the bytes held by the preview cache.
const DefaultPreviewCap = 256 << 20

// language=SQL
const (
	selectPreviewSQL = `SELECT png FROM design_previews WHERE design_id = ? AND w = ? AND h = ?`
	touchPreviewSQL  = `UPDATE design_previews SET last_access = ? WHERE design_id = ? AND w = ? AND h = ?`
	upsertPreviewSQL = `INSERT INTO design_previews (design_id, w, h, png, size, updated_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (design_id, w, h) DO UPDATE SET png = excluded.png, size = excluded.size,
			updated_at = excluded.updated_at, last_access = excluded.last_access`
	sumPreviewsSQL     = `SELECT COALESCE(SUM(size), 0) FROM design_previews`
	previewVictimsSQL  = `SELECT design_id, w, h, size FROM design_previews ORDER BY last_access ASC`
	deletePreviewSQL   = `DELETE FROM design_previews WHERE design_id = ? AND w = ? AND h = ?`
	invalidatePrevsSQL = `DELETE FROM design_previews WHERE design_id = ?`
)

// SetPreviewCap changes the cache size limit. Zero or less disables eviction.
func (s *SQLStore) SetPreviewCap(n int64) { s.previewCap = n }

// GetPreview returns a cached thumbnail and marks it recently used.
func (s *SQLStore) GetPreview(ctx context.Context, designID string, w, h int) ([]byte, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, s.q(selectPreviewSQL), designID, w, h).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query preview: %w", err)
	}
	_, _ = s.db.ExecContext(ctx, s.q(touchPreviewSQL), nowNanos(), designID, w, h)
	return blob, true, nil
}

// PutPreview stores a thumbnail and evicts least recently used entries until
// the cache fits its cap.
func (s *SQLStore) PutPreview(ctx context.Context, designID string, w, h int, png []byte) error {
	now := nowNanos()
	if _, err := s.db.ExecContext(ctx, s.q(upsertPreviewSQL), designID, w, h, png, len(png), now, now); err != nil {
		return fmt.Errorf("upsert preview: %w", err)
	}
	if s.previewCap > 0 {
		return s.EvictPreviewsToFit(ctx, s.previewCap)
	}
	return nil
}

// GetOrCreatePreview returns the cached thumbnail or renders, stores and
// returns a new one.
func (s *SQLStore) GetOrCreatePreview(ctx context.Context, designID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, ok, err := s.GetPreview(ctx, designID, w, h); err != nil || ok {
		return b, err
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.PutPreview(ctx, designID, w, h, data); err != nil {
		// serve the rendered image even if caching failed
		s.log.Warn("cache preview failed", slog.String("design_id", designID), slog.Any("err", err))
	}
	return data, nil
}

// InvalidatePreviews drops every cached thumbnail of a design.
func (s *SQLStore) InvalidatePreviews(ctx context.Context, designID string) error {
	_, err := s.db.ExecContext(ctx, s.q(invalidatePrevsSQL), designID)
	return err
}

// TotalPreviewBytes returns the bytes held by the cache.
func (s *SQLStore) TotalPreviewBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, sumPreviewsSQL).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum previews: %w", err)
	}
	return total, nil
}

type previewKey struct {
	designID string
	w, h     int
}

// EvictPreviewsToFit deletes least recently used previews until the total
// size is at most capBytes.
func (s *SQLStore) EvictPreviewsToFit(ctx context.Context, capBytes int64) error {
	total, err := s.TotalPreviewBytes(ctx)
	if err != nil || total <= capBytes {
		return err
	}
	rows, err := s.db.QueryContext(ctx, previewVictimsSQL)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	var victims []previewKey
	for rows.Next() {
		var k previewKey
		var size int64
		if err := rows.Scan(&k.designID, &k.w, &k.h, &size); err != nil {
			_ = rows.Close()
			return err
		}
		victims = append(victims, k)
		total -= size
		if total <= capBytes {
			break
		}
	}
	// the cursor must be closed before writing on a single-connection pool
	if err := rows.Close(); err != nil {
		return err
	}
	for _, k := range victims {
		if _, err := s.db.ExecContext(ctx, s.q(deletePreviewSQL), k.designID, k.w, k.h); err != nil {
			return fmt.Errorf("evict preview: %w", err)
		}
	}
	if len(victims) > 0 {
		s.log.Debug("previews evicted", slog.Int("count", len(victims)), slog.String("ids", joinPreviewIDs(victims)))
	}
	return nil
}

func joinPreviewIDs(ks []previewKey) string {
	ids := make([]string, len(ks))
	for i, k := range ks {
		ids[i] = fmt.Sprintf("%s@%dx%d", k.designID, k.w, k.h)
	}
	return strings.Join(ids, ",")
}
