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
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"mockupstudio/internal/domain"
)

// BackupsDirName holds the previous versions of each design file.
const BackupsDirName = "backups"

// FileStore keeps one JSON document per design under <root>/<owner>/<id>.json.
// Every overwrite first copies the current file into the owner's backups
// directory; a file that cannot be parsed is read from its latest backup.
type FileStore struct {
	mu   sync.Mutex
	root string
	keep int
	log  *slog.Logger
	now  func() time.Time
}

// OpenFileStore creates root if needed. keep bounds the backups per design.
func OpenFileStore(root string, keep int, l *slog.Logger) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("file store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	if l == nil {
		l = slog.Default()
	}
	if keep <= 0 {
		keep = 5
	}
	return &FileStore{root: root, keep: keep, log: l, now: time.Now}, nil
}

func (s *FileStore) path(ownerID, id string) (string, error) {
	for _, part := range []string{ownerID, id} {
		if part == "" || part == "." || part == ".." || filepath.Base(part) != part {
			return "", domain.Validationf("invalid file name %q", part)
		}
	}
	return filepath.Join(s.root, ownerID, id+".json"), nil
}

func (s *FileStore) write(r record) error {
	p, err := s.path(r.OwnerID, r.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal design: %w", err)
	}
	data = append(data, '\n')
	if _, statErr := os.Stat(p); statErr == nil {
		if err := s.backup(p, r.ID); err != nil {
			return fmt.Errorf("backup design: %w", err)
		}
	}
	return WriteFileAtomic(p, data)
}

func (s *FileStore) backup(p, id string) error {
	dir := filepath.Join(filepath.Dir(p), BackupsDirName)
	stamp := s.now().UTC().Format("20060102-150405.000000000")
	if err := copyFile(p, filepath.Join(dir, fmt.Sprintf("%s.%s.bak", id, stamp))); err != nil {
		return err
	}
	backups, err := s.backups(dir, id)
	if err != nil {
		return err
	}
	for len(backups) > s.keep {
		_ = os.Remove(backups[0])
		backups = backups[1:]
	}
	return nil
}

// backups lists the backup files of id, oldest first.
func (s *FileStore) backups(dir, id string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, id+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *FileStore) read(ownerID, id string) (record, error) {
	p, err := s.path(ownerID, id)
	if err != nil {
		return record{}, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, notFound(id)
	}
	if err != nil {
		return record{}, fmt.Errorf("read design: %w", err)
	}
	var r record
	uerr := json.Unmarshal(b, &r)
	if uerr == nil {
		return r, nil
	}
	s.log.Warn("design file unreadable, trying backup", slog.String("path", p), slog.Any("err", uerr))
	backups, err := s.backups(filepath.Join(filepath.Dir(p), BackupsDirName), id)
	if err != nil || len(backups) == 0 {
		return record{}, domain.Validationf("design %s is corrupt and has no backup", id)
	}
	b, err = os.ReadFile(backups[len(backups)-1])
	if err != nil {
		return record{}, fmt.Errorf("read backup: %w", err)
	}
	if err := json.Unmarshal(b, &r); err != nil {
		return record{}, domain.Validationf("design %s backup: %v", id, err)
	}
	return r, nil
}

func (s *FileStore) Create(_ context.Context, d *domain.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	c := *d
	c.ID = newDesignID()
	c.CreatedAt, c.UpdatedAt = now, now
	r, err := toRecord(&c)
	if err != nil {
		return err
	}
	if err := s.write(r); err != nil {
		return err
	}
	*d = c
	return nil
}

func (s *FileStore) Update(_ context.Context, d *domain.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.read(d.OwnerID, d.ID)
	if err != nil {
		return err
	}
	c := *d
	c.CreatedAt = cur.CreatedAt
	c.UpdatedAt = s.now().UTC()
	r, err := toRecord(&c)
	if err != nil {
		return err
	}
	if err := s.write(r); err != nil {
		return err
	}
	*d = c
	return nil
}

func (s *FileStore) Get(_ context.Context, ownerID, id string) (*domain.Design, error) {
	s.mu.Lock()
	r, err := s.read(ownerID, id)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.design()
}

func (s *FileStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.path(ownerID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notFound(id)
		}
		return fmt.Errorf("remove design: %w", err)
	}
	backups, _ := s.backups(filepath.Join(filepath.Dir(p), BackupsDirName), id)
	for _, b := range backups {
		_ = os.Remove(b)
	}
	return nil
}

func (s *FileStore) ids(ownerID string) ([]string, error) {
	if ownerID == "" || filepath.Base(ownerID) != ownerID {
		return nil, domain.Validationf("invalid owner %q", ownerID)
	}
	ents, err := os.ReadDir(filepath.Join(s.root, ownerID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	return out, nil
}

func (s *FileStore) List(_ context.Context, ownerID string) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.ids(ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		r, err := s.read(ownerID, id)
		if err != nil {
			s.log.Warn("skipping unreadable design", slog.String("design_id", id), slog.Any("err", err))
			continue
		}
		out = append(out, r.summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *FileStore) Count(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids, err := s.ids(ownerID)
	return len(ids), err
}

func (s *FileStore) Close() error { return nil }
