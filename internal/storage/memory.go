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
	"sort"
	"sync"
	"time"

	"mockupstudio/internal/domain"
)

// MemoryStore keeps designs in process memory. Records are stored encoded
// so callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	designs map[string]map[string]record // owner -> id -> record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{designs: map[string]map[string]record{}, now: time.Now}
}

func (s *MemoryStore) Create(_ context.Context, d *domain.Design) error {
	now := s.now().UTC()
	d.ID = newDesignID()
	d.CreatedAt, d.UpdatedAt = now, now
	r, err := toRecord(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.designs[d.OwnerID] == nil {
		s.designs[d.OwnerID] = map[string]record{}
	}
	s.designs[d.OwnerID][d.ID] = r
	return nil
}

func (s *MemoryStore) Update(_ context.Context, d *domain.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.designs[d.OwnerID][d.ID]
	if !ok {
		return notFound(d.ID)
	}
	d.CreatedAt = cur.CreatedAt
	d.UpdatedAt = s.now().UTC()
	r, err := toRecord(d)
	if err != nil {
		return err
	}
	s.designs[d.OwnerID][d.ID] = r
	return nil
}

func (s *MemoryStore) Get(_ context.Context, ownerID, id string) (*domain.Design, error) {
	s.mu.RLock()
	r, ok := s.designs[ownerID][id]
	s.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return r.design()
}

func (s *MemoryStore) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.designs[ownerID][id]; !ok {
		return notFound(id)
	}
	delete(s.designs[ownerID], id)
	return nil
}

func (s *MemoryStore) List(_ context.Context, ownerID string) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Summary, 0, len(s.designs[ownerID]))
	for _, r := range s.designs[ownerID] {
		out = append(out, r.summary())
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.designs[ownerID]), nil
}

func (s *MemoryStore) Close() error { return nil }

// sortSummaries orders by UpdatedAt descending, then ID descending; ULIDs
// sort by creation time.
func sortSummaries(out []Summary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
}
