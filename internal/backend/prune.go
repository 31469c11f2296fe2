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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mockupstudio/internal/storage"
)

// StartPrune schedules revision pruning when the store keeps revisions and a
// schedule is configured.
func (s *Server) StartPrune(ctx context.Context) error {
	rs, ok := s.store.(storage.RevisionStore)
	if !ok || s.cfg.PruneSchedule == "" || s.cfg.KeepRevisions <= 0 {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(s.cfg.PruneSchedule, func() { s.pruneOnce(ctx, rs) })
	if err != nil {
		return fmt.Errorf("invalid prune schedule %q: %w", s.cfg.PruneSchedule, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("revision pruning scheduled", slog.String("schedule", s.cfg.PruneSchedule), slog.Int("keep", s.cfg.KeepRevisions))
	return nil
}

// StopPrune stops the schedule and waits for a running prune to finish.
func (s *Server) StopPrune() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
}

func (s *Server) pruneOnce(ctx context.Context, rs storage.RevisionStore) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := rs.PruneRevisions(ctx, s.cfg.KeepRevisions)
	if err != nil {
		s.log.Error("revision prune failed", slog.Any("err", err))
		return
	}
	s.log.Debug("revision prune finished", slog.Int64("deleted", n))
}
