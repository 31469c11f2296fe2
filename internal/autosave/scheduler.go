/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package autosave persists a dirty document periodically, when it loses
// visibility, and on manual request, with at most one save in flight.
package autosave

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mockupstudio/internal/domain"
)

// Status is the state shown by the save indicator.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusScheduled Status = "scheduled"
	StatusSaving    Status = "saving"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Reason names what triggered a save attempt.
type Reason string

const (
	ReasonPeriodic   Reason = "periodic"
	ReasonVisibility Reason = "visibility"
	ReasonManual     Reason = "manual"
)

// Outcome is the result of a trigger.
type Outcome string

const (
	Saved     Outcome = "saved"
	Clean     Outcome = "clean"     // nothing to save
	Debounced Outcome = "debounced" // manual request too soon after the last attempt
	Busy      Outcome = "busy"      // a save was already in flight
	Failed    Outcome = "failed"
	Halted    Outcome = "halted" // automatic saves stopped after a non-retryable error
)

// Config holds the scheduler timings.
type Config struct {
	Interval   time.Duration
	Floor      time.Duration
	Debounce   time.Duration
	StatusHold time.Duration
}

// DefaultConfig saves every 30s, never more often than every 10s, ignores
// manual saves within 5s of the previous attempt and shows a result for 2s.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, Floor: 10 * time.Second, Debounce: 5 * time.Second, StatusHold: 2 * time.Second}
}

// Document is the state being saved.
type Document interface {
	Dirty() bool
	Checkpoint() (domain.CanvasData, uint64)
	MarkSaved(rev uint64)
}

// PersistFunc writes a checkpoint to storage.
type PersistFunc func(ctx context.Context, data domain.CanvasData) error

// Options configures a Scheduler. Zero values select defaults.
type Options struct {
	Config Config
	Clock  Clock
	Logger *slog.Logger
	// OnStatus is called after every status transition, outside any lock.
	// err is set for StatusError.
	OnStatus func(s Status, err error)
}

// Scheduler coordinates save attempts for one document.
type Scheduler struct {
	doc     Document
	persist PersistFunc
	cfg     Config
	clock   Clock
	log     *slog.Logger
	notify  func(Status, error)

	mu          sync.Mutex
	status      Status
	inFlight    bool
	lastAttempt time.Time
	lastSaved   time.Time
	lastErr     error
	halted      error
	holdGen     uint64
	holdTimer   Timer

	interval time.Duration
	baseCtx  context.Context
	loop     *loop

	wg sync.WaitGroup // saves started by Request and the periodic loop
}

type loop struct {
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New returns a stopped scheduler. Call Start to enable periodic saves.
func New(doc Document, persist PersistFunc, opts Options) *Scheduler {
	def := DefaultConfig()
	cfg := opts.Config
	if cfg.Floor <= 0 {
		cfg.Floor = def.Floor
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Debounce < 0 {
		cfg.Debounce = 0
	}
	if cfg.StatusHold <= 0 {
		cfg.StatusHold = def.StatusHold
	}
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Scheduler{
		doc:     doc,
		persist: persist,
		cfg:     cfg,
		clock:   opts.Clock,
		log:     opts.Logger,
		notify:  opts.OnStatus,
		status:  StatusIdle,
		baseCtx: context.Background(),
	}
	s.interval = s.clamp(cfg.Interval)
	return s
}

func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d < s.cfg.Floor {
		return s.cfg.Floor
	}
	return d
}

// Start arms the periodic timer. Saves it triggers use ctx. Starting a
// running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loop != nil {
		return
	}
	s.baseCtx = ctx
	s.startLoopLocked()
	s.log.Info("autosave started", slog.Duration("interval", s.interval))
}

// Stop cancels the periodic timer and any pending status reset. Saves in
// flight are not interrupted; use Wait to let them finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	l := s.loop
	s.loop = nil
	if s.holdTimer != nil {
		s.holdTimer.Stop()
		s.holdTimer = nil
	}
	s.mu.Unlock()
	if l != nil {
		stopLoop(l)
		s.log.Info("autosave stopped")
	}
}

// Wait blocks until saves started in the background have finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// SetInterval changes the periodic interval, raising it to the floor, and
// restarts a running timer so the new period starts now. It returns the
// interval applied.
func (s *Scheduler) SetInterval(d time.Duration) time.Duration {
	s.mu.Lock()
	d = s.clamp(d)
	s.interval = d
	old := s.loop
	if old != nil {
		s.startLoopLocked()
	}
	s.mu.Unlock()
	if old != nil {
		stopLoop(old)
	}
	s.log.Debug("autosave interval set", slog.Duration("interval", d))
	return d
}

// Interval returns the effective periodic interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) startLoopLocked() {
	l := &loop{ticker: s.clock.NewTicker(s.interval), stop: make(chan struct{}), done: make(chan struct{})}
	s.loop = l
	ctx := s.baseCtx
	go func() {
		defer close(l.done)
		for {
			select {
			case <-l.stop:
				return
			case <-ctx.Done():
				return
			case <-l.ticker.C():
				s.Request(ReasonPeriodic)
			}
		}
	}()
}

func stopLoop(l *loop) {
	l.ticker.Stop()
	close(l.stop)
	<-l.done
}

// Request starts a save attempt in the background and returns immediately.
func (s *Scheduler) Request(reason Reason) {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx, reason)
	}()
}

// VisibilityLost saves the document once if it is dirty. It does not block.
func (s *Scheduler) VisibilityLost() { s.Request(ReasonVisibility) }

// Trigger runs one save attempt synchronously. Attempts are dropped, not
// queued, while another save is in flight; the next tick retries. The error
// is only set for Failed and Halted.
func (s *Scheduler) Trigger(ctx context.Context, reason Reason) (Outcome, error) {
	s.mu.Lock()
	if s.halted != nil && reason != ReasonManual {
		err := s.halted
		s.mu.Unlock()
		return Halted, err
	}
	if !s.doc.Dirty() {
		s.mu.Unlock()
		return Clean, nil
	}
	if s.inFlight {
		s.mu.Unlock()
		s.log.Debug("save dropped, another is in flight", slog.String("reason", string(reason)))
		return Busy, nil
	}
	now := s.clock.Now()
	if reason == ReasonManual && !s.lastAttempt.IsZero() && now.Sub(s.lastAttempt) < s.cfg.Debounce {
		s.mu.Unlock()
		return Debounced, nil
	}
	s.inFlight = true
	s.lastAttempt = now
	s.setStatusLocked(StatusSaving)
	s.mu.Unlock()
	s.emit(StatusSaving, nil)

	data, rev := s.doc.Checkpoint()
	start := s.clock.Now()
	err := s.persist(ctx, data)
	if err == nil {
		s.doc.MarkSaved(rev)
	}

	s.mu.Lock()
	s.inFlight = false
	l := s.log.With(slog.String("reason", string(reason)), slog.Duration("took", s.clock.Now().Sub(start)))
	var st Status
	if err == nil {
		s.lastSaved = s.clock.Now()
		s.lastErr = nil
		s.halted = nil
		st = StatusSuccess
	} else {
		s.lastErr = err
		if !domain.IsRetryable(err) {
			s.halted = err
		}
		st = StatusError
	}
	s.setStatusLocked(st)
	s.mu.Unlock()

	if err != nil {
		l.Warn("save failed", slog.Any("err", err), slog.Bool("retryable", domain.IsRetryable(err)))
		s.emit(st, err)
		return Failed, err
	}
	l.Info("saved", slog.Uint64("rev", rev), slog.Int("elements", len(data.Elements)))
	s.emit(st, nil)
	return Saved, nil
}

// setStatusLocked records st and, for success and error, schedules the
// return to idle after the hold window.
func (s *Scheduler) setStatusLocked(st Status) {
	s.status = st
	s.holdGen++
	if s.holdTimer != nil {
		s.holdTimer.Stop()
		s.holdTimer = nil
	}
	if st != StatusSuccess && st != StatusError {
		return
	}
	gen := s.holdGen
	s.holdTimer = s.clock.AfterFunc(s.cfg.StatusHold, func() {
		s.mu.Lock()
		if s.holdGen != gen {
			s.mu.Unlock()
			return
		}
		s.status = StatusIdle
		s.holdTimer = nil
		s.mu.Unlock()
		s.emit(StatusIdle, nil)
	})
}

func (s *Scheduler) emit(st Status, err error) {
	if s.notify != nil {
		s.notify(st, err)
	}
}

// Status returns the indicator state. An idle scheduler with a running timer
// and unsaved changes reports StatusScheduled.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusIdle && s.loop != nil && s.halted == nil && s.doc.Dirty() {
		return StatusScheduled
	}
	return s.status
}

// LastSaved returns the time of the last successful save, zero if none.
func (s *Scheduler) LastSaved() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaved
}

// LastError returns the error of the most recent failed attempt, cleared by
// a successful save.
func (s *Scheduler) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Halted returns the non-retryable error that stopped automatic saves.
func (s *Scheduler) Halted() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Resume re-enables automatic saves after a non-retryable failure.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.halted = nil
}
