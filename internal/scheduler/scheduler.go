// Package scheduler runs one named job on a fixed interval until stopped.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Job is one run of the scheduled work. It returns how many items it
// affected.
type Job func(context.Context) (int64, error)

type Status struct {
	Name       string     `json:"name"`
	Running    bool       `json:"running"`
	Interval   string     `json:"interval"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastResult int64      `json:"last_result"`
	LastError  string     `json:"last_error,omitempty"`
	Runs       int64      `json:"runs"`
}

type Scheduler struct {
	name     string
	interval time.Duration
	job      Job

	running atomic.Bool
	runs    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lastMu     sync.Mutex
	lastRunAt  time.Time
	lastResult int64
	lastErr    error
}

func New(name string, interval time.Duration, job Job) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	if name == "" {
		name = "scheduler"
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		job:      job,
		done:     make(chan struct{}),
	}, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		slog.Info("scheduler started", "job", s.name, "interval", s.interval.String())

		s.safeRun(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("scheduler stopping", "job", s.name)
				return
			case <-ticker.C:
				s.safeRun(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	slog.Info("scheduler stopped", "job", s.name)
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

func (s *Scheduler) Status() Status {
	st := Status{
		Name:     s.name,
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Runs:     s.runs.Load(),
	}

	s.lastMu.Lock()
	defer s.lastMu.Unlock()
	if !s.lastRunAt.IsZero() {
		t := s.lastRunAt
		st.LastRunAt = &t
	}
	st.LastResult = s.lastResult
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) safeRun(ctx context.Context) {
	start := time.Now()

	n, err := func() (n int64, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduler job panic recovered", "job", s.name, "panic", r)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return s.job(ctx)
	}()

	s.runs.Add(1)
	s.lastMu.Lock()
	s.lastRunAt = start.UTC()
	s.lastResult = n
	s.lastErr = err
	s.lastMu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			slog.Error("scheduler job failed", "job", s.name, "error", err)
		}
		return
	}
	slog.Info("scheduler job completed", "job", s.name, "result", n, "duration_ms", time.Since(start).Milliseconds())
}
