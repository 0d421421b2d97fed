package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// sweep is a scripted Job. Each run pops the next outcome; once the script
// is exhausted it keeps returning zero closed blasts.
type sweep struct {
	mu      sync.Mutex
	script  []outcome
	runs    int
	lastCtx context.Context
}

type outcome struct {
	closed int64
	err    error
	panic  string
}

func (s *sweep) job(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.runs++
	s.lastCtx = ctx
	var o outcome
	if len(s.script) > 0 {
		o, s.script = s.script[0], s.script[1:]
	}
	s.mu.Unlock()

	if o.panic != "" {
		panic(o.panic)
	}
	return o.closed, o.err
}

func (s *sweep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *sweep) ctx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCtx
}

func (s *sweep) waitRuns(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for s.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("sweep ran %d times, want at least %d", s.count(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	job := new(sweep).job
	tests := []struct {
		name     string
		interval time.Duration
		job      Job
		wantErr  string
	}{
		{"zero interval", 0, job, "interval must be > 0"},
		{"negative interval", -time.Second, job, "interval must be > 0"},
		{"nil job", time.Second, nil, "job must not be nil"},
		{"ok", time.Second, job, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s, err := New("blast-sweeper", tt.interval, tt.job)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Fatalf("New error = %v, want %q", err, tt.wantErr)
				}
				if s != nil {
					t.Fatalf("expected nil scheduler on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			if s.IsRunning() {
				t.Fatalf("new scheduler must not be running")
			}
		})
	}
}

func TestNew_DefaultName(t *testing.T) {
	s, err := New("", time.Minute, new(sweep).job)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if got := s.Status().Name; got != "scheduler" {
		t.Fatalf("name = %q, want %q", got, "scheduler")
	}
}

func TestScheduler_SweepOutcomesInStatus(t *testing.T) {
	sw := &sweep{script: []outcome{
		{closed: 3},
		{err: errors.New("connection refused")},
		{panic: "nil blast"},
		{closed: 1},
	}}

	s, err := New("blast-sweeper", 10*time.Millisecond, sw.job)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	st := s.Status()
	if st.Running || st.Runs != 0 || st.LastRunAt != nil {
		t.Fatalf("unexpected status before start: %+v", st)
	}
	if st.Interval != "10ms" {
		t.Fatalf("interval = %q, want 10ms", st.Interval)
	}

	if !s.Start() {
		t.Fatalf("Start() = false on first call")
	}
	sw.waitRuns(t, 4)
	if !s.Stop() {
		t.Fatalf("Stop() = false while running")
	}

	// The panic run is followed by a clean one, so the last status is clean.
	st = s.Status()
	if st.Running {
		t.Fatalf("status still running after Stop")
	}
	if st.Runs < 4 {
		t.Fatalf("runs = %d, want >= 4", st.Runs)
	}
	if st.LastRunAt == nil {
		t.Fatalf("last run time not recorded")
	}
	if st.LastError != "" {
		t.Fatalf("last error = %q after a clean run", st.LastError)
	}
}

func TestScheduler_StatusKeepsFailure(t *testing.T) {
	tests := []struct {
		name    string
		out     outcome
		wantErr string
	}{
		{"job error", outcome{closed: 2, err: errors.New("connection refused")}, "connection refused"},
		{"job panic", outcome{panic: "nil blast"}, "panic: nil blast"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Long interval: only the run on Start happens.
			sw := &sweep{script: []outcome{tt.out}}
			s, err := New("blast-sweeper", time.Hour, sw.job)
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}

			s.Start()
			sw.waitRuns(t, 1)
			s.Stop()

			st := s.Status()
			if st.Runs != 1 {
				t.Fatalf("runs = %d, want 1", st.Runs)
			}
			if !strings.Contains(st.LastError, tt.wantErr) {
				t.Fatalf("last error = %q, want it to contain %q", st.LastError, tt.wantErr)
			}
			if st.LastResult != tt.out.closed {
				t.Fatalf("last result = %d, want %d", st.LastResult, tt.out.closed)
			}
		})
	}
}

func TestScheduler_StartTwiceStopTwice(t *testing.T) {
	sw := new(sweep)
	s, err := New("blast-sweeper", time.Hour, sw.job)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	if s.Stop() {
		t.Fatalf("Stop() = true on a scheduler that never started")
	}
	if !s.Start() {
		t.Fatalf("Start() = false on first call")
	}
	if s.Start() {
		t.Fatalf("Start() = true while already running")
	}
	sw.waitRuns(t, 1)
	if !s.Stop() {
		t.Fatalf("Stop() = false while running")
	}
	if s.Stop() {
		t.Fatalf("Stop() = true after already stopped")
	}
}

func TestScheduler_StopCancelsJobContextAndTicks(t *testing.T) {
	sw := new(sweep)
	s, err := New("blast-sweeper", 10*time.Millisecond, sw.job)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.Start()
	sw.waitRuns(t, 2)
	s.Stop()

	select {
	case <-sw.ctx().Done():
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("job context not canceled by Stop")
	}

	stopped := sw.count()
	time.Sleep(50 * time.Millisecond)
	if got := sw.count(); got != stopped {
		t.Fatalf("sweep ran after Stop: %d -> %d", stopped, got)
	}
}

func TestScheduler_Restart(t *testing.T) {
	sw := new(sweep)
	s, err := New("blast-sweeper", time.Hour, sw.job)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	// Every Start sweeps immediately, so each cycle adds one run.
	for i := 1; i <= 3; i++ {
		if !s.Start() {
			t.Fatalf("cycle %d: Start() = false", i)
		}
		sw.waitRuns(t, i)
		if !s.Stop() {
			t.Fatalf("cycle %d: Stop() = false", i)
		}
		if got := s.Status().Runs; got != int64(i) {
			t.Fatalf("cycle %d: runs = %d", i, got)
		}
	}
}
