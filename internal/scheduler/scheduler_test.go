package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() Config {
	return Config{
		MaxInFlight:       4,
		ReserveTokens:     3,
		InitialTokens:     40,
		Capacity:          40,
		ReplenishInterval: time.Second,
		AdmissionBackoff:  time.Millisecond,
	}
}

func noop(context.Context) (Observation, error) { return Observation{}, nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmitPropagatesTaskErrorWithoutRetry(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	sentinel := errors.New("remote failure")
	var calls atomic.Int32
	err := s.Submit(context.Background(), func(context.Context) (Observation, error) {
		calls.Add(1)
		return Observation{}, sentinel
	})
	if err != sentinel {
		t.Fatalf("expected task error unchanged, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("task ran %d times", calls.Load())
	}
}

func TestDoReturnsValue(t *testing.T) {
	s := New(testConfig())
	defer s.Close()

	got, err := Do(context.Background(), s, func(context.Context) (string, Observation, error) {
		return "payload", Quota(39), nil
	})
	if err != nil || got != "payload" {
		t.Fatalf("Do = %q, %v", got, err)
	}
}

func TestAdmissionNeverDispatchesAtReserve(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.InitialTokens = cfg.ReserveTokens
	s := New(cfg, WithClock(clock.Now))
	defer s.Close()

	var ran atomic.Bool
	done := make(chan error, 1)
	go func() {
		done <- s.Submit(context.Background(), func(context.Context) (Observation, error) {
			ran.Store(true)
			return Observation{}, nil
		})
	}()

	waitFor(t, func() bool { return s.Stats().Deferred >= 5 })
	if ran.Load() {
		t.Fatal("task dispatched while projection was at the reserve")
	}

	clock.Advance(cfg.ReplenishInterval)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task not admitted after replenishment")
	}
	if !ran.Load() {
		t.Fatal("task did not run")
	}
}

func TestReportedQuotaOverridesProjection(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), WithClock(clock.Now))
	defer s.Close()

	if err := s.Submit(context.Background(), func(context.Context) (Observation, error) {
		return Quota(3), nil
	}); err != nil {
		t.Fatal(err)
	}
	if got := s.Stats().Remaining; got != 3 {
		t.Fatalf("remaining = %d, want reported 3", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var ran atomic.Bool
	err := s.Submit(ctx, func(context.Context) (Observation, error) {
		ran.Store(true)
		return Observation{}, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline while throttled, got %v", err)
	}
	if ran.Load() {
		t.Fatal("cancelled task must not run")
	}

	clock.Advance(2 * time.Second)
	if got := s.Stats().Remaining; got != 5 {
		t.Fatalf("projection = %d, want 5", got)
	}
	if err := s.Submit(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
}

func TestProjectionCappedAtCapacity(t *testing.T) {
	clock := newFakeClock()
	s := New(testConfig(), WithClock(clock.Now))
	defer s.Close()

	clock.Advance(time.Hour)
	if got := s.Stats().Remaining; got != 40 {
		t.Fatalf("projection = %d, want capacity 40", got)
	}
	if err := s.Submit(context.Background(), noop); err != nil {
		t.Fatal(err)
	}
	if got := s.Stats().Remaining; got != 39 {
		t.Fatalf("after one admission remaining = %d, want 39", got)
	}
}

func TestMaxInFlightBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 2
	s := New(cfg)
	defer s.Close()

	var current, peak atomic.Int32
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Submit(context.Background(), func(context.Context) (Observation, error) {
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return Observation{}, nil
			})
		}()
	}
	wg.Wait()
	if peak.Load() > 2 {
		t.Fatalf("peak in-flight %d exceeds bound", peak.Load())
	}
	if s.Stats().Admitted != 10 {
		t.Fatalf("admitted = %d", s.Stats().Admitted)
	}
}

func TestTasksServedInSubmissionOrder(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInFlight = 1
	s := New(cfg)
	defer s.Close()

	gate := make(chan struct{})
	first := make(chan error, 1)
	go func() {
		first <- s.Submit(context.Background(), func(context.Context) (Observation, error) {
			<-gate
			return Observation{}, nil
		})
	}()
	waitFor(t, func() bool { return s.Stats().InFlight == 1 })

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Submit(context.Background(), func(context.Context) (Observation, error) {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return Observation{}, nil
			})
		}()
		waitFor(t, func() bool { return s.Stats().Queued == i+1 })
	}
	close(gate)
	wg.Wait()
	if err := <-first; err != nil {
		t.Fatal(err)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestCloseFailsQueuedTasks(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.InitialTokens = 0
	s := New(cfg, WithClock(clock.Now))

	done := make(chan error, 1)
	go func() { done <- s.Submit(context.Background(), noop) }()
	waitFor(t, func() bool { return s.Stats().Deferred > 0 })

	s.Close()
	if err := <-done; !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := s.Submit(context.Background(), noop); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
