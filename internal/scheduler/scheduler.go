package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"metasync/internal/logging"
)

// ErrClosed is returned for tasks submitted to, or still queued in, a closed scheduler.
var ErrClosed = errors.New("scheduler closed")

// Observation carries the quota signal read from a completed remote call.
type Observation struct {
	Remaining int
	Reported  bool
}

// Quota returns an Observation reporting remaining tokens.
func Quota(remaining int) Observation {
	return Observation{Remaining: remaining, Reported: true}
}

// Task performs exactly one outbound request.
type Task func(ctx context.Context) (Observation, error)

// Config holds the admission parameters.
type Config struct {
	MaxInFlight       int
	ReserveTokens     int
	InitialTokens     int
	Capacity          int
	ReplenishInterval time.Duration
	AdmissionBackoff  time.Duration
}

// Stats is a point-in-time snapshot of scheduler counters.
type Stats struct {
	Queued    int
	InFlight  int
	Admitted  int64
	Deferred  int64
	Remaining int
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithLogger attaches a logger for admission diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logging.NewComponentLogger(logger, "scheduler")
	}
}

// WithClock overrides the time source used for quota projection.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

const (
	statePending int32 = iota
	stateAdmitted
	stateCancelled
)

type request struct {
	ctx   context.Context
	task  Task
	state atomic.Int32
	err   error
	done  chan struct{}
}

// Scheduler is the single admission gate for remote calls. The zero value is
// not usable; construct with New.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	slots  *semaphore.Weighted

	mu           sync.Mutex
	queue        []*request
	remaining    int
	lastObserved time.Time
	closed       bool

	holding  atomic.Int64
	inFlight atomic.Int64
	admitted atomic.Int64
	deferred atomic.Int64

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	stopped  chan struct{}
}

// New constructs a Scheduler and starts its dispatcher.
func New(cfg Config, opts ...Option) *Scheduler {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = cfg.InitialTokens
	}
	if cfg.ReplenishInterval <= 0 {
		cfg.ReplenishInterval = 250 * time.Millisecond
	}
	if cfg.AdmissionBackoff <= 0 {
		cfg.AdmissionBackoff = 300 * time.Millisecond
	}
	s := &Scheduler{
		cfg:     cfg,
		logger:  logging.NewNop(),
		now:     time.Now,
		slots:   semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.remaining = cfg.InitialTokens
	s.lastObserved = s.now()
	go s.dispatch()
	return s
}

// Submit queues task and blocks until it has run, returning the task's own
// error. When ctx ends before the task is admitted the task never runs and
// ctx.Err() is returned; once admitted, Submit waits for the task to finish.
func (s *Scheduler) Submit(ctx context.Context, task Task) error {
	if task == nil {
		return errors.New("scheduler: nil task")
	}
	req := &request{ctx: ctx, task: task, done: make(chan struct{})}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.queue = append(s.queue, req)
	s.mu.Unlock()
	s.signal()

	select {
	case <-req.done:
		return req.err
	case <-ctx.Done():
		if req.state.CompareAndSwap(statePending, stateCancelled) {
			return ctx.Err()
		}
		<-req.done
		return req.err
	}
}

// Do runs fn through s and returns its value.
func Do[T any](ctx context.Context, s *Scheduler, fn func(context.Context) (T, Observation, error)) (T, error) {
	var out T
	err := s.Submit(ctx, func(ctx context.Context) (Observation, error) {
		value, obs, err := fn(ctx)
		out = value
		return obs, err
	})
	return out, err
}

// Stats returns current counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Queued:    len(s.queue) + int(s.holding.Load()),
		InFlight:  int(s.inFlight.Load()),
		Admitted:  s.admitted.Load(),
		Deferred:  s.deferred.Load(),
		Remaining: s.projectLocked(s.now()),
	}
}

// Close stops the dispatcher. Queued tasks that were not yet admitted fail
// with ErrClosed; running tasks are left to finish.
func (s *Scheduler) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		pending := s.queue
		s.queue = nil
		s.mu.Unlock()
		close(s.stop)
		<-s.stopped
		for _, req := range pending {
			if req.state.CompareAndSwap(statePending, stateCancelled) {
				req.err = ErrClosed
				close(req.done)
			}
		}
	})
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) next() *request {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.queue) > 0 {
		req := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		if req.state.Load() == statePending {
			return req
		}
	}
	return nil
}

func (s *Scheduler) dispatch() {
	defer close(s.stopped)
	for {
		req := s.next()
		if req == nil {
			select {
			case <-s.wake:
				continue
			case <-s.stop:
				return
			}
		}
		s.holding.Store(1)
		ok := s.admit(req)
		s.holding.Store(0)
		if !ok {
			select {
			case <-s.stop:
				if req.state.CompareAndSwap(statePending, stateCancelled) {
					req.err = ErrClosed
					close(req.done)
				}
				return
			default:
			}
		}
	}
}

// admit blocks the dispatcher until req holds an in-flight slot and the
// quota projection clears the reserve, then starts it. It returns false when
// req was abandoned instead.
func (s *Scheduler) admit(req *request) bool {
	if err := s.acquireSlot(req); err != nil {
		return false
	}
	for {
		if req.state.Load() != statePending || req.ctx.Err() != nil {
			s.slots.Release(1)
			return false
		}
		projected, ok := s.take()
		if ok {
			break
		}
		s.deferred.Add(1)
		s.logger.Debug("admission deferred",
			logging.Int("projected_tokens", projected),
			logging.Int("reserve_tokens", s.cfg.ReserveTokens),
			logging.Duration("backoff", s.cfg.AdmissionBackoff),
		)
		timer := time.NewTimer(s.cfg.AdmissionBackoff)
		select {
		case <-timer.C:
		case <-req.ctx.Done():
			timer.Stop()
		case <-s.stop:
			timer.Stop()
			s.slots.Release(1)
			return false
		}
	}
	if !req.state.CompareAndSwap(statePending, stateAdmitted) {
		s.refund()
		s.slots.Release(1)
		return false
	}
	s.admitted.Add(1)
	s.inFlight.Add(1)
	go s.run(req)
	return true
}

func (s *Scheduler) acquireSlot(req *request) error {
	ctx, cancel := context.WithCancel(req.ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	return s.slots.Acquire(ctx, 1)
}

func (s *Scheduler) run(req *request) {
	obs, err := req.task(req.ctx)
	if obs.Reported {
		s.observe(obs.Remaining)
	}
	s.inFlight.Add(-1)
	s.slots.Release(1)
	req.err = err
	close(req.done)
	s.signal()
}

// take admits one call against the projection, reporting the projection it saw.
func (s *Scheduler) take() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	projected := s.projectLocked(now)
	if projected <= s.cfg.ReserveTokens {
		return projected, false
	}
	s.foldLocked(now)
	s.remaining--
	return projected, true
}

func (s *Scheduler) refund() {
	s.mu.Lock()
	s.remaining++
	s.mu.Unlock()
}

func (s *Scheduler) observe(remaining int) {
	s.mu.Lock()
	s.remaining = remaining
	s.lastObserved = s.now()
	s.mu.Unlock()
}

func (s *Scheduler) projectLocked(now time.Time) int {
	elapsed := now.Sub(s.lastObserved)
	if elapsed < 0 {
		elapsed = 0
	}
	projected := s.remaining + int(elapsed/s.cfg.ReplenishInterval)
	if projected > s.cfg.Capacity {
		projected = s.cfg.Capacity
	}
	return projected
}

// foldLocked moves whole replenish intervals since lastObserved into
// remaining so later decrements are counted against the refreshed estimate.
func (s *Scheduler) foldLocked(now time.Time) {
	intervals := int(now.Sub(s.lastObserved) / s.cfg.ReplenishInterval)
	if intervals <= 0 {
		return
	}
	s.remaining += intervals
	s.lastObserved = s.lastObserved.Add(time.Duration(intervals) * s.cfg.ReplenishInterval)
	if s.remaining >= s.cfg.Capacity {
		s.remaining = s.cfg.Capacity
		s.lastObserved = now
	}
}
