package conditional

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"metasync/internal/descriptor"
	"metasync/internal/logging"
	"metasync/internal/scheduler"
)

// Entity is a record carrying a cache envelope that can absorb a payload.
// Merge returns the asset paths the payload references.
type Entity interface {
	CacheEnvelope() *descriptor.Envelope
	Merge(body []byte) ([]string, error)
}

// Preconditions are the validators sent with a conditional request.
type Preconditions struct {
	IfNoneMatch     string
	IfModifiedSince time.Time
}

// Empty reports whether no precondition is set.
func (p Preconditions) Empty() bool {
	return p.IfNoneMatch == "" && p.IfModifiedSince.IsZero()
}

// Response is what a remote call returns to the cache.
type Response struct {
	Body        []byte
	Validator   string
	NotModified bool
	Quota       scheduler.Observation
}

// Call performs one remote request honoring pre.
type Call func(ctx context.Context, pre Preconditions) (Response, error)

// Outcome reports what Sync did to the entity.
type Outcome int

const (
	// Unchanged means the entity was left untouched; nested work must be skipped.
	Unchanged Outcome = iota
	// Merged means the payload was overlaid and the envelope refreshed.
	Merged
)

func (o Outcome) String() string {
	if o == Merged {
		return "merged"
	}
	return "unchanged"
}

// Result is the outcome of one Sync.
type Result struct {
	Outcome Outcome
	Assets  []string
}

// Stats counts Sync outcomes.
type Stats struct {
	Calls     int64
	Merged    int64
	Unchanged int64
}

// Options configures a Cache.
type Options struct {
	IgnoreValidators bool
	Now              func() time.Time
	Logger           *slog.Logger
}

// Cache runs conditional syncs through one scheduler.
type Cache struct {
	sched  *scheduler.Scheduler
	ignore bool
	now    func() time.Time
	logger *slog.Logger

	calls     atomic.Int64
	merged    atomic.Int64
	unchanged atomic.Int64
}

// New builds a Cache over sched.
func New(sched *scheduler.Scheduler, opts Options) *Cache {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		sched:  sched,
		ignore: opts.IgnoreValidators,
		now:    now,
		logger: logging.NewComponentLogger(opts.Logger, "conditional"),
	}
}

// Preconditions derives the request validators from env. Both are omitted
// when validators are ignored.
func (c *Cache) Preconditions(env *descriptor.Envelope) Preconditions {
	if c.ignore || env == nil {
		return Preconditions{}
	}
	pre := Preconditions{IfNoneMatch: env.Validator}
	if at, ok := env.SyncedAt(); ok {
		pre.IfModifiedSince = at
	}
	return pre
}

// Sync runs call for entity. scope names the record in logs and errors.
func (c *Cache) Sync(ctx context.Context, scope string, entity Entity, call Call) (Result, error) {
	env := entity.CacheEnvelope()
	pre := c.Preconditions(env)

	c.calls.Add(1)
	resp, err := scheduler.Do(ctx, c.sched, func(ctx context.Context) (Response, scheduler.Observation, error) {
		r, err := call(ctx, pre)
		return r, r.Quota, err
	})
	if err != nil {
		return Result{}, err
	}

	if c.notModified(env, resp) {
		c.unchanged.Add(1)
		c.logger.Debug("entity unchanged",
			logging.String("scope", scope),
			logging.Bool("not_modified", resp.NotModified),
		)
		return Result{Outcome: Unchanged}, nil
	}

	assets, err := entity.Merge(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("%s: merge: %w", scope, err)
	}
	env.Validator = resp.Validator
	env.Stamp(c.now())
	c.merged.Add(1)
	c.logger.Debug("entity merged",
		logging.String("scope", scope),
		logging.Int("assets", len(assets)),
	)
	return Result{Outcome: Merged, Assets: assets}, nil
}

func (c *Cache) notModified(env *descriptor.Envelope, resp Response) bool {
	if resp.NotModified {
		return true
	}
	if c.ignore || env.Validator == "" {
		return false
	}
	return resp.Validator == env.Validator
}

// Stats returns outcome counters.
func (c *Cache) Stats() Stats {
	return Stats{Calls: c.calls.Load(), Merged: c.merged.Load(), Unchanged: c.unchanged.Load()}
}
