package syncengine

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"metasync/internal/scheduler"
)

// originalSize is the image size segment for unscaled artwork.
const originalSize = "original/"

// BaseURLResolver yields the asset URL prefix. The remote configuration is
// loaded at most once per process through the scheduler; concurrent callers
// share one request and a failed load is retried by the next caller.
type BaseURLResolver struct {
	remote   Remote
	sched    *scheduler.Scheduler
	override string

	group singleflight.Group
	mu    sync.Mutex
	base  string
}

// NewBaseURLResolver builds a resolver. A non-empty override skips the
// remote configuration entirely.
func NewBaseURLResolver(remote Remote, sched *scheduler.Scheduler, override string) *BaseURLResolver {
	return &BaseURLResolver{remote: remote, sched: sched, override: strings.TrimSpace(override)}
}

// BaseURL returns the prefix asset paths are appended to.
func (r *BaseURLResolver) BaseURL(ctx context.Context) (string, error) {
	if r.override != "" {
		return withSlash(r.override), nil
	}
	r.mu.Lock()
	base := r.base
	r.mu.Unlock()
	if base != "" {
		return base, nil
	}

	v, err, _ := r.group.Do("configuration", func() (any, error) {
		r.mu.Lock()
		cached := r.base
		r.mu.Unlock()
		if cached != "" {
			return cached, nil
		}
		cfg, err := scheduler.Do(ctx, r.sched, r.remote.Configuration)
		if err != nil {
			return "", err
		}
		secure := strings.TrimSpace(cfg.Images.SecureBaseURL)
		if secure == "" {
			secure = strings.TrimSpace(cfg.Images.BaseURL)
		}
		if secure == "" {
			return "", errors.New("remote configuration has no image base url")
		}
		resolved := withSlash(secure) + originalSize
		r.mu.Lock()
		r.base = resolved
		r.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
