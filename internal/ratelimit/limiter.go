// Package ratelimit gates outbound probe traffic behind a shared token
// bucket, with optional per-target sub-buckets. It is the only shared
// mutable state probing modules touch directly.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bytemomo/moray/internal/domain"
)

// Config sizes the bucket. RatePerSec is the refill rate R, Burst the
// capacity C. PerTargetRatePerSec, when positive, adds a secondary
// bucket per target key. AcquireTimeout bounds how long one Acquire may
// wait; zero means the caller's context is the only bound.
type Config struct {
	RatePerSec          float64
	Burst               int
	PerTargetRatePerSec float64
	PerTargetBurst      int
	AcquireTimeout      time.Duration
}

// Limiter is safe for use by many concurrent callers. Admission for
// equal weights is FIFO; no caller starves under sustained contention.
type Limiter struct {
	global         *rate.Limiter
	acquireTimeout time.Duration

	perTargetRate  rate.Limit
	perTargetBurst int

	mu        sync.Mutex
	perTarget map[string]*rate.Limiter
}

// New builds a Limiter from cfg. The limiter's lifetime is scoped to
// one scan request; it is handed to every module, never global state.
func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		global:         rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst),
		acquireTimeout: cfg.AcquireTimeout,
	}
	if cfg.PerTargetRatePerSec > 0 {
		pb := cfg.PerTargetBurst
		if pb < 1 {
			pb = 1
		}
		l.perTargetRate = rate.Limit(cfg.PerTargetRatePerSec)
		l.perTargetBurst = pb
		l.perTarget = make(map[string]*rate.Limiter)
	}
	return l
}

// Acquire blocks until weight tokens are granted or the bounded wait
// elapses. A wait that outlives the configured acquire timeout returns
// an error wrapping domain.ErrRateLimit; a wait cut short by the
// caller's own context returns that context's error unchanged.
func (l *Limiter) Acquire(ctx context.Context, targetKey string, weight int) error {
	if weight < 1 {
		weight = 1
	}

	waitCtx := ctx
	if l.acquireTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.acquireTimeout)
		defer cancel()
	}

	if err := l.global.WaitN(waitCtx, weight); err != nil {
		return l.classify(ctx, err)
	}
	if sub := l.forTarget(targetKey); sub != nil {
		if err := sub.WaitN(waitCtx, weight); err != nil {
			return l.classify(ctx, err)
		}
	}
	return nil
}

func (l *Limiter) classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return domain.E("ratelimit.Acquire", err.Error(), domain.ErrRateLimit)
}

func (l *Limiter) forTarget(key string) *rate.Limiter {
	if l.perTarget == nil || key == "" {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sub, ok := l.perTarget[key]
	if !ok {
		sub = rate.NewLimiter(l.perTargetRate, l.perTargetBurst)
		l.perTarget[key] = sub
	}
	return sub
}
