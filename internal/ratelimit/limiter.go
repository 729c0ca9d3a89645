package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/observability/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const keyPublicEndpoint = "ratelimit:%s:%s"

// Policy is a token bucket definition: Rate tokens per second up to Burst.
type Policy struct {
	Rate  float64
	Burst int
}

// Limiter throttles the public write endpoints (checkout, contact, login)
// per client address.
type Limiter struct {
	enabled  bool
	policies map[string]Policy
	fallback Policy

	bucket  *TokenBucket
	memory  *memoryBuckets
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewLimiter(cfg config.Config, bucket *TokenBucket, m *metrics.Metrics, log *zap.Logger) *Limiter {
	fallback := Policy{Rate: cfg.RateLimit.Rate, Burst: cfg.RateLimit.Burst}
	if fallback.Rate <= 0 {
		fallback.Rate = 0.2
	}
	if fallback.Burst <= 0 {
		fallback.Burst = 5
	}
	return &Limiter{
		enabled: cfg.RateLimit.Enabled,
		policies: map[string]Policy{
			"login": {Rate: fallback.Rate / 2, Burst: fallback.Burst},
		},
		fallback: fallback,
		bucket:   bucket,
		memory:   newMemoryBuckets(10 * time.Minute),
		metrics:  m,
		log:      log.Named("ratelimit"),
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *Limiter) policy(endpoint string) Policy {
	if p, ok := l.policies[endpoint]; ok {
		return p
	}
	return l.fallback
}

// Allow consumes one token for client on endpoint. Redis failures fail open.
func (l *Limiter) Allow(ctx context.Context, endpoint, client string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}

	p := l.policy(endpoint)
	key := fmt.Sprintf(keyPublicEndpoint, endpoint, strings.TrimSpace(client))

	var res *RateLimitResult
	if l.bucket != nil {
		var err error
		res, err = l.bucket.Allow(ctx, key, p)
		if err != nil {
			l.log.Warn("rate limit backend failed, allowing request", zap.String("endpoint", endpoint), zap.Error(err))
			l.record(ctx, endpoint, true, "backend_error")
			return &RateLimitResult{Allowed: true, Limit: p.Burst}
		}
	} else {
		res = l.memory.allow(key, p)
	}

	l.record(ctx, endpoint, res.Allowed, "exhausted")
	return res
}

func (l *Limiter) record(ctx context.Context, endpoint string, allowed bool, reason string) {
	if l.metrics == nil {
		return
	}
	if allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
		return
	}
	l.metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

type memoryBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// memoryBuckets keeps one x/time/rate limiter per key for single-replica
// deployments without redis.
type memoryBuckets struct {
	mu      sync.Mutex
	buckets map[string]*memoryBucket
	idle    time.Duration
	swept   time.Time
	now     func() time.Time
}

func newMemoryBuckets(idle time.Duration) *memoryBuckets {
	return &memoryBuckets{buckets: make(map[string]*memoryBucket), idle: idle, now: time.Now}
}

func (m *memoryBuckets) allow(key string, p Policy) *RateLimitResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.swept) > m.idle {
		for k, b := range m.buckets {
			if now.Sub(b.lastSeen) > m.idle {
				delete(m.buckets, k)
			}
		}
		m.swept = now
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &memoryBucket{limiter: rate.NewLimiter(rate.Limit(p.Rate), p.Burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return &RateLimitResult{Allowed: false, Limit: p.Burst}
	}
	delay := r.DelayFrom(now)
	if delay > 0 {
		r.CancelAt(now)
		return &RateLimitResult{
			Allowed:    false,
			Limit:      p.Burst,
			RetryAfter: delay,
			ResetTime:  now.Add(delay),
		}
	}
	return &RateLimitResult{
		Allowed:   true,
		Limit:     p.Burst,
		Remaining: int(b.limiter.TokensAt(now)),
		ResetTime: now,
	}
}
