package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// takeToken refills the bucket from redis server time, then consumes one
// token when available. Tokens are returned as a string since redis
// truncates Lua numbers in replies.
var takeToken = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local t = redis.call("TIME")
local now = t[1] * 1000 + math.floor(t[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
if now > last then
  tokens = math.min(burst, tokens + (now - last) / 1000 * rate)
end

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {allowed, tostring(tokens), now}
`)

// TokenBucket shares rate limit state between replicas through redis.
type TokenBucket struct {
	client *redis.Client
}

// RateLimitResult is the outcome of one Allow call, enough to fill the
// X-RateLimit-* and Retry-After headers.
type RateLimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{client: client}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, p Policy) (*RateLimitResult, error) {
	if t == nil || t.client == nil {
		return nil, errors.New("redis token bucket not configured")
	}
	if key == "" || p.Rate <= 0 || p.Burst <= 0 {
		return nil, fmt.Errorf("invalid bucket %q: rate %v burst %d", key, p.Rate, p.Burst)
	}

	reply, err := takeToken.Run(ctx, t.client, []string{key},
		p.Rate, p.Burst, bucketTTL(p).Milliseconds(),
	).Slice()
	if err != nil {
		return nil, err
	}
	if len(reply) != 3 {
		return nil, fmt.Errorf("token bucket: unexpected reply %v", reply)
	}

	allowed, _ := reply[0].(int64)
	tokens, err := strconv.ParseFloat(fmt.Sprint(reply[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("token bucket: tokens: %w", err)
	}
	nowMs, _ := reply[2].(int64)

	res := &RateLimitResult{
		Allowed:   allowed == 1,
		Limit:     p.Burst,
		Remaining: int(tokens),
		ResetTime: time.UnixMilli(nowMs),
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration((1 - tokens) / p.Rate * float64(time.Second))
		res.ResetTime = res.ResetTime.Add(res.RetryAfter)
	}
	return res, nil
}

// bucketTTL keeps an idle bucket for twice the time it takes to refill.
func bucketTTL(p Policy) time.Duration {
	if p.Rate <= 0 || p.Burst <= 0 {
		return time.Second
	}
	seconds := math.Max(1, math.Ceil(float64(p.Burst)/p.Rate*2))
	return time.Duration(seconds) * time.Second
}
