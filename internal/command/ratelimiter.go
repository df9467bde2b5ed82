// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DisabledTokensSentinel is what Tokens reports when rate limiting is off.
const DisabledTokensSentinel = -1

// RateLimiter wraps golang.org/x/time/rate with the semantics the pipeline
// needs: a disabled or non-positive rate acquires immediately and reports
// a sentinel token count, and sub-1 Hz rates (duty-cycle constrained
// radio, e.g. 0.02 tokens/s) are accepted as-is.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(enabled bool, tokensPerSecond, burst float64) *RateLimiter {
	if !enabled || tokensPerSecond <= 0 {
		return &RateLimiter{}
	}
	b := int(burst)
	if b < 1 {
		b = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(tokensPerSecond), b)}
}

// Acquire blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// TryAcquire waits at most timeout for a token, for callers that want to
// cap their wait instead of blocking indefinitely.
func (r *RateLimiter) TryAcquire(timeout time.Duration) bool {
	if r.limiter == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.limiter.Wait(ctx) == nil
}

// Tokens reports the instantaneous token count, or the -1 sentinel when
// the limiter is disabled.
func (r *RateLimiter) Tokens() float64 {
	if r.limiter == nil {
		return DisabledTokensSentinel
	}
	return r.limiter.Tokens()
}

// Rate reports tokens/second, 0 when disabled. Used for the estimated-wait
// calculation in QueueInfo.
func (r *RateLimiter) Rate() float64 {
	if r.limiter == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}
