// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterDisabledSentinel(t *testing.T) {
	for _, r := range []*RateLimiter{
		NewRateLimiter(false, 10, 5),
		NewRateLimiter(true, 0, 5),
		NewRateLimiter(true, -1, 5),
	} {
		require.EqualValues(t, DisabledTokensSentinel, r.Tokens())
		require.Zero(t, r.Rate())

		start := time.Now()
		require.NoError(t, r.Acquire(context.Background()))
		require.Less(t, time.Since(start), 10*time.Millisecond)
	}
}

func TestRateLimiterBurstThenPacing(t *testing.T) {
	// 20 tokens/s with burst 5: the first five acquires are immediate,
	// the rest are spaced ~50ms apart.
	r := NewRateLimiter(true, 20, 5)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Acquire(context.Background()))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, r.Acquire(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimiterConformance(t *testing.T) {
	// Over [t, t+T], acquired tokens <= burst + ceil(rate*T).
	r := NewRateLimiter(true, 50, 3)

	window := 200 * time.Millisecond
	deadline := time.Now().Add(window)
	acquired := 0
	for time.Now().Before(deadline) {
		if r.TryAcquire(10 * time.Millisecond) {
			acquired++
		}
	}

	limit := 3 + int(50*window.Seconds()) + 1
	require.LessOrEqual(t, acquired, limit)
	require.Greater(t, acquired, 0)
}

func TestRateLimiterTryAcquireTimeout(t *testing.T) {
	r := NewRateLimiter(true, 0.02, 1)

	// Burst token is available immediately; the next token is 50s away.
	require.True(t, r.TryAcquire(10*time.Millisecond))
	require.False(t, r.TryAcquire(20*time.Millisecond))
}
