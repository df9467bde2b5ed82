// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func pingRequest(dest string) meshmodel.CommandRequest {
	return meshmodel.CommandRequest{
		Type:   meshmodel.CommandPing,
		Params: map[string]any{"destination": dest},
	}
}

func TestQueueFIFOAndPositions(t *testing.T) {
	q := newBoundedQueue(10, meshmodel.PolicyReject)

	_, pos1, _, err := q.enqueue(pingRequest("aa"), "")
	require.NoError(t, err)
	require.Equal(t, 1, pos1)

	_, pos2, _, err := q.enqueue(pingRequest("bb"), "")
	require.NoError(t, err)
	require.Equal(t, 2, pos2)

	first := q.dequeue(100 * time.Millisecond)
	require.NotNil(t, first)
	require.Equal(t, "aa", first.request.Params["destination"])

	second := q.dequeue(100 * time.Millisecond)
	require.NotNil(t, second)
	require.Equal(t, "bb", second.request.Params["destination"])
}

func TestQueueRejectPolicy(t *testing.T) {
	q := newBoundedQueue(2, meshmodel.PolicyReject)

	_, pos1, _, err := q.enqueue(pingRequest("aa"), "")
	require.NoError(t, err)
	require.Equal(t, 1, pos1)
	_, pos2, _, err := q.enqueue(pingRequest("bb"), "")
	require.NoError(t, err)
	require.Equal(t, 2, pos2)

	_, _, _, err = q.enqueue(pingRequest("cc"), "")
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, 2, q.size())
}

func TestQueueDropOldestPolicy(t *testing.T) {
	q := newBoundedQueue(2, meshmodel.PolicyDropOldest)

	_, _, _, err := q.enqueue(pingRequest("aa"), "hash-a")
	require.NoError(t, err)
	_, _, _, err = q.enqueue(pingRequest("bb"), "hash-b")
	require.NoError(t, err)

	_, pos, evicted, err := q.enqueue(pingRequest("cc"), "hash-c")
	require.NoError(t, err)
	require.NotNil(t, evicted)
	require.Equal(t, "hash-a", evicted.hash)
	require.Equal(t, 2, pos)

	// Queue now holds [bb, cc].
	first := q.dequeue(100 * time.Millisecond)
	require.Equal(t, "bb", first.request.Params["destination"])
	second := q.dequeue(100 * time.Millisecond)
	require.Equal(t, "cc", second.request.Params["destination"])
}

func TestQueueDequeueTimesOutWhenEmpty(t *testing.T) {
	q := newBoundedQueue(2, meshmodel.PolicyReject)

	start := time.Now()
	item := q.dequeue(50 * time.Millisecond)
	require.Nil(t, item)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}
