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

func newTestDebouncer(window time.Duration, capacity int) *Debouncer {
	return NewDebouncer(true, window, capacity, []string{
		string(meshmodel.CommandSendMessage),
		string(meshmodel.CommandSendAdvert),
	})
}

func TestDebounceDuplicateWithinWindow(t *testing.T) {
	d := newTestDebouncer(5*time.Second, 100)
	params := map[string]any{"destination": "aa12", "text": "hi"}

	first := d.Check(meshmodel.CommandSendMessage, params)
	require.False(t, first.IsDuplicate)
	require.NotEmpty(t, first.Hash)
	require.Nil(t, first.OriginalTime)

	for i := 0; i < 9; i++ {
		dup := d.Check(meshmodel.CommandSendMessage, params)
		require.True(t, dup.IsDuplicate)
		require.Equal(t, first.Hash, dup.Hash)
		require.NotNil(t, dup.OriginalTime)
	}
}

func TestDebounceCanonicalHashIgnoresParamOrder(t *testing.T) {
	a := hashRequest(meshmodel.CommandSendMessage, map[string]any{"destination": "aa12", "text": "hi"})
	b := hashRequest(meshmodel.CommandSendMessage, map[string]any{"text": "hi", "destination": "aa12"})
	require.Equal(t, a, b)

	c := hashRequest(meshmodel.CommandSendMessage, map[string]any{"destination": "aa12", "text": "bye"})
	require.NotEqual(t, a, c)
}

func TestDebounceDisabledTypePassesThrough(t *testing.T) {
	d := newTestDebouncer(5*time.Second, 100)
	params := map[string]any{"destination": "aa12"}

	for i := 0; i < 3; i++ {
		check := d.Check(meshmodel.CommandPing, params)
		require.False(t, check.IsDuplicate)
		require.Empty(t, check.Hash)
	}
}

func TestDebounceExpiredEntryIsFresh(t *testing.T) {
	d := newTestDebouncer(50*time.Millisecond, 100)
	params := map[string]any{"text": "hello"}

	first := d.Check(meshmodel.CommandSendAdvert, params)
	require.False(t, first.IsDuplicate)
	d.MarkCompleted(first.Hash, meshmodel.CommandResult{Success: true})

	time.Sleep(80 * time.Millisecond)

	again := d.Check(meshmodel.CommandSendAdvert, params)
	require.False(t, again.IsDuplicate)
}

func TestDebounceMarkCompletedCachesResult(t *testing.T) {
	d := newTestDebouncer(5*time.Second, 100)
	params := map[string]any{"text": "hello"}

	check := d.Check(meshmodel.CommandSendMessage, params)
	_, done := d.CachedResult(check.Hash)
	require.False(t, done)

	d.MarkCompleted(check.Hash, meshmodel.CommandResult{Success: true, EventType: "MSG_SENT"})

	result, done := d.CachedResult(check.Hash)
	require.True(t, done)
	require.True(t, result.Success)
	require.Equal(t, "MSG_SENT", result.EventType)
}

func TestDebounceAwaitResolvedByMarkCompleted(t *testing.T) {
	d := newTestDebouncer(5*time.Second, 100)
	check := d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "x"})

	got := make(chan *meshmodel.CommandResult, 1)
	go func() {
		r, ok := d.Await(check.Hash, 2*time.Second)
		require.True(t, ok)
		got <- r
	}()

	time.Sleep(20 * time.Millisecond)
	d.MarkCompleted(check.Hash, meshmodel.CommandResult{Success: false, Error: "queue full"})

	select {
	case r := <-got:
		require.False(t, r.Success)
		require.Equal(t, "queue full", r.Error)
	case <-time.After(time.Second):
		t.Fatal("waiter was never resolved")
	}
}

func TestDebounceCapacityEvictsOldestNonPending(t *testing.T) {
	d := newTestDebouncer(time.Minute, 2)

	a := d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "a"})
	d.MarkCompleted(a.Hash, meshmodel.CommandResult{Success: true})
	b := d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "b"})

	// At capacity; "a" is the only non-pending entry and must be evicted.
	d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "c"})
	require.Equal(t, 2, d.Size())

	// "b" is still pending, so its duplicate is still collapsed.
	dup := d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "b"})
	require.True(t, dup.IsDuplicate)
	require.Equal(t, b.Hash, dup.Hash)
}

func TestDebounceSweepRemovesExpired(t *testing.T) {
	d := newTestDebouncer(30*time.Millisecond, 100)

	done := d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "done"})
	d.MarkCompleted(done.Hash, meshmodel.CommandResult{Success: true})
	d.Check(meshmodel.CommandSendMessage, map[string]any{"text": "pending"})

	time.Sleep(60 * time.Millisecond)

	removed := d.Sweep()
	require.Equal(t, 1, removed)
	// Pending entries outlive their window until resolved.
	require.Equal(t, 1, d.Size())
}
