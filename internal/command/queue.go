// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package command

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/metrics"
)

// ErrQueueFull is returned by enqueue under the reject policy when the
// queue is at capacity.
var ErrQueueFull = errors.New("command: queue full")

// queueItem is one accepted command waiting for the worker.
type queueItem struct {
	id         string
	request    meshmodel.CommandRequest
	hash       string
	enqueuedAt time.Time
}

// boundedQueue is the FIFO between Submit and the worker. enqueue never
// blocks: at capacity it either rejects or evicts the head, per policy.
// It doubles as the pipeline's backpressure mechanism.
type boundedQueue struct {
	capacity int
	policy   meshmodel.FullQueuePolicy

	mu    sync.Mutex
	items []*queueItem

	// signal carries one token per enqueued item so dequeue can wait
	// without spinning; capacity matches the queue so sends never block.
	signal chan struct{}
}

func newBoundedQueue(capacity int, policy meshmodel.FullQueuePolicy) *boundedQueue {
	return &boundedQueue{
		capacity: capacity,
		policy:   policy,
		signal:   make(chan struct{}, capacity),
	}
}

// enqueue appends a new item and returns it with its 1-based position. When
// the queue is full, the reject policy fails with ErrQueueFull and the
// drop_oldest policy evicts the head, which is returned as evicted so the
// pipeline can resolve its debounce entry with a failure.
func (q *boundedQueue) enqueue(req meshmodel.CommandRequest, hash string) (item *queueItem, position int, evicted *queueItem, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		if q.policy == meshmodel.PolicyReject {
			return nil, 0, nil, ErrQueueFull
		}
		evicted = q.items[0]
		q.items = q.items[1:]
		// Drain the evicted item's signal token so the worker does not
		// wake for an item that no longer exists.
		select {
		case <-q.signal:
		default:
		}
	}

	item = &queueItem{
		id:         uuid.NewString(),
		request:    req,
		hash:       hash,
		enqueuedAt: time.Now().UTC(),
	}
	q.items = append(q.items, item)
	q.signal <- struct{}{}

	metrics.QueueSize.Set(float64(len(q.items)))
	return item, len(q.items), evicted, nil
}

// dequeue pops the head, waiting up to timeout for an item to arrive. The
// short timeout is what makes worker shutdown observable.
func (q *boundedQueue) dequeue(timeout time.Duration) *queueItem {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-q.signal:
		case <-timer.C:
			return nil
		}

		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			continue
		}
		item := q.items[0]
		q.items = q.items[1:]
		metrics.QueueSize.Set(float64(len(q.items)))
		q.mu.Unlock()
		return item
	}
}

func (q *boundedQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
