// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"sync"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/metrics"
)

// subscriberBuffer bounds each subscriber's channel: a consumer that falls
// behind has its oldest buffered event evicted rather than stalling
// publish for every other subscriber.
const subscriberBuffer = 64

// eventBus fans a single device event stream out to any number of
// subscribers, isolating a slow one from the rest.
type eventBus struct {
	mu          sync.Mutex
	subscribers []chan meshmodel.DeviceEvent
}

func (b *eventBus) subscribe() <-chan meshmodel.DeviceEvent {
	ch := make(chan meshmodel.DeviceEvent, subscriberBuffer)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

func (b *eventBus) publish(e meshmodel.DeviceEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
			metrics.EventsDroppedTotal.Inc()
		}
	}
}
