// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package command

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/config"
	"github.com/ipnet-mesh/meshbridge/internal/device"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/metrics"
)

// dequeueTimeout bounds how long the worker blocks on an empty queue so
// shutdown stays observable.
const dequeueTimeout = time.Second

// Pipeline accepts outbound command requests, collapses duplicates through
// the debouncer, queues survivors and serializes their execution against
// the Device Port through the rate limiter.
type Pipeline struct {
	port      device.Port
	debouncer *Debouncer
	queue     *boundedQueue
	limiter   *RateLimiter

	processedTotal atomic.Uint64
	droppedTotal   atomic.Uint64
	debouncedTotal atomic.Uint64
}

func NewPipeline(port device.Port, queueCfg config.CommandQueueConfig, rateCfg config.RateLimitConfig, debounceCfg config.DebounceConfig) *Pipeline {
	return &Pipeline{
		port:      port,
		debouncer: NewDebouncer(debounceCfg.Enabled, debounceCfg.Window(), debounceCfg.CacheCapacity, debounceCfg.DebouncedCommandTypes),
		queue:     newBoundedQueue(queueCfg.Capacity, queueCfg.FullQueuePolicy),
		limiter:   NewRateLimiter(rateCfg.Enabled, rateCfg.Rate, rateCfg.Burst),
	}
}

// Submit accepts a command request and returns synchronously with queue
// placement metadata; it never waits for device-side execution. A duplicate
// inside the debounce window reports Debounced=true and the first call's
// enqueue time instead of a fresh queue position, and once the executing
// call has finished it also carries that call's cached CommandResult.
func (p *Pipeline) Submit(req meshmodel.CommandRequest) (*meshmodel.CommandResult, meshmodel.QueueInfo, error) {
	check := p.debouncer.Check(req.Type, req.Params)
	if check.IsDuplicate {
		p.debouncedTotal.Add(1)
		metrics.CommandsDebouncedTotal.Inc()
		result, _ := p.debouncer.CachedResult(check.Hash)
		return result, meshmodel.QueueInfo{
			Debounced:           true,
			DebounceHash:        check.Hash,
			OriginalRequestTime: check.OriginalTime,
		}, nil
	}

	item, position, evicted, err := p.queue.enqueue(req, check.Hash)
	if err != nil {
		// Queue-full rejection: the fresh debounce entry must not stay
		// pending forever, or a duplicate inside the window would hang
		// on a command that never ran.
		p.droppedTotal.Add(1)
		metrics.CommandsDroppedTotal.Inc()
		p.debouncer.MarkCompleted(check.Hash, failureResult(req.Type, err))
		return nil, meshmodel.QueueInfo{DebounceHash: check.Hash}, err
	}

	info := meshmodel.QueueInfo{
		Position:     position,
		DebounceHash: check.Hash,
	}
	if r := p.limiter.Rate(); r > 0 {
		info.EstimatedWait = time.Duration(float64(position) / r * float64(time.Second))
	}

	if evicted != nil {
		// drop_oldest eviction is internal bookkeeping: the evicted
		// command is failed-queue-full, counted, and its debounce entry
		// resolved.
		p.droppedTotal.Add(1)
		metrics.CommandsDroppedTotal.Inc()
		p.debouncer.MarkCompleted(evicted.hash, failureResult(evicted.request.Type, ErrQueueFull))
		info.DroppedOldestCommand = true
		log.Warnf("command: queue full, dropped oldest %s (id %s)", evicted.request.Type, evicted.id)
	}

	log.Debugf("command: queued %s at position %d (id %s)", req.Type, position, item.id)
	return nil, info, nil
}

// Run is the worker loop: the sole queue consumer, serializing device
// execution behind the rate limiter. It exits when ctx is cancelled, after
// finishing the in-flight command.
func (p *Pipeline) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item := p.queue.dequeue(dequeueTimeout)
		if item == nil {
			continue
		}

		if err := p.limiter.Acquire(ctx); err != nil {
			// Shutdown while waiting for airtime: resolve the item as
			// failed so duplicate callers observe an outcome.
			p.finish(item, failureResult(item.request.Type, err))
			return
		}

		result := p.execute(ctx, item.request)
		p.finish(item, result)
	}
}

func (p *Pipeline) finish(item *queueItem, result meshmodel.CommandResult) {
	p.debouncer.MarkCompleted(item.hash, result)
	p.processedTotal.Add(1)
	metrics.CommandsProcessedTotal.Inc()
	metrics.RateLimitTokensAvailable.Set(p.limiter.Tokens())
}

// execute dispatches to the Device Port method matching the command type.
// Panics and malformed parameters become failure results; the worker never
// dies on a single bad command.
func (p *Pipeline) execute(ctx context.Context, req meshmodel.CommandRequest) (result meshmodel.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("command: panic executing %s: %v", req.Type, r)
			result = failureResult(req.Type, fmt.Errorf("panic: %v", r))
		}
	}()

	var ev meshmodel.DeviceEvent

	switch req.Type {
	case meshmodel.CommandSendMessage:
		ev = p.port.SendMessage(ctx, paramString(req.Params, "destination"), paramString(req.Params, "text"), paramInt(req.Params, "text_type"))
	case meshmodel.CommandSendChannelMessage:
		ev = p.port.SendChannelMessage(ctx, paramString(req.Params, "text"), paramBool(req.Params, "flood"))
	case meshmodel.CommandSendAdvert:
		ev = p.port.SendAdvert(ctx, paramBool(req.Params, "flood"))
	case meshmodel.CommandSendTracePath:
		ev = p.port.SendTracePath(ctx, paramString(req.Params, "destination"))
	case meshmodel.CommandPing:
		ev = p.port.Ping(ctx, paramString(req.Params, "destination"))
	case meshmodel.CommandSendTelemetryReq:
		ev = p.port.SendTelemetryRequest(ctx, paramString(req.Params, "destination"))
	default:
		return failureResult(req.Type, fmt.Errorf("unknown command type %q", req.Type))
	}

	return resultFromEvent(ev)
}

// resultFromEvent wraps the device's returned event into a CommandResult.
// The Device Port signals failure with an ERROR or COMMAND_FAILED event
// rather than an error return.
func resultFromEvent(ev meshmodel.DeviceEvent) meshmodel.CommandResult {
	r := meshmodel.CommandResult{
		Success:   ev.Type != "ERROR" && ev.Type != "COMMAND_FAILED",
		EventType: ev.Type,
		Payload:   ev.Payload,
		Timestamp: time.Now().UTC(),
	}
	if !r.Success {
		if msg, ok := ev.Payload["error"].(string); ok {
			r.Error = msg
		}
	}
	return r
}

func failureResult(cmdType meshmodel.CommandType, err error) meshmodel.CommandResult {
	return meshmodel.CommandResult{
		Success:   false,
		EventType: "ERROR",
		Error:     fmt.Sprintf("%s: %v", cmdType, err),
		Timestamp: time.Now().UTC(),
	}
}

// SweepDebounce runs one debounce cache sweep; scheduled periodically by
// the supervisor.
func (p *Pipeline) SweepDebounce() {
	if n := p.debouncer.Sweep(); n > 0 {
		log.Debugf("command: debounce sweep removed %d entries", n)
	}
}

// Stats snapshots the pipeline's counters for external observers.
func (p *Pipeline) Stats() meshmodel.QueueStats {
	return meshmodel.QueueStats{
		CommandsProcessedTotal: p.processedTotal.Load(),
		CommandsDroppedTotal:   p.droppedTotal.Load(),
		CommandsDebouncedTotal: p.debouncedTotal.Load(),
		QueueSize:              p.queue.size(),
		RateLimitTokensAvail:   p.limiter.Tokens(),
		DebounceCacheSize:      p.debouncer.Size(),
	}
}

func paramString(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func paramBool(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func paramInt(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
