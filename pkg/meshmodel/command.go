// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package meshmodel

import "time"

// CommandType enumerates the outbound operations the Device Port accepts.
type CommandType string

const (
	CommandSendMessage        CommandType = "send_message"
	CommandSendChannelMessage CommandType = "send_channel_message"
	CommandSendAdvert         CommandType = "send_advert"
	CommandSendTracePath      CommandType = "send_trace_path"
	CommandPing               CommandType = "ping"
	CommandSendTelemetryReq   CommandType = "send_telemetry_request"
)

// FullQueuePolicy selects what happens when the bounded command queue is
// already at capacity.
type FullQueuePolicy string

const (
	PolicyReject     FullQueuePolicy = "reject"
	PolicyDropOldest FullQueuePolicy = "drop_oldest"
)

// CommandRequest is what an HTTP caller submits to the Command Pipeline.
type CommandRequest struct {
	Type   CommandType    `json:"type"`
	Params map[string]any `json:"params"`
}

// CommandResult is the outcome of a dispatched command, whether it came
// from a live device round-trip or was synthesized on failure.
type CommandResult struct {
	Success   bool           `json:"success"`
	EventType string         `json:"event_type,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QueueInfo is returned synchronously alongside a submitted command so the
// caller can see where it landed without waiting for device execution.
type QueueInfo struct {
	Position             int           `json:"position"`
	EstimatedWait        time.Duration `json:"estimated_wait"`
	Debounced            bool          `json:"debounced"`
	DebounceHash         string        `json:"debounce_hash,omitempty"`
	OriginalRequestTime  *time.Time    `json:"original_request_time,omitempty"`
	DroppedOldestCommand bool          `json:"dropped_oldest,omitempty"`
}

// QueueStats are the Command Pipeline's exposed monotonic/instantaneous
// counters.
type QueueStats struct {
	CommandsProcessedTotal uint64  `json:"commands_processed_total"`
	CommandsDroppedTotal   uint64  `json:"commands_dropped_total"`
	CommandsDebouncedTotal uint64  `json:"commands_debounced_total"`
	QueueSize              int     `json:"queue_size"`
	RateLimitTokensAvail   float64 `json:"rate_limit_tokens_available"`
	DebounceCacheSize      int     `json:"debounce_cache_size"`
}
