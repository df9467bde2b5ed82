// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes the Command Pipeline's and ingestion path's
// counters to Prometheus via promauto registration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CommandsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshbridge_commands_processed_total",
		Help: "Commands dispatched to the device and completed (success or failure).",
	})
	CommandsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshbridge_commands_dropped_total",
		Help: "Commands rejected or evicted because the outbound queue was full.",
	})
	CommandsDebouncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshbridge_commands_debounced_total",
		Help: "Command requests collapsed into an already-pending duplicate.",
	})
	QueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshbridge_command_queue_size",
		Help: "Current number of commands waiting in the outbound queue.",
	})
	RateLimitTokensAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshbridge_rate_limit_tokens_available",
		Help: "Tokens currently available in the command rate limiter (-1 when disabled).",
	})
	DebounceCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meshbridge_debounce_cache_size",
		Help: "Entries currently held in the command debounce cache.",
	})
	EventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshbridge_events_ingested_total",
		Help: "Device events ingested by the normalizer, by event type.",
	}, []string{"event_type"})
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meshbridge_events_dropped_total",
		Help: "Events dropped from a subscriber's bounded fan-out channel.",
	})
	WebhookAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "meshbridge_webhook_attempts_total",
		Help: "Webhook POST attempts, by event kind and outcome.",
	}, []string{"event_kind", "outcome"})
)
