// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package normalizer is the Event Normalizer: the sole consumer of the
// Device Port's raw event stream, translating each event into store writes
// and handing successfully normalized traffic to the Webhook Fanout.
package normalizer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/ipnet-mesh/meshbridge/internal/device"
	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/metrics"
)

// WebhookSink receives the normalized payload of an event kind eligible for
// fanout. Implemented by internal/webhook.Fanout; kept as an interface here
// so normalizer has no import-cycle dependency on the webhook package's
// configuration types.
type WebhookSink interface {
	Dispatch(eventKind string, payload map[string]any)
}

// defaultEventLogDenyList holds the noisy internal kinds excluded from
// EventLog by default; callers may extend it via config.
var defaultEventLogDenyList = map[string]bool{
	meshmodel.EventSendConfirmed: true,
	meshmodel.EventStatistics:    true,
	meshmodel.EventRaw:           true,
}

// Normalizer owns the single goroutine draining a Port's event channel.
type Normalizer struct {
	store    *repository.Store
	port     device.Port
	webhook  WebhookSink
	denyList map[string]bool
}

func New(store *repository.Store, port device.Port, webhook WebhookSink, eventLogDenyList []string) *Normalizer {
	deny := make(map[string]bool, len(defaultEventLogDenyList))
	for k := range defaultEventLogDenyList {
		deny[k] = true
	}
	for _, k := range eventLogDenyList {
		deny[k] = true
	}
	return &Normalizer{store: store, port: port, webhook: webhook, denyList: deny}
}

// Run drains ch until it is closed or ctx is cancelled, handling one event
// at a time in the order the Device Port produced them.
func (n *Normalizer) Run(ctx context.Context, ch <-chan meshmodel.DeviceEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			n.handle(ev)
		}
	}
}

func (n *Normalizer) handle(ev meshmodel.DeviceEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("normalizer: panic handling %s event: %v", ev.Type, r)
		}
	}()

	metrics.EventsIngestedTotal.WithLabelValues(ev.Type).Inc()

	var fanoutPayload map[string]any

	err := n.store.WithSession(context.Background(), func(sess *repository.Session) error {
		if !n.denyList[ev.Type] {
			raw, merr := json.Marshal(ev.Payload)
			if merr != nil {
				return merr
			}
			if _, err := sess.AppendEventLog(ev.Type, raw); err != nil {
				return err
			}
		}

		payload, err := n.dispatch(sess, ev)
		if err != nil {
			return err
		}
		fanoutPayload = payload
		return nil
	})

	if err != nil {
		log.Errorf("normalizer: handling %s event: %v", ev.Type, err)
		return
	}

	if fanoutPayload != nil && n.webhook != nil {
		n.webhook.Dispatch(ev.Type, fanoutPayload)
	}
}

// dispatch routes ev to its per-kind handler, returning the payload to hand
// to the Webhook Fanout (nil when this kind is not fanned out).
func (n *Normalizer) dispatch(sess *repository.Session, ev meshmodel.DeviceEvent) (map[string]any, error) {
	switch ev.Type {
	case meshmodel.EventAdvertisement, meshmodel.EventNewAdvert:
		return ev.Payload, n.handleAdvertisement(sess, ev.Payload)
	case meshmodel.EventContactMsgRecv:
		return ev.Payload, n.handleContactMessage(sess, ev.Payload)
	case meshmodel.EventChannelMsgRecv:
		return ev.Payload, n.handleChannelMessage(sess, ev.Payload)
	case meshmodel.EventTraceData:
		return nil, n.handleTraceData(sess, ev.Payload)
	case meshmodel.EventTelemetryResp:
		return nil, n.handleTelemetry(sess, ev.Payload)
	case meshmodel.EventContactSync:
		return nil, n.handleContactSync(sess, ev.Payload)
	default:
		// Informational kinds (send-confirmed, battery, device-info,
		// status, statistics, raw, control): EventLog only, already
		// appended above.
		return nil, nil
	}
}

// updateName implements the no-downgrade rule: a node name never regresses
// from a real value back to its placeholder, and an empty candidate never
// overwrites anything.
func updateName(current, candidate, placeholder string) (string, bool) {
	if candidate == "" {
		return current, false
	}
	if current == "" {
		return candidate, true
	}
	if strings.EqualFold(current, candidate) {
		return current, false
	}
	if current == placeholder {
		return candidate, true
	}
	if candidate == placeholder {
		return current, false
	}
	return candidate, true
}

func placeholderName(pubkey string) string {
	if len(pubkey) >= 8 {
		return pubkey[:8]
	}
	return pubkey
}
