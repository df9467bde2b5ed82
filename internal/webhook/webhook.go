// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package webhook is the Webhook Fanout: routes normalized event payloads
// to per-kind HTTP endpoints with JSONPath projection and exponential
// backoff retries.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/jpillora/backoff"

	"github.com/ipnet-mesh/meshbridge/internal/config"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
	"github.com/ipnet-mesh/meshbridge/pkg/metrics"
)

type route struct {
	url      string
	jsonPath string
}

// Fanout owns the per-kind routing table and dispatches every event
// independently of the caller; Dispatch never blocks on the HTTP round
// trip.
type Fanout struct {
	client     *http.Client
	routes     map[string]route
	retryCount int
}

func New(cfg config.WebhookConfig) *Fanout {
	routes := map[string]route{}
	if cfg.ContactMessageURL != "" {
		routes[meshmodel.EventContactMsgRecv] = route{url: cfg.ContactMessageURL, jsonPath: validJSONPath(cfg.ContactMessageJSONPath)}
	}
	if cfg.ChannelMessageURL != "" {
		routes[meshmodel.EventChannelMsgRecv] = route{url: cfg.ChannelMessageURL, jsonPath: validJSONPath(cfg.ChannelMessageJSONPath)}
	}
	if cfg.AdvertisementURL != "" {
		routes[meshmodel.EventAdvertisement] = route{url: cfg.AdvertisementURL, jsonPath: validJSONPath(cfg.AdvertisementJSONPath)}
		routes[meshmodel.EventNewAdvert] = route{url: cfg.AdvertisementURL, jsonPath: validJSONPath(cfg.AdvertisementJSONPath)}
	}

	return &Fanout{
		client:     &http.Client{Timeout: cfg.Timeout()},
		routes:     routes,
		retryCount: cfg.RetryCount,
	}
}

// validJSONPath falls back to "$" (whole payload) for an expression that
// fails to parse at configuration time, logging once up front rather than
// on every dispatch.
func validJSONPath(expr string) string {
	if expr == "" {
		return "$"
	}
	if _, err := jsonpath.New(expr); err != nil {
		log.Warnf("webhook: invalid JSONPath %q, falling back to $: %v", expr, err)
		return "$"
	}
	return expr
}

// Dispatch looks up the route for eventKind and, if configured, sends the
// event asynchronously. A webhook failure never propagates to the caller.
func (f *Fanout) Dispatch(eventKind string, payload map[string]any) {
	r, ok := f.routes[eventKind]
	if !ok {
		return
	}

	body := map[string]any{
		"event_type": eventKind,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"data":       payload,
	}

	go f.send(eventKind, r, body)
}

func (f *Fanout) send(eventKind string, r route, body map[string]any) {
	content, contentType := project(r.jsonPath, body)

	b := &backoff.Backoff{Min: 2 * time.Second, Factor: 2, Jitter: false}
	totalAttempts := f.retryCount + 1

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if err := f.post(r.url, content, contentType); err != nil {
			log.Warnf("webhook: %s attempt %d/%d to %s failed: %v", eventKind, attempt+1, totalAttempts, r.url, err)
			metrics.WebhookAttemptsTotal.WithLabelValues(eventKind, "failure").Inc()
			if attempt < totalAttempts-1 {
				time.Sleep(b.Duration())
			}
			continue
		}
		metrics.WebhookAttemptsTotal.WithLabelValues(eventKind, "success").Inc()
		return
	}

	log.Errorf("webhook: %s failed after %d attempts to %s", eventKind, totalAttempts, r.url)
}

func (f *Fanout) post(url string, body []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), f.client.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// project applies the route's JSONPath expression to payload, falling back
// to sending the whole payload when the expression yields zero matches.
// The resulting content shape decides Content-Type.
func project(expr string, payload map[string]any) ([]byte, string) {
	value := any(payload)

	if expr != "$" {
		v, err := jsonpath.Get(expr, payload)
		if err != nil {
			log.Warnf("webhook: JSONPath %q matched nothing, sending full payload: %v", expr, err)
		} else {
			value = v
		}
	}

	switch v := value.(type) {
	case string:
		return []byte(v), "text/plain"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			b, _ = json.Marshal(payload)
		}
		return b, "application/json"
	}
}
