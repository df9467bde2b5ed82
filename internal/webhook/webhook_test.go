// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/internal/config"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

type capture struct {
	mu     sync.Mutex
	bodies []string
	types  []string
	count  int
}

func newCaptureServer(status int) (*httptest.Server, *capture) {
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, string(body))
		c.types = append(c.types, r.Header.Get("Content-Type"))
		c.count++
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	return srv, c
}

func (c *capture) attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func waitForAttempts(t *testing.T, c *capture, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.attempts() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("wanted %d attempts, saw %d", want, c.attempts())
}

// The whole payload envelope is POSTed as JSON
// with event_type and data.
func TestDispatchPostsEnvelope(t *testing.T) {
	srv, c := newCaptureServer(http.StatusOK)
	defer srv.Close()

	f := New(config.WebhookConfig{
		AdvertisementURL: srv.URL,
		TimeoutSeconds:   5,
		RetryCount:       0,
	})

	pubkey := strings.Repeat("01", 32)
	f.Dispatch(meshmodel.EventAdvertisement, map[string]any{"public_key": pubkey, "name": "Alice"})

	waitForAttempts(t, c, 1, 2*time.Second)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.bodies[0]), &envelope))
	require.Equal(t, meshmodel.EventAdvertisement, envelope["event_type"])
	data := envelope["data"].(map[string]any)
	require.Equal(t, pubkey, data["public_key"])
	require.Equal(t, "application/json", c.types[0])
}

func TestDispatchUnconfiguredKindIsDropped(t *testing.T) {
	srv, c := newCaptureServer(http.StatusOK)
	defer srv.Close()

	f := New(config.WebhookConfig{
		ContactMessageURL: srv.URL,
		TimeoutSeconds:    5,
	})

	f.Dispatch(meshmodel.EventChannelMsgRecv, map[string]any{"text": "hi"})

	time.Sleep(100 * time.Millisecond)
	require.Zero(t, c.attempts())
}

// Retry count R means exactly 1+R attempts against a URL that
// always fails.
func TestRetryAttemptCount(t *testing.T) {
	if testing.Short() {
		t.Skip("waits out real backoff delays")
	}

	srv, c := newCaptureServer(http.StatusInternalServerError)
	defer srv.Close()

	f := New(config.WebhookConfig{
		ContactMessageURL: srv.URL,
		TimeoutSeconds:    1,
		RetryCount:        1,
	})

	f.Dispatch(meshmodel.EventContactMsgRecv, map[string]any{"text": "hi"})

	// 1 initial + 1 retry after the 2s backoff, and no third attempt.
	waitForAttempts(t, c, 2, 5*time.Second)
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 2, c.attempts())
}

func TestJSONPathProjection(t *testing.T) {
	srv, c := newCaptureServer(http.StatusOK)
	defer srv.Close()

	f := New(config.WebhookConfig{
		ContactMessageURL:      srv.URL,
		ContactMessageJSONPath: "$.data.text",
		TimeoutSeconds:         5,
	})

	f.Dispatch(meshmodel.EventContactMsgRecv, map[string]any{"text": "hello there"})

	waitForAttempts(t, c, 1, 2*time.Second)

	// String projection goes out as plain text.
	require.Equal(t, "hello there", c.bodies[0])
	require.Equal(t, "text/plain", c.types[0])
}

func TestJSONPathZeroMatchesSendsFullPayload(t *testing.T) {
	srv, c := newCaptureServer(http.StatusOK)
	defer srv.Close()

	f := New(config.WebhookConfig{
		ContactMessageURL:      srv.URL,
		ContactMessageJSONPath: "$.data.no_such_field",
		TimeoutSeconds:         5,
	})

	f.Dispatch(meshmodel.EventContactMsgRecv, map[string]any{"text": "hi"})

	waitForAttempts(t, c, 1, 2*time.Second)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(c.bodies[0]), &envelope))
	require.Equal(t, meshmodel.EventContactMsgRecv, envelope["event_type"])
}

func TestInvalidJSONPathFallsBackToRoot(t *testing.T) {
	require.Equal(t, "$", validJSONPath("$[not-a-path"))
	require.Equal(t, "$", validJSONPath(""))
	require.Equal(t, "$.data", validJSONPath("$.data"))
}
