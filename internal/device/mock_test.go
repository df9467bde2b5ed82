// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package device

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func fastMockConfig() MockPortConfig {
	cfg := DefaultMockPortConfig()
	cfg.MinInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	return cfg
}

func TestMockPortConnectIsIdempotent(t *testing.T) {
	p := NewMockPort(fastMockConfig())

	require.NoError(t, p.Connect(context.Background()))
	require.True(t, p.IsConnected())
	require.NoError(t, p.Connect(context.Background()))

	require.NoError(t, p.Disconnect())
	require.False(t, p.IsConnected())
	require.NoError(t, p.Disconnect())
}

func TestMockPortEmitsRandomEvents(t *testing.T) {
	p := NewMockPort(fastMockConfig())
	ch := p.Subscribe()

	require.NoError(t, p.Connect(context.Background()))
	defer p.Disconnect()

	for i := 0; i < 5; i++ {
		select {
		case ev := <-ch:
			require.NotEmpty(t, ev.Type)
			require.NotNil(t, ev.Payload)
		case <-time.After(time.Second):
			t.Fatal("no event emitted")
		}
	}
}

func TestMockPortEverySubscriberReceivesEvents(t *testing.T) {
	p := NewMockPort(fastMockConfig())
	ch1 := p.Subscribe()
	ch2 := p.Subscribe()

	require.NoError(t, p.Connect(context.Background()))
	defer p.Disconnect()

	for _, ch := range []<-chan meshmodel.DeviceEvent{ch1, ch2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatal("subscriber received nothing")
		}
	}
}

func TestMockPortScenarioPlayback(t *testing.T) {
	cfg := fastMockConfig()
	cfg.ScenarioName = "simple_chat"
	p := NewMockPort(cfg)
	ch := p.Subscribe()

	require.NoError(t, p.Connect(context.Background()))
	defer p.Disconnect()

	select {
	case ev := <-ch:
		require.NotEmpty(t, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("scenario produced no events")
	}
}

func TestMockPortCommandsResolveAndRespond(t *testing.T) {
	p := NewMockPort(fastMockConfig())
	require.NoError(t, p.Connect(context.Background()))
	defer p.Disconnect()

	contacts, err := p.GetContacts(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, contacts)

	dest := contacts[0].PublicKey

	ev := p.SendMessage(context.Background(), dest[:8], "hi", 0)
	require.Equal(t, "MSG_SENT", ev.Type)
	require.Equal(t, dest, ev.Payload["destination"])

	ev = p.Ping(context.Background(), "ffffffffffff")
	require.Equal(t, "ERROR", ev.Type)

	ev = p.SendTracePath(context.Background(), dest)
	require.Equal(t, "TRACE_INITIATED", ev.Type)
	require.Contains(t, ev.Payload, "initiator_tag")

	ev = p.SendAdvert(context.Background(), true)
	require.Equal(t, "ADVERT_SENT", ev.Type)
}

func TestEventBusDropsOldestWhenSubscriberStalls(t *testing.T) {
	var bus eventBus
	ch := bus.subscribe()

	// Never read: fill the buffer past capacity.
	for i := 0; i < subscriberBuffer+10; i++ {
		bus.publish(meshmodel.DeviceEvent{Type: "STATUS", Payload: map[string]any{"seq": i}})
	}

	// The oldest events were evicted; the channel still holds the most
	// recent subscriberBuffer ones, starting past the dropped window.
	first := <-ch
	require.Equal(t, 10, first.Payload["seq"])
}
