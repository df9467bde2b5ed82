// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package device is the Device Port: the polymorphic source/sink over the
// MeshCore link. SerialPort talks to real hardware through
// go.bug.st/serial; MockPort plays back a scripted scenario or generates a
// weighted-random stream, so the rest of the system can be exercised
// without a radio attached.
package device

import (
	"context"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// Port is the single capability set every Device Port variant satisfies.
// Command methods never return an error for a device-side failure; they
// synthesize a failure meshmodel.DeviceEvent instead, the same way a
// successful send does, so callers always get an event to record.
type Port interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Subscribe registers a new consumer of the raw event stream. Every
	// subscriber receives every event in device order; a channel that
	// fills up has its oldest buffered event dropped rather than
	// blocking the device's ingestion goroutine.
	Subscribe() <-chan meshmodel.DeviceEvent

	SendMessage(ctx context.Context, destination, text string, textType int) meshmodel.DeviceEvent
	SendChannelMessage(ctx context.Context, text string, flood bool) meshmodel.DeviceEvent
	SendAdvert(ctx context.Context, flood bool) meshmodel.DeviceEvent
	SendTracePath(ctx context.Context, destination string) meshmodel.DeviceEvent
	Ping(ctx context.Context, destination string) meshmodel.DeviceEvent
	SendTelemetryRequest(ctx context.Context, destination string) meshmodel.DeviceEvent

	GetContacts(ctx context.Context) ([]meshmodel.Contact, error)

	// InvalidateContacts discards the cached contact list so the next
	// GetContacts fetches fresh data. Called after a contact-sync event
	// instead of waiting out the cache TTL.
	InvalidateContacts()

	// ResolveDestination turns a caller-supplied destination into a full
	// key: a 64-hex key is returned lowercased without an existence
	// check; anything else must be a prefix of at least two hex
	// characters matched against the contact cache.
	ResolveDestination(ctx context.Context, destination string) (string, error)
}
