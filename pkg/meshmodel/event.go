// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package meshmodel

// Event kinds the Device Port emits. Informational kinds are logged to
// EventLog only; the rest have a dedicated Normalizer handler.
const (
	EventAdvertisement    = "ADVERTISEMENT"
	EventNewAdvert        = "NEW_ADVERT"
	EventContactMsgRecv   = "CONTACT_MSG_RECV"
	EventChannelMsgRecv   = "CHANNEL_MSG_RECV"
	EventTraceData        = "TRACE_DATA"
	EventTelemetryResp    = "TELEMETRY_RESPONSE"
	EventContactSync      = "CONTACT_SYNC"
	EventSendConfirmed    = "SEND_CONFIRMED"
	EventBattery          = "BATTERY"
	EventDeviceInfo       = "DEVICE_INFO"
	EventStatus           = "STATUS"
	EventStatistics       = "STATISTICS"
	EventRaw              = "RAW"
	EventControl          = "CONTROL"
	EventConnectionLost   = "CONNECTION_LOST"
)

// DeviceEvent is the tagged-union shape every event from the Device Port
// takes: {type, payload}. Payload is a loosely typed mapping because the
// device's wire format is not itself specified.
type DeviceEvent struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Contact is a single entry from the device's contact list, used both for
// destination resolution and for Node name/type enrichment.
type Contact struct {
	PublicKey string `json:"public_key"`
	Name      string `json:"name,omitempty"`
	NodeType  string `json:"node_type,omitempty"`
}

// ContactSyncPayload is the aggregate event emitted when the device reports
// its full contact list at once. See DESIGN.md Open Question decision 1.
type ContactSyncPayload struct {
	Contacts []Contact `json:"contacts"`
}

// DestinationNotFoundError is returned by Port.ResolveDestination when a
// prefix matches zero contacts.
type DestinationNotFoundError struct {
	Prefix string
}

func (e *DestinationNotFoundError) Error() string {
	return "no contact matches prefix " + e.Prefix
}
