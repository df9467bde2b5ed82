// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package meshmodel holds the persisted entity types and small value types
// shared between the store, the normalizer and the HTTP surface.
package meshmodel

import "time"

type NodeType string

const (
	NodeTypeUnknown   NodeType = "unknown"
	NodeTypeCompanion NodeType = "companion"
	NodeTypeRepeater  NodeType = "repeater"
)

// Node is a mesh participant, keyed by its full 64-char hex public key.
type Node struct {
	PublicKey   string    `db:"public_key" json:"public_key"`
	PrefixTwo   string    `db:"public_key_prefix_2" json:"-"`
	PrefixEight string    `db:"public_key_prefix_8" json:"-"`
	NodeType    *string   `db:"node_type" json:"node_type,omitempty"`
	Name        *string   `db:"name" json:"name,omitempty"`
	FirstSeen   time.Time `db:"first_seen" json:"first_seen"`
	LastSeen    time.Time `db:"last_seen" json:"last_seen"`
}

type TagValueType string

const (
	TagValueString     TagValueType = "string"
	TagValueNumber     TagValueType = "number"
	TagValueBoolean    TagValueType = "boolean"
	TagValueCoordinate TagValueType = "coordinate"
)

// NodeTag is user-owned per-node metadata. Exactly one of the typed value
// columns is populated, matching ValueType.
type NodeTag struct {
	ID            int64        `db:"id" json:"id"`
	NodePublicKey string       `db:"node_public_key" json:"node_public_key"`
	Key           string       `db:"key" json:"key"`
	ValueType     TagValueType `db:"value_type" json:"value_type"`
	ValueString   *string      `db:"value_string" json:"value_string,omitempty"`
	ValueNumber   *float64     `db:"value_number" json:"value_number,omitempty"`
	ValueBoolean  *bool        `db:"value_boolean" json:"value_boolean,omitempty"`
	Latitude      *float64     `db:"latitude" json:"latitude,omitempty"`
	Longitude     *float64     `db:"longitude" json:"longitude,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageType string

const (
	MessageTypeContact MessageType = "contact"
	MessageTypeChannel MessageType = "channel"
)

// Message is a direct or channel text message observed by the device.
type Message struct {
	ID              int64            `db:"id" json:"id"`
	Direction       MessageDirection `db:"direction" json:"direction"`
	MessageType     MessageType      `db:"message_type" json:"message_type"`
	PubkeyPrefix    *string          `db:"pubkey_prefix" json:"pubkey_prefix,omitempty"`
	ChannelIdx      *int             `db:"channel_idx" json:"channel_idx,omitempty"`
	TxtType         *int             `db:"txt_type" json:"txt_type,omitempty"`
	PathLen         *int             `db:"path_len" json:"path_len,omitempty"`
	Signature       *string          `db:"signature" json:"signature,omitempty"`
	Content         string           `db:"content" json:"content"`
	SNR             *float64         `db:"snr" json:"snr,omitempty"`
	SenderTimestamp *time.Time       `db:"sender_timestamp" json:"sender_timestamp,omitempty"`
	ReceivedAt      time.Time        `db:"received_at" json:"received_at"`
}

type AdvType string

const (
	AdvTypeNone     AdvType = "none"
	AdvTypeChat     AdvType = "chat"
	AdvTypeRepeater AdvType = "repeater"
	AdvTypeRoom     AdvType = "room"
)

// Advertisement is a periodic self-announcement broadcast by a mesh node.
type Advertisement struct {
	ID         int64     `db:"id" json:"id"`
	PublicKey  string    `db:"public_key" json:"public_key"`
	AdvType    *string   `db:"adv_type" json:"adv_type,omitempty"`
	Name       *string   `db:"name" json:"name,omitempty"`
	Flags      *int      `db:"flags" json:"flags,omitempty"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
}

// TracePath is a multi-hop path-discovery result. If both HopCount and
// PathHashes are present, HopCount must equal len(PathHashes).
type TracePath struct {
	ID            int64     `db:"id" json:"id"`
	InitiatorTag  uint32    `db:"initiator_tag" json:"initiator_tag"`
	PathHashesRaw *string   `db:"path_hashes" json:"-"`
	SNRValuesRaw  *string   `db:"snr_values" json:"-"`
	HopCount      *int      `db:"hop_count" json:"hop_count,omitempty"`
	CompletedAt   time.Time `db:"completed_at" json:"completed_at"`

	PathHashes []string  `db:"-" json:"path_hashes,omitempty"`
	SNRValues  []float64 `db:"-" json:"snr_values,omitempty"`
}

// Telemetry is one telemetry observation for a node; each observation is
// stored as its own row.
type Telemetry struct {
	ID            int64     `db:"id" json:"id"`
	NodePublicKey string    `db:"node_public_key" json:"node_public_key"`
	RawData       []byte    `db:"raw_data" json:"-"`
	ParsedData    []byte    `db:"parsed_data" json:"parsed_data,omitempty"`
	ReceivedAt    time.Time `db:"received_at" json:"received_at"`
}

// EventLog is the append-only forensic log of every ingested device event.
type EventLog struct {
	ID        int64     `db:"id" json:"id"`
	EventType string    `db:"event_type" json:"event_type"`
	Payload   []byte    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
