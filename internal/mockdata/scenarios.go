// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mockdata carries the scripted event scenarios the mock Device
// Port can play back instead of generating weighted-random traffic.
package mockdata

import (
	"fmt"
	"strings"
)

// EventDef is one scripted event: Delay is seconds since scenario start,
// Data may contain the dynamic placeholders ProcessDynamicValues expands.
type EventDef struct {
	Delay float64
	Type  string
	Data  map[string]any
}

type Scenario struct {
	Description string
	Events      []EventDef
}

// Scenarios mirrors the fixture set MeshCore operators use to demo the
// bridge without hardware: a two-node chat, a multi-hop trace, a sensor
// feed, a stress burst and a battery-drain sweep.
var Scenarios = map[string]Scenario{
	"simple_chat": {
		Description: "Two nodes exchanging messages",
		Events: []EventDef{
			{Delay: 0.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "01ab2186c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1",
				"name":       "Alice",
				"adv_type":   "chat",
				"latitude":   45.5231,
				"longitude":  -122.6765,
				"flags":      0,
			}},
			{Delay: 2.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "b3f4e5d6a7b8c9d0e1f2a3b4c5d6e7f8a9b0c1d2e3f4a5b6c7d8e9f0a1b2c3d4",
				"name":       "Bob",
				"adv_type":   "chat",
				"latitude":   45.5345,
				"longitude":  -122.6543,
				"flags":      0,
			}},
			{Delay: 5.0, Type: "CONTACT_MSG_RECV", Data: map[string]any{
				"pubkey_prefix":    "01ab2186c4d5",
				"path_len":         3,
				"txt_type":         0,
				"text":             "Hello Bob!",
				"SNR":              15.5,
				"sender_timestamp": "{{now}}",
			}},
			{Delay: 8.0, Type: "SEND_CONFIRMED", Data: map[string]any{
				"destination_public_key": "01ab2186c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b1c2d3e4f5a6b7c8d9e0f1",
				"round_trip_ms":          2500,
			}},
			{Delay: 10.0, Type: "CONTACT_MSG_RECV", Data: map[string]any{
				"pubkey_prefix":    "b3f4e5d6a7b8",
				"path_len":         2,
				"txt_type":         0,
				"text":             "Hi Alice! How are you?",
				"SNR":              14.8,
				"sender_timestamp": "{{now}}",
			}},
		},
	},
	"trace_path_test": {
		Description: "Trace path through multi-hop network",
		Events: []EventDef{
			{Delay: 0.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "01abc123456789abcdef0123456789abcdef0123456789abcdef0123456789ab",
				"name":       "NodeA",
				"adv_type":   "chat",
				"latitude":   45.5231,
				"longitude":  -122.6765,
			}},
			{Delay: 1.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "b3def456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
				"name":       "NodeB",
				"adv_type":   "repeater",
				"latitude":   45.5345,
				"longitude":  -122.6543,
			}},
			{Delay: 2.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "fa9876543210fedcba9876543210fedcba9876543210fedcba9876543210fedc",
				"name":       "NodeC",
				"adv_type":   "chat",
				"latitude":   45.5456,
				"longitude":  -122.6321,
			}},
			{Delay: 5.0, Type: "TRACE_DATA", Data: map[string]any{
				"initiator_tag": 305419896,
				"path_len":      2,
				"path_hashes":   []any{"b3", "fa"},
				"snr_values":    []any{48.0, 45.2},
				"hop_count":     2,
			}},
		},
	},
	"telemetry_collection": {
		Description: "Periodic telemetry from sensor nodes",
		Events: []EventDef{
			{Delay: 0.0, Type: "ADVERTISEMENT", Data: map[string]any{
				"public_key": "sensor01aabbccddeeff00112233445566778899aabbccddeeff00112233445566",
				"name":       "TempSensor",
				"adv_type":   "chat",
				"latitude":   45.5231,
				"longitude":  -122.6765,
			}},
			{Delay: 5.0, Type: "TELEMETRY_RESPONSE", Data: map[string]any{
				"node_public_key": "sensor01aabb",
				"parsed_data":     map[string]any{"temperature": 22.5, "humidity": 65, "battery": 3.8},
			}},
			{Delay: 10.0, Type: "TELEMETRY_RESPONSE", Data: map[string]any{
				"node_public_key": "sensor01aabb",
				"parsed_data":     map[string]any{"temperature": 23.1, "humidity": 63, "battery": 3.75},
			}},
			{Delay: 15.0, Type: "TELEMETRY_RESPONSE", Data: map[string]any{
				"node_public_key": "sensor01aabb",
				"parsed_data":     map[string]any{"temperature": 23.8, "humidity": 61, "battery": 3.72},
			}},
		},
	},
	"network_stress": {
		Description: "High-traffic scenario with many nodes",
		Events:      networkStressEvents(),
	},
	"battery_drain": {
		Description: "Simulated battery drain over time",
		Events:      batteryDrainEvents(),
	},
}

func networkStressEvents() []EventDef {
	var events []EventDef
	for i := 0; i < 10; i++ {
		events = append(events, EventDef{
			Delay: float64(i) * 0.5,
			Type:  "ADVERTISEMENT",
			Data: map[string]any{
				"public_key": nodeNumKey(i),
				"name":       nodeName(i),
				"adv_type":   "chat",
				"latitude":   45.52 + float64(i)*0.01,
				"longitude":  -122.67 + float64(i)*0.01,
			},
		})
	}
	for i := 0; i < 20; i++ {
		events = append(events, EventDef{
			Delay: 10.0 + float64(i)*1.0,
			Type:  "CHANNEL_MSG_RECV",
			Data: map[string]any{
				"channel_idx":      i % 3,
				"path_len":         0,
				"txt_type":         0,
				"text":             channelMsgText(i),
				"SNR":              "{{random_snr}}",
				"sender_timestamp": "{{now}}",
			},
		})
	}
	return events
}

func batteryDrainEvents() []EventDef {
	var events []EventDef
	for i := 0; i < 20; i++ {
		voltage := 4.2 - float64(i)*0.05
		if voltage < 3.0 {
			voltage = 3.0
		}
		pct := 100 - i*5
		if pct < 0 {
			pct = 0
		}
		events = append(events, EventDef{
			Delay: float64(i) * 10.0,
			Type:  "BATTERY",
			Data: map[string]any{
				"battery_voltage":    voltage,
				"battery_percentage": pct,
			},
		})
	}
	return events
}

func nodeNumKey(i int) string {
	return fmt.Sprintf("node%02d%s", i, strings.Repeat("ab", 30))
}

func nodeName(i int) string {
	return fmt.Sprintf("Node%02d", i)
}

func channelMsgText(i int) string {
	return fmt.Sprintf("Channel message %d", i)
}
