// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"time"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// Device events arrive as a loosely typed map[string]any (the wire format
// is device-specific and out of scope of this core); these helpers pull
// typed values out of that map, tolerating both JSON-decoded numeric types
// (float64) and the mock port's native Go ints/uint32s.

func stringFieldValue(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

// stringField returns nil when the field is absent or empty, matching the
// Node.NodeType/Advertisement.AdvType *string convention of "don't
// overwrite with nothing".
func stringField(payload map[string]any, key string) *string {
	v, ok := payload[key].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func intField(payload map[string]any, key string) *int {
	switch v := payload[key].(type) {
	case int:
		return &v
	case int64:
		i := int(v)
		return &i
	case float64:
		i := int(v)
		return &i
	default:
		return nil
	}
}

func floatField(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}

func uint32Field(payload map[string]any, key string) uint32 {
	switch v := payload[key].(type) {
	case uint32:
		return v
	case int:
		return uint32(v)
	case int64:
		return uint32(v)
	case float64:
		return uint32(v)
	default:
		return 0
	}
}

func timeField(payload map[string]any, key string) *time.Time {
	switch v := payload[key].(type) {
	case int64:
		t := time.Unix(v, 0).UTC()
		return &t
	case int:
		t := time.Unix(int64(v), 0).UTC()
		return &t
	case float64:
		t := time.Unix(int64(v), 0).UTC()
		return &t
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return &t
		}
	}
	return nil
}

func buildAdvertisement(pubkey string, payload map[string]any, receivedAt time.Time) *meshmodel.Advertisement {
	return &meshmodel.Advertisement{
		PublicKey:  pubkey,
		AdvType:    stringField(payload, "adv_type"),
		Name:       stringField(payload, "name"),
		Flags:      intField(payload, "flags"),
		ReceivedAt: receivedAt,
	}
}
