// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"fmt"
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// handleTraceData tolerates two payload shapes: parallel
// path_hashes/snr_values arrays, or an inlined path array of {hash, snr}
// objects that must be flattened first.
func (n *Normalizer) handleTraceData(sess *repository.Session, payload map[string]any) error {
	if _, ok := payload["initiator_tag"]; !ok {
		log.Warnf("normalizer: dropping TRACE_DATA event missing initiator_tag")
		return nil
	}

	hashes, snrs := flattenPath(payload)

	// hop_count must agree with path_hashes when both are present; the
	// hashes are authoritative.
	hopCount := intField(payload, "hop_count")
	if hopCount != nil && len(hashes) > 0 && *hopCount != len(hashes) {
		n := len(hashes)
		hopCount = &n
	}

	t := &meshmodel.TracePath{
		InitiatorTag: uint32Field(payload, "initiator_tag"),
		HopCount:     hopCount,
		PathHashes:   hashes,
		SNRValues:    snrs,
		CompletedAt:  time.Now().UTC(),
	}
	_, err := sess.InsertTracePath(t)
	return err
}

func flattenPath(payload map[string]any) ([]string, []float64) {
	if path, ok := payload["path"].([]any); ok {
		hashes := make([]string, 0, len(path))
		snrs := make([]float64, 0, len(path))
		for _, item := range path {
			hop, ok := item.(map[string]any)
			if !ok {
				continue
			}
			hashes = append(hashes, fmt.Sprint(hop["hash"]))
			snrs = append(snrs, floatOf(hop["snr"]))
		}
		return hashes, snrs
	}

	return toStringSlice(payload["path_hashes"]), toFloatSlice(payload["snr_values"])
}

func floatOf(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprint(item)
	}
	return out
}

func toFloatSlice(v any) []float64 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float64, len(items))
	for i, item := range items {
		out[i] = floatOf(item)
	}
	return out
}
