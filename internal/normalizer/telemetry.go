// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"encoding/json"
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func (n *Normalizer) handleTelemetry(sess *repository.Session, payload map[string]any) error {
	nodeKey := stringFieldValue(payload, "node_public_key")
	if nodeKey == "" {
		return nil
	}

	var parsed []byte
	if v, ok := payload["parsed_data"]; ok {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		parsed = b
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	t := &meshmodel.Telemetry{
		NodePublicKey: nodeKey,
		RawData:       raw,
		ParsedData:    parsed,
		ReceivedAt:    time.Now().UTC(),
	}
	_, err = sess.UpsertTelemetry(t)
	return err
}
