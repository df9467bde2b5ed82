// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
)

// handleContactSync upserts every contact in the device's reported list,
// the mechanism by which Node names get enriched outside of advertisements.
func (n *Normalizer) handleContactSync(sess *repository.Session, payload map[string]any) error {
	raw, ok := payload["contacts"].([]any)
	if !ok {
		return nil
	}

	now := time.Now().UTC()
	for _, item := range raw {
		c, ok := item.(map[string]any)
		if !ok {
			continue
		}
		pubkey := stringFieldValue(c, "public_key")
		if pubkey == "" {
			continue
		}

		node, err := sess.UpsertNode(pubkey, stringField(c, "node_type"), now)
		if err != nil {
			return err
		}

		candidate := stringFieldValue(c, "name")
		var current string
		if node.Name != nil {
			current = *node.Name
		}
		if updated, changed := updateName(current, candidate, placeholderName(pubkey)); changed {
			if err := sess.SetNodeName(pubkey, updated); err != nil {
				return err
			}
		}
	}

	// The device just reported a fresh contact list; drop the port's
	// cached copy so advertisement enrichment stops serving stale names.
	if n.port != nil {
		n.port.InvalidateContacts()
	}
	return nil
}
