// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"context"
	"strings"
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

func (n *Normalizer) handleAdvertisement(sess *repository.Session, payload map[string]any) error {
	pubkey, _ := payload["public_key"].(string)
	if pubkey == "" {
		return nil
	}

	now := time.Now().UTC()
	advType := stringField(payload, "adv_type")
	candidate := stringFieldValue(payload, "name")

	// Adverts without a usable name or type get enriched from the device's
	// contact cache. The Port single-flights the fetch, so concurrent
	// demand shares one round trip.
	if candidate == "" || advType == nil {
		if name, nodeType := n.lookupContact(pubkey); name != "" || nodeType != nil {
			if candidate == "" {
				candidate = name
			}
			if advType == nil {
				advType = nodeType
			}
		}
	}

	node, err := sess.UpsertNode(pubkey, advType, now)
	if err != nil {
		return err
	}

	var current string
	if node.Name != nil {
		current = *node.Name
	}
	if updated, changed := updateName(current, candidate, placeholderName(pubkey)); changed {
		if err := sess.SetNodeName(pubkey, updated); err != nil {
			return err
		}
	}

	adv := buildAdvertisement(pubkey, payload, now)
	_, err = sess.InsertAdvertisement(adv)
	return err
}

// lookupContact finds pubkey in the Port's cached contact list. A fetch
// failure only costs the enrichment, never the advertisement itself.
func (n *Normalizer) lookupContact(pubkey string) (string, *string) {
	if n.port == nil {
		return "", nil
	}
	contacts, err := n.port.GetContacts(context.Background())
	if err != nil {
		log.Debugf("normalizer: contact enrichment fetch failed: %v", err)
		return "", nil
	}
	for _, c := range contacts {
		if strings.EqualFold(c.PublicKey, pubkey) {
			var nodeType *string
			if c.NodeType != "" {
				t := c.NodeType
				nodeType = &t
			}
			return c.Name, nodeType
		}
	}
	return "", nil
}
