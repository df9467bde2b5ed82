// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package normalizer

import (
	"time"

	"github.com/ipnet-mesh/meshbridge/internal/repository"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

const pubkeyPrefixLen = 12

func (n *Normalizer) handleContactMessage(sess *repository.Session, payload map[string]any) error {
	prefix := stringFieldValue(payload, "pubkey_prefix")
	if len(prefix) > pubkeyPrefixLen {
		prefix = prefix[:pubkeyPrefixLen]
	}

	msg := &meshmodel.Message{
		Direction:       meshmodel.DirectionInbound,
		MessageType:     meshmodel.MessageTypeContact,
		PubkeyPrefix:    nonEmpty(prefix),
		TxtType:         intField(payload, "txt_type"),
		PathLen:         intField(payload, "path_len"),
		Signature:       stringField(payload, "signature"),
		Content:         stringFieldValue(payload, "text"),
		SNR:             floatField(payload, "SNR"),
		SenderTimestamp: timeField(payload, "sender_timestamp"),
		ReceivedAt:      time.Now().UTC(),
	}
	_, err := sess.InsertMessage(msg)
	return err
}

func (n *Normalizer) handleChannelMessage(sess *repository.Session, payload map[string]any) error {
	msg := &meshmodel.Message{
		Direction:       meshmodel.DirectionInbound,
		MessageType:     meshmodel.MessageTypeChannel,
		ChannelIdx:      intField(payload, "channel_idx"),
		TxtType:         intField(payload, "txt_type"),
		PathLen:         intField(payload, "path_len"),
		Content:         stringFieldValue(payload, "text"),
		SNR:             floatField(payload, "SNR"),
		SenderTimestamp: timeField(payload, "sender_timestamp"),
		ReceivedAt:      time.Now().UTC(),
	}
	_, err := sess.InsertMessage(msg)
	return err
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
