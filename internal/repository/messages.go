// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func insertMessage(x ex, m *meshmodel.Message) (int64, error) {
	res, err := sq.Insert("messages").
		Columns("direction", "message_type", "pubkey_prefix", "channel_idx", "txt_type",
			"path_len", "signature", "content", "snr", "sender_timestamp", "received_at").
		Values(m.Direction, m.MessageType, m.PubkeyPrefix, m.ChannelIdx, m.TxtType,
			m.PathLen, m.Signature, m.Content, m.SNR, m.SenderTimestamp, m.ReceivedAt).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: insert message: %v", err)
		return 0, err
	}
	return res.LastInsertId()
}

func listMessages(x ex, pubkeyPrefix string, messageType string, limit int) ([]*meshmodel.Message, error) {
	q := sq.Select("id", "direction", "message_type", "pubkey_prefix", "channel_idx", "txt_type",
		"path_len", "signature", "content", "snr", "sender_timestamp", "received_at").
		From("messages").OrderBy("received_at DESC").Limit(uint64(limit))

	if pubkeyPrefix != "" {
		q = q.Where("pubkey_prefix LIKE ?", pubkeyPrefix+"%")
	}
	if messageType != "" {
		q = q.Where(sq.Eq{"message_type": messageType})
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.Message
	for rows.Next() {
		var m meshmodel.Message
		if err := rows.Scan(&m.ID, &m.Direction, &m.MessageType, &m.PubkeyPrefix, &m.ChannelIdx, &m.TxtType,
			&m.PathLen, &m.Signature, &m.Content, &m.SNR, &m.SenderTimestamp, &m.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
