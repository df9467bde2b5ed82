// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// insertTracePath marshals PathHashes/SNRValues into their TEXT-column JSON
// representation before the write, matching meshmodel.TracePath's
// dual-representation shape (raw columns for storage, slices for callers).
func insertTracePath(x ex, t *meshmodel.TracePath) (int64, error) {
	if len(t.PathHashes) > 0 {
		b, err := json.Marshal(t.PathHashes)
		if err != nil {
			return 0, err
		}
		s := string(b)
		t.PathHashesRaw = &s
	}
	if len(t.SNRValues) > 0 {
		b, err := json.Marshal(t.SNRValues)
		if err != nil {
			return 0, err
		}
		s := string(b)
		t.SNRValuesRaw = &s
	}

	res, err := sq.Insert("trace_paths").
		Columns("initiator_tag", "path_hashes", "snr_values", "hop_count", "completed_at").
		Values(t.InitiatorTag, t.PathHashesRaw, t.SNRValuesRaw, t.HopCount, t.CompletedAt).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: insert trace path %d: %v", t.InitiatorTag, err)
		return 0, err
	}
	return res.LastInsertId()
}

func scanTracePath(row interface {
	Scan(dest ...any) error
}) (*meshmodel.TracePath, error) {
	var t meshmodel.TracePath
	if err := row.Scan(&t.ID, &t.InitiatorTag, &t.PathHashesRaw, &t.SNRValuesRaw, &t.HopCount, &t.CompletedAt); err != nil {
		return nil, err
	}
	if t.PathHashesRaw != nil {
		_ = json.Unmarshal([]byte(*t.PathHashesRaw), &t.PathHashes)
	}
	if t.SNRValuesRaw != nil {
		_ = json.Unmarshal([]byte(*t.SNRValuesRaw), &t.SNRValues)
	}
	return &t, nil
}

func listTracePaths(x ex, initiatorTag *uint32, limit int) ([]*meshmodel.TracePath, error) {
	q := sq.Select("id", "initiator_tag", "path_hashes", "snr_values", "hop_count", "completed_at").
		From("trace_paths").OrderBy("completed_at DESC").Limit(uint64(limit))
	if initiatorTag != nil {
		q = q.Where(sq.Eq{"initiator_tag": *initiatorTag})
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.TracePath
	for rows.Next() {
		t, err := scanTracePath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
