// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func upsertTelemetry(x ex, t *meshmodel.Telemetry) (int64, error) {
	res, err := sq.Insert("telemetry").
		Columns("node_public_key", "raw_data", "parsed_data", "received_at").
		Values(t.NodePublicKey, t.RawData, t.ParsedData, t.ReceivedAt).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: insert telemetry for %s: %v", t.NodePublicKey, err)
		return 0, err
	}
	return res.LastInsertId()
}

func latestTelemetry(x ex, nodePublicKey string) (*meshmodel.Telemetry, error) {
	var t meshmodel.Telemetry
	row := sq.Select("id", "node_public_key", "raw_data", "parsed_data", "received_at").
		From("telemetry").Where(sq.Eq{"node_public_key": nodePublicKey}).
		OrderBy("received_at DESC").Limit(1).RunWith(x).QueryRow()

	if err := row.Scan(&t.ID, &t.NodePublicKey, &t.RawData, &t.ParsedData, &t.ReceivedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func listTelemetry(x ex, nodePublicKey string, limit int) ([]*meshmodel.Telemetry, error) {
	q := sq.Select("id", "node_public_key", "raw_data", "parsed_data", "received_at").
		From("telemetry").OrderBy("received_at DESC").Limit(uint64(limit))
	if nodePublicKey != "" {
		q = q.Where(sq.Eq{"node_public_key": nodePublicKey})
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.Telemetry
	for rows.Next() {
		var t meshmodel.Telemetry
		if err := rows.Scan(&t.ID, &t.NodePublicKey, &t.RawData, &t.ParsedData, &t.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
