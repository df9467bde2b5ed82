// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func appendEventLog(x ex, eventType string, payload []byte) (int64, error) {
	return insertEventLogAt(x, eventType, payload, time.Now().UTC())
}

func insertEventLogAt(x ex, eventType string, payload []byte, createdAt time.Time) (int64, error) {
	res, err := sq.Insert("event_log").
		Columns("event_type", "payload", "created_at").
		Values(eventType, string(payload), createdAt).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: append event log %s: %v", eventType, err)
		return 0, err
	}
	return res.LastInsertId()
}

func listEventLog(x ex, eventType string, limit int) ([]*meshmodel.EventLog, error) {
	q := sq.Select("id", "event_type", "payload", "created_at").
		From("event_log").OrderBy("created_at DESC").Limit(uint64(limit))
	if eventType != "" {
		q = q.Where(sq.Eq{"event_type": eventType})
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.EventLog
	for rows.Next() {
		var e meshmodel.EventLog
		var payload string
		if err := rows.Scan(&e.ID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		out = append(out, &e)
	}
	return out, rows.Err()
}
