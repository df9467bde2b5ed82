// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

// RetentionCounts reports how many rows were swept per table, for logging
// and tests.
type RetentionCounts struct {
	Messages       int64
	Advertisements int64
	Telemetry      int64
	TracePaths     int64
	EventLog       int64
}

// SweepRetention deletes rows older than retentionDays from every
// retention-swept table (Message, Advertisement, Telemetry, TracePath,
// EventLog). Node and NodeTag are never touched here. Runs inside its own
// transaction.
func (s *Store) SweepRetention(ctx context.Context, retentionDays int) (RetentionCounts, error) {
	var counts RetentionCounts
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)

	err := s.WithSession(ctx, func(sess *Session) error {
		var err error
		if counts.Messages, err = deleteOlderThan(sess.tx, "messages", "received_at", cutoff); err != nil {
			return err
		}
		if counts.Advertisements, err = deleteOlderThan(sess.tx, "advertisements", "received_at", cutoff); err != nil {
			return err
		}
		if counts.Telemetry, err = deleteOlderThan(sess.tx, "telemetry", "received_at", cutoff); err != nil {
			return err
		}
		if counts.TracePaths, err = deleteOlderThan(sess.tx, "trace_paths", "completed_at", cutoff); err != nil {
			return err
		}
		if counts.EventLog, err = deleteOlderThan(sess.tx, "event_log", "created_at", cutoff); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return counts, err
	}

	log.Infof("repository: retention sweep removed messages=%d advertisements=%d telemetry=%d trace_paths=%d event_log=%d",
		counts.Messages, counts.Advertisements, counts.Telemetry, counts.TracePaths, counts.EventLog)
	return counts, nil
}

func deleteOlderThan(x ex, table, column string, cutoff time.Time) (int64, error) {
	res, err := sq.Delete(table).Where(sq.Lt{column: cutoff}).RunWith(x).Exec()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
