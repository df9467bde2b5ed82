// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"context"
	"time"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// The methods in this file are the query surface the HTTP API runs against
// Store.DB. Open limits that pool to one connection, so these reads do not
// run in parallel with each other, and a read waits while a WithSession
// transaction holds the connection.

func (s *Store) GetNode(pubkey string) (*meshmodel.Node, error) {
	return getNode(s.DB, pubkey)
}

func (s *Store) FindNodesByPrefix(prefix string) ([]*meshmodel.Node, error) {
	return findNodesByPrefix(s.DB, prefix)
}

func (s *Store) ListNodes(limit, offset int) ([]*meshmodel.Node, error) {
	return listNodes(s.DB, limit, offset)
}

func (s *Store) ListTags(nodePublicKey string) ([]*meshmodel.NodeTag, error) {
	return listTags(s.DB, nodePublicKey)
}

func (s *Store) GetTag(nodePublicKey, key string) (*meshmodel.NodeTag, error) {
	return getTag(s.DB, nodePublicKey, key)
}

// UpsertTag writes a user-owned tag outside of the normalizer's write path
// (importer, HTTP PUT). It opens its own scoped transaction because it may
// also need to create the owning Node row.
func (s *Store) UpsertTag(t *meshmodel.NodeTag) (*meshmodel.NodeTag, error) {
	var out *meshmodel.NodeTag
	err := s.WithSession(context.Background(), func(sess *Session) error {
		var err error
		out, err = upsertTag(sess.tx, t, time.Now().UTC())
		return err
	})
	return out, err
}

func (s *Store) ListAdvertisements(publicKey string, limit int) ([]*meshmodel.Advertisement, error) {
	return listAdvertisements(s.DB, publicKey, limit)
}

func (s *Store) ListMessages(pubkeyPrefix, messageType string, limit int) ([]*meshmodel.Message, error) {
	return listMessages(s.DB, pubkeyPrefix, messageType, limit)
}

func (s *Store) ListTracePaths(initiatorTag *uint32, limit int) ([]*meshmodel.TracePath, error) {
	return listTracePaths(s.DB, initiatorTag, limit)
}

func (s *Store) LatestTelemetry(nodePublicKey string) (*meshmodel.Telemetry, error) {
	return latestTelemetry(s.DB, nodePublicKey)
}

func (s *Store) ListTelemetry(nodePublicKey string, limit int) ([]*meshmodel.Telemetry, error) {
	return listTelemetry(s.DB, nodePublicKey, limit)
}

func (s *Store) ListEventLog(eventType string, limit int) ([]*meshmodel.EventLog, error) {
	return listEventLog(s.DB, eventType, limit)
}

func (s *Store) DeleteTag(nodePublicKey, key string) error {
	return deleteTag(s.DB, nodePublicKey, key)
}
