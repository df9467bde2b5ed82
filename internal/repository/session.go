// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// ex is the minimal executor surface shared by *sqlx.DB and *sqlx.Tx; every
// entity query function is parameterized over it so the same code serves
// both transactional writes (through a Session) and ad-hoc reads (through
// a Store) without duplicating SQL.
type ex = sqlx.Ext

// Session is a single scoped transaction, handed to Event Normalizer
// handlers and anything else that must write atomically. Obtain one via
// Store.WithSession.
type Session struct {
	tx *sqlx.Tx
}

func (s *Session) UpsertNode(pubkey string, nodeType *string, seenAt time.Time) (*meshmodel.Node, error) {
	return upsertNode(s.tx, pubkey, nodeType, seenAt)
}

func (s *Session) GetNode(pubkey string) (*meshmodel.Node, error) {
	return getNode(s.tx, pubkey)
}

func (s *Session) SetNodeName(pubkey, name string) error {
	return setNodeName(s.tx, pubkey, name)
}

func (s *Session) InsertAdvertisement(a *meshmodel.Advertisement) (int64, error) {
	return insertAdvertisement(s.tx, a)
}

func (s *Session) InsertMessage(m *meshmodel.Message) (int64, error) {
	return insertMessage(s.tx, m)
}

func (s *Session) InsertTracePath(t *meshmodel.TracePath) (int64, error) {
	return insertTracePath(s.tx, t)
}

func (s *Session) UpsertTelemetry(t *meshmodel.Telemetry) (int64, error) {
	return upsertTelemetry(s.tx, t)
}

func (s *Session) AppendEventLog(eventType string, payload []byte) (int64, error) {
	return appendEventLog(s.tx, eventType, payload)
}
