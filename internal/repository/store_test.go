// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

func setup(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func strptr(s string) *string   { return &s }
func f64ptr(f float64) *float64 { return &f }

func TestUpsertNodeDerivesPrefixes(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("01", 32)

	err := store.WithSession(context.Background(), func(sess *Session) error {
		node, err := sess.UpsertNode(pubkey, strptr("companion"), time.Now().UTC())
		require.NoError(t, err)
		require.Equal(t, pubkey, node.PublicKey)
		require.Equal(t, "01", node.PrefixTwo)
		require.Equal(t, "01010101", node.PrefixEight)
		return nil
	})
	require.NoError(t, err)
}

func TestUpsertNodePreservesFirstSeen(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("02", 32)
	early := time.Now().UTC().Add(-time.Hour)

	var firstSeen time.Time
	err := store.WithSession(context.Background(), func(sess *Session) error {
		node, err := sess.UpsertNode(pubkey, nil, early)
		require.NoError(t, err)
		firstSeen = node.FirstSeen

		node, err = sess.UpsertNode(pubkey, strptr("repeater"), time.Now().UTC())
		require.NoError(t, err)
		require.Equal(t, firstSeen.Unix(), node.FirstSeen.Unix())
		require.True(t, node.LastSeen.After(node.FirstSeen))
		require.Equal(t, "repeater", *node.NodeType)
		return nil
	})
	require.NoError(t, err)
}

func TestFindNodesByPrefix(t *testing.T) {
	store := setup(t)
	keyA := "aa" + strings.Repeat("01", 31)
	keyB := "ab" + strings.Repeat("01", 31)
	keyC := "aaaa" + strings.Repeat("02", 30)

	err := store.WithSession(context.Background(), func(sess *Session) error {
		now := time.Now().UTC()
		for _, k := range []string{keyA, keyB, keyC} {
			if _, err := sess.UpsertNode(k, nil, now); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	nodes, err := store.FindNodesByPrefix("aa")
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	nodes, err = store.FindNodesByPrefix("aaaa")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, keyC, nodes[0].PublicKey)

	// Longer than the indexed prefix-8 column: range scan fallback.
	nodes, err = store.FindNodesByPrefix(keyA[:12])
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	require.Equal(t, keyA, nodes[0].PublicKey)

	nodes, err = store.FindNodesByPrefix("ff")
	require.NoError(t, err)
	require.Empty(t, nodes)
}

// After writing a tag of type T, reading back yields (T, v)
// with no other typed slot populated.
func TestTagTypeExclusivity(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("03", 32)

	tag, err := store.UpsertTag(&meshmodel.NodeTag{
		NodePublicKey: pubkey,
		Key:           "owner",
		ValueType:     meshmodel.TagValueString,
		ValueString:   strptr("alice"),
	})
	require.NoError(t, err)
	require.Equal(t, meshmodel.TagValueString, tag.ValueType)
	require.Equal(t, "alice", *tag.ValueString)
	require.Nil(t, tag.ValueNumber)
	require.Nil(t, tag.ValueBoolean)
	require.Nil(t, tag.Latitude)

	// Overwriting with a coordinate clears the string slot.
	tag, err = store.UpsertTag(&meshmodel.NodeTag{
		NodePublicKey: pubkey,
		Key:           "owner",
		ValueType:     meshmodel.TagValueCoordinate,
		Latitude:      f64ptr(45.52),
		Longitude:     f64ptr(-122.67),
	})
	require.NoError(t, err)
	require.Equal(t, meshmodel.TagValueCoordinate, tag.ValueType)
	require.Nil(t, tag.ValueString)
	require.Equal(t, 45.52, *tag.Latitude)
	require.Equal(t, -122.67, *tag.Longitude)

	// Uniqueness per (node, key): still exactly one row.
	tags, err := store.ListTags(pubkey)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func TestTagWriteCreatesNodeLazily(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("04", 32)

	_, err := store.GetNode(pubkey)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = store.UpsertTag(&meshmodel.NodeTag{
		NodePublicKey: pubkey,
		Key:           "site",
		ValueType:     meshmodel.TagValueString,
		ValueString:   strptr("rooftop"),
	})
	require.NoError(t, err)

	node, err := store.GetNode(pubkey)
	require.NoError(t, err)
	require.Equal(t, pubkey, node.PublicKey)
}

func TestDeleteTag(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("05", 32)

	_, err := store.UpsertTag(&meshmodel.NodeTag{
		NodePublicKey: pubkey,
		Key:           "temp",
		ValueType:     meshmodel.TagValueBoolean,
		ValueBoolean:  func() *bool { b := true; return &b }(),
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteTag(pubkey, "temp"))
	require.True(t, errors.Is(store.DeleteTag(pubkey, "temp"), ErrNotFound))
}

func TestSessionRollsBackOnError(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("06", 32)

	sentinel := errors.New("boom")
	err := store.WithSession(context.Background(), func(sess *Session) error {
		if _, err := sess.UpsertNode(pubkey, nil, time.Now().UTC()); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	_, err = store.GetNode(pubkey)
	require.ErrorIs(t, err, ErrNotFound)
}

// The sweep removes only rows past retention, and never
// touches nodes or tags.
func TestRetentionSweep(t *testing.T) {
	store := setup(t)
	pubkey := strings.Repeat("07", 32)

	old := time.Now().UTC().AddDate(0, 0, -31)
	fresh := time.Now().UTC()

	err := store.WithSession(context.Background(), func(sess *Session) error {
		if _, err := sess.UpsertNode(pubkey, nil, fresh); err != nil {
			return err
		}
		for i := 0; i < 100; i++ {
			if _, err := insertEventLogAt(sess.tx, "STATUS", []byte("{}"), old); err != nil {
				return err
			}
		}
		for i := 0; i < 50; i++ {
			if _, err := insertEventLogAt(sess.tx, "STATUS", []byte("{}"), fresh); err != nil {
				return err
			}
		}
		if _, err := sess.InsertMessage(&meshmodel.Message{
			Direction:   meshmodel.DirectionInbound,
			MessageType: meshmodel.MessageTypeChannel,
			Content:     "old",
			ReceivedAt:  old,
		}); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	_, err = store.UpsertTag(&meshmodel.NodeTag{
		NodePublicKey: pubkey,
		Key:           "keep",
		ValueType:     meshmodel.TagValueString,
		ValueString:   strptr("me"),
	})
	require.NoError(t, err)

	counts, err := store.SweepRetention(context.Background(), 30)
	require.NoError(t, err)
	require.EqualValues(t, 100, counts.EventLog)
	require.EqualValues(t, 1, counts.Messages)

	entries, err := store.ListEventLog("", 1000)
	require.NoError(t, err)
	require.Len(t, entries, 50)

	_, err = store.GetNode(pubkey)
	require.NoError(t, err)
	tags, err := store.ListTags(pubkey)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}
