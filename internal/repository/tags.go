// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// ErrTagExists reports that a row for (node, key) already exists. No write
// path in this package returns it: upsertTag overwrites an existing row.
var ErrTagExists = errors.New("repository: tag already exists")

// upsertTag writes (or overwrites) the single NodeTag row for
// (nodePublicKey, key). The node itself is created lazily if this is the
// tag's first touch: a node exists from its first observation or its
// first tag write, whichever comes first.
func upsertTag(x ex, t *meshmodel.NodeTag, now time.Time) (*meshmodel.NodeTag, error) {
	if _, err := getNode(x, t.NodePublicKey); errors.Is(err, ErrNotFound) {
		if _, err := upsertNode(x, t.NodePublicKey, nil, now); err != nil {
			return nil, err
		}
	}

	t.UpdatedAt = now
	_, err := sq.Insert("node_tags").
		Columns("node_public_key", "key", "value_type", "value_string", "value_number",
			"value_boolean", "latitude", "longitude", "created_at", "updated_at").
		Values(t.NodePublicKey, t.Key, t.ValueType, t.ValueString, t.ValueNumber,
			t.ValueBoolean, t.Latitude, t.Longitude, now, now).
		Suffix(`ON CONFLICT(node_public_key, key) DO UPDATE SET
			value_type = excluded.value_type,
			value_string = excluded.value_string,
			value_number = excluded.value_number,
			value_boolean = excluded.value_boolean,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: upsert tag %s/%s: %v", t.NodePublicKey, t.Key, err)
		return nil, err
	}

	return getTag(x, t.NodePublicKey, t.Key)
}

func getTag(x ex, nodePublicKey, key string) (*meshmodel.NodeTag, error) {
	var t meshmodel.NodeTag
	row := sq.Select("id", "node_public_key", "key", "value_type", "value_string", "value_number",
		"value_boolean", "latitude", "longitude", "created_at", "updated_at").
		From("node_tags").Where(sq.Eq{"node_public_key": nodePublicKey, "key": key}).RunWith(x).QueryRow()

	if err := row.Scan(&t.ID, &t.NodePublicKey, &t.Key, &t.ValueType, &t.ValueString, &t.ValueNumber,
		&t.ValueBoolean, &t.Latitude, &t.Longitude, &t.CreatedAt, &t.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func listTags(x ex, nodePublicKey string) ([]*meshmodel.NodeTag, error) {
	rows, err := sq.Select("id", "node_public_key", "key", "value_type", "value_string", "value_number",
		"value_boolean", "latitude", "longitude", "created_at", "updated_at").
		From("node_tags").Where(sq.Eq{"node_public_key": nodePublicKey}).OrderBy("key ASC").
		RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.NodeTag
	for rows.Next() {
		var t meshmodel.NodeTag
		if err := rows.Scan(&t.ID, &t.NodePublicKey, &t.Key, &t.ValueType, &t.ValueString, &t.ValueNumber,
			&t.ValueBoolean, &t.Latitude, &t.Longitude, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func deleteTag(x ex, nodePublicKey, key string) error {
	res, err := sq.Delete("node_tags").Where(sq.Eq{"node_public_key": nodePublicKey, "key": key}).RunWith(x).Exec()
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
