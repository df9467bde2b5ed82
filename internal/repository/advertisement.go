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

func insertAdvertisement(x ex, a *meshmodel.Advertisement) (int64, error) {
	res, err := sq.Insert("advertisements").
		Columns("public_key", "adv_type", "name", "flags", "received_at").
		Values(a.PublicKey, a.AdvType, a.Name, a.Flags, a.ReceivedAt).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: insert advertisement for %s: %v", a.PublicKey, err)
		return 0, err
	}
	return res.LastInsertId()
}

func listAdvertisements(x ex, publicKey string, limit int) ([]*meshmodel.Advertisement, error) {
	q := sq.Select("id", "public_key", "adv_type", "name", "flags", "received_at").
		From("advertisements").OrderBy("received_at DESC").Limit(uint64(limit))
	if publicKey != "" {
		q = q.Where(sq.Eq{"public_key": publicKey})
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.Advertisement
	for rows.Next() {
		var a meshmodel.Advertisement
		if err := rows.Scan(&a.ID, &a.PublicKey, &a.AdvType, &a.Name, &a.Flags, &a.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
