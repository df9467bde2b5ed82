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

func prefixes(pubkey string) (p2, p8 string) {
	p2 = pubkey[:2]
	if len(pubkey) >= 8 {
		p8 = pubkey[:8]
	} else {
		p8 = pubkey
	}
	return
}

// upsertNode ensures a Node row exists for pubkey and advances last_seen.
// node_type, when non-nil, overwrites the stored value. The Node's name is
// never touched here: the no-downgrade decision belongs to the normalizer,
// which calls SetNodeName explicitly once it has decided to update.
func upsertNode(x ex, pubkey string, nodeType *string, observedAt time.Time) (*meshmodel.Node, error) {
	p2, p8 := prefixes(pubkey)

	_, err := sq.Insert("nodes").
		Columns("public_key", "public_key_prefix_2", "public_key_prefix_8", "node_type", "first_seen", "last_seen").
		Values(pubkey, p2, p8, nodeType, observedAt, observedAt).
		Suffix(`ON CONFLICT(public_key) DO UPDATE SET
			last_seen = excluded.last_seen,
			node_type = COALESCE(excluded.node_type, nodes.node_type)`).
		RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: upsert node %s: %v", pubkey, err)
		return nil, err
	}

	return getNode(x, pubkey)
}

func setNodeName(x ex, pubkey, name string) error {
	_, err := sq.Update("nodes").Set("name", name).Where(sq.Eq{"public_key": pubkey}).RunWith(x).Exec()
	if err != nil {
		log.Errorf("repository: set node name %s: %v", pubkey, err)
	}
	return err
}

func getNode(x ex, pubkey string) (*meshmodel.Node, error) {
	var n meshmodel.Node
	row := sq.Select("public_key", "public_key_prefix_2", "public_key_prefix_8", "node_type", "name", "first_seen", "last_seen").
		From("nodes").Where(sq.Eq{"public_key": pubkey}).RunWith(x).QueryRow()

	if err := row.Scan(&n.PublicKey, &n.PrefixTwo, &n.PrefixEight, &n.NodeType, &n.Name, &n.FirstSeen, &n.LastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &n, nil
}

// findNodesByPrefix resolves a hex prefix against the indexed prefix
// columns for prefixes of length <= 8, falling back to a public_key range
// scan for longer prefixes.
func findNodesByPrefix(x ex, prefix string) ([]*meshmodel.Node, error) {
	q := sq.Select("public_key", "public_key_prefix_2", "public_key_prefix_8", "node_type", "name", "first_seen", "last_seen").
		From("nodes").OrderBy("public_key ASC")

	switch {
	case len(prefix) == 64:
		q = q.Where(sq.Eq{"public_key": prefix})
	case len(prefix) == 2:
		q = q.Where(sq.Eq{"public_key_prefix_2": prefix})
	case len(prefix) < 8:
		q = q.Where(sq.Eq{"public_key_prefix_2": prefix[:2]}).Where("public_key LIKE ?", prefix+"%")
	case len(prefix) == 8:
		q = q.Where(sq.Eq{"public_key_prefix_8": prefix})
	default:
		q = q.Where(sq.Eq{"public_key_prefix_8": prefix[:8]}).Where("public_key LIKE ?", prefix+"%")
	}

	rows, err := q.RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.Node
	for rows.Next() {
		var n meshmodel.Node
		if err := rows.Scan(&n.PublicKey, &n.PrefixTwo, &n.PrefixEight, &n.NodeType, &n.Name, &n.FirstSeen, &n.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}

func listNodes(x ex, limit, offset int) ([]*meshmodel.Node, error) {
	rows, err := sq.Select("public_key", "public_key_prefix_2", "public_key_prefix_8", "node_type", "name", "first_seen", "last_seen").
		From("nodes").OrderBy("last_seen DESC").Limit(uint64(limit)).Offset(uint64(offset)).
		RunWith(x).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*meshmodel.Node
	for rows.Next() {
		var n meshmodel.Node
		if err := rows.Scan(&n.PublicKey, &n.PrefixTwo, &n.PrefixEight, &n.NodeType, &n.Name, &n.FirstSeen, &n.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
