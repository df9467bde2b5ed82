// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package device

import (
	"context"
	"time"

	"github.com/ipnet-mesh/meshbridge/pkg/lrucache"
	"github.com/ipnet-mesh/meshbridge/pkg/meshmodel"
)

// contactCacheTTL bounds how stale the cached contact list may be before
// the next GetContacts call triggers a fresh fetch.
const contactCacheTTL = 30 * time.Second

const contactsCacheKey = "contacts"

// contactCache wraps pkg/lrucache to guarantee at most one contact fetch
// is in flight, with concurrent callers sharing the result: lrucache.Get
// already single-flights concurrent computations of the same key.
type contactCache struct {
	cache *lrucache.Cache
	fetch func(ctx context.Context) ([]meshmodel.Contact, error)
}

func newContactCache(fetch func(ctx context.Context) ([]meshmodel.Contact, error)) *contactCache {
	return &contactCache{
		cache: lrucache.New(1 << 20),
		fetch: fetch,
	}
}

func (c *contactCache) get(ctx context.Context) ([]meshmodel.Contact, error) {
	var fetchErr error

	v := c.cache.Get(contactsCacheKey, func() (interface{}, time.Duration, int) {
		contacts, err := c.fetch(ctx)
		if err != nil {
			fetchErr = err
			return []meshmodel.Contact(nil), 0, 0
		}
		return contacts, contactCacheTTL, len(contacts) + 1
	})

	if fetchErr != nil {
		return nil, fetchErr
	}
	if v == nil {
		return nil, nil
	}
	return v.([]meshmodel.Contact), nil
}

// invalidate forces the next get to re-fetch, used after a contact-sync
// event so enrichment sees fresh names without waiting out the TTL.
func (c *contactCache) invalidate() {
	c.cache.Del(contactsCacheKey)
}
