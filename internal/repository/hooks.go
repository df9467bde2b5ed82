// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package repository

import (
	"context"
	"time"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

type queryTimerKey struct{}

// Hooks satisfies sqlhooks.Hooks so every query is timed and logged at
// debug level.
type Hooks struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("sql query %s %q", query, args)
	return context.WithValue(ctx, queryTimerKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(queryTimerKey{}).(time.Time); ok {
		log.Debugf("sql query took %s", time.Since(begin))
	}
	return ctx, nil
}
