// Copyright (C) 2024 ipnet-mesh contributors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package repository is the embedded transactional store: table creation,
// scoped sessions, and one query surface per entity family.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	driver "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/ipnet-mesh/meshbridge/pkg/log"
)

// ErrNotFound is returned whenever a lookup by key/prefix matches nothing.
var ErrNotFound = errors.New("repository: not found")

// Store is the single embedded sqlite file backing the whole system. Not a
// global singleton, so tests can open one throwaway store per test case.
type Store struct {
	DB *sqlx.DB
}

var sqliteDriverRegistered bool

// Open connects to the sqlite file at path, running it through sqlhooks for
// query timing, enables WAL journal mode, and migrates the schema to the
// latest version. The pool holds a single connection, so all reads and
// writes through the Store are serialized.
func Open(path string) (*Store, error) {
	if !sqliteDriverRegistered {
		sql.Register("sqlite3_meshbridge", sqlhooks.Wrap(&driver.SQLiteDriver{}, &Hooks{}))
		sqliteDriverRegistered = true
	}

	db, err := sqlx.Open("sqlite3_meshbridge", fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", path, err)
	}

	// sqlite serializes writers regardless; one connection avoids busy waits.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: migrate %s: %w", path, err)
	}

	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	return s.DB.Close()
}

func migrateUp(db *sql.DB) error {
	driverInstance, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}

	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driverInstance)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	log.Debug("repository: schema is up to date")
	return nil
}

// WithSession runs fn inside a scoped transaction: commits on a nil return,
// rolls back on any error or panic, re-panicking after rollback so callers
// never see a half-committed store.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin transaction: %w", err)
	}

	sess := &Session{tx: tx}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Errorf("repository: rollback failed: %v", rbErr)
			}
			return
		}
		err = tx.Commit()
	}()

	err = fn(sess)
	return err
}
