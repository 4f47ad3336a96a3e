// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package postgres is the relational storage.Store backend (spec §4.3),
// grounded on the teacher's pkg/storage/postgres pattern: a pgxpool
// connection pool plus one sub-store struct per table family.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spacepanda-project/spacepanda/storage"
)

// Store implements storage.Store for PostgreSQL.
type Store struct {
	pool *pgxpool.Pool

	groups      *groupStore
	channels    *channelStore
	messages    *messageStore
	keyPackages *keyPackageStore
	opLog       *opLogStore
}

// Config holds the PostgreSQL connection parameters.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewStore connects to PostgreSQL and applies any pending schema migrations.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	s := &Store{pool: pool}
	s.groups = &groupStore{db: pool}
	s.channels = &channelStore{db: pool}
	s.messages = &messageStore{db: pool}
	s.keyPackages = &keyPackageStore{db: pool}
	s.opLog = &opLogStore{db: pool}
	return s, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaMigrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) Groups() storage.GroupStore             { return s.groups }
func (s *Store) Channels() storage.ChannelStore          { return s.channels }
func (s *Store) Messages() storage.MessageStore          { return s.messages }
func (s *Store) KeyPackages() storage.KeyPackageStore    { return s.keyPackages }
func (s *Store) OperationLog() storage.OperationLogStore { return s.opLog }

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
