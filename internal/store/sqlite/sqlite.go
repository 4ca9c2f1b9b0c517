// Package sqlite stores partition payloads in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"cashbook/internal/store"
)

const (
	selectBlob = `SELECT payload FROM blobs WHERE partition = ?`
	upsertBlob = `INSERT INTO blobs (partition, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT(partition) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`
	listPartitions = `SELECT partition FROM blobs ORDER BY partition`
)

type Store struct {
	db *sql.DB
}

// Open creates the database file if needed, migrates it and returns a ready
// store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// a single writer keeps read-modify-write of one partition serialized
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, key store.PartitionKey) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, selectBlob, key.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", key, err)
	}
	return payload, nil
}

func (s *Store) Put(ctx context.Context, key store.PartitionKey, payload []byte) error {
	if _, err := s.db.ExecContext(ctx, upsertBlob, key.String(), payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	slog.DebugContext(ctx, "Partition saved to SQLite", "partition", key.String(), "bytes", len(payload))
	return nil
}

// Partitions lists every stored partition key.
func (s *Store) Partitions(ctx context.Context) ([]store.PartitionKey, error) {
	rows, err := s.db.QueryContext(ctx, listPartitions)
	if err != nil {
		return nil, fmt.Errorf("list partitions: %w", err)
	}
	defer rows.Close()

	var keys []store.PartitionKey
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		k, err := store.ParsePartitionKey(raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
