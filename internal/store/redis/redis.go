// Package redis keeps partition payloads as plain Redis string values.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"cashbook/internal/store"
)

const DefaultKeyPrefix = "cashbook:"

type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type Store struct {
	rdb    *redis.Client
	prefix string
}

// Open connects and pings the server. It fails instead of degrading so a
// misconfigured backend is caught at startup.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, errors.New("redis address is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	slog.InfoContext(ctx, "Connected to Redis", "addr", opts.Addr, "db", opts.DB)
	return New(rdb, opts.KeyPrefix), nil
}

// New wraps an existing client.
func New(rdb *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(k store.PartitionKey) string {
	return s.prefix + k.String()
}

func (s *Store) Get(ctx context.Context, key store.PartitionKey) ([]byte, error) {
	b, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

func (s *Store) Put(ctx context.Context, key store.PartitionKey, payload []byte) error {
	if err := s.rdb.Set(ctx, s.key(key), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Partitions walks the key space under the prefix with SCAN.
func (s *Store) Partitions(ctx context.Context) ([]store.PartitionKey, error) {
	var out []store.PartitionKey
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		k, err := store.ParsePartitionKey(strings.TrimPrefix(iter.Val(), s.prefix))
		if err != nil {
			slog.WarnContext(ctx, "Skipping foreign redis key", "key", iter.Val())
			continue
		}
		out = append(out, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}
