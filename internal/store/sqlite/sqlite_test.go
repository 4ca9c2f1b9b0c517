package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cashbook/internal/store"
)

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "cashbook.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	key := store.TransactionsOf("ann@example.com")
	if _, err := s.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, payload := range []string{`[{"id":"tx_1"}]`, `[]`} {
		if err := s.Put(ctx, key, []byte(payload)); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := s.Get(ctx, key)
		if err != nil || string(got) != payload {
			t.Fatalf("Get = %q, %v; want %q", got, err, payload)
		}
	}

	keys, err := s.Partitions(ctx)
	if err != nil || len(keys) != 1 || keys[0] != key {
		t.Fatalf("Partitions = %v, %v", keys, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cashbook.db")
	key := store.PartitionKey{Namespace: store.NamespaceUsers, Identity: "registry"}

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, key, []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if got, err := s.Get(ctx, key); err != nil || string(got) != "[]" {
		t.Fatalf("after reopen: %q %v", got, err)
	}
}
