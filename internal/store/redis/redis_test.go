package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"cashbook/internal/store"
)

func TestKeyUsesPrefix(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "")
	defer s.Close()
	if got := s.key(store.TransactionsOf("ann@example.com")); got != "cashbook:cms_tx:ann@example.com" {
		t.Fatalf("key = %q", got)
	}
}

func TestOpenRequiresAddress(t *testing.T) {
	if _, err := Open(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty address")
	}
}
