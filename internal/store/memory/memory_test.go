package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/store"
)

func TestGetMissingPartition(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), store.TransactionsOf("a@b.c"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutCopiesPayload(t *testing.T) {
	s := New()
	key := store.TransactionsOf("a@b.c")
	payload := []byte(`[]`)
	if err := s.Put(context.Background(), key, payload); err != nil {
		t.Fatal(err)
	}
	payload[0] = 'x'

	got, err := s.Get(context.Background(), key)
	if err != nil || string(got) != "[]" {
		t.Fatalf("unexpected get: %q %v", got, err)
	}
	got[0] = 'y'
	again, _ := s.Get(context.Background(), key)
	if string(again) != "[]" {
		t.Fatalf("store shares memory with caller: %q", again)
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "cms_tx:a@b.c" {
		t.Fatalf("keys = %v", keys)
	}
}

func TestRecordsRoundTripAndWriteFailure(t *testing.T) {
	ctx := context.Background()
	s := New()
	records := store.NewRecords(s)
	key := store.TransactionsOf("Ann@Example.com")

	empty, err := records.ReadAll(ctx, key)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("missing partition should read as empty: %v %v", empty, err)
	}

	tx, err := core.NewTransaction(
		core.Draft{Category: core.Inflow, Amount: core.MustMoney("12.50"), Note: "Allowance"},
		core.Identity{Key: "ann@example.com", DisplayName: "Ann"},
		core.NewStamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), time.UTC),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := records.WriteAll(ctx, key, []core.Transaction{tx}); err != nil {
		t.Fatal(err)
	}

	s.FailWrites(errors.New("disk full"))
	err = records.WriteAll(ctx, key, nil)
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	got, err := records.ReadAll(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != tx.ID || !got[0].Amount.Equal(tx.Amount.Decimal) || got[0].Date != tx.Date {
		t.Fatalf("failed write changed state: %+v", got)
	}
}

func TestPartitionsListsStoredKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, id := range []string{"b@x.y", "a@x.y"} {
		if err := s.Put(ctx, store.TransactionsOf(id), []byte(`[]`)); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := s.Partitions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0].Identity != "a@x.y" || keys[1].Namespace != store.NamespaceTransactions {
		t.Fatalf("Partitions = %v", keys)
	}
}
