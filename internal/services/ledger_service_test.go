package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/core"
	"cashbook/internal/export"
	"cashbook/internal/ledger"
	"cashbook/internal/store"
	"cashbook/internal/store/memory"
)

var ann = core.Identity{Key: "ann@example.com", DisplayName: "Ann"}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (r *recordingPublisher) PublishLedgerChanged(_ context.Context, msg *amqp.LedgerChangedMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingPublisher) ops() []amqp.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []amqp.Operation
	for _, m := range r.msgs {
		out = append(out, m.Operation)
	}
	return out
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type fixture struct {
	svc   *LedgerService
	blobs *memory.Store
	pub   *recordingPublisher
	clock *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobs := memory.New()
	pub := &recordingPublisher{}
	c := &clock{t: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)}
	svc := NewLedgerService(store.NewRecords(blobs),
		WithPublisher(pub),
		WithClock(c.now),
		WithLocation(time.UTC),
	)
	return &fixture{svc: svc, blobs: blobs, pub: pub, clock: c}
}

func (f *fixture) add(t *testing.T, cat core.Category, amount, note string, at time.Time) core.Transaction {
	t.Helper()
	f.clock.t = at
	tx, err := f.svc.Add(context.Background(), ann, core.Draft{Category: cat, Amount: core.MustMoney(amount), Note: note})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return tx
}

func TestLedgerServiceScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, core.Inflow, "500", "Allowance", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	f.add(t, core.Outflow, "200", "Books", time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	f.add(t, core.Inflow, "100", "Tutoring", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	coffee := f.add(t, core.Outflow, "50", "Coffee", time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC))

	v, err := f.svc.Views(ctx, ann, ledger.Criteria{})
	if err != nil {
		t.Fatal(err)
	}
	if v.Statistics.Count != 4 || v.Statistics.Net.Display != "₱350.00" {
		t.Fatalf("stats = %+v", v.Statistics)
	}
	if v.Summary[0].Balance.Display != "₱350.00" || v.Summary[1].Balance.Display != "₱400.00" {
		t.Fatalf("summary = %+v", v.Summary)
	}

	f.clock.t = time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	edited, err := f.svc.Edit(ctx, ann, coffee.ID, core.Draft{Category: core.Outflow, Amount: core.MustMoney("80"), Note: "Coffee x2"})
	if err != nil {
		t.Fatal(err)
	}
	if edited.Date != coffee.Date || edited.EditorLabel() != "Ann (01/05/24 12:00:00)" {
		t.Fatalf("edited = %+v", edited)
	}

	r, err := f.svc.Report(ctx, ann, ledger.KindSavings, ledger.Criteria{Category: core.Inflow, Search: "nothing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Rows) != 2 || r.Rows[0].Amount.Display != "-₱80.00" || r.Rows[0].EditedBy != "Ann (01/05/24 12:00:00)" {
		t.Fatalf("report = %+v", r.Rows)
	}

	if err := f.svc.Delete(ctx, ann, coffee.ID, true); err != nil {
		t.Fatal(err)
	}
	v, _ = f.svc.Views(ctx, ann, ledger.Criteria{})
	if len(v.Summary) != 1 || v.Statistics.Count != 3 {
		t.Fatalf("after delete: %+v", v.Summary)
	}

	want := []amqp.Operation{amqp.OpAdd, amqp.OpAdd, amqp.OpAdd, amqp.OpAdd, amqp.OpEdit, amqp.OpDelete}
	got := f.pub.ops()
	if len(got) != len(want) {
		t.Fatalf("published %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("published %v, want %v", got, want)
		}
	}
	if f.pub.msgs[0].Partition != "cms_tx:ann@example.com" {
		t.Fatalf("partition = %q", f.pub.msgs[0].Partition)
	}
}

func TestLedgerServiceErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := f.add(t, core.Inflow, "10", "Seed", f.clock.t)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"no identity", func() error {
			_, err := f.svc.Add(ctx, core.Identity{}, core.Draft{Category: core.Inflow, Amount: core.MustMoney("1"), Note: "x"})
			return err
		}, core.ErrNoIdentity},
		{"invalid draft", func() error {
			_, err := f.svc.Add(ctx, ann, core.Draft{Category: core.Inflow, Note: "x"})
			return err
		}, core.ErrValidation},
		{"edit unknown id", func() error {
			_, err := f.svc.Edit(ctx, ann, "tx_missing", core.Draft{Category: core.Inflow, Amount: core.MustMoney("1"), Note: "x"})
			return err
		}, core.ErrNotFound},
		{"delete unknown id", func() error { return f.svc.Delete(ctx, ann, "tx_missing", true) }, core.ErrNotFound},
		{"delete unconfirmed", func() error { return f.svc.Delete(ctx, ann, tx.ID, false) }, core.ErrNotConfirmed},
		{"get unknown id", func() error {
			_, err := f.svc.Get(ctx, ann, "tx_missing")
			return err
		}, core.ErrNotFound},
		{"bad range", func() error {
			start, end := core.NewCalendarDate(2024, 1, 2), core.NewCalendarDate(2024, 1, 1)
			_, err := f.svc.Views(ctx, ann, ledger.Criteria{Start: &start, End: &end})
			return err
		}, core.ErrInvalidDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	err := f.svc.Delete(ctx, ann, tx.ID, false)
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != "confirm" {
		t.Errorf("unconfirmed delete = %v, want confirm ValidationError", err)
	}
	if errors.Is(err, core.ErrPrecondition) {
		t.Errorf("unconfirmed delete should not be a precondition failure")
	}

	if _, err := f.svc.Get(ctx, ann, tx.ID); err != nil {
		t.Fatalf("unconfirmed delete removed the record: %v", err)
	}
}

func TestLedgerServiceFailedWriteCommitsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tx := f.add(t, core.Inflow, "10", "Seed", f.clock.t)
	published := len(f.pub.ops())

	f.blobs.FailWrites(errors.New("quota exceeded"))
	_, err := f.svc.Add(ctx, ann, core.Draft{Category: core.Outflow, Amount: core.MustMoney("5"), Note: "Lost"})
	if !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("Add: %v", err)
	}
	if err := f.svc.Delete(ctx, ann, tx.ID, true); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("Delete: %v", err)
	}
	f.blobs.FailWrites(nil)

	list, err := f.svc.List(ctx, ann, ledger.Criteria{})
	if err != nil || len(list) != 1 || list[0].ID != tx.ID {
		t.Fatalf("state changed after failed writes: %v %v", list, err)
	}
	if len(f.pub.ops()) != published {
		t.Fatal("failed mutation was published")
	}
}

func TestLedgerServicePublishFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	tx := f.add(t, core.Inflow, "10", "Seed", f.clock.t)
	if _, err := f.svc.Get(context.Background(), ann, tx.ID); err != nil {
		t.Fatalf("record not stored: %v", err)
	}
}

func TestLedgerServiceListNewestFirst(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, core.Inflow, "10", "First", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	b := f.add(t, core.Outflow, "3", "Second", time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC))

	list, err := f.svc.List(context.Background(), ann, ledger.Criteria{})
	if err != nil || len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("list = %v, %v", list, err)
	}
	out, _ := f.svc.List(context.Background(), ann, ledger.Criteria{Category: core.Outflow})
	if len(out) != 1 || out[0].ID != b.ID {
		t.Fatalf("outflows = %v", out)
	}
}

func TestLedgerServiceExportImport(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, core.Inflow, "10", "First", f.clock.t)
	f.add(t, core.Outflow, "4", "Second", f.clock.t.Add(time.Hour))

	doc, err := f.svc.Export(ctx, ann)
	if err != nil || len(doc.Transactions) != 2 || doc.User.Email != ann.Key {
		t.Fatalf("export = %+v, %v", doc, err)
	}

	bob := core.Identity{Key: "bob@example.com", DisplayName: "Bob"}
	n, err := f.svc.Import(ctx, bob, doc)
	if err != nil || n != 2 {
		t.Fatalf("import = %d, %v", n, err)
	}
	v, _ := f.svc.Views(ctx, bob, ledger.Criteria{})
	if v.Statistics.Net.Display != "₱6.00" {
		t.Fatalf("imported net = %s", v.Statistics.Net.Display)
	}

	bad := export.Document{Transactions: []core.Transaction{doc.Transactions[0], doc.Transactions[0]}}
	if _, err := f.svc.Import(ctx, bob, bad); !errors.Is(err, export.ErrDuplicateID) {
		t.Fatalf("duplicate import: %v", err)
	}
}

func TestPartitionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.add(t, core.Inflow, "10", "Ann's", f.clock.t)

	bob := core.Identity{Key: "bob@example.com", DisplayName: "Bob"}
	list, err := f.svc.List(ctx, bob, ledger.Criteria{})
	if err != nil || len(list) != 0 {
		t.Fatalf("bob sees %v, %v", list, err)
	}
}
