package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"cashbook/internal/amqp"
	"cashbook/internal/core"
	"cashbook/internal/export"
	"cashbook/internal/ledger"
	"cashbook/internal/store"
)

// ChangePublisher is notified after every committed mutation.
type ChangePublisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// LedgerService runs every transaction operation for an explicit identity:
// validate, read the partition, change a copy, write it back. Nothing is
// cached between calls; views are recomputed from the stored records.
type LedgerService struct {
	records store.RecordStore
	events  ChangePublisher
	now     func() time.Time
	loc     *time.Location

	mu sync.Mutex
}

type Option func(*LedgerService)

func WithPublisher(p ChangePublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithLocation sets the zone that decides calendar dates and day bounds.
func WithLocation(loc *time.Location) Option {
	return func(s *LedgerService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func NewLedgerService(records store.RecordStore, opts ...Option) *LedgerService {
	s := &LedgerService{records: records, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) Location() *time.Location { return s.loc }

// Add creates a transaction dated today and returns it.
func (s *LedgerService) Add(ctx context.Context, id core.Identity, d core.Draft) (core.Transaction, error) {
	if err := requireIdentity(id); err != nil {
		return core.Transaction{}, err
	}
	tx, err := core.NewTransaction(d, id, core.NewStamp(s.now(), s.loc))
	if err != nil {
		return core.Transaction{}, err
	}

	err = s.mutate(ctx, id, func(records []core.Transaction) ([]core.Transaction, error) {
		return append(records, tx), nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, id, amqp.OpAdd, tx.ID)
	return tx, nil
}

// Edit replaces category, amount and note of txID. The calendar date and
// creation stamp never change.
func (s *LedgerService) Edit(ctx context.Context, id core.Identity, txID string, d core.Draft) (core.Transaction, error) {
	if err := requireIdentity(id); err != nil {
		return core.Transaction{}, err
	}
	if err := d.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var edited core.Transaction
	err := s.mutate(ctx, id, func(records []core.Transaction) ([]core.Transaction, error) {
		i := indexOf(records, txID)
		if i < 0 {
			return nil, &core.NotFoundError{Kind: "transaction", ID: txID}
		}
		next, err := records[i].Apply(d, id, core.NewStamp(s.now(), s.loc))
		if err != nil {
			return nil, err
		}
		records[i] = next
		edited = next
		return records, nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.publish(ctx, id, amqp.OpEdit, txID)
	return edited, nil
}

// Delete removes txID. Without confirmed the call is refused and nothing
// is read or written.
func (s *LedgerService) Delete(ctx context.Context, id core.Identity, txID string, confirmed bool) error {
	if err := requireIdentity(id); err != nil {
		return err
	}
	if !confirmed {
		return &core.ValidationError{Field: "confirm", Err: core.ErrNotConfirmed}
	}

	err := s.mutate(ctx, id, func(records []core.Transaction) ([]core.Transaction, error) {
		i := indexOf(records, txID)
		if i < 0 {
			return nil, &core.NotFoundError{Kind: "transaction", ID: txID}
		}
		return append(records[:i], records[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, id, amqp.OpDelete, txID)
	return nil
}

func (s *LedgerService) Get(ctx context.Context, id core.Identity, txID string) (core.Transaction, error) {
	records, err := s.readAll(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if i := indexOf(records, txID); i >= 0 {
		return records[i], nil
	}
	return core.Transaction{}, &core.NotFoundError{Kind: "transaction", ID: txID}
}

// List returns the records matching c, newest first.
func (s *LedgerService) List(ctx context.Context, id core.Identity, c ledger.Criteria) ([]core.Transaction, error) {
	c = s.criteria(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	records, err := s.readAll(ctx, id)
	if err != nil {
		return nil, err
	}
	out := ledger.Filter(records, c)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Instant.After(out[j].CreatedAt.Instant)
	})
	return out, nil
}

// Views recomputes every derived view for c.
func (s *LedgerService) Views(ctx context.Context, id core.Identity, c ledger.Criteria) (ledger.Views, error) {
	c = s.criteria(c)
	if err := c.Validate(); err != nil {
		return ledger.Views{}, err
	}
	records, err := s.readAll(ctx, id)
	if err != nil {
		return ledger.Views{}, err
	}
	return ledger.Recompute(records, c), nil
}

// Report projects the records inside c's date range. Category and search
// in c are ignored.
func (s *LedgerService) Report(ctx context.Context, id core.Identity, kind ledger.ReportKind, c ledger.Criteria) (ledger.Report, error) {
	c = s.criteria(c)
	if err := c.Validate(); err != nil {
		return ledger.Report{}, err
	}
	records, err := s.readAll(ctx, id)
	if err != nil {
		return ledger.Report{}, err
	}
	return ledger.Project(kind, ledger.Filter(records, c.Period()), s.loc)
}

// Export snapshots the whole partition.
func (s *LedgerService) Export(ctx context.Context, id core.Identity) (export.Document, error) {
	records, err := s.readAll(ctx, id)
	if err != nil {
		return export.Document{}, err
	}
	return export.Snapshot(id, records, s.now()), nil
}

// Import replaces the partition with the document's transactions and
// returns how many were stored.
func (s *LedgerService) Import(ctx context.Context, id core.Identity, doc export.Document) (int, error) {
	if err := requireIdentity(id); err != nil {
		return 0, err
	}
	if err := doc.Validate(); err != nil {
		return 0, err
	}
	records := append([]core.Transaction{}, doc.Transactions...)

	s.mu.Lock()
	err := s.records.WriteAll(ctx, store.TransactionsOf(id.Key), records)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}
	s.publish(ctx, id, amqp.OpImport, "")
	return len(records), nil
}

// mutate serializes read-modify-write on a partition. fn receives a private
// copy; when fn or the write fails the stored records are untouched.
func (s *LedgerService) mutate(ctx context.Context, id core.Identity, fn func([]core.Transaction) ([]core.Transaction, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := store.TransactionsOf(id.Key)
	records, err := s.records.ReadAll(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(append([]core.Transaction{}, records...))
	if err != nil {
		return err
	}
	return s.records.WriteAll(ctx, key, next)
}

func (s *LedgerService) readAll(ctx context.Context, id core.Identity) ([]core.Transaction, error) {
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	return s.records.ReadAll(ctx, store.TransactionsOf(id.Key))
}

func (s *LedgerService) criteria(c ledger.Criteria) ledger.Criteria {
	if c.Location == nil {
		c.Location = s.loc
	}
	if c.Year == 0 {
		c.Year = s.now().In(s.loc).Year()
	}
	return c
}

func (s *LedgerService) publish(ctx context.Context, id core.Identity, op amqp.Operation, txID string) {
	if s.events == nil {
		return
	}
	key := store.TransactionsOf(id.Key)
	msg := amqp.NewLedgerChangedMessage(key.String(), id.Key, op, txID)
	if err := s.events.PublishLedgerChanged(ctx, msg); err != nil {
		// the mutation is already committed
		slog.ErrorContext(ctx, "Failed to publish ledger change",
			"partition", key.String(),
			"operation", op,
			"error", err)
	}
}

func requireIdentity(id core.Identity) error {
	if id.IsZero() {
		return &core.PreconditionError{Err: core.ErrNoIdentity}
	}
	return nil
}

func indexOf(records []core.Transaction, txID string) int {
	for i, tx := range records {
		if tx.ID == txID {
			return i
		}
	}
	return -1
}
