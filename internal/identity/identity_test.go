package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cashbook/internal/core"
	"cashbook/internal/store"
	"cashbook/internal/store/memory"
)

func newRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()
	blobs := memory.New()
	return NewRegistry(blobs, store.NewRecords(blobs)).WithCost(bcrypt.MinCost), blobs
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	r, blobs := newRegistry(t)

	id, err := r.Register(ctx, "  Ann@Example.COM ", " Ann ", "0042")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if id.Key != "ann@example.com" || id.DisplayName != "Ann" {
		t.Fatalf("identity = %+v", id)
	}
	if _, err := blobs.Get(ctx, store.TransactionsOf("ann@example.com")); err != nil {
		t.Fatalf("transaction partition not initialized: %v", err)
	}

	got, err := r.Authenticate(ctx, "ANN@example.com", "0042")
	if err != nil || got != id {
		t.Fatalf("Authenticate = %+v, %v", got, err)
	}
	if _, err := r.Authenticate(ctx, "ann@example.com", "9999"); !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, core.ErrPrecondition) {
		t.Fatalf("wrong pin: %v", err)
	}
	if _, err := r.Authenticate(ctx, "nobody@example.com", "0042"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	if _, err := r.Register(ctx, "ann@example.com", "Ann", "1234"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name             string
		email, user, pin string
		want             error
	}{
		{"bad email", "ann.example.com", "Ann", "1234", ErrInvalidEmail},
		{"blank name", "bob@example.com", "  ", "1234", ErrInvalidName},
		{"short pin", "bob@example.com", "Bob", "123", ErrInvalidPIN},
		{"long pin", "bob@example.com", "Bob", "1234567890123", ErrInvalidPIN},
		{"letters in pin", "bob@example.com", "Bob", "12ab", ErrInvalidPIN},
		{"duplicate", "ANN@example.com", "Ann", "1234", ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(ctx, tt.email, tt.user, tt.pin)
			if !errors.Is(err, tt.want) || !errors.Is(err, core.ErrValidation) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestResetPINAndUpdateProfile(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	if _, err := r.Register(ctx, "ann@example.com", "Ann", "1234"); err != nil {
		t.Fatal(err)
	}

	if err := r.ResetPIN(ctx, "missing@example.com", "5678"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("reset unknown: %v", err)
	}
	if err := r.ResetPIN(ctx, "ann@example.com", "5678"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Authenticate(ctx, "ann@example.com", "1234"); err == nil {
		t.Fatal("old PIN still valid")
	}

	id, err := r.UpdateProfile(ctx, "ann@example.com", "Annie", "")
	if err != nil || id.DisplayName != "Annie" {
		t.Fatalf("UpdateProfile = %+v, %v", id, err)
	}
	if _, err := r.Authenticate(ctx, "ann@example.com", "5678"); err != nil {
		t.Fatalf("empty pin should keep the old one: %v", err)
	}
	if _, err := r.UpdateProfile(ctx, "ann@example.com", "Annie", "12"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("bad pin accepted: %v", err)
	}
	if got, _ := r.Lookup(ctx, "ann@example.com"); got.DisplayName != "Annie" {
		t.Fatalf("Lookup = %+v", got)
	}
}

func TestEnsureDemoUser(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistry(t)
	created, err := r.EnsureDemoUser(ctx)
	if err != nil || !created {
		t.Fatalf("first seed = %v, %v", created, err)
	}
	created, err = r.EnsureDemoUser(ctx)
	if err != nil || created {
		t.Fatalf("second seed = %v, %v", created, err)
	}
	if _, err := r.Authenticate(ctx, DemoEmail, DemoPIN); err != nil {
		t.Fatalf("demo login: %v", err)
	}
}

func TestRegistryWriteFailure(t *testing.T) {
	ctx := context.Background()
	r, blobs := newRegistry(t)
	blobs.FailWrites(errors.New("read-only"))
	if _, err := r.Register(ctx, "ann@example.com", "Ann", "1234"); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	blobs.FailWrites(nil)
	if _, err := r.Lookup(ctx, "ann@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("failed register left a user behind: %v", err)
	}
}

// partitionFailStore rejects writes to transaction partitions only.
type partitionFailStore struct {
	*memory.Store
}

func (s partitionFailStore) Put(ctx context.Context, key store.PartitionKey, payload []byte) error {
	if key.Namespace == store.NamespaceTransactions {
		return errors.New("partition unavailable")
	}
	return s.Store.Put(ctx, key, payload)
}

func TestRegisterPartitionFailureLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	blobs := partitionFailStore{memory.New()}
	r := NewRegistry(blobs, store.NewRecords(blobs)).WithCost(bcrypt.MinCost)

	if _, err := r.Register(ctx, "ann@example.com", "Ann", "1234"); !errors.Is(err, core.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if _, err := r.Lookup(ctx, "ann@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("user registered despite partition failure: %v", err)
	}
}

func TestRegisterKeepsExistingPartition(t *testing.T) {
	ctx := context.Background()
	r, blobs := newRegistry(t)
	records := store.NewRecords(blobs)

	tx, err := core.NewTransaction(core.Draft{Category: core.Inflow, Amount: core.MustMoney("10"), Note: "Carried over"},
		core.Identity{Key: "ann@example.com", DisplayName: "Ann"}, core.NewStamp(time.Now(), time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	key := store.TransactionsOf("ann@example.com")
	if err := records.WriteAll(ctx, key, []core.Transaction{tx}); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Register(ctx, "ann@example.com", "Ann", "1234"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := records.ReadAll(ctx, key)
	if err != nil || len(got) != 1 || got[0].ID != tx.ID {
		t.Fatalf("existing partition overwritten: %v (err=%v)", got, err)
	}
}

func TestSessions(t *testing.T) {
	s := NewSessions(10, time.Hour)
	ann := core.Identity{Key: "ann@example.com", DisplayName: "Ann"}

	token := s.Login(ann)
	got, err := s.Lookup(token)
	if err != nil || got != ann {
		t.Fatalf("Lookup = %+v, %v", got, err)
	}

	s.Refresh(core.Identity{Key: ann.Key, DisplayName: "Annie"})
	if got, _ := s.Lookup(token); got.DisplayName != "Annie" {
		t.Fatalf("refresh not applied: %+v", got)
	}

	other := s.Login(ann)
	if n := s.Revoke(ann.Key); n != 2 {
		t.Fatalf("revoked %d sessions", n)
	}
	for _, tok := range []string{token, other, ""} {
		if _, err := s.Lookup(tok); !errors.Is(err, core.ErrNoIdentity) || !errors.Is(err, core.ErrPrecondition) {
			t.Fatalf("token %q still valid: %v", tok, err)
		}
	}
}

func TestContextIdentity(t *testing.T) {
	if _, err := Current(context.Background()); !errors.Is(err, core.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	ann := core.Identity{Key: "ann@example.com", DisplayName: "Ann"}
	got, err := Current(WithIdentity(context.Background(), ann))
	if err != nil || got != ann {
		t.Fatalf("Current = %+v, %v", got, err)
	}
	if _, ok := FromContext(WithIdentity(context.Background(), core.Identity{})); ok {
		t.Fatal("zero identity should not count")
	}
}
