// Package identity manages registered users, their PIN credentials and the
// sessions that bind a bearer token to an identity.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"cashbook/internal/core"
	"cashbook/internal/store"
)

const (
	minPINLength = 4
	maxPINLength = 12

	DemoEmail = "student@school.edu"
	DemoName  = "Demo Student"
	DemoPIN   = "1234"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrInvalidName        = errors.New("name is required")
	ErrInvalidPIN         = errors.New("PIN must be 4-12 digits")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or PIN")

	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	pinPattern   = regexp.MustCompile(`^[0-9]+$`)

	registryKey = store.PartitionKey{Namespace: store.NamespaceUsers, Identity: "registry"}
)

// User is a stored account. PINHash is a bcrypt hash, never the PIN.
type User struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	PINHash   string    `json:"pinHash"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u User) Identity() core.Identity {
	return core.Identity{Key: u.Email, DisplayName: u.Name}
}

// Registry persists users as one JSON document in the users namespace.
// Mutations are serialized by a mutex and rewrite the whole document.
type Registry struct {
	mu      sync.Mutex
	blobs   store.BlobStore
	records store.RecordStore
	cost    int
	now     func() time.Time
}

func NewRegistry(blobs store.BlobStore, records store.RecordStore) *Registry {
	return &Registry{blobs: blobs, records: records, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost changes the bcrypt cost. Tests use bcrypt.MinCost.
func (r *Registry) WithCost(cost int) *Registry {
	r.cost = cost
	return r
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidatePIN(pin string) error {
	if len(pin) < minPINLength || len(pin) > maxPINLength || !pinPattern.MatchString(pin) {
		return &core.ValidationError{Field: "pin", Err: ErrInvalidPIN}
	}
	return nil
}

// Register creates a user and initializes an empty transaction partition.
func (r *Registry) Register(ctx context.Context, email, name, pin string) (core.Identity, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if !emailPattern.MatchString(email) {
		return core.Identity{}, &core.ValidationError{Field: "email", Err: ErrInvalidEmail}
	}
	if name == "" {
		return core.Identity{}, &core.ValidationError{Field: "name", Err: ErrInvalidName}
	}
	if err := ValidatePIN(pin); err != nil {
		return core.Identity{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return core.Identity{}, err
	}
	if _, ok := find(users, email); ok {
		return core.Identity{}, &core.ValidationError{Field: "email", Err: ErrEmailTaken}
	}
	hash, err := r.hash(pin)
	if err != nil {
		return core.Identity{}, err
	}
	if err := r.initPartition(ctx, email); err != nil {
		return core.Identity{}, err
	}
	u := User{Email: email, Name: name, PINHash: hash, CreatedAt: r.now().UTC()}
	if err := r.save(ctx, append(users, u)); err != nil {
		return core.Identity{}, err
	}
	return u.Identity(), nil
}

// initPartition writes an empty transaction list unless the partition
// already holds one.
func (r *Registry) initPartition(ctx context.Context, email string) error {
	key := store.TransactionsOf(email)
	_, err := r.blobs.Get(ctx, key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return &core.PersistenceError{Op: "read partition", Err: err}
	}
	return r.records.WriteAll(ctx, key, nil)
}

// Authenticate checks the PIN and returns the user's identity.
func (r *Registry) Authenticate(ctx context.Context, email, pin string) (core.Identity, error) {
	email = NormalizeEmail(email)
	r.mu.Lock()
	users, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return core.Identity{}, err
	}
	i, ok := find(users, email)
	if !ok || bcrypt.CompareHashAndPassword([]byte(users[i].PINHash), []byte(pin)) != nil {
		return core.Identity{}, &core.PreconditionError{Err: ErrInvalidCredentials}
	}
	return users[i].Identity(), nil
}

// Lookup returns the identity registered under email.
func (r *Registry) Lookup(ctx context.Context, email string) (core.Identity, error) {
	email = NormalizeEmail(email)
	r.mu.Lock()
	users, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return core.Identity{}, err
	}
	i, ok := find(users, email)
	if !ok {
		return core.Identity{}, &core.NotFoundError{Kind: "user", ID: email}
	}
	return users[i].Identity(), nil
}

// ResetPIN replaces the PIN of a registered email.
func (r *Registry) ResetPIN(ctx context.Context, email, pin string) error {
	if err := ValidatePIN(pin); err != nil {
		return err
	}
	_, err := r.update(ctx, email, func(u *User) error {
		hash, err := r.hash(pin)
		if err != nil {
			return err
		}
		u.PINHash = hash
		return nil
	})
	return err
}

// UpdateProfile renames the user and, when pin is non-empty, replaces the PIN.
func (r *Registry) UpdateProfile(ctx context.Context, email, name, pin string) (core.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Identity{}, &core.ValidationError{Field: "name", Err: ErrInvalidName}
	}
	if pin != "" {
		if err := ValidatePIN(pin); err != nil {
			return core.Identity{}, err
		}
	}
	u, err := r.update(ctx, email, func(u *User) error {
		u.Name = name
		if pin == "" {
			return nil
		}
		hash, err := r.hash(pin)
		if err != nil {
			return err
		}
		u.PINHash = hash
		return nil
	})
	if err != nil {
		return core.Identity{}, err
	}
	return u.Identity(), nil
}

// EnsureDemoUser registers the demo account when no user exists yet. It
// reports whether the account was created.
func (r *Registry) EnsureDemoUser(ctx context.Context) (bool, error) {
	r.mu.Lock()
	users, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return false, err
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := r.Register(ctx, DemoEmail, DemoName, DemoPIN); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Registry) update(ctx context.Context, email string, fn func(*User) error) (User, error) {
	email = NormalizeEmail(email)
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load(ctx)
	if err != nil {
		return User{}, err
	}
	i, ok := find(users, email)
	if !ok {
		return User{}, &core.NotFoundError{Kind: "user", ID: email}
	}
	if err := fn(&users[i]); err != nil {
		return User{}, err
	}
	if err := r.save(ctx, users); err != nil {
		return User{}, err
	}
	return users[i], nil
}

func (r *Registry) hash(pin string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pin), r.cost)
	if err != nil {
		return "", &core.PersistenceError{Op: "hash pin", Err: err}
	}
	return string(h), nil
}

func (r *Registry) load(ctx context.Context) ([]User, error) {
	payload, err := r.blobs.Get(ctx, registryKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "read users", Err: err}
	}
	var users []User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, &core.PersistenceError{Op: "decode users", Err: err}
	}
	return users, nil
}

func (r *Registry) save(ctx context.Context, users []User) error {
	payload, err := json.Marshal(users)
	if err != nil {
		return &core.PersistenceError{Op: "encode users", Err: err}
	}
	if err := r.blobs.Put(ctx, registryKey, payload); err != nil {
		return &core.PersistenceError{Op: "write users", Err: err}
	}
	return nil
}

func find(users []User, email string) (int, bool) {
	for i, u := range users {
		if u.Email == email {
			return i, true
		}
	}
	return -1, false
}
