package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cashbook/internal/core"
)

const (
	NamespaceTransactions = "cms_tx"
	NamespaceUsers        = "cms_users"
)

// ErrNotFound is returned by BlobStore.Get for a key that was never written.
var ErrNotFound = errors.New("partition not found")

// Ports for persistence adapters.
type (
	// PartitionKey scopes a record collection to one identity. The string
	// form is "namespace:identity".
	PartitionKey struct {
		Namespace string
		Identity  string
	}

	// BlobStore keeps one opaque payload per partition.
	BlobStore interface {
		Get(ctx context.Context, key PartitionKey) ([]byte, error)
		Put(ctx context.Context, key PartitionKey, payload []byte) error
		Ping(ctx context.Context) error
		Close() error
	}

	// PartitionLister enumerates every stored partition.
	PartitionLister interface {
		Partitions(ctx context.Context) ([]PartitionKey, error)
	}

	// RecordStore reads and replaces the whole transaction list of a
	// partition. A failed WriteAll must leave the previous list in place.
	RecordStore interface {
		ReadAll(ctx context.Context, key PartitionKey) ([]core.Transaction, error)
		WriteAll(ctx context.Context, key PartitionKey, records []core.Transaction) error
	}
)

// TransactionsOf returns the transaction partition of an identity key.
func TransactionsOf(identity string) PartitionKey {
	return PartitionKey{Namespace: NamespaceTransactions, Identity: strings.ToLower(strings.TrimSpace(identity))}
}

func (k PartitionKey) String() string {
	return k.Namespace + ":" + k.Identity
}

// ParsePartitionKey is the inverse of String.
func ParsePartitionKey(s string) (PartitionKey, error) {
	ns, id, ok := strings.Cut(s, ":")
	if !ok || ns == "" || id == "" {
		return PartitionKey{}, fmt.Errorf("invalid partition key %q", s)
	}
	return PartitionKey{Namespace: ns, Identity: id}, nil
}

// Records serializes transaction lists as JSON arrays on top of a BlobStore.
type Records struct {
	blobs BlobStore
}

func NewRecords(blobs BlobStore) *Records {
	return &Records{blobs: blobs}
}

// ReadAll returns an empty slice for a partition that was never written.
func (r *Records) ReadAll(ctx context.Context, key PartitionKey) ([]core.Transaction, error) {
	payload, err := r.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []core.Transaction{}, nil
	}
	if err != nil {
		return nil, &core.PersistenceError{Op: "read " + key.String(), Err: err}
	}
	var records []core.Transaction
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, &core.PersistenceError{Op: "decode " + key.String(), Err: err}
	}
	if records == nil {
		records = []core.Transaction{}
	}
	return records, nil
}

func (r *Records) WriteAll(ctx context.Context, key PartitionKey, records []core.Transaction) error {
	if records == nil {
		records = []core.Transaction{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return &core.PersistenceError{Op: "encode " + key.String(), Err: err}
	}
	if err := r.blobs.Put(ctx, key, payload); err != nil {
		return &core.PersistenceError{Op: "write " + key.String(), Err: err}
	}
	return nil
}
