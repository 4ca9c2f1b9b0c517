// Package export turns a partition snapshot into downloadable documents.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"cashbook/internal/core"
)

const filePrefix = "cash_management_"

var ErrDuplicateID = errors.New("duplicate transaction id")

type UserSummary struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Document is the JSON export format. It is also accepted back by Decode.
type Document struct {
	ExportedAt   time.Time          `json:"exportedAt"`
	User         *UserSummary       `json:"user"`
	Transactions []core.Transaction `json:"transactions"`
}

// Snapshot copies records into a new document. A zero identity leaves User
// nil.
func Snapshot(id core.Identity, records []core.Transaction, at time.Time) Document {
	doc := Document{
		ExportedAt:   at.UTC(),
		Transactions: append([]core.Transaction{}, records...),
	}
	if !id.IsZero() {
		doc.User = &UserSummary{Email: id.Key, Name: id.DisplayName}
	}
	return doc
}

// Encode writes doc as two-space indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Decode reads a document and validates it.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, &core.ValidationError{Field: "document", Err: err}
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	return doc, nil
}

// Validate checks every transaction and rejects repeated ids.
func (d Document) Validate() error {
	seen := make(map[string]bool, len(d.Transactions))
	for i, tx := range d.Transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if seen[tx.ID] {
			return &core.ValidationError{Field: "transactions", Err: fmt.Errorf("%w: %s", ErrDuplicateID, tx.ID)}
		}
		seen[tx.ID] = true
	}
	return nil
}

// Filename is cash_management_MM-DD-YY.json for the local date of at.
func Filename(at time.Time, loc *time.Location) string {
	return filePrefix + datePart(at, loc) + ".json"
}

// WorkbookFilename is Filename with an .xlsx extension.
func WorkbookFilename(at time.Time, loc *time.Location) string {
	return filePrefix + datePart(at, loc) + ".xlsx"
}

func datePart(at time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return at.In(loc).Format("01-02-06")
}
