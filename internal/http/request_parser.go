// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating HTTP request data.
// It reduces code duplication by providing reusable functions for body
// parsing, filter extraction, and input sanitization.

package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
)

// maxBodyBytes bounds every request body, including imports.
const maxBodyBytes = 5 << 20

// ParseCriteria builds ledger filter criteria from query parameters:
// start, end (YYYY-MM-DD or MM/DD/YY), category, q and year.
func ParseCriteria(query url.Values) (ledger.Criteria, error) {
	var c ledger.Criteria

	for _, p := range []struct {
		name string
		dst  **core.CalendarDate
	}{{"start", &c.Start}, {"end", &c.End}} {
		v := strings.TrimSpace(query.Get(p.name))
		if v == "" {
			continue
		}
		d, err := parseDateParam(v)
		if err != nil {
			return ledger.Criteria{}, &core.ValidationError{Field: p.name, Err: core.ErrInvalidDate}
		}
		*p.dst = &d
	}

	cat, err := core.ParseCategory(query.Get("category"))
	if err != nil {
		return ledger.Criteria{}, &core.ValidationError{Field: "category", Err: err}
	}
	c.Category = cat
	c.Search = sanitizeInput(query.Get("q"))

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return ledger.Criteria{}, &core.ValidationError{Field: "year", Err: fmt.Errorf("invalid year %q", v)}
		}
		c.Year = y
	}

	return c, nil
}

// parseDateParam accepts the HTML date input form and the display form.
func parseDateParam(s string) (core.CalendarDate, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return core.NewCalendarDate(t.Year(), t.Month(), t.Day()), nil
	}
	return core.ParseCalendarDate(s)
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}

	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// GetRaw returns the raw body bytes.
func (p *RequestBodyParser) GetRaw() []byte {
	return p.body
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Draft reads type, amount and note. Amount errors are reported as
// validation errors; the remaining checks are left to Draft.Validate.
func (p *RequestBodyParser) Draft() (core.Draft, error) {
	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		return core.Draft{}, &core.ValidationError{Field: "amount", Err: err}
	}
	return core.Draft{
		Category: core.Category(strings.ToLower(p.Get("type"))),
		Amount:   amount,
		Note:     p.Get("note"),
	}, nil
}

// stringValue converts an interface{} to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// bearerToken extracts the session token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

const headerRequestID = "X-Request-ID"

// requestID keeps a well-formed incoming X-Request-ID and otherwise assigns
// a new one. The chosen id is written back to the request header.
func requestID(r *http.Request) string {
	id := r.Header.Get(headerRequestID)
	if !validRequestID(id) {
		id = generateRequestID()
		r.Header.Set(headerRequestID, id)
	}
	return id
}

func validRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
