package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashbook/internal/core"
	"cashbook/internal/identity"
	"cashbook/internal/ledger"
)

func TestResponseBuilder_Defaults(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Write(w)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("HX-Trigger"); got != "" {
		t.Errorf("HX-Trigger = %q, want empty", got)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestResponseBuilder_TriggerLedgerChanged(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusCreated).TriggerLedgerChanged("create", "tx-1").Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}

	var triggers map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	data, ok := triggers[EventLedgerChanged]
	if !ok {
		t.Fatalf("missing %s trigger in %v", EventLedgerChanged, triggers)
	}
	if data["operation"] != "create" || data["id"] != "tx-1" {
		t.Errorf("trigger data = %v", data)
	}
}

func TestResponseBuilder_TriggerWithoutID(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().TriggerLedgerChanged("import", "").Write(w)

	var triggers map[string]map[string]string
	if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
		t.Fatalf("HX-Trigger is not JSON: %v", err)
	}
	if _, ok := triggers[EventLedgerChanged]["id"]; ok {
		t.Errorf("id should be omitted, got %v", triggers[EventLedgerChanged])
	}
}

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Header("X-Custom", "yes").JSON(map[string]int{"count": 3}).Write(w)

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := w.Header().Get("X-Custom"); got != "yes" {
		t.Errorf("X-Custom = %q", got)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"count":3}` {
		t.Errorf("body = %s", got)
	}
}

func TestResponseBuilder_JSONEncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(func() {}).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name    string
		builder *ResponseBuilder
		status  int
		allow   string
	}{
		{"bad request", BadRequestError("nope"), http.StatusBadRequest, ""},
		{"not found", NotFoundError("missing"), http.StatusNotFound, ""},
		{"method not allowed", MethodNotAllowedError("GET, POST"), http.StatusMethodNotAllowed, "GET, POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.builder.Write(w)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if got := w.Header().Get("Allow"); got != tt.allow {
				t.Errorf("Allow = %q, want %q", got, tt.allow)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusUnprocessableEntity},
		{"email taken", &core.ValidationError{Field: "email", Err: identity.ErrEmailTaken}, http.StatusConflict},
		{"not confirmed", &core.ValidationError{Field: "confirm", Err: core.ErrNotConfirmed}, http.StatusConflict},
		{"no identity", &core.PreconditionError{Err: core.ErrNoIdentity}, http.StatusUnauthorized},
		{"not found", &core.NotFoundError{Kind: "transaction", ID: "x"}, http.StatusNotFound},
		{"unknown report", &core.ValidationError{Field: "kind", Err: ledger.ErrUnknownReport}, http.StatusNotFound},
		{"persistence", &core.PersistenceError{Op: "write", Err: errors.New("disk full")}, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorStatus(tt.err); got != tt.want {
				t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("validation exposes field", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/transactions", nil)
		writeError(w, r, &core.ValidationError{Field: "note", Err: core.ErrEmptyNote})

		var body errorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatal(err)
		}
		if body.Field != "note" {
			t.Errorf("field = %q, want note", body.Field)
		}
	})

	t.Run("unauthorized sets challenge", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/views", nil)
		writeError(w, r, &core.PreconditionError{Err: core.ErrNoIdentity})

		if w.Header().Get("WWW-Authenticate") == "" {
			t.Error("missing WWW-Authenticate header")
		}
	})

	t.Run("server errors hide details", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/views", nil)
		writeError(w, r, errors.New("secret connection string"))

		if strings.Contains(w.Body.String(), "secret") {
			t.Errorf("body leaks internal error: %s", w.Body.String())
		}
	})
}
