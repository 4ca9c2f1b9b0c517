package http

import (
	"errors"
	"log/slog"
	"net/http"

	"cashbook/internal/core"
	"cashbook/internal/identity"
	"cashbook/internal/ledger"
)

// errorStatus maps the error taxonomy onto HTTP status codes. The more
// specific causes are checked before their kinds.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotConfirmed), errors.Is(err, identity.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrUnknownReport):
		return http.StatusNotFound
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPrecondition):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and sends it as a JSON error body. Internal details
// of 5xx errors are not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	body := errorBody{Error: err.Error()}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		body.Field = verr.Field
	}

	switch {
	case status >= 500:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "status", status, "path", r.URL.Path)
		body = errorBody{Error: http.StatusText(status)}
	case status == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="cashbook"`)
		fallthrough
	default:
		slog.WarnContext(r.Context(), "Request rejected", "error", err, "status", status, "path", r.URL.Path)
	}
	NewResponse().Status(status).JSON(body).Write(w)
}
