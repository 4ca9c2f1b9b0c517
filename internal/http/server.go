package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/identity"
	applog "cashbook/internal/log"
	"cashbook/internal/services"
)

// Deps are the collaborators the API needs. Ready may be nil.
type Deps struct {
	Ledger    *services.LedgerService
	Registry  *identity.Registry
	Sessions  *identity.Sessions
	Ready     func(ctx context.Context) error
	Logger    *applog.Logger
	RateLimit int
}

type Server struct {
	http.Server
	ledger      *services.LedgerService
	registry    *identity.Registry
	sessions    *identity.Sessions
	ready       func(ctx context.Context) error
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	rateLimiter *rateLimiter
	metrics     securityMetrics

	shutdownOnce sync.Once
}

// authedHandler receives the identity resolved from the bearer token.
type authedHandler func(w http.ResponseWriter, r *http.Request, id core.Identity)

func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           chain(mux, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		ledger:      deps.Ledger,
		registry:    deps.Registry,
		sessions:    deps.Sessions,
		ready:       deps.Ready,
		logger:      logger,
		structured:  applog.NewStructuredLogger(logger),
		rateLimiter: newRateLimiter(deps.RateLimit),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /auth/register", s.withSecurityHeaders(s.handleRegister))
	mux.HandleFunc("POST /auth/login", s.withSecurityHeaders(s.handleLogin))
	mux.HandleFunc("POST /auth/reset-pin", s.withSecurityHeaders(s.handleResetPIN))
	mux.HandleFunc("POST /auth/logout", s.withSecurityHeaders(s.handleLogout))
	mux.HandleFunc("PUT /auth/profile", s.withSecurityHeaders(s.authed(s.handleUpdateProfile)))
	mux.HandleFunc("GET /auth/me", s.withSecurityHeaders(s.authed(s.handleMe)))

	mux.HandleFunc("GET /transactions", s.withSecurityHeaders(s.authed(s.handleListTransactions)))
	mux.HandleFunc("POST /transactions", s.withSecurityHeaders(s.authed(s.handleCreateTransaction)))
	mux.HandleFunc("GET /transactions/{id}", s.withSecurityHeaders(s.authed(s.handleGetTransaction)))
	mux.HandleFunc("PUT /transactions/{id}", s.withSecurityHeaders(s.authed(s.handleEditTransaction)))
	mux.HandleFunc("DELETE /transactions/{id}", s.withSecurityHeaders(s.authed(s.handleDeleteTransaction)))

	mux.HandleFunc("GET /views", s.withSecurityHeaders(s.authed(s.handleViews)))
	mux.HandleFunc("GET /reports", s.withSecurityHeaders(s.authed(s.handleReportKinds)))
	mux.HandleFunc("GET /reports/{kind}", s.withSecurityHeaders(s.authed(s.handleReport)))

	mux.HandleFunc("GET /export", s.withSecurityHeaders(s.authed(s.handleExportJSON)))
	mux.HandleFunc("GET /export.xlsx", s.withSecurityHeaders(s.authed(s.handleExportWorkbook)))
	mux.HandleFunc("POST /import", s.withSecurityHeaders(s.authed(s.handleImport)))

	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders assigns a request id, logs the request, enforces the
// rate limit on mutating methods and sets the security headers.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := r.Header.Get(headerRequestID)
		ctx := r.Context()
		logger := applog.FromContext(ctx)

		s.structured.LogHTTPStart(ctx, r, clientIP)
		if detectSuspiciousRequest(r, &s.metrics) {
			logger.WarnContext(ctx, "Suspicious request", applog.FieldClientIP, clientIP, applog.FieldPath, r.URL.Path)
		}

		w.Header().Set(headerRequestID, requestID)
		setSecurityHeaders(w, r)

		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, &s.metrics) {
			logger.WarnContext(ctx, "Rate limit exceeded", applog.FieldClientIP, clientIP, applog.FieldMethod, r.Method)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
			return
		}

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// chain installs the request-scoped logger: component first, then the
// request id, so every handler log line carries both.
func chain(h http.Handler, logger *applog.Logger) http.Handler {
	h = applog.RequestIDMiddleware(requestID)(h)
	h = applog.ComponentMiddleware(applog.ComponentHTTP)(h)
	return applog.Middleware(logger)(h)
}

// authed resolves the bearer token to an identity before calling next.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := s.sessions.Lookup(bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r.WithContext(identity.WithIdentity(r.Context(), id)), id)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// parseBody reads the request body, answering 400 itself on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false
		}
		BadRequestError("malformed request body").Write(w)
		return nil, false
	}
	return p, true
}
