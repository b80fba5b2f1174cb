package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"folio.dev/internal/audit"
	"folio.dev/internal/auth"
	"folio.dev/internal/content"
	"folio.dev/internal/obs"
	"folio.dev/internal/stream"
)

const serviceName = "folio-api"

// Pinger is any dependency that can report liveness (Postgres, Redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe: проверка готовности зависимостей.
type ReadyProbe struct {
	Deps []Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if !obs.IsReady() {
		return errors.New("startup in progress")
	}
	for _, d := range rp.Deps {
		if d == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Options wires the domain services into the HTTP layer.
type Options struct {
	Users   *auth.Service
	Content *content.Service
	Audit   *audit.Log
	Stream  *stream.Hub
	Ready   ReadyProbe
	Version string

	CORSOrigins   []string
	MaxBodyBytes  int64
	AuthRateLimit float64
	AuthRateBurst int
}

// API: HTTP слой.
type API struct {
	mux        *http.ServeMux
	users      *auth.Service
	content    *content.Service
	audit      *audit.Log
	stream     *stream.Hub
	readyProbe ReadyProbe
	version    string

	corsOrigins []string
	maxBody     int64
	ratePerSec  float64
	rateBurst   int
}

func New(opts Options) *API {
	a := &API{
		mux:         http.NewServeMux(),
		users:       opts.Users,
		content:     opts.Content,
		audit:       opts.Audit,
		stream:      opts.Stream,
		readyProbe:  opts.Ready,
		version:     opts.Version,
		corsOrigins: opts.CORSOrigins,
		maxBody:     opts.MaxBodyBytes,
		ratePerSec:  opts.AuthRateLimit,
		rateBurst:   opts.AuthRateBurst,
	}
	if a.maxBody <= 0 {
		a.maxBody = 1 << 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 5
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 10
	}
	a.routes()
	return a
}

func (a *API) routes() {
	// health/ready/info
	a.mux.HandleFunc("GET /healthz", a.Healthz)
	a.mux.HandleFunc("GET /readyz", a.Ready)
	a.mux.HandleFunc("GET /v1/info", a.Info)
	a.mux.Handle("GET /metrics", obs.Handler())

	// public auth flows share one per-IP limiter
	limiter := NewRateLimiter(a.ratePerSec, a.rateBurst)
	public := func(pattern string, h http.HandlerFunc) {
		a.mux.Handle(pattern, limiter.Middleware(h))
	}
	public("POST /v1/auth/login", a.handleLogin)
	public("GET /v1/auth/invites/{token}", a.handleInviteLookup)
	public("POST /v1/auth/register", a.handleRegister)
	public("POST /v1/auth/password/forgot", a.handleForgotPassword)
	public("GET /v1/auth/password/reset/{token}", a.handleResetLookup)
	public("POST /v1/auth/password/reset", a.handleResetPassword)

	protected := func(pattern string, h authedHandler) {
		a.mux.Handle(pattern, a.withAuth(h))
	}
	protected("POST /v1/auth/logout", a.handleLogout)
	protected("GET /v1/me", a.handleMe)
	protected("PATCH /v1/me", a.handleUpdateMe)

	protected("GET /v1/users", a.handleListUsers)
	protected("POST /v1/users/invite", a.handleInvite)
	protected("PUT /v1/users/role", a.handleUpdateRole)

	protected("GET /v1/content", a.handleListContent)
	protected("POST /v1/content", a.handleCreateContent)
	protected("GET /v1/content/export", a.handleExportContent)
	protected("GET /v1/content/{id}", a.handleGetContent)
	protected("PUT /v1/content/{id}", a.handleUpdateContent)
	protected("DELETE /v1/content/{id}", a.handleDeleteContent)
	protected("POST /v1/content/{id}/submit", a.handleSubmitContent)
	protected("POST /v1/content/{id}/approve", a.handleApproveContent)
	protected("POST /v1/content/{id}/reject", a.handleRejectContent)
	protected("POST /v1/content/{id}/schedule", a.handleScheduleContent)
	protected("POST /v1/content/{id}/restore", a.handleRestoreContent)
	protected("DELETE /v1/content/{id}/purge", a.handlePurgeContent)

	protected("GET /v1/dashboard", a.handleDashboard)
	protected("GET /v1/audit", a.handleListAudit)
	protected("GET /v1/audit/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	return chain(a.mux,
		RequestID,
		LoggingJSON,
		SecurityHeaders,
		CORS(a.corsOrigins),
		MaxBodyBytes(a.maxBody),
		obs.Instrument,
	)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleDomainError maps service errors onto status codes. Unknown errors are
// logged and reported as a generic 500.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		permErr  *auth.PermissionError
		transErr *content.TransitionError
	)
	switch {
	case errors.As(err, &permErr):
		writeError(w, r, http.StatusForbidden, "missing permission "+string(permErr.Permission))
	case errors.As(err, &transErr):
		writeError(w, r, http.StatusConflict, strings.TrimPrefix(transErr.Error(), "content: "))
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, content.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, "invalid input")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, content.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrEmailExists):
		writeError(w, r, http.StatusConflict, "email already exists")
	case errors.Is(err, auth.ErrSelfRoleChange):
		writeError(w, r, http.StatusUnprocessableEntity, "cannot change your own role")
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
	default:
		obs.Logger().Error("request_failed",
			"request_id", audit.RequestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, r, http.StatusInternalServerError, "operation failed")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return val, nil
}

func pageParams(r *http.Request) (page, size int, err error) {
	if page, err = queryInt(r, "page"); err != nil {
		return 0, 0, err
	}
	if size, err = queryInt(r, "pageSize"); err != nil {
		return 0, 0, err
	}
	return page, size, nil
}
