package engine

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/statemock/pkg/logging"
	"github.com/getmockd/statemock/pkg/stateful"
)

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 64 << 10

// Admin serves the inspection and control API.
type Admin struct {
	handler *stateful.Handler
	metrics http.Handler
	reload  func(context.Context) error
	log     *slog.Logger
	started time.Time
}

// AdminOption configures an Admin.
type AdminOption func(*Admin)

// WithAdminLogger sets the admin API's logger.
func WithAdminLogger(log *slog.Logger) AdminOption {
	return func(a *Admin) {
		if log != nil {
			a.log = log
		}
	}
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(h http.Handler) AdminOption {
	return func(a *Admin) { a.metrics = h }
}

// WithReloader enables POST /state/reload.
func WithReloader(fn func(context.Context) error) AdminOption {
	return func(a *Admin) { a.reload = fn }
}

// NewAdmin creates the admin API for h.
func NewAdmin(h *stateful.Handler, opts ...AdminOption) *Admin {
	a := &Admin{
		handler: h,
		log:     logging.Nop(),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime int    `json:"uptime"`
}

// SetStateRequest is the body of PUT /state/resources.
type SetStateRequest struct {
	Pattern    string `json:"pattern"`
	ResourceID string `json:"resourceId"`
	State      string `json:"state"`
}

// ResetRequest is the optional body of POST /state/reset.
type ResetRequest struct {
	Pattern string `json:"pattern"`
}

// ResetResponse reports how many resources a reset cleared.
type ResetResponse struct {
	Pattern string `json:"pattern,omitempty"`
	Reset   int    `json:"reset"`
}

// Routes returns the admin router.
func (a *Admin) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Get("/health", a.handleHealth)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.Route("/state", func(r chi.Router) {
		r.Get("/", a.handleOverview)
		r.Get("/configs", a.handleConfigs)
		r.Get("/resources", a.handleGetResource)
		r.Put("/resources", a.handleSetResource)
		r.Post("/reset", a.handleReset)
		r.Post("/reload", a.handleReload)
	})
	return r
}

func (a *Admin) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: int(time.Since(a.started).Seconds()),
	})
}

func (a *Admin) handleOverview(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.handler.Overview())
}

func (a *Admin) handleConfigs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.handler.Configs())
}

func (a *Admin) handleGetResource(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	resourceID := r.URL.Query().Get("id")
	if pattern == "" || resourceID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "query parameters pattern and id are required")
		return
	}

	info, ok := a.handler.ResourceState(pattern, resourceID)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "resource is not tracked")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *Admin) handleSetResource(w http.ResponseWriter, r *http.Request) {
	var req SetStateRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if req.Pattern == "" || req.ResourceID == "" || req.State == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "pattern, resourceId and state are required")
		return
	}

	if err := a.handler.SetResourceState(req.Pattern, req.ResourceID, req.State); err != nil {
		writeStatefulError(w, a.log, err, "")
		return
	}

	info, _ := a.handler.ResourceState(req.Pattern, req.ResourceID)
	writeJSON(w, http.StatusOK, info)
}

func (a *Admin) handleReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	if p := r.URL.Query().Get("pattern"); p != "" {
		req.Pattern = p
	}
	writeJSON(w, http.StatusOK, ResetResponse{
		Pattern: req.Pattern,
		Reset:   a.handler.Reset(req.Pattern),
	})
}

func (a *Admin) handleReload(w http.ResponseWriter, r *http.Request) {
	if a.reload == nil {
		writeError(w, http.StatusConflict, ErrCodeReloadDisabled, "no config source to reload")
		return
	}
	if err := a.reload(r.Context()); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   ErrCodeInvalidConfig,
			Message: err.Error(),
			Hint:    "The previous configuration is still active.",
		})
		return
	}
	writeJSON(w, http.StatusOK, a.handler.Configs())
}

// decode reads a JSON body into v. An empty body is accepted when optional.
func (a *Admin) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAdminBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, sanitizeError(err, a.log, "read admin request"))
		return false
	}
	if len(data) == 0 && optional {
		return true
	}
	if err := json.Unmarshal(data, v); err != nil {
		a.log.Debug("JSON parsing failed", "error", err)
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, ErrMsgInvalidJSON)
		return false
	}
	return true
}
