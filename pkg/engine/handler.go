package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/getmockd/statemock/internal/id"
	"github.com/getmockd/statemock/pkg/logging"
	"github.com/getmockd/statemock/pkg/stateful"
)

// MaxBodySize is the default request body limit (1MB).
const MaxBodySize = 1 << 20

// Response headers set on every stateful response.
const (
	HeaderResourceID = "X-Mockd-Resource-Id"
	HeaderState      = "X-Mockd-State"
	HeaderRequestID  = "X-Request-Id"
)

// Processor runs one request through the stateful pipeline.
// *stateful.Handler implements it.
type Processor interface {
	ProcessRequest(method, uri string, headers http.Header, body []byte) (*stateful.StatefulResponse, error)
}

// Handler serves stateful mock responses over HTTP.
type Handler struct {
	proc    Processor
	next    http.Handler
	log     *slog.Logger
	maxBody int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithNext sets the handler for requests no stateful config handles.
func WithNext(next http.Handler) HandlerOption {
	return func(h *Handler) {
		if next != nil {
			h.next = next
		}
	}
}

// WithHandlerLogger sets the handler's logger.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

// WithMaxBodySize overrides MaxBodySize.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// NewHandler creates a Handler around proc.
func NewHandler(proc Processor, opts ...HandlerOption) *Handler {
	h := &Handler{
		proc:    proc,
		next:    http.HandlerFunc(notFound),
		log:     logging.Nop(),
		maxBody: MaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get(HeaderRequestID)
	if requestID == "" {
		requestID = id.Sortable()
	}
	w.Header().Set(HeaderRequestID, requestID)

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				h.log.Warn("request body too large", "path", r.URL.Path, "limit", h.maxBody, "requestId", requestID)
				writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
					Error:     ErrCodeBodyTooLarge,
					Message:   ErrMsgBodyTooLarge,
					Hint:      fmt.Sprintf("Reduce request body size to under %d bytes", h.maxBody),
					RequestID: requestID,
				})
				return
			}
			h.log.Warn("failed to read request body", "path", r.URL.Path, "error", err, "requestId", requestID)
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:     ErrCodeBadRequest,
				Message:   "Failed to read request body",
				RequestID: requestID,
			})
			return
		}
	}

	resp, err := h.proc.ProcessRequest(r.Method, r.URL.RequestURI(), r.Header, body)
	if err != nil {
		writeStatefulError(w, h.log, err, requestID)
		return
	}
	if resp == nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		h.next.ServeHTTP(w, r)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", resp.ContentType)
	w.Header().Set(HeaderResourceID, resp.ResourceID)
	w.Header().Set(HeaderState, resp.State)
	w.WriteHeader(resp.StatusCode)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, resp.Body); err != nil {
		h.log.Debug("failed to write response body", "error", err, "requestId", requestID)
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:     ErrCodeNotFound,
		Message:   fmt.Sprintf("no stateful resource matches %s %s", r.Method, r.URL.Path),
		Hint:      "Use GET /state/configs on the admin port to list registered patterns.",
		RequestID: w.Header().Get(HeaderRequestID),
	})
}
