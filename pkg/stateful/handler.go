package stateful

import (
	"cmp"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/statemock/pkg/condition"
	"github.com/getmockd/statemock/pkg/logging"
)

// Handler matches requests against registered configs, advances each
// resource's state machine and renders the state's response.
//
// Registration is copy-on-write: AddConfig publishes a new routeTable and
// request processing reads the current one without locking.
type Handler struct {
	mu        sync.Mutex // serializes writers of table
	table     atomic.Pointer[routeTable]
	nextOrder int

	store    *Store
	log      *slog.Logger
	observer Observer
	eval     *condition.Evaluator
}

// Option configures a Handler.
type Option func(*handlerOptions)

type handlerOptions struct {
	log       *slog.Logger
	observers []Observer
	shards    int
}

// WithLogger sets the handler's logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *handlerOptions) { o.log = log }
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *handlerOptions) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithShardCount sets the number of state store shards.
func WithShardCount(n int) Option {
	return func(o *handlerOptions) { o.shards = n }
}

// NewHandler creates an empty Handler.
func NewHandler(opts ...Option) *Handler {
	o := handlerOptions{shards: DefaultShardCount}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logging.Nop()
	}

	h := &Handler{
		store: NewStore(o.shards),
		log:   o.log,
		eval:  condition.NewEvaluator(o.log),
	}
	switch len(o.observers) {
	case 0:
		h.observer = NoopObserver{}
	case 1:
		h.observer = o.observers[0]
	default:
		h.observer = multiObserver(o.observers)
	}
	h.table.Store(&routeTable{byPattern: map[string]*route{}})
	return h
}

// Store returns the handler's state store.
func (h *Handler) Store() *Store { return h.store }

// AddConfig registers cfg for pattern, replacing any config registered under
// the same pattern string. A replaced config keeps its registration position
// and its resources keep their states.
func (h *Handler) AddConfig(pattern string, cfg StatefulConfig) error {
	r, warnings, err := compileRoute(pattern, cfg)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		h.log.Warn("stateful condition will never match", "pattern", pattern, "error", w)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.table.Load()
	if prev, ok := old.byPattern[pattern]; ok {
		r.order = prev.order
	} else {
		r.order = h.nextOrder
		h.nextOrder++
	}

	next := &routeTable{byPattern: make(map[string]*route, len(old.byPattern)+1)}
	for p, existing := range old.byPattern {
		next.byPattern[p] = existing
	}
	next.byPattern[pattern] = r
	next.routes = sortedRoutes(next.byPattern)
	h.table.Store(next)

	h.log.Debug("stateful config registered",
		"pattern", pattern,
		"resourceType", r.config.ResourceType,
		"states", len(r.config.StateResponses),
		"transitions", len(r.triggers))
	return nil
}

// RemoveConfig unregisters the config for pattern. Tracked states are kept.
func (h *Handler) RemoveConfig(pattern string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	old := h.table.Load()
	if _, ok := old.byPattern[pattern]; !ok {
		return false
	}
	next := &routeTable{byPattern: make(map[string]*route, len(old.byPattern))}
	for p, existing := range old.byPattern {
		if p != pattern {
			next.byPattern[p] = existing
		}
	}
	next.routes = sortedRoutes(next.byPattern)
	h.table.Store(next)
	return true
}

func sortedRoutes(byPattern map[string]*route) []*route {
	routes := make([]*route, 0, len(byPattern))
	for _, r := range byPattern {
		routes = append(routes, r)
	}
	slices.SortFunc(routes, func(a, b *route) int {
		if c := cmp.Compare(b.tmpl.StaticSegments(), a.tmpl.StaticSegments()); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	return routes
}

// CanHandle reports whether any registered pattern matches path. The method
// is not considered.
func (h *Handler) CanHandle(method, path string) bool {
	r, _ := h.table.Load().match(path)
	return r != nil
}

// ProcessRequest runs the full pipeline for one request. It returns nil, nil
// when no pattern matches or the resource id cannot be extracted, and an
// error only when the resource is in a state its config has no response for.
func (h *Handler) ProcessRequest(method, uri string, headers http.Header, body []byte) (*StatefulResponse, error) {
	start := time.Now()

	req := newRequest(method, uri, headers, body)
	r, params := h.table.Load().match(req.path)
	if r == nil {
		h.observer.OnNoMatch(req.method, req.path)
		return nil, nil
	}
	req.params = params

	id, ok := r.extract(req)
	if !ok {
		h.log.Debug("resource id not found in request",
			"pattern", r.pattern,
			"method", req.method,
			"path", req.path)
		h.observer.OnNoMatch(req.method, req.path)
		return nil, nil
	}

	previous, current, fired := advance(h.store, r.pattern, id, InitialState, r.triggers, req, h.eval)
	if fired != nil {
		h.log.Debug("state transition",
			"pattern", r.pattern,
			"resourceId", id,
			"from", previous,
			"to", current)
		h.observer.OnTransition(r.pattern, id, previous, current)
	}

	resp, ok := r.config.StateResponses[current]
	if !ok {
		err := &StateError{Pattern: r.pattern, ResourceID: id, State: current}
		h.log.Error("resource is in a state without a response", "error", err)
		h.observer.OnError(r.pattern, err)
		return nil, err
	}

	out := Render(resp, id, current)
	h.observer.OnRender(r.pattern, id, current, out.StatusCode, time.Since(start))
	return out, nil
}

// Configs lists the registered configs in match precedence order.
func (h *Handler) Configs() []ConfigInfo {
	t := h.table.Load()
	counts := h.store.Scopes()
	out := make([]ConfigInfo, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r.info(counts[r.pattern]))
	}
	return out
}

// ResourceState returns the stored state of a resource under pattern.
// It reports false for an unknown pattern or an untracked resource.
func (h *Handler) ResourceState(pattern, id string) (*StateInfo, bool) {
	r, ok := h.table.Load().lookup(pattern)
	if !ok {
		return nil, false
	}
	state, ok := h.store.Get(pattern, id)
	if !ok {
		return nil, false
	}
	return &StateInfo{
		Pattern:      pattern,
		ResourceType: r.config.ResourceType,
		ResourceID:   id,
		CurrentState: state,
	}, true
}

// SetResourceState forces a resource under pattern into state.
func (h *Handler) SetResourceState(pattern, id, state string) error {
	r, ok := h.table.Load().lookup(pattern)
	if !ok {
		return &NotFoundError{Pattern: pattern}
	}
	if id == "" {
		return &ConfigError{Pattern: pattern, Field: "resourceId", Message: "resource id is required"}
	}
	if _, ok := r.config.StateResponses[state]; !ok {
		return &UnknownStateError{Pattern: pattern, State: state}
	}
	previous, _ := h.store.UpdateFrom(pattern, id, InitialState, func(string) string { return state })
	h.log.Info("resource state set", "pattern", pattern, "resourceId", id, "from", previous, "to", state)
	return nil
}

// Reset clears tracked states for pattern, or for every scope when pattern
// is empty. It returns the number of resources cleared.
func (h *Handler) Reset(pattern string) int {
	n := h.store.Reset(pattern)
	h.log.Info("stateful resources reset", "pattern", pattern, "count", n)
	return n
}

// Overview summarizes registrations and tracked resources.
func (h *Handler) Overview() Overview {
	counts := h.store.Scopes()
	ov := Overview{Configs: make([]ConfigInfo, 0)}
	for _, r := range h.table.Load().routes {
		ov.Configs = append(ov.Configs, r.info(counts[r.pattern]))
	}
	for scope, n := range counts {
		ov.TotalResources += n
		if isStubScope(scope) {
			ov.StubResources += n
		}
	}
	return ov
}
