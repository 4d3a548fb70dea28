package stateful

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderConfig() StatefulConfig {
	return StatefulConfig{
		ResourceType:      "order",
		ResourceIDExtract: PathParam{Param: "id"},
		StateResponses: map[string]StateResponse{
			"initial":   {StatusCode: 200, BodyTemplate: `{}`},
			"processed": {StatusCode: 200, BodyTemplate: `{}`},
		},
		Transitions: []TransitionTrigger{
			{Method: "POST", PathPattern: "/orders/{id}", FromState: "initial", ToState: "processed"},
		},
	}
}

func mustHandler(t *testing.T, configs map[string]StatefulConfig, opts ...Option) *Handler {
	t.Helper()
	h := NewHandler(opts...)
	for pattern, cfg := range configs {
		require.NoError(t, h.AddConfig(pattern, cfg))
	}
	return h
}

func process(t *testing.T, h *Handler, method, uri string, headers http.Header, body string) *StatefulResponse {
	t.Helper()
	var b []byte
	if body != "" {
		b = []byte(body)
	}
	resp, err := h.ProcessRequest(method, uri, headers, b)
	require.NoError(t, err)
	return resp
}

// GET, POST, GET walks the order through one transition.
func TestHandler_OrderLifecycle(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})

	resp := process(t, h, "GET", "/orders/123", nil, "")
	require.NotNil(t, resp)
	assert.Equal(t, "initial", resp.State)
	assert.Equal(t, "123", resp.ResourceID)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "{}", resp.Body)
	assert.Equal(t, DefaultContentType, resp.ContentType)

	resp = process(t, h, "POST", "/orders/123", nil, "")
	require.NotNil(t, resp)
	assert.Equal(t, "processed", resp.State)

	resp = process(t, h, "GET", "/orders/123", nil, "")
	require.NotNil(t, resp)
	assert.Equal(t, "processed", resp.State)

	// Other resources are independent.
	resp = process(t, h, "GET", "/orders/456", nil, "")
	require.NotNil(t, resp)
	assert.Equal(t, "initial", resp.State)
}

func TestHandler_Extractors(t *testing.T) {
	states := map[string]StateResponse{
		"initial": {BodyTemplate: `{"id":"{{resource_id}}"}`},
	}

	tests := []struct {
		name    string
		pattern string
		extract ResourceIDExtract
		uri     string
		headers http.Header
		body    string
		wantID  string
		handled bool
	}{
		{
			name:    "header",
			pattern: "/orders",
			extract: Header{Name: "x-resource-id"},
			uri:     "/orders",
			headers: http.Header{"X-Resource-Id": {"header-123"}},
			wantID:  "header-123",
			handled: true,
		},
		{
			name:    "json path",
			pattern: "/users",
			extract: JSONPath{Path: "user.id"},
			uri:     "/users",
			body:    `{"user":{"id":"json-789"}}`,
			wantID:  "json-789",
			handled: true,
		},
		{
			name:    "composite prefers first extractor",
			pattern: "/orders/{id}",
			extract: Composite{Extractors: []ResourceIDExtract{PathParam{Param: "id"}, Header{Name: "x-resource-id"}}},
			uri:     "/orders/123",
			headers: http.Header{"X-Resource-Id": {"header-123"}},
			wantID:  "123",
			handled: true,
		},
		{
			name:    "composite falls through",
			pattern: "/orders",
			extract: Composite{Extractors: []ResourceIDExtract{QueryParam{Param: "id"}, Header{Name: "x-resource-id"}}},
			uri:     "/orders",
			headers: http.Header{"X-Resource-Id": {"header-123"}},
			wantID:  "header-123",
			handled: true,
		},
		{
			name:    "query param",
			pattern: "/orders",
			extract: QueryParam{Param: "orderId"},
			uri:     "/orders?orderId=q-9&orderId=q-10",
			wantID:  "q-9",
			handled: true,
		},
		{
			name:    "json numeric id",
			pattern: "/orders",
			extract: JSONPath{Path: "$.order.id"},
			uri:     "/orders",
			body:    `{"order":{"id":9007199254740993}}`,
			wantID:  "9007199254740993",
			handled: true,
		},
		{
			name:    "missing header is not handled",
			pattern: "/orders",
			extract: Header{Name: "x-resource-id"},
			uri:     "/orders",
			handled: false,
		},
		{
			name:    "invalid json is not handled",
			pattern: "/orders",
			extract: JSONPath{Path: "id"},
			uri:     "/orders",
			body:    `{"id":`,
			handled: false,
		},
		{
			name:    "non-scalar json is not handled",
			pattern: "/orders",
			extract: JSONPath{Path: "user"},
			uri:     "/orders",
			body:    `{"user":{"id":1}}`,
			handled: false,
		},
		{
			name:    "empty header value is not handled",
			pattern: "/orders",
			extract: Header{Name: "x-resource-id"},
			uri:     "/orders",
			headers: http.Header{"X-Resource-Id": {""}},
			handled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustHandler(t, map[string]StatefulConfig{
				tt.pattern: {ResourceType: "thing", ResourceIDExtract: tt.extract, StateResponses: states},
			})
			resp := process(t, h, "GET", tt.uri, tt.headers, tt.body)
			if !tt.handled {
				assert.Nil(t, resp)
				return
			}
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantID, resp.ResourceID)
			assert.Equal(t, fmt.Sprintf(`{"id":"%s"}`, tt.wantID), resp.Body)
		})
	}
}

// Unrelated paths are not handled, and patterns do not leak into each other.
func TestHandler_CanHandle(t *testing.T) {
	users := orderConfig()
	users.ResourceType = "user"
	users.Transitions = nil
	h := mustHandler(t, map[string]StatefulConfig{
		"/orders/{id}": orderConfig(),
		"/users/{id}":  users,
	})

	assert.True(t, h.CanHandle("GET", "/orders/5"))
	assert.True(t, h.CanHandle("DELETE", "/users/5/"))
	assert.False(t, h.CanHandle("GET", "/products/5"))
	assert.False(t, h.CanHandle("GET", "/api/users"))

	resp, err := h.ProcessRequest("GET", "/api/users", nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, resp)
}

func TestHandler_EscapedSegments(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})

	tests := []struct {
		name   string
		uri    string
		wantID string
	}{
		{name: "encoded slash stays one segment", uri: "/orders/a%2Fb", wantID: "a%2Fb"},
		{name: "encoded space is not decoded", uri: "/orders/a%20b", wantID: "a%20b"},
		{name: "invalid escape", uri: "/orders/%zz", wantID: "%zz"},
		{name: "invalid escape with query", uri: "/orders/%zz?x=1", wantID: "%zz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _, _ := strings.Cut(tt.uri, "?")
			assert.True(t, h.CanHandle("GET", path))

			resp := process(t, h, "GET", tt.uri, nil, "")
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantID, resp.ResourceID)
		})
	}
}

func TestHandler_StateIsDeterministic(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})

	first := process(t, h, "POST", "/orders/7", nil, "")
	for range 5 {
		again := process(t, h, "GET", "/orders/7", nil, "")
		assert.Equal(t, first.State, again.State)
	}
	// A repeated POST finds no transition out of "processed".
	again := process(t, h, "POST", "/orders/7", nil, "")
	assert.Equal(t, "processed", again.State)
}

func TestHandler_TransitionFiresOnce(t *testing.T) {
	obs := NewMetricsObserver()
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()}, WithObserver(obs))

	const workers = 64
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		fired atomic.Int64
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			resp, err := h.ProcessRequest("POST", "/orders/race", nil, nil)
			if err != nil || resp == nil {
				return
			}
			if resp.State == "processed" {
				fired.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(workers), fired.Load())
	assert.Equal(t, int64(1), obs.Snapshot().TransitionCount)
	assert.Equal(t, int64(workers), obs.Snapshot().RenderCount)
}

func TestHandler_ConcurrentDistinctResources(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()}, WithShardCount(4))

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			uri := fmt.Sprintf("/orders/%d", i)
			_, _ = h.ProcessRequest("POST", uri, nil, nil)
			_, _ = h.ProcessRequest("GET", uri, nil, nil)
		}()
	}
	wg.Wait()

	for i := range 100 {
		info, ok := h.ResourceState("/orders/{id}", fmt.Sprint(i))
		require.True(t, ok)
		assert.Equal(t, "processed", info.CurrentState)
	}
}

func TestHandler_ConditionGatesTransition(t *testing.T) {
	cfg := StatefulConfig{
		ResourceType:      "payment",
		ResourceIDExtract: PathParam{Param: "id"},
		StateResponses: map[string]StateResponse{
			"initial":  {StatusCode: 202},
			"approved": {StatusCode: 200, BodyTemplate: `{"state":"{{state}}"}`},
			"review":   {StatusCode: 200, BodyTemplate: `{"state":"{{ state }}"}`},
		},
		Transitions: []TransitionTrigger{
			{Method: "post", FromState: "initial", ToState: "review", Condition: "$.amount > 1000"},
			{Method: "POST", FromState: "initial", ToState: "approved", Condition: "AND($.amount, headers.x-token == ok)"},
		},
	}
	h := mustHandler(t, map[string]StatefulConfig{"/payments/{id}": cfg})
	token := http.Header{"X-Token": {"ok"}}

	// Missing token and small amount: neither condition holds.
	resp := process(t, h, "POST", "/payments/a", nil, `{"amount":10}`)
	assert.Equal(t, "initial", resp.State)
	assert.Equal(t, 202, resp.StatusCode)

	// Both are eligible; the first registered wins.
	resp = process(t, h, "POST", "/payments/b", token, `{"amount":5000}`)
	assert.Equal(t, "review", resp.State)
	assert.Equal(t, `{"state":"review"}`, resp.Body)

	resp = process(t, h, "POST", "/payments/c", token, `{"amount":10}`)
	assert.Equal(t, "approved", resp.State)

	// Invalid JSON makes body conditions false rather than failing.
	resp = process(t, h, "POST", "/payments/d", token, `{"amount":`)
	assert.Equal(t, "initial", resp.State)
}

func TestHandler_MalformedConditionBlocksTransition(t *testing.T) {
	cfg := orderConfig()
	cfg.Transitions[0].Condition = "AND("
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": cfg})

	resp := process(t, h, "POST", "/orders/1", nil, "")
	assert.Equal(t, "initial", resp.State)
}

func TestHandler_MethodMustMatch(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})
	resp := process(t, h, "PUT", "/orders/1", nil, "")
	assert.Equal(t, "initial", resp.State)
	resp = process(t, h, "post", "/orders/1", nil, "")
	assert.Equal(t, "processed", resp.State)
}

func TestHandler_MostSpecificPatternWins(t *testing.T) {
	special := orderConfig()
	special.ResourceType = "special"
	special.ResourceIDExtract = Header{Name: "x-id"}
	special.Transitions = nil
	special.StateResponses = map[string]StateResponse{"initial": {StatusCode: 201, BodyTemplate: "special"}}

	h := NewHandler()
	require.NoError(t, h.AddConfig("/orders/{id}", orderConfig()))
	require.NoError(t, h.AddConfig("/orders/special", special))

	resp := process(t, h, "GET", "/orders/special", http.Header{"X-Id": {"s1"}}, "")
	require.NotNil(t, resp)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "s1", resp.ResourceID)

	resp = process(t, h, "GET", "/orders/other", nil, "")
	require.NotNil(t, resp)
	assert.Equal(t, "other", resp.ResourceID)
}

func TestHandler_TiesGoToRegistrationOrder(t *testing.T) {
	first := orderConfig()
	first.StateResponses = map[string]StateResponse{"initial": {BodyTemplate: "first"}}
	first.Transitions = nil
	second := orderConfig()
	second.ResourceIDExtract = PathParam{Param: "orderId"}
	second.StateResponses = map[string]StateResponse{"initial": {BodyTemplate: "second"}}
	second.Transitions = nil

	h := NewHandler()
	require.NoError(t, h.AddConfig("/orders/{id}", first))
	require.NoError(t, h.AddConfig("/orders/{orderId}", second))
	assert.Equal(t, "first", process(t, h, "GET", "/orders/1", nil, "").Body)

	// Replacing the first keeps its position.
	first.StateResponses = map[string]StateResponse{"initial": {BodyTemplate: "first v2"}}
	require.NoError(t, h.AddConfig("/orders/{id}", first))
	assert.Equal(t, "first v2", process(t, h, "GET", "/orders/1", nil, "").Body)

	infos := h.Configs()
	require.Len(t, infos, 2)
	assert.Equal(t, "/orders/{id}", infos[0].Pattern)
}

func TestHandler_ReplacementKeepsStatesAndReportsStale(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})
	process(t, h, "POST", "/orders/1", nil, "")

	replacement := orderConfig()
	replacement.StateResponses = map[string]StateResponse{"initial": {BodyTemplate: "v2"}}
	replacement.Transitions = nil
	require.NoError(t, h.AddConfig("/orders/{id}", replacement))

	_, err := h.ProcessRequest("GET", "/orders/1", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownState))
	var stateErr *StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "processed", stateErr.State)
	assert.Equal(t, 500, stateErr.StatusCode())

	assert.Equal(t, 1, h.Reset("/orders/{id}"))
	resp := process(t, h, "GET", "/orders/1", nil, "")
	assert.Equal(t, "v2", resp.Body)
}

func TestHandler_ConfigIsCopied(t *testing.T) {
	cfg := orderConfig()
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": cfg})

	cfg.StateResponses["initial"] = StateResponse{BodyTemplate: "mutated"}
	cfg.Transitions[0].ToState = "initial"

	resp := process(t, h, "POST", "/orders/1", nil, "")
	assert.Equal(t, "processed", resp.State)
	assert.Equal(t, "{}", resp.Body)
}

func TestHandler_ResourceStateAdmin(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})

	_, ok := h.ResourceState("/orders/{id}", "9")
	assert.False(t, ok)

	require.NoError(t, h.SetResourceState("/orders/{id}", "9", "processed"))
	info, ok := h.ResourceState("/orders/{id}", "9")
	require.True(t, ok)
	assert.Equal(t, "processed", info.CurrentState)
	assert.Equal(t, "order", info.ResourceType)

	err := h.SetResourceState("/orders/{id}", "9", "lost")
	assert.True(t, errors.Is(err, ErrUnknownState))
	var unknown *UnknownStateError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, 400, unknown.StatusCode())
	assert.Equal(t, `state "lost" is not defined for "/orders/{id}"`, err.Error())

	var nf *NotFoundError
	err = h.SetResourceState("/nope/{id}", "9", "initial")
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, 404, nf.StatusCode())

	ov := h.Overview()
	assert.Equal(t, 1, ov.TotalResources)
	require.Len(t, ov.Configs, 1)
	assert.Equal(t, 1, ov.Configs[0].Resources)
	assert.Equal(t, []string{"initial", "processed"}, ov.Configs[0].States)

	assert.Equal(t, 1, h.Reset(""))
	assert.Equal(t, 0, h.Overview().TotalResources)
}

func TestHandler_RemoveConfig(t *testing.T) {
	h := mustHandler(t, map[string]StatefulConfig{"/orders/{id}": orderConfig()})
	assert.True(t, h.RemoveConfig("/orders/{id}"))
	assert.False(t, h.RemoveConfig("/orders/{id}"))
	assert.False(t, h.CanHandle("GET", "/orders/1"))
}

func TestHandler_NoMatchObserved(t *testing.T) {
	obs := NewMetricsObserver()
	h := mustHandler(t, map[string]StatefulConfig{"/orders": {
		ResourceType:      "order",
		ResourceIDExtract: Header{Name: "x-id"},
		StateResponses:    map[string]StateResponse{"initial": {}},
	}}, WithObserver(obs))

	process(t, h, "GET", "/orders", nil, "")
	process(t, h, "GET", "/elsewhere", nil, "")
	assert.Equal(t, int64(2), obs.Snapshot().NoMatchCount)
}
