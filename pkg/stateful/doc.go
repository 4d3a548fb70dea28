// Package stateful tracks a finite state machine per mocked resource and
// renders the response for the resource's current state.
//
// A StatefulConfig is registered against a path pattern such as
// "/orders/{id}". For each request whose path matches, the Handler extracts
// a resource id (from a path parameter, header, query parameter or JSON body
// field), applies at most one TransitionTrigger to the resource's state and
// renders the StateResponse for the resulting state. Every resource starts in
// the "initial" state.
//
//	h := stateful.NewHandler(stateful.WithLogger(log))
//	err := h.AddConfig("/orders/{id}", stateful.StatefulConfig{
//	    ResourceType:      "order",
//	    ResourceIDExtract: stateful.PathParam{Param: "id"},
//	    StateResponses: map[string]stateful.StateResponse{
//	        "initial": {StatusCode: 200, BodyTemplate: `{"id":"{{resource_id}}","state":"{{state}}"}`},
//	        "shipped": {StatusCode: 200, BodyTemplate: `{"id":"{{resource_id}}","state":"{{state}}"}`},
//	    },
//	    Transitions: []stateful.TransitionTrigger{
//	        {Method: "POST", FromState: "initial", ToState: "shipped", Condition: "$.carrier"},
//	    },
//	})
//	resp, err := h.ProcessRequest("POST", "/orders/42", headers, body)
//
// When a path matches several patterns the one with more literal segments
// wins; ties go to the earliest registration.
//
// Thread Safety:
//
// The route table is replaced atomically on registration, so request
// processing never waits for AddConfig. Resource states live in a sharded
// store; each resource's read-transition-write runs under that resource's
// own lock, so concurrent requests for one resource fire at most one
// transition per request and never lose updates.
package stateful
