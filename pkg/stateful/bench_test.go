package stateful

import (
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
)

func benchHandler(b *testing.B, routes int) *Handler {
	b.Helper()
	h := NewHandler()
	for i := range routes {
		cfg := orderConfig()
		cfg.Transitions[0].PathPattern = ""
		if err := h.AddConfig(fmt.Sprintf("/svc%d/orders/{id}", i), cfg); err != nil {
			b.Fatal(err)
		}
	}
	return h
}

func BenchmarkProcessRequest_SameResource(b *testing.B) {
	h := benchHandler(b, 1)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := h.ProcessRequest("GET", "/svc0/orders/1", nil, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProcessRequest_ManyRoutes(b *testing.B) {
	h := benchHandler(b, 100)
	b.ReportAllocs()
	for b.Loop() {
		if _, err := h.ProcessRequest("GET", "/svc99/orders/1", nil, nil); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkProcessRequest_ParallelDistinct(b *testing.B) {
	h := benchHandler(b, 1)
	var n atomic.Int64
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			uri := "/svc0/orders/" + strconv.FormatInt(n.Add(1), 10)
			if _, err := h.ProcessRequest("POST", uri, nil, nil); err != nil {
				b.Fatal(err)
			}
		}
	})
}

func BenchmarkProcessRequest_Condition(b *testing.B) {
	h := NewHandler()
	cfg := orderConfig()
	cfg.Transitions[0].Condition = "AND($.amount > 100, headers.x-env == prod)"
	if err := h.AddConfig("/orders/{id}", cfg); err != nil {
		b.Fatal(err)
	}
	headers := http.Header{"X-Env": {"staging"}}
	body := []byte(`{"amount": 250, "items": [1, 2, 3]}`)

	b.ReportAllocs()
	for b.Loop() {
		if _, err := h.ProcessRequest("POST", "/orders/1", headers, body); err != nil {
			b.Fatal(err)
		}
	}
}
