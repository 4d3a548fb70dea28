package engine

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_RunServesBothListeners(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mocks.yaml")
	writeFile(t, path, ordersDoc)

	srv, err := NewServer(Config{
		Addr:       "127.0.0.1:0",
		AdminAddr:  "127.0.0.1:0",
		ConfigPath: path,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	select {
	case <-srv.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + srv.Addr().String() + "/orders/77")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "order 77", string(body))
	assert.Equal(t, "initial", resp.Header.Get(HeaderState))

	resp, err = http.Get("http://" + srv.AdminAddr().String() + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `statemock_responses_total{pattern="/orders/{id}",state="initial",status="200"} 1`)
	assert.Contains(t, string(body), `statemock_http_requests_total{method="GET",status="200"} 1`)
	assert.Contains(t, string(body), "statemock_tracked_resources 1")

	assert.Error(t, srv.Run(ctx), "a second Run is rejected")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mocks.yaml")
	writeFile(t, path, "version: \"2\"\nstateful: []\n")

	_, err := NewServer(Config{Addr: "127.0.0.1:0", ConfigPath: path})
	assert.ErrorContains(t, err, "version")
}

func TestServer_WithoutAdmin(t *testing.T) {
	srv, err := NewServer(Config{Addr: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	<-srv.Ready()
	assert.Nil(t, srv.AdminAddr())

	resp, err := http.Get("http://" + srv.Addr().String() + "/anything")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	assert.NoError(t, <-done)
}
