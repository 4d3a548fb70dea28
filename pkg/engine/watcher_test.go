package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/statemock/pkg/stateful"
)

const ordersDoc = `
version: "1"
stateful:
  - path: /orders/{id}
    resourceType: order
    resourceIdExtract: {type: path_param, param: id}
    states:
      initial: {body: "order {{resource_id}}"}
`

const invoicesDoc = `
version: "1"
stateful:
  - path: /invoices/{id}
    resourceType: invoice
    resourceIdExtract: {type: path_param, param: id}
    states:
      initial: {body: "invoice {{resource_id}}"}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func patterns(h *stateful.Handler) []string {
	var out []string
	for _, c := range h.Configs() {
		out = append(out, c.Pattern)
	}
	return out
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mocks.yaml")
	writeFile(t, path, ordersDoc)

	h := stateful.NewHandler()
	w := NewWatcher(path, h)
	require.NoError(t, w.Reload(context.Background()))
	assert.Equal(t, []string{"/orders/{id}"}, patterns(h))

	writeFile(t, path, invoicesDoc)
	require.NoError(t, w.Reload(context.Background()))
	assert.Equal(t, []string{"/invoices/{id}"}, patterns(h), "dropped patterns are removed")

	writeFile(t, path, "version: \"1\"\nstateful:\n  - path: nope\n")
	assert.Error(t, w.Reload(context.Background()))
	assert.Equal(t, []string{"/invoices/{id}"}, patterns(h), "a failed reload keeps the previous config")
}

func TestWatcher_ReloadKeepsStates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mocks.yaml")
	writeFile(t, path, ordersDoc)

	h := stateful.NewHandler()
	w := NewWatcher(path, h)
	require.NoError(t, w.Reload(context.Background()))
	require.NoError(t, h.SetResourceState("/orders/{id}", "1", "initial"))

	require.NoError(t, w.Reload(context.Background()))
	_, ok := h.ResourceState("/orders/{id}", "1")
	assert.True(t, ok)
}

func TestWatcher_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "billing"), 0o755))
	writeFile(t, filepath.Join(dir, "orders.yaml"), ordersDoc)
	writeFile(t, filepath.Join(dir, "billing", "invoices.yml"), invoicesDoc)
	writeFile(t, filepath.Join(dir, "README.md"), "not a config")

	h := stateful.NewHandler()
	w := NewWatcher(dir, h)
	require.NoError(t, w.Reload(context.Background()))
	assert.ElementsMatch(t, []string{"/orders/{id}", "/invoices/{id}"}, patterns(h))

	dirs, err := w.watchDirs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{dir, filepath.Join(dir, "billing")}, dirs)
}

func TestWatcher_RunReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mocks.yaml")
	writeFile(t, path, ordersDoc)

	h := stateful.NewHandler()
	reloaded := make(chan error, 4)
	w := NewWatcher(path, h, WithDebounce(20*time.Millisecond), OnReload(func(err error) {
		select {
		case reloaded <- err:
		default:
		}
	}))
	require.NoError(t, w.Reload(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// The watch is registered asynchronously; keep touching the file until
	// a reload is observed.
	require.Eventually(t, func() bool {
		writeFile(t, path, invoicesDoc)
		select {
		case err := <-reloaded:
			return err == nil
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"/invoices/{id}"}, patterns(h))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_MissingPath(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "missing.yaml"), stateful.NewHandler())
	assert.Error(t, w.Reload(context.Background()))
	assert.Error(t, w.Run(context.Background()))
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, isConfigFile("a.yaml"))
	assert.True(t, isConfigFile("a.YML"))
	assert.True(t, isConfigFile("/x/a.json"))
	assert.False(t, isConfigFile("a.yaml.swp"))
	assert.False(t, isConfigFile("a"))
}
