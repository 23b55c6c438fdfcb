package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eea/citus-manager/internal/topology"
)

func TestRegisteredHandler(t *testing.T) {
	state := topology.NewState()
	state.AddMaster("m1")
	state.AddCoordinator("c1")
	state.AddWorker("w2")
	state.AddWorker("w1")

	handler := NewRegisteredHandler(state, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/registered", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp RegisteredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"m1"}, resp.Masters)
	assert.Equal(t, []string{"c1"}, resp.Coordinator)
	assert.Equal(t, []string{"w1", "w2"}, resp.Workers, "workers come back sorted")
}

func TestRegisteredHandler_EmptyTopology(t *testing.T) {
	handler := NewRegisteredHandler(topology.NewState(), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/registered", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Empty role sets serialize as [] rather than null.
	body := rec.Body.String()
	assert.Contains(t, body, `"workers":[]`)
	assert.Contains(t, body, `"coordinator":[]`)
	assert.Contains(t, body, `"masters":[]`)
}

func TestRegisteredHandler_MethodNotAllowed(t *testing.T) {
	handler := NewRegisteredHandler(topology.NewState(), zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/registered", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerLifecycle(t *testing.T) {
	// Reserve a free port, then hand it to the server.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	state := topology.NewState()
	state.AddWorker("w1")
	srv := NewServer(state, addr, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	client := &http.Client{Timeout: time.Second}
	var resp *http.Response
	require.Eventually(t, func() bool {
		var getErr error
		resp, getErr = client.Get(fmt.Sprintf("http://%s/registered", addr))
		return getErr == nil
	}, 5*time.Second, 20*time.Millisecond)
	defer resp.Body.Close()

	var registered RegisteredResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&registered))
	assert.Equal(t, []string{"w1"}, registered.Workers)

	healthResp, err := client.Get(fmt.Sprintf("http://%s/healthz", addr))
	require.NoError(t, err)
	defer healthResp.Body.Close()
	assert.Equal(t, http.StatusOK, healthResp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err, "graceful shutdown returns nil")
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancellation")
	}
}
