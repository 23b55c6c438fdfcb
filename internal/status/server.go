// Package status serves the read-only projection of the topology state: a
// single JSON document listing the registered node names per role. Advisory
// only; nothing in the system reads it back.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"sigs.k8s.io/controller-runtime/pkg/healthz"

	"github.com/eea/citus-manager/internal/topology"
)

const shutdownTimeout = 5 * time.Second

// RegisteredResponse is the wire format for GET /registered.
type RegisteredResponse struct {
	Workers     []string `json:"workers"`
	Coordinator []string `json:"coordinator"`
	Masters     []string `json:"masters"`
}

// RegisteredHandler handles GET /registered.
type RegisteredHandler struct {
	logger *zap.Logger
	state  *topology.State
}

// NewRegisteredHandler creates a RegisteredHandler.
func NewRegisteredHandler(state *topology.State, logger *zap.Logger) *RegisteredHandler {
	return &RegisteredHandler{
		logger: logger.Named("registered"),
		state:  state,
	}
}

// ServeHTTP implements http.Handler.
func (h *RegisteredHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := h.state.Snapshot()
	resp := RegisteredResponse{
		Workers:     snap.Workers,
		Coordinator: snap.Coordinators,
		Masters:     snap.Masters,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode registered response", zap.Error(err))
	}
}

// Server is the status HTTP server. It reads topology snapshots and never
// mutates state.
type Server struct {
	logger *zap.Logger
	state  *topology.State
	addr   string
}

// NewServer creates a status Server bound to addr.
func NewServer(state *topology.State, addr string, logger *zap.Logger) *Server {
	return &Server{
		logger: logger.Named("status"),
		state:  state,
		addr:   addr,
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/registered", NewRegisteredHandler(s.state, s.logger))
	healthzHandler := &healthz.Handler{Checks: map[string]healthz.Checker{
		"ping": healthz.Ping,
	}}
	mux.Handle("/healthz", http.StripPrefix("/healthz", healthzHandler))
	mux.Handle("/healthz/", http.StripPrefix("/healthz", healthzHandler))

	srv := &http.Server{Addr: s.addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Status server shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("Serving status endpoint", zap.String("addr", s.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
