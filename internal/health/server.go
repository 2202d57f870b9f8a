// Package health exposes liveness and metrics endpoints for the agent.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SystemStatus represents the overall health state of the agent.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusCritical SystemStatus = "critical"
)

// Check probes one dependency. It returns nil when the dependency is usable.
type Check func(ctx context.Context) error

// Server provides HTTP endpoints for health monitoring.
type Server struct {
	checks map[string]Check
	server *http.Server
}

// NewServer creates a health server over the given dependency checks.
func NewServer(port int, checks map[string]Check) *Server {
	mux := http.NewServeMux()
	s := &Server{
		checks: checks,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusHealthy
	deps := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status = StatusCritical
			deps[name] = err.Error()
		} else {
			deps[name] = "ok"
		}
	}

	response := map[string]any{
		"status":       string(status),
		"dependencies": deps,
	}
	w.Header().Set("Content-Type", "application/json")
	if status == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(response)
}
