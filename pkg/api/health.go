package api

import (
	"net/http"

	"github.com/collabboard/coordinator/pkg/metrics"
)

// HealthServer exposes the coordinator's liveness/readiness/metrics
// endpoints as a standalone mux, usable on its own port or mounted
// alongside the websocket server. Readiness is driven by whichever
// components have called metrics.RegisterComponent — typically "cache",
// "durable_store", and "transport".
type HealthServer struct {
	mux *http.ServeMux
}

// NewHealthServer builds the health check mux.
func NewHealthServer() *HealthServer {
	mux := http.NewServeMux()
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	mux.Handle("/metrics", metrics.Handler())

	return &HealthServer{mux: mux}
}

// Start starts the health check HTTP server.
func (hs *HealthServer) Start(addr string) error {
	return http.ListenAndServe(addr, hs.mux)
}

// GetHandler returns the HTTP handler for embedding in other servers.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
