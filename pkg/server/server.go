package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"onebridge/pkg/logger"
)

// Server is the gateway's HTTP front: it hosts the webhook mounts and a
// health endpoint.
type Server struct {
	mux        *http.ServeMux
	httpServer *http.Server
	startedAt  time.Time
}

func NewServer(host string, port int) *Server {
	mux := http.NewServeMux()
	s := &Server{
		mux: mux,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			Handler:           withCORS(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		startedAt: time.Now(),
	}
	mux.HandleFunc("/health", s.handleHealth)
	return s
}

// Handle mounts a handler on the shared mux.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.InfoCF("server", "HTTP server listening", map[string]interface{}{
		"addr": s.httpServer.Addr,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.InfoC("server", "HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
