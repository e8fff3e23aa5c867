package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// StatusSource exposes the runtime state the status endpoint reports.
type StatusSource interface {
	IsConnected() bool
}

// WebhookStats exposes webhook cache counters for the status endpoint.
type WebhookStats interface {
	CachedCount() int
}

// Server is the small health/status HTTP sidecar used by uptime monitors.
type Server struct {
	httpServer *http.Server
	platform   StatusSource
	webhooks   WebhookStats
}

// NewServer builds the health server on the given port.
func NewServer(port int, platform StatusSource, webhooks WebhookStats) *Server {
	s := &Server{
		platform: platform,
		webhooks: webhooks,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleHome)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("🌐 Health API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("health API failed: %v", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "Bot is running!")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "Health Check: OK")
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{
		"connected":       s.platform.IsConnected(),
		"cached_webhooks": s.webhooks.CachedCount(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("⚠️ Failed to encode status response: %v", err)
	}
}
