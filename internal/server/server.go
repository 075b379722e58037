// Package server provides the HTTP server of palak: the REST API, the live
// eye feed and the camera preview.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/logger"
	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/server/api"
	"github.com/ayusman/palak/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       *app.App
}

// Server represents the HTTP server for the palak application.
type Server struct {
	config Config
	mux    *http.ServeMux
	hub    *Hub
	start  time.Time
	log    *logger.Logger
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		hub:    NewHub(),
		start:  time.Now(),
		log:    logger.With("server"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		var plugins *plugin.Manager
		var controller api.BlinkController
		var runner api.ActionRunner
		if s.config.App != nil {
			plugins = s.config.App.PluginManager()
			controller = s.config.App
			runner = s.config.App
		}

		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		actions := api.NewActionHandler(s.config.Store, plugins, runner)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)

		s.mux.Handle("/api/settings", api.NewSettingsHandler(s.config.Store, controller))
	}

	if s.config.App != nil {
		s.config.App.Subscribe(s.hub.Publish)
		s.config.App.OnBlink(s.hub.PublishBlink)

		s.mux.Handle("/api/eyes", s.hub)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
		s.mux.HandleFunc("/api/stats", s.handleStats)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// Hub returns the live eye feed hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["enabled"] = s.config.App.IsEnabled()
	}

	writeJSON(w, response)
}

// handleStats handles GET requests to /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.config.App.Stats()
	writeJSON(w, map[string]interface{}{
		"stats":      stats,
		"blinks":     stats.Blinks(),
		"ws_clients": s.hub.Clients(),
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
