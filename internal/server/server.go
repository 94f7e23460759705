package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iTrooz/ask-relay/internal/config"
	"github.com/iTrooz/ask-relay/internal/relay"
)

// Relay is the behaviour the HTTP handlers expose
type Relay interface {
	Fetch(ctx context.Context, req relay.FetchRequest) error
	Ask(ctx context.Context, question string) (string, error)
	Ready(ctx context.Context) error
}

const readyTimeout = 2 * time.Second

// Server represents the relay HTTP server
type Server struct {
	config     *config.Config
	relay      Relay
	httpServer *http.Server
}

// New creates a new relay server
func New(cfg *config.Config, r Relay) (*Server, error) {
	fetchTimeout, err := cfg.GetFetchTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid fetch timeout: %w", err)
	}
	llmTimeout, err := cfg.GetLLMTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid llm timeout: %w", err)
	}

	s := &Server{
		config: cfg,
		relay:  r,
	}
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// A request may wait on one upstream call plus one model call
		WriteTimeout: max(fetchTimeout, llmTimeout) + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routes of the relay wrapped in request logging
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/fetch", s.handleFetch)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", s.handleReady)
	return logRequests(mux)
}

// Start starts the relay server and blocks until it stops
func (s *Server) Start() error {
	logrus.Infof("Starting relay on port %d", s.config.Server.Port)
	logrus.Infof("Cache backend: %s", s.config.Cache.Backend)
	logrus.Infof("Rules mode: %s", s.config.Rules.Mode)
	logrus.Infof("Model: %s at %s", s.config.LLM.Model, s.config.LLM.BaseURL)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	logrus.Infof("Shutting down relay")
	return s.httpServer.Shutdown(ctx)
}
