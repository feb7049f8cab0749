package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/blackmichael/snippet-feed/internal/config"
	"github.com/blackmichael/snippet-feed/internal/domain"
	"github.com/blackmichael/snippet-feed/internal/metrics"
)

// Deps are the collaborators the server routes to.
type Deps struct {
	Feed       *domain.FeedService
	Generation *domain.GenerationService

	// Events serves the live update websocket. Optional.
	Events http.Handler

	// Metrics is optional; /metrics is only mounted when set.
	Metrics *metrics.Metrics
}

// Server is the HTTP server for the snippet feed API.
type Server struct {
	cfg        *config.Config
	feed       *domain.FeedService
	generation *domain.GenerationService
	metrics    *metrics.Metrics
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		feed:       deps.Feed,
		generation: deps.Generation,
		metrics:    deps.Metrics,
		logger:     logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.handle(mux, "POST /api/v1/topics", s.handleCreateTopic)
	s.handle(mux, "GET /api/v1/topics", s.handleListTopics)
	s.handle(mux, "GET /api/v1/topics/{id}", s.handleGetTopic)
	s.handle(mux, "GET /api/v1/topics/{id}/posts", s.handleTopicPosts)
	s.handle(mux, "DELETE /api/v1/topics/{id}", s.handleDeleteTopic)

	s.handle(mux, "GET /api/v1/posts", s.handleListPosts)
	s.handle(mux, "GET /api/v1/posts/{id}", s.handleGetPost)
	s.handle(mux, "PUT /api/v1/posts/{id}/feedback", s.handleUpdateFeedback)
	s.handle(mux, "POST /api/v1/posts/generate", s.handleGeneratePosts)
	s.handle(mux, "DELETE /api/v1/posts/{id}", s.handleDeletePost)

	s.handle(mux, "GET /api/v1/mobile/feed", s.handleMobileFeed)
	s.handle(mux, "PUT /api/v1/mobile/posts/{id}/feedback", s.handleMobileFeedback)
	s.handle(mux, "GET /api/v1/mobile/stats", s.handleMobileStats)
	if deps.Events != nil {
		s.handle(mux, "GET /api/v1/mobile/events", deps.Events.ServeHTTP)
	}

	s.handle(mux, "GET /api/v1/scheduler/status", s.handleSchedulerStatus)
	s.handle(mux, "POST /api/v1/scheduler/trigger", s.handleSchedulerTrigger)

	var h http.Handler = mux
	if s.metrics != nil {
		h = withMetrics(s.metrics, h)
	}
	h = withLogging(logger, h)
	h = withRequestID(h)
	s.handler = h

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     h,
		ReadTimeout: 10 * time.Second,
		// Generation requests wait on the model for each topic.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// handle registers an authenticated route.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, requireAPIKey(s.cfg.APIKey, h))
}

// Handler returns the full middleware chain, for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.generation.Status())
}

func (s *Server) handleSchedulerTrigger(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("manual post generation triggered")
	s.generate(w, r, nil)
}
