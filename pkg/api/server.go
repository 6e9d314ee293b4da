// Package api exposes the HTTP surface: upload, analysis triggers, and
// session lifecycle endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/config"
	"github.com/ctxopt/ctxopt/pkg/llm"
	"github.com/ctxopt/ctxopt/pkg/queue"
	"github.com/ctxopt/ctxopt/pkg/services"
)

// Server is the HTTP API server.
type Server struct {
	echo            *echo.Echo
	httpServer      *http.Server
	settings        *config.Settings
	sessionService  *services.SessionService
	analysisService *services.AnalysisService
	dispatcher      *queue.Dispatcher
	cache           *llm.ResponseCache
}

// NewServer creates the API server and registers all routes.
func NewServer(settings *config.Settings, sessionService *services.SessionService, analysisService *services.AnalysisService, dispatcher *queue.Dispatcher, cache *llm.ResponseCache) *Server {
	s := &Server{
		echo:            echo.New(),
		settings:        settings,
		sessionService:  sessionService,
		analysisService: analysisService,
		dispatcher:      dispatcher,
		cache:           cache,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	e := s.echo
	e.Use(securityHeaders())
	if s.settings != nil {
		e.Use(corsHeaders(s.settings.AllowedOrigins))
	}

	e.GET("/health", s.healthHandler)

	api := e.Group("/api/v1")
	api.GET("/health", s.healthHandler)
	api.POST("/upload", s.uploadHandler)
	api.POST("/analyze", s.analyzeHandler)
	api.POST("/optimize/:id", s.optimizeHandler)

	api.GET("/sessions", s.listSessionsHandler)
	api.GET("/sessions/stats", s.sessionStatsHandler)
	api.POST("/sessions/bulk-delete", s.bulkDeleteHandler)
	api.GET("/sessions/:id", s.getSessionHandler)
	api.DELETE("/sessions/:id", s.deleteSessionHandler)
	api.GET("/sessions/:id/evaluation", s.getEvaluationHandler)
	api.GET("/sessions/:id/optimization", s.getOptimizationHandler)
	api.GET("/sessions/:id/evaluation/download", s.downloadEvaluationHandler)
	api.GET("/sessions/:id/optimization/download", s.downloadOptimizationHandler)
}

// Start begins serving on addr. Blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler { return s.echo }
