package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/version"
)

// healthHandler handles GET /health and GET /api/v1/health.
// Only the service's own components (queue, cache) are reported; the LLM
// provider is deliberately excluded so an upstream outage does not get this
// process restarted.
func (s *Server) healthHandler(c *echo.Context) error {
	resp := &HealthResponse{
		Status:      "ok",
		Version:     version.Version,
		Environment: "production",
	}
	if s.settings != nil && s.settings.Debug {
		resp.Environment = "development"
	}
	if s.dispatcher != nil {
		resp.Queue = &QueueHealth{
			ActiveTasks: s.dispatcher.ActiveCount(),
			QueueDepth:  s.dispatcher.QueueDepth(),
		}
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		resp.Cache = &stats
	}
	return c.JSON(http.StatusOK, resp)
}
