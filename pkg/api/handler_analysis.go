package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"
)

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	SessionID string `json:"session_id"`
}

// analyzeHandler handles POST /api/v1/analyze. The pipeline runs in the
// background; the response is an immediate acknowledgment.
func (s *Server) analyzeHandler(c *echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "invalid request body",
		})
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session_id is required",
		})
	}

	ack, err := s.analysisService.TriggerAnalysis(c.Request().Context(), req.SessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, ack)
}

// optimizeHandler handles POST /api/v1/optimize/:id. Optimization runs
// synchronously and returns the full result.
func (s *Server) optimizeHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session id is required",
		})
	}

	result, err := s.analysisService.Optimize(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, result)
}
