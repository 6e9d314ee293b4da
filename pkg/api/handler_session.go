package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/models"
	"github.com/ctxopt/ctxopt/pkg/services"
)

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session id is required",
		})
	}

	session, err := s.sessionService.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, newSessionInfo(session))
}

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *echo.Context) error {
	opts := services.ListOptions{
		Limit:     50,
		SortBy:    "created_at",
		SortOrder: "desc",
	}

	// Parse pagination.
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			opts.Limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	// Parse sorting.
	if v := c.QueryParam("sort_by"); v != "" {
		switch v {
		case "created_at", "updated_at", "status":
			opts.SortBy = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
				Code:    "validation_error",
				Message: "invalid sort_by: must be created_at, updated_at, or status",
			})
		}
	}
	if v := c.QueryParam("sort_order"); v != "" {
		switch v {
		case "asc", "desc":
			opts.SortOrder = v
		default:
			return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
				Code:    "validation_error",
				Message: "invalid sort_order: must be asc or desc",
			})
		}
	}

	// Parse filters.
	if v := c.QueryParam("status"); v != "" {
		if !models.ValidSessionStatus(models.SessionStatus(v)) {
			return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
				Code:    "validation_error",
				Message: "invalid status: " + v,
			})
		}
		opts.StatusFilter = v
	}
	opts.SearchQuery = c.QueryParam("search")

	list, err := s.sessionService.ListSessions(c.Request().Context(), opts)
	if err != nil {
		return mapServiceError(err)
	}

	infos := make([]SessionInfo, len(list.Sessions))
	for i, sess := range list.Sessions {
		infos[i] = newSessionInfo(sess)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"sessions":   infos,
		"pagination": list.Pagination,
		"filters":    list.Filters,
	})
}

// sessionStatsHandler handles GET /api/v1/sessions/stats.
func (s *Server) sessionStatsHandler(c *echo.Context) error {
	stats, err := s.sessionService.GetStatistics(c.Request().Context())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// deleteSessionHandler handles DELETE /api/v1/sessions/:id.
func (s *Server) deleteSessionHandler(c *echo.Context) error {
	sessionID := c.Param("id")
	if sessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session id is required",
		})
	}

	found, err := s.sessionService.DeleteSession(c.Request().Context(), sessionID)
	if err != nil {
		return mapServiceError(err)
	}
	if !found {
		return mapServiceError(services.NewNotFoundError(sessionID))
	}

	return c.JSON(http.StatusOK, &DeleteResponse{
		Message:   "Session deleted successfully",
		SessionID: sessionID,
	})
}

// BulkDeleteRequest is the body of POST /api/v1/sessions/bulk-delete.
type BulkDeleteRequest struct {
	SessionIDs []string `json:"session_ids"`
}

// bulkDeleteHandler handles POST /api/v1/sessions/bulk-delete.
func (s *Server) bulkDeleteHandler(c *echo.Context) error {
	var req BulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "invalid request body",
		})
	}
	if len(req.SessionIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session_ids is required",
		})
	}

	result := s.sessionService.BulkDeleteSessions(c.Request().Context(), req.SessionIDs)
	return c.JSON(http.StatusOK, result)
}

// getEvaluationHandler handles GET /api/v1/sessions/:id/evaluation.
func (s *Server) getEvaluationHandler(c *echo.Context) error {
	report, err := s.loadReport(c, func(sess *models.Session) map[string]any {
		return sess.EvaluationReport
	}, "Evaluation report not found")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// getOptimizationHandler handles GET /api/v1/sessions/:id/optimization.
func (s *Server) getOptimizationHandler(c *echo.Context) error {
	result, err := s.loadReport(c, func(sess *models.Session) map[string]any {
		return sess.OptimizationResult
	}, "Optimization result not found")
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// downloadEvaluationHandler handles GET /api/v1/sessions/:id/evaluation/download.
func (s *Server) downloadEvaluationHandler(c *echo.Context) error {
	report, err := s.loadReport(c, func(sess *models.Session) map[string]any {
		return sess.EvaluationReport
	}, "Evaluation report not found")
	if err != nil {
		return err
	}
	return writeJSONAttachment(c, "evaluation_report_"+c.Param("id")+".json", report)
}

// downloadOptimizationHandler handles GET /api/v1/sessions/:id/optimization/download.
func (s *Server) downloadOptimizationHandler(c *echo.Context) error {
	result, err := s.loadReport(c, func(sess *models.Session) map[string]any {
		return sess.OptimizationResult
	}, "Optimization result not found")
	if err != nil {
		return err
	}
	return writeJSONAttachment(c, "optimization_result_"+c.Param("id")+".json", result)
}

// loadReport fetches the session and extracts one of its stored reports,
// turning an absent report into a 404.
func (s *Server) loadReport(c *echo.Context, extract func(*models.Session) map[string]any, missingMsg string) (map[string]any, error) {
	sessionID := c.Param("id")
	if sessionID == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "session id is required",
		})
	}

	session, err := s.sessionService.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		return nil, mapServiceError(err)
	}

	report := extract(session)
	if report == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, ErrorBody{
			Code:    services.CodeSessionNotFound,
			Message: missingMsg,
		})
	}
	return report, nil
}
