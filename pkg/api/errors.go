package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/llm"
	"github.com/ctxopt/ctxopt/pkg/services"
	"github.com/ctxopt/ctxopt/pkg/validation"
)

// ErrorBody is the JSON payload of every error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mapServiceError maps service-layer errors to HTTP error responses with
// stable error codes.
func mapServiceError(err error) *echo.HTTPError {
	var consErr *validation.ConsistencyError
	if errors.As(err, &consErr) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    validation.ConsistencyErrorCode,
			Message: consErr.Error(),
		})
	}
	if validation.IsValidationError(err) {
		return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    validation.ErrorCode,
			Message: err.Error(),
		})
	}
	if errors.Is(err, services.ErrSessionNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, ErrorBody{
			Code:    services.CodeSessionNotFound,
			Message: err.Error(),
		})
	}
	if llm.IsServiceError(err) {
		slog.Error("LLM service error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
			Code:    llm.ErrorCode,
			Message: err.Error(),
		})
	}
	if services.IsFileError(err) {
		slog.Error("File processing error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
			Code:    services.CodeFileProcessing,
			Message: err.Error(),
		})
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, ErrorBody{
		Code:    "internal_error",
		Message: "internal server error",
	})
}
