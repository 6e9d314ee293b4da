package api

import (
	"io"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/services"
)

// uploadHandler handles POST /api/v1/upload. It expects a multipart form
// with two JSON files: agents_config and messages_dataset.
func (s *Server) uploadHandler(c *echo.Context) error {
	maxSize := int64(0)
	if s.settings != nil {
		maxSize = s.settings.MaxFileSize
	}

	agentsContent, agentsFilename, err := s.readUploadedFile(c, "agents_config", maxSize)
	if err != nil {
		return err
	}
	messagesContent, messagesFilename, err := s.readUploadedFile(c, "messages_dataset", maxSize)
	if err != nil {
		return err
	}

	session, err := s.sessionService.CreateSession(c.Request().Context(),
		agentsContent, agentsFilename, messagesContent, messagesFilename)
	if err != nil {
		return mapServiceError(err)
	}

	return c.JSON(http.StatusOK, &UploadResponse{
		SessionID: session.SessionID,
		Status:    string(session.Status),
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Files: map[string]FileInfo{
			"agents_config":    newFileInfo(agentsFilename, agentsContent),
			"messages_dataset": newFileInfo(messagesFilename, messagesContent),
		},
		HasFiles:        session.HasFiles(),
		HasAnalysis:     session.HasAnalysis(),
		HasOptimization: session.HasOptimization(),
	})
}

// readUploadedFile pulls one named file out of the multipart form and
// validates it. Oversized files are rejected with 413 before validation.
func (s *Server) readUploadedFile(c *echo.Context, field string, maxSize int64) ([]byte, string, error) {
	file, header, err := c.Request().FormFile(field)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, ErrorBody{
			Code:    "validation_error",
			Message: "missing uploaded file: " + field,
		})
	}
	defer file.Close()

	if maxSize > 0 && header.Size > maxSize {
		return nil, "", echo.NewHTTPError(http.StatusRequestEntityTooLarge, ErrorBody{
			Code:    "validation_error",
			Message: "uploaded file too large: " + header.Filename,
		})
	}

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, "", mapServiceError(services.NewFileError("Failed to read uploaded file: %v", err))
	}

	if err := services.ValidateUpload(content, header.Filename, maxSize); err != nil {
		return nil, "", mapServiceError(err)
	}
	return content, header.Filename, nil
}
