package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/ctxopt/ctxopt/pkg/llm"
	"github.com/ctxopt/ctxopt/pkg/models"
	"github.com/ctxopt/ctxopt/pkg/services"
)

// FileInfo describes one uploaded file.
type FileInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int    `json:"size_bytes"`
	SizeHuman string `json:"size_human"`
}

// UploadResponse is returned by POST /api/v1/upload.
type UploadResponse struct {
	SessionID       string              `json:"session_id"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Files           map[string]FileInfo `json:"files"`
	HasFiles        bool                `json:"has_files"`
	HasAnalysis     bool                `json:"has_analysis"`
	HasOptimization bool                `json:"has_optimization"`
}

// SessionInfo is the public view of a session record.
type SessionInfo struct {
	SessionID       string            `json:"session_id"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	HasFiles        bool              `json:"has_files"`
	HasAnalysis     bool              `json:"has_analysis"`
	HasOptimization bool              `json:"has_optimization"`
	OriginalFiles   map[string]string `json:"original_filenames,omitempty"`
	ErrorMessage    string            `json:"error_message,omitempty"`
}

// newSessionInfo projects a session record into its public view.
func newSessionInfo(s *models.Session) SessionInfo {
	return SessionInfo{
		SessionID:       s.SessionID,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		HasFiles:        s.HasFiles(),
		HasAnalysis:     s.HasAnalysis(),
		HasOptimization: s.HasOptimization(),
		OriginalFiles:   s.OriginalFilenames,
		ErrorMessage:    s.ErrorMessage,
	}
}

// DeleteResponse is returned by DELETE /api/v1/sessions/:id.
type DeleteResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status      string          `json:"status"`
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	Queue       *QueueHealth    `json:"queue,omitempty"`
	Cache       *llm.CacheStats `json:"cache,omitempty"`
}

// QueueHealth reports dispatcher load.
type QueueHealth struct {
	ActiveTasks int `json:"active_tasks"`
	QueueDepth  int `json:"queue_depth"`
}

func formatFileSize(size int) string {
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", size)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(size)/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", float64(size)/(1024*1024))
	default:
		return fmt.Sprintf("%.1f GB", float64(size)/(1024*1024*1024))
	}
}

func newFileInfo(filename string, content []byte) FileInfo {
	return FileInfo{
		Filename:  filename,
		SizeBytes: len(content),
		SizeHuman: formatFileSize(len(content)),
	}
}

// writeJSONAttachment serves a report as a downloadable JSON file.
func writeJSONAttachment(c *echo.Context, filename string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mapServiceError(services.NewFileError("Failed to encode report: %v", err))
	}
	c.Response().Header().Set("Content-Disposition", "attachment; filename="+filename)
	return c.Blob(http.StatusOK, "application/json", data)
}
