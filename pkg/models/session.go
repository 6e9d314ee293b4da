package models

import "time"

// SessionStatus is the lifecycle state of an analysis session.
type SessionStatus string

const (
	StatusCreated    SessionStatus = "created"
	StatusUploaded   SessionStatus = "uploaded"
	StatusAnalyzing  SessionStatus = "analyzing"
	StatusAnalyzed   SessionStatus = "analyzed"
	StatusOptimizing SessionStatus = "optimizing"
	StatusCompleted  SessionStatus = "completed"
	StatusError      SessionStatus = "error"
)

// ValidSessionStatus reports whether s is a known session status.
func ValidSessionStatus(s SessionStatus) bool {
	switch s {
	case StatusCreated, StatusUploaded, StatusAnalyzing, StatusAnalyzed,
		StatusOptimizing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// Session is the durable record of one upload-analyze-optimize workflow.
type Session struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	AgentsConfigFilename    string            `json:"agents_config_filename,omitempty"`
	MessagesDatasetFilename string            `json:"messages_dataset_filename,omitempty"`
	OriginalFilenames       map[string]string `json:"original_filenames,omitempty"`

	EvaluationReport   map[string]any `json:"evaluation_report,omitempty"`
	OptimizationResult map[string]any `json:"optimization_result,omitempty"`

	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorDetails map[string]any `json:"error_details,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewSession returns a session in the created state with both timestamps set.
func NewSession(sessionID string) *Session {
	now := time.Now().UTC()
	return &Session{
		SessionID:         sessionID,
		Status:            StatusCreated,
		CreatedAt:         now,
		UpdatedAt:         now,
		OriginalFilenames: map[string]string{},
	}
}

// Transition moves the session to the target status and stamps the update
// time. A non-empty error message forces the status to error regardless of
// the requested target and records the message.
func (s *Session) Transition(target SessionStatus, errorMessage string) {
	s.Status = target
	s.UpdatedAt = time.Now().UTC()
	if errorMessage != "" {
		s.ErrorMessage = errorMessage
		if target != StatusError {
			s.Status = StatusError
		}
	}
}

// IsCompleted reports whether the session reached the completed state.
func (s *Session) IsCompleted() bool { return s.Status == StatusCompleted }

// IsError reports whether the session is in the error state.
func (s *Session) IsError() bool { return s.Status == StatusError }

// HasFiles reports whether both input artifacts have been stored.
func (s *Session) HasFiles() bool {
	return s.AgentsConfigFilename != "" && s.MessagesDatasetFilename != ""
}

// HasAnalysis reports whether an evaluation report is stored on the session.
func (s *Session) HasAnalysis() bool { return s.EvaluationReport != nil }

// HasOptimization reports whether an optimization result is stored.
func (s *Session) HasOptimization() bool { return s.OptimizationResult != nil }
