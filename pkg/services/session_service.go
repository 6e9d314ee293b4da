package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ctxopt/ctxopt/pkg/models"
	"github.com/ctxopt/ctxopt/pkg/storage"
	"github.com/ctxopt/ctxopt/pkg/validation"
)

// SessionService manages analysis session lifecycle
type SessionService struct {
	store *storage.Store
}

// NewSessionService creates a new SessionService
func NewSessionService(store *storage.Store) *SessionService {
	return &SessionService{store: store}
}

// Store exposes the underlying blob store for services that share it.
func (s *SessionService) Store() *storage.Store { return s.store }

// ValidateUpload rejects files that are not plausible JSON inputs: wrong
// extension, oversized, non-UTF-8, or unparseable content.
func ValidateUpload(content []byte, filename string, maxSize int64) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".json") {
		return validation.NewError(
			fmt.Sprintf("Invalid file type. Only JSON files are allowed: %s", filename), nil)
	}
	if maxSize > 0 && int64(len(content)) > maxSize {
		return validation.NewError(
			fmt.Sprintf("File size %d exceeds maximum allowed size %d", len(content), maxSize), nil)
	}
	if !utf8.Valid(content) {
		return validation.NewError(
			fmt.Sprintf("Invalid file encoding in file %s", filename), nil)
	}
	if !json.Valid(content) {
		return validation.NewError(
			fmt.Sprintf("Invalid JSON content in file %s", filename), nil)
	}
	return nil
}

// CreateSession creates a new session and stores both uploaded input files.
// On any failure the partially created session directory is removed.
func (s *SessionService) CreateSession(ctx context.Context, agentsConfig []byte, agentsConfigFilename string, messagesDataset []byte, messagesDatasetFilename string) (*models.Session, error) {
	sessionID := uuid.New().String()
	session := models.NewSession(sessionID)

	err := func() error {
		if err := s.store.SaveBlob(sessionID, storage.AgentsConfigPath, agentsConfig); err != nil {
			return err
		}
		if err := s.store.SaveBlob(sessionID, storage.MessagesDatasetPath, messagesDataset); err != nil {
			return err
		}

		session.AgentsConfigFilename = storage.AgentsConfigPath
		session.MessagesDatasetFilename = storage.MessagesDatasetPath
		session.Status = models.StatusUploaded
		session.OriginalFilenames = map[string]string{
			"agents_config":    agentsConfigFilename,
			"messages_dataset": messagesDatasetFilename,
		}

		return s.store.SaveJSON(sessionID, storage.SessionRecordPath, session)
	}()
	if err != nil {
		slog.Error("Failed to create session with uploaded files", "error", err)
		if _, delErr := s.store.DeleteSession(sessionID); delErr != nil {
			slog.Error("Failed to clean up session directory", "session_id", sessionID, "error", delErr)
		}
		return nil, NewFileError("Failed to create session: %v", err)
	}

	slog.Info("Created new session with uploaded files", "session_id", sessionID)
	return session, nil
}

// GetSession loads a session record by id.
func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	if !s.store.Exists(sessionID, storage.SessionRecordPath) {
		return nil, NewNotFoundError(sessionID)
	}

	var session models.Session
	if err := s.store.LoadJSON(sessionID, storage.SessionRecordPath, &session); err != nil {
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		return nil, NewFileError("Failed to load session: %v", err)
	}
	return &session, nil
}

// UpdateSession stamps the update time and persists the session record.
func (s *SessionService) UpdateSession(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveJSON(session.SessionID, storage.SessionRecordPath, session); err != nil {
		return NewFileError("Failed to save session: %v", err)
	}
	slog.Debug("Updated session", "session_id", session.SessionID)
	return nil
}

// DeleteSession removes a session and all of its files. Returns false when
// the session does not exist.
func (s *SessionService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	found, err := s.store.DeleteSession(sessionID)
	if err != nil {
		slog.Error("Failed to delete session", "session_id", sessionID, "error", err)
		return false, NewFileError("Failed to delete session: %v", err)
	}
	if found {
		slog.Info("Deleted session", "session_id", sessionID)
	} else {
		slog.Warn("Session directory not found", "session_id", sessionID)
	}
	return found, nil
}

// ListOptions controls session listing.
type ListOptions struct {
	Limit        int
	Offset       int
	StatusFilter string
	SearchQuery  string
	SortBy       string // created_at, updated_at, status
	SortOrder    string // asc, desc
}

// Pagination describes one page of a filtered listing.
type Pagination struct {
	TotalCount  int  `json:"total_count"`
	TotalPages  int  `json:"total_pages"`
	CurrentPage int  `json:"current_page"`
	PageSize    int  `json:"page_size"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// SessionList is the envelope returned by ListSessions.
type SessionList struct {
	Sessions   []*models.Session `json:"sessions"`
	Pagination Pagination        `json:"pagination"`
	Filters    map[string]any    `json:"filters"`
}

// ListSessions loads all session records, applies filters, sorting, and
// pagination, and returns the envelope. Unreadable records are skipped.
func (s *SessionService) ListSessions(ctx context.Context, opts ListOptions) (*SessionList, error) {
	if opts.SortBy == "" {
		opts.SortBy = "created_at"
	}
	if opts.SortOrder == "" {
		opts.SortOrder = "desc"
	}

	sessions, err := s.loadAllSessions()
	if err != nil {
		return nil, err
	}

	filtered := sessions
	if opts.StatusFilter != "" {
		filtered = filterSessions(filtered, func(sess *models.Session) bool {
			return string(sess.Status) == opts.StatusFilter
		})
	}
	if opts.SearchQuery != "" {
		query := strings.ToLower(opts.SearchQuery)
		filtered = filterSessions(filtered, func(sess *models.Session) bool {
			return matchesQuery(sess, query)
		})
	}

	sortSessions(filtered, opts.SortBy, opts.SortOrder)

	totalCount := len(filtered)
	totalPages := 1
	currentPage := 1
	page := filtered
	if opts.Limit > 0 {
		totalPages = (totalCount + opts.Limit - 1) / opts.Limit
		currentPage = (opts.Offset / opts.Limit) + 1
		start := opts.Offset
		if start > totalCount {
			start = totalCount
		}
		end := start + opts.Limit
		if end > totalCount {
			end = totalCount
		}
		page = filtered[start:end]
	}

	slog.Info("Listed sessions", "returned", len(page), "total", totalCount)

	return &SessionList{
		Sessions: page,
		Pagination: Pagination{
			TotalCount:  totalCount,
			TotalPages:  totalPages,
			CurrentPage: currentPage,
			PageSize:    opts.Limit,
			HasNext:     opts.Limit > 0 && opts.Offset+opts.Limit < totalCount,
			HasPrevious: opts.Offset > 0,
		},
		Filters: map[string]any{
			"status_filter": opts.StatusFilter,
			"search_query":  opts.SearchQuery,
			"sort_by":       opts.SortBy,
			"sort_order":    opts.SortOrder,
		},
	}, nil
}

// Statistics summarizes the stored sessions.
type Statistics struct {
	TotalSessions        int            `json:"total_sessions"`
	StatusCounts         map[string]int `json:"status_counts"`
	SuccessRate          float64        `json:"success_rate"`
	RecentSessionsCount  int            `json:"recent_sessions_count"`
	HasAnalysisCount     int            `json:"has_analysis_count"`
	HasOptimizationCount int            `json:"has_optimization_count"`
}

// GetStatistics computes aggregate counts over all stored sessions. Recent
// activity covers the last 7 days.
func (s *SessionService) GetStatistics(ctx context.Context) (*Statistics, error) {
	sessions, err := s.loadAllSessions()
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalSessions: len(sessions),
		StatusCounts:  make(map[string]int),
	}

	sevenDaysAgo := time.Now().UTC().AddDate(0, 0, -7)
	for _, sess := range sessions {
		stats.StatusCounts[string(sess.Status)]++
		if !sess.CreatedAt.Before(sevenDaysAgo) {
			stats.RecentSessionsCount++
		}
		if sess.HasAnalysis() {
			stats.HasAnalysisCount++
		}
		if sess.HasOptimization() {
			stats.HasOptimizationCount++
		}
	}

	if stats.TotalSessions > 0 {
		rate := float64(stats.StatusCounts[string(models.StatusCompleted)]) / float64(stats.TotalSessions) * 100
		// Round to one decimal place.
		stats.SuccessRate = float64(int(rate*10+0.5)) / 10
	}

	slog.Info("Generated session statistics", "total_sessions", stats.TotalSessions)
	return stats, nil
}

// BulkDeleteResult reports the outcome of a bulk delete.
type BulkDeleteResult struct {
	Deleted []string         `json:"deleted"`
	Failed  []map[string]any `json:"failed"`
	Total   int              `json:"total"`
}

// BulkDeleteSessions deletes each listed session, collecting per-id outcomes
// instead of failing the batch.
func (s *SessionService) BulkDeleteSessions(ctx context.Context, sessionIDs []string) *BulkDeleteResult {
	result := &BulkDeleteResult{
		Deleted: []string{},
		Failed:  []map[string]any{},
		Total:   len(sessionIDs),
	}

	for _, id := range sessionIDs {
		found, err := s.DeleteSession(ctx, id)
		switch {
		case err != nil:
			result.Failed = append(result.Failed, map[string]any{"session_id": id, "error": err.Error()})
		case !found:
			result.Failed = append(result.Failed, map[string]any{"session_id": id, "error": "Session not found"})
		default:
			result.Deleted = append(result.Deleted, id)
		}
	}

	slog.Info("Bulk delete completed", "deleted", len(result.Deleted), "failed", len(result.Failed))
	return result
}

func (s *SessionService) loadAllSessions() ([]*models.Session, error) {
	ids, err := s.store.ListSessionIDs()
	if err != nil {
		return nil, NewFileError("Failed to list sessions: %v", err)
	}

	sessions := make([]*models.Session, 0, len(ids))
	for _, id := range ids {
		var sess models.Session
		if err := s.store.LoadJSON(id, storage.SessionRecordPath, &sess); err != nil {
			slog.Warn("Failed to load session record", "session_id", id, "error", err)
			continue
		}
		sessions = append(sessions, &sess)
	}
	return sessions, nil
}

func filterSessions(sessions []*models.Session, keep func(*models.Session) bool) []*models.Session {
	out := make([]*models.Session, 0, len(sessions))
	for _, s := range sessions {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

// matchesQuery checks the session id, original filenames, and error message
// for a case-insensitive substring match.
func matchesQuery(sess *models.Session, query string) bool {
	if strings.Contains(strings.ToLower(sess.SessionID), query) {
		return true
	}
	for _, filename := range sess.OriginalFilenames {
		if strings.Contains(strings.ToLower(filename), query) {
			return true
		}
	}
	return sess.ErrorMessage != "" && strings.Contains(strings.ToLower(sess.ErrorMessage), query)
}

func sortSessions(sessions []*models.Session, sortBy, sortOrder string) {
	desc := strings.EqualFold(sortOrder, "desc")
	less := func(a, b *models.Session) bool {
		switch sortBy {
		case "updated_at":
			return a.UpdatedAt.Before(b.UpdatedAt)
		case "status":
			return a.Status < b.Status
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if desc {
			return less(sessions[j], sessions[i])
		}
		return less(sessions[i], sessions[j])
	})
}
