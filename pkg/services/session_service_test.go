package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxopt/ctxopt/pkg/models"
	"github.com/ctxopt/ctxopt/pkg/storage"
	"github.com/ctxopt/ctxopt/pkg/validation"
)

func newTestSessionService(t *testing.T) *SessionService {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	require.NoError(t, err)
	return NewSessionService(store)
}

var (
	testAgentsConfig    = []byte(`{"agents": [{"agent_id": "supervisor", "system_prompt": "You coordinate workers."}]}`)
	testMessagesDataset = []byte(`{"messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "name": "supervisor", "content": "hello"}]}`)
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		filename string
		maxSize  int64
		wantErr  string
	}{
		{
			name:     "valid json file",
			content:  []byte(`{"agents": []}`),
			filename: "agents.json",
		},
		{
			name:     "wrong extension",
			content:  []byte(`{}`),
			filename: "agents.yaml",
			wantErr:  "Only JSON files are allowed",
		},
		{
			name:     "uppercase extension accepted",
			content:  []byte(`{}`),
			filename: "AGENTS.JSON",
		},
		{
			name:     "oversized",
			content:  []byte(`{"agents": []}`),
			filename: "agents.json",
			maxSize:  5,
			wantErr:  "exceeds maximum allowed size",
		},
		{
			name:     "invalid json",
			content:  []byte(`{"agents": `),
			filename: "agents.json",
			wantErr:  "Invalid JSON content",
		},
		{
			name:     "invalid encoding",
			content:  []byte{0xff, 0xfe, '{', '}'},
			filename: "agents.json",
			wantErr:  "Invalid file encoding",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.content, tc.filename, tc.maxSize)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, validation.IsValidationError(err))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSessionService_CreateSession(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, testAgentsConfig, "my_agents.json", testMessagesDataset, "my_messages.json")
	require.NoError(t, err)

	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, models.StatusUploaded, session.Status)
	assert.Equal(t, storage.AgentsConfigPath, session.AgentsConfigFilename)
	assert.Equal(t, storage.MessagesDatasetPath, session.MessagesDatasetFilename)
	assert.Equal(t, "my_agents.json", session.OriginalFilenames["agents_config"])
	assert.Equal(t, "my_messages.json", session.OriginalFilenames["messages_dataset"])
	assert.True(t, session.HasFiles())

	// Both blobs and the record landed on disk.
	stored, err := svc.Store().LoadBlob(session.SessionID, storage.AgentsConfigPath)
	require.NoError(t, err)
	assert.Equal(t, testAgentsConfig, stored)

	loaded, err := svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SessionID, loaded.SessionID)
	assert.Equal(t, models.StatusUploaded, loaded.Status)
}

func TestSessionService_GetSessionNotFound(t *testing.T) {
	svc := newTestSessionService(t)

	_, err := svc.GetSession(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Contains(t, err.Error(), "no-such-session")
}

func TestSessionService_UpdateSession(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, testAgentsConfig, "a.json", testMessagesDataset, "m.json")
	require.NoError(t, err)

	before := session.UpdatedAt
	time.Sleep(time.Millisecond)

	session.Transition(models.StatusAnalyzing, "")
	require.NoError(t, svc.UpdateSession(ctx, session))

	loaded, err := svc.GetSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnalyzing, loaded.Status)
	assert.True(t, loaded.UpdatedAt.After(before))
}

func TestSessionService_DeleteSession(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, testAgentsConfig, "a.json", testMessagesDataset, "m.json")
	require.NoError(t, err)

	found, err := svc.DeleteSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.True(t, found)

	_, err = svc.GetSession(ctx, session.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	found, err = svc.DeleteSession(ctx, session.SessionID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionService_ListSessions(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		filename := fmt.Sprintf("agents_%d.json", i)
		session, err := svc.CreateSession(ctx, testAgentsConfig, filename, testMessagesDataset, "m.json")
		require.NoError(t, err)
		ids = append(ids, session.SessionID)
		time.Sleep(time.Millisecond)
	}

	// One session flips to error for filter tests.
	errored, err := svc.GetSession(ctx, ids[0])
	require.NoError(t, err)
	errored.Transition(models.StatusError, "boom happened")
	require.NoError(t, svc.UpdateSession(ctx, errored))

	t.Run("default sort is created_at desc", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 50})
		require.NoError(t, err)
		require.Len(t, list.Sessions, 5)
		for i := 1; i < len(list.Sessions); i++ {
			assert.False(t, list.Sessions[i-1].CreatedAt.Before(list.Sessions[i].CreatedAt))
		}
	})

	t.Run("status filter", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 50, StatusFilter: "error"})
		require.NoError(t, err)
		require.Len(t, list.Sessions, 1)
		assert.Equal(t, ids[0], list.Sessions[0].SessionID)
	})

	t.Run("search matches original filename", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 50, SearchQuery: "agents_3"})
		require.NoError(t, err)
		require.Len(t, list.Sessions, 1)
		assert.Equal(t, ids[3], list.Sessions[0].SessionID)
	})

	t.Run("search matches error message", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 50, SearchQuery: "BOOM"})
		require.NoError(t, err)
		require.Len(t, list.Sessions, 1)
		assert.Equal(t, ids[0], list.Sessions[0].SessionID)
	})

	t.Run("pagination", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, list.Sessions, 2)
		assert.Equal(t, 5, list.Pagination.TotalCount)
		assert.Equal(t, 3, list.Pagination.TotalPages)
		assert.Equal(t, 2, list.Pagination.CurrentPage)
		assert.True(t, list.Pagination.HasNext)
		assert.True(t, list.Pagination.HasPrevious)
	})

	t.Run("offset past end yields empty page", func(t *testing.T) {
		list, err := svc.ListSessions(ctx, ListOptions{Limit: 10, Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, list.Sessions)
		assert.False(t, list.Pagination.HasNext)
	})
}

func TestSessionService_GetStatistics(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		stats, err := svc.GetStatistics(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.TotalSessions)
		assert.Equal(t, float64(0), stats.SuccessRate)
	})

	var sessions []*models.Session
	for i := 0; i < 4; i++ {
		session, err := svc.CreateSession(ctx, testAgentsConfig, "a.json", testMessagesDataset, "m.json")
		require.NoError(t, err)
		sessions = append(sessions, session)
	}

	completed := sessions[0]
	completed.EvaluationReport = map[string]any{"overall_score": 7.0}
	completed.OptimizationResult = map[string]any{"optimized_agents": []any{}}
	completed.Transition(models.StatusCompleted, "")
	require.NoError(t, svc.UpdateSession(ctx, completed))

	analyzed := sessions[1]
	analyzed.EvaluationReport = map[string]any{"overall_score": 6.0}
	analyzed.Transition(models.StatusAnalyzed, "")
	require.NoError(t, svc.UpdateSession(ctx, analyzed))

	stats, err := svc.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalSessions)
	assert.Equal(t, 1, stats.StatusCounts["completed"])
	assert.Equal(t, 1, stats.StatusCounts["analyzed"])
	assert.Equal(t, 2, stats.StatusCounts["uploaded"])
	assert.Equal(t, 25.0, stats.SuccessRate)
	assert.Equal(t, 4, stats.RecentSessionsCount)
	assert.Equal(t, 2, stats.HasAnalysisCount)
	assert.Equal(t, 1, stats.HasOptimizationCount)
}

func TestSessionService_BulkDeleteSessions(t *testing.T) {
	svc := newTestSessionService(t)
	ctx := context.Background()

	a, err := svc.CreateSession(ctx, testAgentsConfig, "a.json", testMessagesDataset, "m.json")
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx, testAgentsConfig, "a.json", testMessagesDataset, "m.json")
	require.NoError(t, err)

	result := svc.BulkDeleteSessions(ctx, []string{a.SessionID, "missing", b.SessionID})
	assert.Equal(t, 3, result.Total)
	assert.ElementsMatch(t, []string{a.SessionID, b.SessionID}, result.Deleted)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "missing", result.Failed[0]["session_id"])
	assert.Equal(t, "Session not found", result.Failed[0]["error"])
}
