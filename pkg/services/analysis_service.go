package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ctxopt/ctxopt/pkg/enhance"
	"github.com/ctxopt/ctxopt/pkg/llm"
	"github.com/ctxopt/ctxopt/pkg/models"
	"github.com/ctxopt/ctxopt/pkg/storage"
	"github.com/ctxopt/ctxopt/pkg/validation"
)

// Enqueuer schedules background work keyed by session id.
type Enqueuer interface {
	Enqueue(sessionID string, task func(ctx context.Context)) error
}

// AnalysisService drives the two-pass analysis workflow: evaluation via the
// first LLM pass, optimization via the second.
type AnalysisService struct {
	sessions *SessionService
	caller   llm.Caller
	queue    Enqueuer
}

// NewAnalysisService creates an AnalysisService.
func NewAnalysisService(sessions *SessionService, caller llm.Caller, queue Enqueuer) *AnalysisService {
	return &AnalysisService{
		sessions: sessions,
		caller:   caller,
		queue:    queue,
	}
}

// AnalysisAck is the immediate response to an analysis trigger.
type AnalysisAck struct {
	SessionID             string `json:"session_id"`
	Status                string `json:"status"`
	Message               string `json:"message"`
	EstimatedTime         string `json:"estimated_time,omitempty"`
	HasEvaluationReport   bool   `json:"has_evaluation_report,omitempty"`
	HasOptimizationResult bool   `json:"has_optimization_result,omitempty"`
}

// TriggerAnalysis starts the analysis pipeline for a session in the
// background. Triggering is idempotent: a session already analyzing or
// already analyzed is acknowledged without restarting the pipeline.
func (a *AnalysisService) TriggerAnalysis(ctx context.Context, sessionID string) (*AnalysisAck, error) {
	session, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.HasFiles() {
		slog.Warn("Session files not uploaded", "session_id", sessionID)
		return nil, validation.WrapError(ErrFilesNotUploaded, "Session files not uploaded", nil)
	}

	if session.Status == models.StatusAnalyzing {
		slog.Info("Analysis already in progress", "session_id", sessionID)
		return &AnalysisAck{
			SessionID:     sessionID,
			Status:        "processing",
			Message:       "Analysis already in progress",
			EstimatedTime: "2-5 minutes",
		}, nil
	}

	if session.HasAnalysis() && session.Status != models.StatusError {
		slog.Info("Analysis already completed", "session_id", sessionID)
		return &AnalysisAck{
			SessionID:             sessionID,
			Status:                "completed",
			Message:               "Analysis already completed",
			HasEvaluationReport:   true,
			HasOptimizationResult: session.HasOptimization(),
		}, nil
	}

	session.Transition(models.StatusAnalyzing, "")
	if err := a.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := a.queue.Enqueue(sessionID, func(taskCtx context.Context) {
		a.RunPipeline(taskCtx, sessionID)
	}); err != nil {
		slog.Error("Failed to enqueue analysis", "session_id", sessionID, "error", err)
		a.markError(ctx, sessionID, err)
		return nil, err
	}

	slog.Info("Analysis started", "session_id", sessionID)
	return &AnalysisAck{
		SessionID:     sessionID,
		Status:        "processing",
		Message:       "Analysis started",
		EstimatedTime: "2-5 minutes",
	}, nil
}

// RunPipeline executes both passes for a session: evaluate, persist, then
// optimize, persist. Any failure flips the session to the error state; the
// pipeline itself never returns an error because nobody is waiting on it.
func (a *AnalysisService) RunPipeline(ctx context.Context, sessionID string) {
	slog.Info("Starting analysis", "session_id", sessionID)

	err := func() error {
		session, err := a.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}

		cfg, ds, err := a.loadInputs(session)
		if err != nil {
			return err
		}

		evaluation, err := a.evaluate(ctx, cfg, ds)
		if err != nil {
			return err
		}
		if err := a.sessions.Store().SaveJSON(sessionID, storage.EvaluationReportPath, evaluation); err != nil {
			return NewFileError("Failed to save evaluation report: %v", err)
		}
		session.EvaluationReport = evaluation
		session.Transition(models.StatusAnalyzed, "")
		if err := a.sessions.UpdateSession(ctx, session); err != nil {
			return err
		}

		session.Transition(models.StatusOptimizing, "")
		if err := a.sessions.UpdateSession(ctx, session); err != nil {
			return err
		}

		optimization, err := a.optimize(ctx, cfg, evaluation)
		if err != nil {
			return err
		}
		if err := a.sessions.Store().SaveJSON(sessionID, storage.OptimizationResultPath, optimization); err != nil {
			return NewFileError("Failed to save optimization result: %v", err)
		}
		session.OptimizationResult = optimization
		session.Transition(models.StatusCompleted, "")
		return a.sessions.UpdateSession(ctx, session)
	}()
	if err != nil {
		slog.Error("Analysis failed", "session_id", sessionID, "error", err)
		a.markError(ctx, sessionID, err)
		return
	}

	slog.Info("Analysis completed successfully", "session_id", sessionID)
}

// Optimize runs the optimization pass synchronously. The session must hold
// an evaluation report; a stored optimization result is returned as-is.
func (a *AnalysisService) Optimize(ctx context.Context, sessionID string) (map[string]any, error) {
	session, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if !session.HasAnalysis() {
		return nil, validation.WrapError(ErrAnalysisRequired, "Analysis must be completed before optimization", nil)
	}

	if session.HasOptimization() {
		slog.Info("Optimization already completed", "session_id", sessionID)
		return session.OptimizationResult, nil
	}

	cfg, _, err := a.loadInputs(session)
	if err != nil {
		return nil, err
	}

	session.Transition(models.StatusOptimizing, "")
	if err := a.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	optimization, err := a.optimize(ctx, cfg, session.EvaluationReport)
	if err != nil {
		a.markError(ctx, sessionID, err)
		return nil, err
	}

	if err := a.sessions.Store().SaveJSON(sessionID, storage.OptimizationResultPath, optimization); err != nil {
		return nil, NewFileError("Failed to save optimization result: %v", err)
	}
	session.OptimizationResult = optimization
	session.Transition(models.StatusCompleted, "")
	if err := a.sessions.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	slog.Info("Optimization completed successfully", "session_id", sessionID)
	return optimization, nil
}

// loadInputs loads, normalizes, and cross-validates the stored input files.
// Consistency warnings are logged but never block the pipeline.
func (a *AnalysisService) loadInputs(session *models.Session) (*models.AgentConfig, *models.MessageDataset, error) {
	store := a.sessions.Store()

	agentsRaw, err := store.LoadBlob(session.SessionID, session.AgentsConfigFilename)
	if err != nil {
		return nil, nil, NewFileError("Agents config file not found: %v", err)
	}
	cfg, err := validation.NormalizeAgentConfig(agentsRaw)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Agents config validated", "agents", len(cfg.Agents))

	messagesRaw, err := store.LoadBlob(session.SessionID, session.MessagesDatasetFilename)
	if err != nil {
		return nil, nil, NewFileError("Messages dataset file not found: %v", err)
	}
	ds, err := validation.NormalizeMessageDataset(messagesRaw)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Messages dataset validated", "messages", len(ds.Messages))

	report, err := validation.CrossValidate(cfg, ds)
	if err != nil {
		return nil, nil, err
	}
	for _, warning := range report.Warnings {
		slog.Warn("Consistency warning", "session_id", session.SessionID, "warning", warning)
	}

	return cfg, ds, nil
}

// evaluate runs the first LLM pass and enhances the raw result.
func (a *AnalysisService) evaluate(ctx context.Context, cfg *models.AgentConfig, ds *models.MessageDataset) (map[string]any, error) {
	slog.Info("Starting context evaluation")

	cfgJSON, err := indentJSON(cfg)
	if err != nil {
		return nil, err
	}
	dsJSON, err := indentJSON(ds)
	if err != nil {
		return nil, err
	}

	prompt := llm.BuildEvaluationPrompt(cfgJSON, dsJSON,
		len(cfg.Agents), len(ds.Messages), len(ds.UniqueTools()))

	response, err := a.caller.Call(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: llm.EvaluationSystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	raw, err := llm.ParseJSONResponse(response)
	if err != nil {
		return nil, err
	}

	evaluation, err := enhance.Evaluation(raw, cfg, ds)
	if err != nil {
		return nil, err
	}
	stampMetadata(evaluation, "analysis_timestamp")

	slog.Info("Context evaluation completed successfully")
	return evaluation, nil
}

// optimize runs the second LLM pass and enhances the raw result.
func (a *AnalysisService) optimize(ctx context.Context, cfg *models.AgentConfig, evaluation map[string]any) (map[string]any, error) {
	slog.Info("Starting context optimization")

	cfgJSON, err := indentJSON(cfg)
	if err != nil {
		return nil, err
	}
	evalJSON, err := indentJSON(evaluation)
	if err != nil {
		return nil, err
	}

	prompt := llm.BuildOptimizationPrompt(cfgJSON, evalJSON)

	response, err := a.caller.Call(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: llm.OptimizationSystemPrompt,
	})
	if err != nil {
		return nil, err
	}

	raw, err := llm.ParseJSONResponse(response)
	if err != nil {
		return nil, err
	}

	optimization, err := enhance.Optimization(raw, cfg, evaluation)
	if err != nil {
		return nil, err
	}
	stampMetadata(optimization, "optimization_timestamp")

	slog.Info("Context optimization completed successfully")
	return optimization, nil
}

// markError flips the session into the error state. Failures here are logged
// and swallowed: the original error matters more than the bookkeeping.
func (a *AnalysisService) markError(ctx context.Context, sessionID string, cause error) {
	session, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		slog.Error("Failed to load session for error update", "session_id", sessionID, "error", err)
		return
	}
	session.Transition(models.StatusError, cause.Error())
	if err := a.sessions.UpdateSession(ctx, session); err != nil {
		slog.Error("Failed to update session error status", "session_id", sessionID, "error", err)
	}
}

// stampMetadata overwrites the placeholder timestamp with the real one.
func stampMetadata(result map[string]any, field string) {
	if meta, ok := result["metadata"].(map[string]any); ok {
		meta[field] = time.Now().UTC().Format(time.RFC3339)
	}
}

func indentJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", NewFileError("Failed to encode payload: %v", err)
	}
	return string(data), nil
}
