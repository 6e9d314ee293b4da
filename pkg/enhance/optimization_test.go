package enhance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxopt/ctxopt/pkg/models"
)

func optFixtures() (*models.AgentConfig, map[string]any) {
	cfg := &models.AgentConfig{Agents: []models.Agent{
		{AgentID: "a1", AgentName: "One", SystemPrompt: "prompt one",
			Tools: []models.Tool{{Name: "search", Description: "d"}}},
		{AgentID: "a2", AgentName: "Two", SystemPrompt: "prompt two"},
	}}
	evaluation := map[string]any{
		"overall_score": 6.5,
		"dimensions": []any{
			map[string]any{"name": "Prompt Clarity", "score": 5.0},
			map[string]any{"name": "Context Flow", "score": 8.0},
		},
		"priority_issues": []any{
			map[string]any{"priority": "high", "category": "Tool Integration"},
			map[string]any{"priority": "low", "category": "Style"},
		},
	}
	return cfg, evaluation
}

func TestOptimization_DefaultsInjected(t *testing.T) {
	cfg, evaluation := optFixtures()

	result, err := Optimization(map[string]any{}, cfg, evaluation)
	require.NoError(t, err)

	assert.Equal(t, []any{}, result["tool_format_recommendations"])
	assert.Equal(t, "Apply the optimized configurations to your MAS system.", result["implementation_guide"])
	assert.Equal(t, []any{}, result["expected_improvements"])
	assert.Equal(t, []any{}, result["compatibility_notes"])
}

func TestOptimization_Completeness(t *testing.T) {
	cfg, evaluation := optFixtures()

	// The LLM only optimized a1; a2 must be appended as an unmodified
	// fallback entry.
	raw := map[string]any{
		"optimized_agents": []any{
			map[string]any{
				"agent_id":                "a1",
				"optimized_system_prompt": "better prompt",
				"changes_summary":         "Tightened instructions",
			},
		},
	}

	result, err := Optimization(raw, cfg, evaluation)
	require.NoError(t, err)

	agents := result["optimized_agents"].([]any)
	require.Len(t, agents, 2)

	first := agents[0].(map[string]any)
	assert.Equal(t, "a1", first["agent_id"])
	assert.Equal(t, "One", first["agent_name"])
	assert.Equal(t, "prompt one", first["original_system_prompt"])
	assert.Equal(t, "better prompt", first["optimized_system_prompt"])
	assert.Equal(t, "Tightened instructions", first["changes_summary"])
	// Tools default to the original agent's tool list.
	tools := first["tools"].([]any)
	require.Len(t, tools, 1)
	assert.Equal(t, "search", tools[0].(map[string]any)["name"])

	second := agents[1].(map[string]any)
	assert.Equal(t, "a2", second["agent_id"])
	assert.Equal(t, "prompt two", second["optimized_system_prompt"])
	assert.Equal(t, "No optimization applied", second["changes_summary"])
}

func TestOptimization_DropsUnknownAndMalformedEntries(t *testing.T) {
	cfg, evaluation := optFixtures()

	raw := map[string]any{
		"optimized_agents": []any{
			"not an object",
			map[string]any{"agent_id": "ghost"},
			map[string]any{"no_agent_id": true},
			map[string]any{"agent_id": "a1"},
			map[string]any{"agent_id": "a1", "changes_summary": "duplicate"},
		},
	}

	result, err := Optimization(raw, cfg, evaluation)
	require.NoError(t, err)

	agents := result["optimized_agents"].([]any)
	require.Len(t, agents, 2)

	ids := make(map[string]int)
	for _, a := range agents {
		ids[a.(map[string]any)["agent_id"].(string)]++
	}
	assert.Equal(t, map[string]int{"a1": 1, "a2": 1}, ids)

	// The omitted entry got its fields filled from the original.
	first := agents[0].(map[string]any)
	assert.Equal(t, "prompt one", first["optimized_system_prompt"])
	assert.Equal(t, "No changes specified", first["changes_summary"])
}

func TestOptimization_PresentEmptyStringKept(t *testing.T) {
	cfg, evaluation := optFixtures()

	// An explicitly empty string from the LLM is a present value, not a
	// missing one; only absent keys fall back.
	raw := map[string]any{
		"optimized_agents": []any{
			map[string]any{"agent_id": "a1", "changes_summary": ""},
		},
	}

	result, err := Optimization(raw, cfg, evaluation)
	require.NoError(t, err)

	agents := result["optimized_agents"].([]any)
	first := agents[0].(map[string]any)
	assert.Equal(t, "", first["changes_summary"])
	assert.Equal(t, "prompt one", first["optimized_system_prompt"])
}

func TestOptimization_MetadataAndSummaryStats(t *testing.T) {
	cfg, evaluation := optFixtures()

	raw := map[string]any{
		"optimized_agents": []any{map[string]any{"agent_id": "a1"}},
		"tool_format_recommendations": []any{
			map[string]any{"tool_name": "search"},
		},
	}

	result, err := Optimization(raw, cfg, evaluation)
	require.NoError(t, err)

	meta := result["metadata"].(map[string]any)
	assert.Equal(t, 2, meta["original_agent_count"])
	assert.Equal(t, 2, meta["optimized_agent_count"])
	assert.Equal(t, 1, meta["tool_recommendations_count"])
	assert.Equal(t, 6.5, meta["based_on_evaluation_score"])

	stats := result["summary_stats"].(map[string]any)
	assert.Equal(t, 2, stats["agents_optimized"])
	assert.Equal(t, 1, stats["tool_recommendations"])
	assert.Equal(t, "8.5+", stats["expected_score_improvement"])
	assert.Equal(t, 6.5, stats["original_score"])
	assert.Equal(t, 1, stats["high_priority_issues_addressed"])
	// Focus areas: dimensions under 7.0 first, then high-priority categories.
	assert.Equal(t, []string{"Prompt Clarity", "Tool Integration"}, stats["optimization_focus_areas"])
}

func TestOptimization_FocusAreaDeduplication(t *testing.T) {
	cfg := &models.AgentConfig{Agents: []models.Agent{
		{AgentID: "a1", AgentName: "One", SystemPrompt: "p"},
	}}
	evaluation := map[string]any{
		"overall_score": 4.0,
		"dimensions": []any{
			map[string]any{"name": "Coordination", "score": 3.0},
		},
		"priority_issues": []any{
			map[string]any{"priority": "high", "category": "Coordination"},
			map[string]any{"priority": "high", "category": "Error Handling"},
			map[string]any{"priority": "high", "category": ""},
		},
	}

	result, err := Optimization(map[string]any{}, cfg, evaluation)
	require.NoError(t, err)

	stats := result["summary_stats"].(map[string]any)
	assert.Equal(t, []string{"Coordination", "Error Handling"}, stats["optimization_focus_areas"])
}

func TestOptimization_ListUnwrapAndBadShapes(t *testing.T) {
	cfg, evaluation := optFixtures()

	raw := []any{map[string]any{"optimized_agents": []any{}}}
	result, err := Optimization(raw, cfg, evaluation)
	require.NoError(t, err)
	assert.Len(t, result["optimized_agents"].([]any), 2)

	for _, bad := range []any{"text", 1.0, nil, []any{42.0}} {
		_, err := Optimization(bad, cfg, evaluation)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnexpectedShape)
	}
}
