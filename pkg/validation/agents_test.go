package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxopt/ctxopt/pkg/models"
)

func TestNormalizeAgentConfig_StandardFormat(t *testing.T) {
	raw := []byte(`{
		"agents": [
			{"agent_id": "planner", "agent_name": "Planner", "system_prompt": "You plan.", "tools": []}
		]
	}`)

	cfg, err := NormalizeAgentConfig(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "planner", cfg.Agents[0].AgentID)
	assert.Equal(t, "Planner", cfg.Agents[0].AgentName)
	assert.Equal(t, "You plan.", cfg.Agents[0].SystemPrompt)
	assert.Empty(t, cfg.Agents[0].Tools)
}

func TestNormalizeAgentConfig_FormatInvariance(t *testing.T) {
	// The same agent in all three single-agent shapes must normalize
	// identically.
	inputs := map[string][]byte{
		"wrapped":     []byte(`{"agents": [{"agent_id": "a1", "system_prompt": "p"}]}`),
		"bare list":   []byte(`[{"agent_id": "a1", "system_prompt": "p"}]`),
		"bare object": []byte(`{"agent_id": "a1", "system_prompt": "p"}`),
	}

	want := &models.AgentConfig{Agents: []models.Agent{
		{AgentID: "a1", AgentName: "a1", SystemPrompt: "p", Tools: []models.Tool{}},
	}}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			cfg, err := NormalizeAgentConfig(raw)
			require.NoError(t, err)
			assert.Equal(t, want, cfg)
		})
	}
}

func TestNormalizeAgentConfig_InferredSingleAgent(t *testing.T) {
	// No agent_id key, but "id" marks this as a single-agent object.
	raw := []byte(`{"id": "solo", "name": "Solo", "prompt": "do things"}`)

	cfg, err := NormalizeAgentConfig(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "solo", cfg.Agents[0].AgentID)
	assert.Equal(t, "Solo", cfg.Agents[0].AgentName)
	assert.Equal(t, "do things", cfg.Agents[0].SystemPrompt)
}

func TestNormalizeAgentConfig_AgentDictionaryFormat(t *testing.T) {
	raw := []byte(`{
		"first": {"agent_id": "a1", "system_prompt": "p1"},
		"second": {"id": "a2", "system": "p2"}
	}`)

	cfg, err := NormalizeAgentConfig(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 2)
	// Map keys are sorted, so "first" precedes "second".
	assert.Equal(t, "a1", cfg.Agents[0].AgentID)
	assert.Equal(t, "a2", cfg.Agents[1].AgentID)
	assert.Equal(t, "p2", cfg.Agents[1].SystemPrompt)
}

func TestNormalizeAgentConfig_FieldFallbackChains(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantID     string
		wantName   string
		wantPrompt string
	}{
		{
			name:       "id fallback",
			raw:        `[{"id": "x", "system_prompt": "p"}]`,
			wantID:     "x",
			wantName:   "x",
			wantPrompt: "p",
		},
		{
			name:       "name fallback",
			raw:        `[{"agent_id": "x", "name": "Friendly", "system_prompt": "p"}]`,
			wantID:     "x",
			wantName:   "Friendly",
			wantPrompt: "p",
		},
		{
			name:       "prompt fallback",
			raw:        `[{"agent_id": "x", "prompt": "from prompt"}]`,
			wantID:     "x",
			wantName:   "x",
			wantPrompt: "from prompt",
		},
		{
			name:       "system fallback",
			raw:        `[{"agent_id": "x", "system": "from system"}]`,
			wantID:     "x",
			wantName:   "x",
			wantPrompt: "from system",
		},
		{
			name:       "primary fields win over fallbacks",
			raw:        `[{"agent_id": "x", "id": "y", "agent_name": "A", "name": "B", "system_prompt": "sp", "prompt": "pp"}]`,
			wantID:     "x",
			wantName:   "A",
			wantPrompt: "sp",
		},
		{
			name:       "null name stops the chain and falls back to id",
			raw:        `[{"agent_id": "x", "agent_name": null, "name": "B", "system_prompt": "p"}]`,
			wantID:     "x",
			wantName:   "x",
			wantPrompt: "p",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NormalizeAgentConfig([]byte(tt.raw))
			require.NoError(t, err)
			require.Len(t, cfg.Agents, 1)
			assert.Equal(t, tt.wantID, cfg.Agents[0].AgentID)
			assert.Equal(t, tt.wantName, cfg.Agents[0].AgentName)
			assert.Equal(t, tt.wantPrompt, cfg.Agents[0].SystemPrompt)
		})
	}
}

func TestNormalizeAgentConfig_Tools(t *testing.T) {
	raw := []byte(`[{
		"agent_id": "a1",
		"system_prompt": "p",
		"tools": [
			{"name": "search", "description": "Search the web", "parameters": {"type": "object"}},
			{"name": "fetch", "description": "Fetch a URL"}
		]
	}]`)

	cfg, err := NormalizeAgentConfig(raw)
	require.NoError(t, err)
	require.Len(t, cfg.Agents[0].Tools, 2)
	assert.Equal(t, "search", cfg.Agents[0].Tools[0].Name)
	assert.Equal(t, map[string]any{"type": "object"}, cfg.Agents[0].Tools[0].Parameters)
	assert.Nil(t, cfg.Agents[0].Tools[1].Parameters)
}

func TestNormalizeAgentConfig_Failures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"scalar input", `42`},
		{"uninferrable object", `{"foo": "bar"}`},
		{"values not agent-like", `{"a": {"x": 1}, "b": {"y": 2}}`},
		{"missing agent_id", `[{"system_prompt": "p"}]`},
		{"missing system_prompt", `[{"agent_id": "a1"}]`},
		{"null agent_id does not fall through to id", `[{"agent_id": null, "id": "x", "system_prompt": "p"}]`},
		{"null system_prompt does not fall through to prompt", `[{"agent_id": "a1", "system_prompt": null, "prompt": "p"}]`},
		{"agent not an object", `[42]`},
		{"empty agents list", `{"agents": []}`},
		{"agents not a list", `{"agents": "nope"}`},
		{"tool missing description", `[{"agent_id": "a1", "system_prompt": "p", "tools": [{"name": "t"}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeAgentConfig([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "expected validation error, got %T", err)
		})
	}
}

func TestNormalizeAgentConfig_Idempotent(t *testing.T) {
	raw := []byte(`{
		"agents": [
			{"agent_id": "a1", "agent_name": "One", "system_prompt": "p1",
			 "tools": [{"name": "t", "description": "d"}]},
			{"agent_id": "a2", "agent_name": "Two", "system_prompt": "p2"}
		]
	}`)

	first, err := NormalizeAgentConfig(raw)
	require.NoError(t, err)

	roundTripped := marshalJSON(t, first)
	second, err := NormalizeAgentConfig(roundTripped)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
