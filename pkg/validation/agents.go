// Package validation implements the tolerant normalization of client-supplied
// agent configurations and message datasets into their canonical forms, plus
// cross-validation between the two artifacts.
//
// Clients send heterogeneous JSON shapes; normalization runs an ordered
// sequence of shape-detection predicates and per-field fallback chains. The
// order of the predicates is a contract: changing it changes which shape wins
// for ambiguous inputs.
package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ctxopt/ctxopt/pkg/models"
)

// NormalizeAgentConfig parses raw JSON into the canonical AgentConfig.
//
// Accepted shapes, tried in order:
//  1. {"agents": [...]}               — standard
//  2. [ {...}, {...} ]                — bare list of agents
//  3. {"agent_id": ...}               — single agent
//  4. {"id"|"name"|"agent_name": ...} — inferred single agent
//  5. {"k1": {agent}, "k2": {agent}}  — map of agent-like objects
func NormalizeAgentConfig(raw []byte) (*models.AgentConfig, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, NewError(fmt.Sprintf("Invalid agents configuration: %v", err), nil)
	}
	return NormalizeAgentConfigValue(data)
}

// NormalizeAgentConfigValue normalizes an already-decoded JSON value.
func NormalizeAgentConfigValue(data any) (*models.AgentConfig, error) {
	candidates, err := inferAgentsFormat(data)
	if err != nil {
		return nil, err
	}

	agents := make([]models.Agent, 0, len(candidates))
	for i, candidate := range candidates {
		obj, ok := candidate.(map[string]any)
		if !ok {
			return nil, NewError(fmt.Sprintf("Agent %d is not a valid object", i), nil)
		}
		agent, err := normalizeAgentFields(obj, i)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	if len(agents) == 0 {
		return nil, NewError("Agents configuration contains no agents", nil)
	}

	return &models.AgentConfig{Agents: agents}, nil
}

// inferAgentsFormat applies the ordered shape-detection predicates and returns
// the candidate agent objects.
func inferAgentsFormat(data any) ([]any, error) {
	switch v := data.(type) {
	case []any:
		slog.Debug("Processing agents config in direct list format")
		return v, nil
	case map[string]any:
		if agents, ok := v["agents"]; ok {
			slog.Debug("Processing agents config in standard format")
			list, ok := agents.([]any)
			if !ok {
				return nil, NewError("Agents configuration 'agents' must be a list", nil)
			}
			return list, nil
		}
		if _, ok := v["agent_id"]; ok {
			slog.Debug("Processing agents config in single agent format")
			return []any{v}, nil
		}
		for _, key := range []string{"id", "name", "agent_name"} {
			if _, ok := v[key]; ok {
				slog.Debug("Inferred single agent format from keys")
				return []any{v}, nil
			}
		}
		// Map-of-agents shape: values that look like agent objects.
		// Keys are sorted so the resulting agent order is deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var agentLike []any
		for _, k := range keys {
			obj, ok := v[k].(map[string]any)
			if !ok {
				continue
			}
			if _, hasID := obj["agent_id"]; hasID {
				agentLike = append(agentLike, obj)
				continue
			}
			if _, hasID := obj["id"]; hasID {
				agentLike = append(agentLike, obj)
			}
		}
		if len(agentLike) > 0 {
			slog.Debug("Inferred agent dictionary format", "count", len(agentLike))
			return agentLike, nil
		}
		return nil, NewError("Could not infer agents configuration format", nil)
	default:
		return nil, NewError("Invalid agents configuration format", nil)
	}
}

// normalizeAgentFields resolves each canonical field through its fallback
// chain: agent_id ← [agent_id, id], agent_name ← [agent_name, name] with the
// id as a last resort, system_prompt ← [system_prompt, prompt, system].
func normalizeAgentFields(obj map[string]any, index int) (models.Agent, error) {
	var agent models.Agent

	agentID, ok := firstString(obj, "agent_id", "id")
	if !ok {
		return agent, NewError(fmt.Sprintf("Agent %d missing required field: agent_id", index), nil)
	}
	agent.AgentID = agentID

	if name, ok := firstString(obj, "agent_name", "name"); ok {
		agent.AgentName = name
	} else {
		agent.AgentName = agentID
		slog.Debug("Using agent_id as agent_name", "index", index)
	}

	prompt, ok := firstString(obj, "system_prompt", "prompt", "system")
	if !ok {
		return agent, NewError(fmt.Sprintf("Agent %d missing required field: system_prompt", index), nil)
	}
	agent.SystemPrompt = prompt

	tools, err := normalizeAgentTools(obj["tools"], index)
	if err != nil {
		return agent, err
	}
	agent.Tools = tools

	return agent, nil
}

// normalizeAgentTools parses the tools list into strict Tool descriptors.
// A missing tools field yields an empty list.
func normalizeAgentTools(raw any, agentIndex int) ([]models.Tool, error) {
	if raw == nil {
		return []models.Tool{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, NewError(fmt.Sprintf("Agent %d tools must be a list", agentIndex), nil)
	}

	tools := make([]models.Tool, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewError(fmt.Sprintf("Agent %d tool %d is not a valid object", agentIndex, i), nil)
		}
		name, ok := obj["name"].(string)
		if !ok || name == "" {
			return nil, NewError(fmt.Sprintf("Agent %d tool %d missing required field: name", agentIndex, i), nil)
		}
		desc, ok := obj["description"].(string)
		if !ok {
			return nil, NewError(fmt.Sprintf("Agent %d tool %d missing required field: description", agentIndex, i), nil)
		}
		tool := models.Tool{Name: name, Description: desc}
		if params, ok := obj["parameters"].(map[string]any); ok {
			tool.Parameters = params
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// firstString walks the fallback chain and stops at the first key present in
// the object: its value is used if it is a string, and otherwise the field
// counts as missing. An explicit null never falls through to later keys.
func firstString(obj map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			s, isString := v.(string)
			return s, isString
		}
	}
	return "", false
}
