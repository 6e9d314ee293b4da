package models

// Tool describes a single tool available to an agent.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Agent is the canonical form of one agent configuration.
type Agent struct {
	AgentID      string         `json:"agent_id"`
	AgentName    string         `json:"agent_name"`
	Version      string         `json:"version,omitempty"`
	SystemPrompt string         `json:"system_prompt"`
	Tools        []Tool         `json:"tools"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// AgentConfig is the canonical form of a complete agent configuration upload.
type AgentConfig struct {
	Agents   []Agent        `json:"agents"`
	Version  string         `json:"version,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AgentByID returns the first agent with the given id, or nil.
func (c *AgentConfig) AgentByID(agentID string) *Agent {
	for i := range c.Agents {
		if c.Agents[i].AgentID == agentID {
			return &c.Agents[i]
		}
	}
	return nil
}

// AgentNames returns the display names of all agents in declaration order.
func (c *AgentConfig) AgentNames() []string {
	names := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		names[i] = a.AgentName
	}
	return names
}

// AgentIDs returns the identifiers of all agents in declaration order.
func (c *AgentConfig) AgentIDs() []string {
	ids := make([]string, len(c.Agents))
	for i, a := range c.Agents {
		ids[i] = a.AgentID
	}
	return ids
}

// ToolNames returns the set of tool names declared across all agents.
func (c *AgentConfig) ToolNames() map[string]struct{} {
	tools := make(map[string]struct{})
	for _, a := range c.Agents {
		for _, t := range a.Tools {
			tools[t.Name] = struct{}{}
		}
	}
	return tools
}
