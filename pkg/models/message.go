package models

// MessageType classifies a conversation message.
type MessageType string

const (
	MessageTypeHuman  MessageType = "human"
	MessageTypeAI     MessageType = "ai"
	MessageTypeTool   MessageType = "tool"
	MessageTypeSystem MessageType = "system"
)

// ValidMessageType reports whether t is one of the canonical message types.
func ValidMessageType(t MessageType) bool {
	switch t {
	case MessageTypeHuman, MessageTypeAI, MessageTypeTool, MessageTypeSystem:
		return true
	}
	return false
}

// ToolCall is a single tool invocation recorded on an ai message.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
	Type string         `json:"type,omitempty"`
}

// Message is the canonical form of one conversation message.
type Message struct {
	Content    string         `json:"content"`
	Type       MessageType    `json:"type"`
	Name       string         `json:"name,omitempty"`
	ID         string         `json:"id"`
	Example    bool           `json:"example"`
	ToolCalls  []ToolCall     `json:"tool_calls"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Status     string         `json:"status,omitempty"`
	Artifact   map[string]any `json:"artifact,omitempty"`
}

// MessageDataset is the canonical form of a complete message dataset upload.
type MessageDataset struct {
	Messages []Message      `json:"messages"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// UniqueAgents returns the distinct agent names carried on ai-typed messages.
func (d *MessageDataset) UniqueAgents() []string {
	seen := make(map[string]struct{})
	var agents []string
	for _, m := range d.Messages {
		if m.Type != MessageTypeAI || m.Name == "" {
			continue
		}
		if _, ok := seen[m.Name]; ok {
			continue
		}
		seen[m.Name] = struct{}{}
		agents = append(agents, m.Name)
	}
	return agents
}

// UniqueTools returns the distinct tool names referenced by tool calls.
func (d *MessageDataset) UniqueTools() []string {
	seen := make(map[string]struct{})
	var tools []string
	for _, m := range d.Messages {
		for _, tc := range m.ToolCalls {
			if _, ok := seen[tc.Name]; ok {
				continue
			}
			seen[tc.Name] = struct{}{}
			tools = append(tools, tc.Name)
		}
	}
	return tools
}
