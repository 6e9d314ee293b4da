package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ctxopt/ctxopt/pkg/models"
)

// roleToType maps client role strings onto canonical message types.
// Unrecognized roles default to ai.
var roleToType = map[string]models.MessageType{
	"user":      models.MessageTypeHuman,
	"assistant": models.MessageTypeAI,
	"ai":        models.MessageTypeAI,
	"system":    models.MessageTypeSystem,
	"tool":      models.MessageTypeTool,
	"function":  models.MessageTypeTool,
}

// NormalizeMessageDataset parses raw JSON into the canonical MessageDataset.
//
// Accepted shapes, tried in order:
//  1. {"messages": [...]}                           — standard
//  2. [ {...}, {...} ]                              — bare list
//  3. {"conversations": [{"messages": [...]}, ...]} — flattened in order
func NormalizeMessageDataset(raw []byte) (*models.MessageDataset, error) {
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, NewError(fmt.Sprintf("Invalid messages dataset: %v", err), nil)
	}
	return NormalizeMessageDatasetValue(data)
}

// NormalizeMessageDatasetValue normalizes an already-decoded JSON value.
func NormalizeMessageDatasetValue(data any) (*models.MessageDataset, error) {
	list, err := inferMessagesFormat(data)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, NewError("Messages dataset is empty", nil)
	}

	messages := make([]models.Message, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, NewError(fmt.Sprintf("Message %d is not a valid object", i), nil)
		}
		msg, err := normalizeMessageFields(obj, i)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return &models.MessageDataset{Messages: messages}, nil
}

func inferMessagesFormat(data any) ([]any, error) {
	switch v := data.(type) {
	case []any:
		slog.Debug("Processing messages in direct list format")
		return v, nil
	case map[string]any:
		if messages, ok := v["messages"]; ok {
			slog.Debug("Processing messages in standard format")
			list, ok := messages.([]any)
			if !ok {
				return nil, NewError("Messages must be a list", nil)
			}
			return list, nil
		}
		if conversations, ok := v["conversations"]; ok {
			convList, ok := conversations.([]any)
			if !ok {
				return nil, NewError("Conversations must be a list", nil)
			}
			var all []any
			for _, conv := range convList {
				obj, ok := conv.(map[string]any)
				if !ok {
					continue
				}
				if nested, ok := obj["messages"].([]any); ok {
					all = append(all, nested...)
				}
			}
			slog.Debug("Flattened conversations", "conversations", len(convList), "messages", len(all))
			return all, nil
		}
		return nil, NewError("Messages dataset missing 'messages' or 'conversations' key", nil)
	default:
		return nil, NewError("Messages dataset must be a JSON object or array", nil)
	}
}

func normalizeMessageFields(obj map[string]any, index int) (models.Message, error) {
	var msg models.Message

	if id, ok := obj["id"].(string); ok {
		msg.ID = id
	} else if _, present := obj["id"]; present {
		return msg, NewError(fmt.Sprintf("Message %d has a non-string id", index), nil)
	} else {
		msg.ID = fmt.Sprintf("msg_%d", index)
	}

	if content, ok := obj["content"].(string); ok {
		msg.Content = content
	} else if v, present := obj["content"]; present && v != nil {
		return msg, NewError(fmt.Sprintf("Message %d has non-string content", index), nil)
	}

	msgType, err := resolveMessageType(obj, index)
	if err != nil {
		return msg, err
	}
	msg.Type = msgType

	if name, ok := obj["name"].(string); ok {
		msg.Name = name
	}
	if example, ok := obj["example"].(bool); ok {
		msg.Example = example
	}
	if tcID, ok := obj["tool_call_id"].(string); ok {
		msg.ToolCallID = tcID
	}

	// Infer a name when the client supplied none: ai messages keep a
	// non-assistant role as the agent name, tool messages fall back to
	// tool_name.
	if msg.Name == "" {
		if role, ok := obj["role"].(string); ok && msg.Type == models.MessageTypeAI && role != "assistant" {
			msg.Name = role
		} else if toolName, ok := obj["tool_name"].(string); ok && msg.Type == models.MessageTypeTool {
			msg.Name = toolName
		}
	}

	msg.ToolCalls = normalizeToolCalls(obj["tool_calls"])

	return msg, nil
}

// resolveMessageType picks an explicit type verbatim, or derives one from the
// role mapping; the result must be one of the four canonical types.
func resolveMessageType(obj map[string]any, index int) (models.MessageType, error) {
	var msgType models.MessageType

	if rawType, present := obj["type"]; present {
		s, ok := rawType.(string)
		if !ok {
			return "", NewError(fmt.Sprintf("Message %d has invalid type: %v", index, rawType), nil)
		}
		msgType = models.MessageType(s)
	} else if rawRole, present := obj["role"]; present {
		role, _ := rawRole.(string)
		mapped, ok := roleToType[role]
		if !ok {
			mapped = models.MessageTypeAI
		}
		slog.Debug("Mapped role to message type", "role", role, "type", mapped, "index", index)
		msgType = mapped
	} else {
		return "", NewError(fmt.Sprintf("Message %d missing required field: type or role", index), nil)
	}

	if !models.ValidMessageType(msgType) {
		return "", NewError(fmt.Sprintf("Message %d has invalid type: %s", index, msgType), nil)
	}
	return msgType, nil
}

// normalizeToolCalls converts raw tool call objects into strict ToolCalls.
// Entries without a resolvable name are dropped silently; missing ids are
// synthesized as call_{n} from the count already normalized for this message.
func normalizeToolCalls(raw any) []models.ToolCall {
	list, ok := raw.([]any)
	if !ok {
		return []models.ToolCall{}
	}

	calls := make([]models.ToolCall, 0, len(list))
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		fn, _ := obj["function"].(map[string]any)

		var call models.ToolCall
		if name, ok := obj["name"].(string); ok {
			call.Name = name
		} else if name, ok := fn["name"].(string); ok {
			call.Name = name
		} else {
			continue
		}

		call.Args = resolveToolCallArgs(obj, fn)

		if id, ok := obj["id"].(string); ok {
			call.ID = id
		} else if id, ok := fn["id"].(string); ok {
			call.ID = id
		} else {
			call.ID = fmt.Sprintf("call_%d", len(calls))
		}

		call.Type = "tool_call"

		calls = append(calls, call)
	}
	return calls
}

// resolveToolCallArgs walks the args fallback chain: args, arguments, then
// function.arguments (parsed as JSON text when it is a string; wrapped as
// raw_arguments when that parse fails).
func resolveToolCallArgs(obj, fn map[string]any) map[string]any {
	if args, ok := obj["args"].(map[string]any); ok {
		return args
	}
	if args, ok := obj["arguments"].(map[string]any); ok {
		return args
	}
	if raw, present := fn["arguments"]; present {
		switch v := raw.(type) {
		case map[string]any:
			return v
		case string:
			var parsed map[string]any
			if err := json.Unmarshal([]byte(v), &parsed); err == nil {
				return parsed
			}
			return map[string]any{"raw_arguments": v}
		}
	}
	return map[string]any{}
}
