package validation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ctxopt/ctxopt/pkg/models"
)

// toolCallLookback is how many preceding messages are searched for the ai
// message that issued a tool call referenced by a tool response.
const toolCallLookback = 5

// CrossValidate checks consistency between a normalized agent configuration
// and message dataset. Warnings and recommendations never block; a non-empty
// Errors list (reserved, currently never populated) raises a ConsistencyError.
func CrossValidate(cfg *models.AgentConfig, ds *models.MessageDataset) (*models.ConsistencyReport, error) {
	report := &models.ConsistencyReport{
		AgentsCount:            len(cfg.Agents),
		MessagesCount:          len(ds.Messages),
		UniqueAgentsInMessages: len(ds.UniqueAgents()),
		UniqueToolsInMessages:  len(ds.UniqueTools()),
		Warnings:               []string{},
		Recommendations:        []string{},
		Errors:                 []string{},
	}

	configAgents := make(map[string]struct{}, len(cfg.Agents))
	for _, a := range cfg.Agents {
		configAgents[a.AgentID] = struct{}{}
	}
	messageAgents := make(map[string]struct{})
	for _, name := range ds.UniqueAgents() {
		messageAgents[name] = struct{}{}
	}
	messageTools := make(map[string]struct{})
	for _, name := range ds.UniqueTools() {
		messageTools[name] = struct{}{}
	}

	checkMissingAgents(configAgents, messageAgents, report)
	checkMissingTools(cfg.ToolNames(), messageTools, report)
	report.Warnings = append(report.Warnings, checkConversationFlow(ds)...)

	if len(report.Errors) > 0 {
		return nil, &ConsistencyError{
			Message: "Critical data consistency errors: " + strings.Join(report.Errors, "; "),
			Details: map[string]any{"errors": report.Errors},
		}
	}

	slog.Info("Cross-validation completed", "warnings", len(report.Warnings))
	return report, nil
}

// checkMissingAgents compares agents referenced by ai messages against the
// declared agent identifiers. Unknown message agents get a warning and a
// recommendation; unreferenced config agents get a warning only.
func checkMissingAgents(configAgents, messageAgents map[string]struct{}, report *models.ConsistencyReport) {
	missingInConfig := setDifference(messageAgents, configAgents)
	if len(missingInConfig) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Agents found in messages but not in config: %v", missingInConfig))
		report.Recommendations = append(report.Recommendations,
			"Add missing agents to configuration or correct agent names in messages")
	}

	missingInMessages := setDifference(configAgents, messageAgents)
	if len(missingInMessages) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Agents in config but not found in messages: %v", missingInMessages))
	}
}

func checkMissingTools(configTools, messageTools map[string]struct{}, report *models.ConsistencyReport) {
	undefined := setDifference(messageTools, configTools)
	if len(undefined) > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Tools used in messages but not defined in config: %v", undefined))
		report.Recommendations = append(report.Recommendations,
			"Add missing tool definitions to agent configurations")
	}
}

// checkConversationFlow finds tool responses whose tool_call_id has no
// matching tool call on an ai message within the lookback window.
func checkConversationFlow(ds *models.MessageDataset) []string {
	var issues []string
	messages := ds.Messages

	for i, msg := range messages {
		if msg.Type != models.MessageTypeTool || msg.ToolCallID == "" {
			continue
		}

		found := false
		for j := max(0, i-toolCallLookback); j < i; j++ {
			if messages[j].Type != models.MessageTypeAI {
				continue
			}
			for _, tc := range messages[j].ToolCalls {
				if tc.ID == msg.ToolCallID {
					found = true
					break
				}
			}
			if found {
				break
			}
		}

		if !found {
			issues = append(issues, fmt.Sprintf(
				"Tool message (ID: %s) references non-existent tool call ID: %s",
				msg.ID, msg.ToolCallID))
		}
	}
	return issues
}

// setDifference returns the sorted members of a that are absent from b.
func setDifference(a, b map[string]struct{}) []string {
	var diff []string
	for k := range a {
		if _, ok := b[k]; !ok {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}
