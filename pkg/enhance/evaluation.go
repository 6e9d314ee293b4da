package enhance

import (
	"github.com/ctxopt/ctxopt/pkg/models"
)

// Evaluation finalizes a raw evaluation report: required fields get defaults,
// all scores are clamped to [0, 10], and a metadata block cross-referencing
// the input data is attached. The analysis timestamp is a placeholder the
// caller overwrites with the real completion time.
func Evaluation(raw any, cfg *models.AgentConfig, ds *models.MessageDataset) (map[string]any, error) {
	report, err := unwrapObject(raw)
	if err != nil {
		return nil, err
	}

	ensureFields(report, map[string]any{
		"overall_score":   5.0,
		"dimensions":      []any{},
		"priority_issues": []any{},
		"summary":         "Analysis completed",
		"recommendations": []any{},
	})

	if score, ok := asFloat(report["overall_score"]); ok {
		report["overall_score"] = clampScore(score)
	} else {
		report["overall_score"] = 5.0
	}

	if dimensions, ok := report["dimensions"].([]any); ok {
		for _, d := range dimensions {
			dim, ok := d.(map[string]any)
			if !ok {
				continue
			}
			if raw, present := dim["score"]; present {
				if score, ok := asFloat(raw); ok {
					dim["score"] = clampScore(score)
				}
			}
		}
	}

	uniqueTools := ds.UniqueTools()
	report["metadata"] = map[string]any{
		"analysis_timestamp": timestampPlaceholder,
		"agent_count":        len(cfg.Agents),
		"message_count":      len(ds.Messages),
		"unique_tools":       len(uniqueTools),
		"agent_names":        cfg.AgentNames(),
		"tool_names":         uniqueTools,
	}

	return report, nil
}
