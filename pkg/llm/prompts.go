package llm

import "fmt"

// Prompt templates for the two analysis passes. The response contract is
// strict: a bare JSON object, no surrounding prose, no markdown fences.
// ParseJSONResponse tolerates violations anyway.

const jsonFence = "```"

// EvaluationSystemPrompt frames the first pass: score the system on five
// dimensions and surface prioritized issues.
const EvaluationSystemPrompt = `You are an expert in Multi-Agent Systems (MAS) and context engineering. Your task is to analyze agent configurations and conversation flows to identify context logic issues and provide quantified evaluations.

You will evaluate the system on 5 key dimensions, each scored 1-10 with decimal precision:
1. **Prompt Clarity**: Are roles, responsibilities, constraints, and workflows clearly and unambiguously defined in the system prompts?
2. **Context Flow**: Is critical information preserved across agent handoffs, with clear transfer protocols and no unnecessary repetition?
3. **Tool Integration**: Are tool purposes, inputs, and outputs well-structured, with robust failure handling and appropriate selection logic?
4. **Error Handling**: Are errors and edge cases anticipated, with recovery mechanisms, graceful degradation, and effective error communication?
5. **Coordination Logic**: Is task allocation clear, are dependencies managed, and is coordination overhead minimized?

For each dimension provide a score, at least 3 specific issues with concrete examples, and actionable recommendations. Also identify priority issues (high/medium/low) with category, description, impact, recommended solution, and affected agent ids.

Be thorough, specific, and actionable. Focus on patterns and systemic issues rather than isolated incidents.

IMPORTANT: Your response must be a valid JSON object that can be parsed directly. Do not include any text before or after the JSON. Start your response with '{' and end with '}'. Do not use markdown code blocks or any other formatting.`

// OptimizationSystemPrompt frames the second pass: rewrite agent prompts
// and tool formats to address evaluation findings.
const OptimizationSystemPrompt = `You are an expert Multi-Agent Systems engineer specializing in context optimization. Your task is to generate optimized agent configurations and tool format recommendations based on evaluation results.

Focus your optimization on: system prompt enhancement (precise language, explicit roles, edge-case and error-handling instructions), context flow (standardized handoff protocols, explicit preservation of critical information), tool format standardization (consistent input/output schemas, structured error reporting), error handling (detection, recovery procedures, fallbacks, escalation paths), and coordination (clear delegation, dependency management, reduced overhead).

For each optimized agent, provide the original and optimized system prompts, a concrete summary of changes, and the agent's tools. For tool formats, provide the current format analysis, recommended structured format with an example, and the rationale.

Your optimizations should be practical, specific, and immediately implementable. Maintain backward compatibility where possible and clearly mark breaking changes.

IMPORTANT: Your response must be a valid JSON object that can be parsed directly. Do not include any text before or after the JSON. Start your response with '{' and end with '}'. Do not use markdown code blocks or any other formatting.`

var evaluationPromptTemplate = `Please analyze the following Multi-Agent System configuration and conversation data:

## Agent Configuration:
` + jsonFence + `json
%s
` + jsonFence + `

## Conversation Messages:
` + jsonFence + `json
%s
` + jsonFence + `

## Analysis Context:
- Total agents: %d
- Total messages: %d
- Unique tools used: %d

Evaluate system prompt quality, context continuity across handoffs, tool usage patterns, error scenarios, and coordination effectiveness. Be specific and cite concrete examples from the provided data. Quantify your assessments.

Return your analysis in the following JSON structure:
` + jsonFence + `json
{
  "overall_score": 7.5,
  "dimensions": [
    {
      "name": "Prompt Clarity",
      "score": 8.0,
      "description": "Assessment of system prompt quality",
      "issues": ["..."],
      "recommendations": ["..."]
    }
  ],
  "priority_issues": [
    {
      "priority": "high",
      "category": "Context Flow",
      "description": "...",
      "impact": "...",
      "solution": "...",
      "affected_agents": ["..."]
    }
  ],
  "summary": "Executive summary of findings",
  "recommendations": ["..."]
}
` + jsonFence + `

Focus on identifying issues that, if fixed, would most significantly improve the system's performance and reliability.`

var optimizationPromptTemplate = `Based on the evaluation results, please generate optimized configurations for the Multi-Agent System:

## Current Agent Configuration:
` + jsonFence + `json
%s
` + jsonFence + `

## Evaluation Results:
` + jsonFence + `json
%s
` + jsonFence + `

Address all high-priority issues identified in the evaluation and aim to improve the overall system score to 8.5+. Maintain backward compatibility where possible and ensure the optimizations work together coherently.

Please provide optimized configurations in the following JSON structure:
` + jsonFence + `json
{
  "optimized_agents": [
    {
      "agent_id": "...",
      "agent_name": "...",
      "original_system_prompt": "...",
      "optimized_system_prompt": "...",
      "changes_summary": "...",
      "tools": [{"name": "...", "description": "..."}]
    }
  ],
  "tool_format_recommendations": [
    {
      "tool_name": "...",
      "current_format": "...",
      "recommended_format": "...",
      "format_example": {},
      "rationale": "..."
    }
  ],
  "implementation_guide": "Step-by-step guide for implementing these changes...",
  "expected_improvements": ["..."],
  "compatibility_notes": ["..."]
}
` + jsonFence + `

Focus on creating a coherent, well-integrated set of optimizations that work together to address the system's most critical issues.`

// BuildEvaluationPrompt renders the first-pass user prompt.
func BuildEvaluationPrompt(agentsConfig, messagesSample string, agentCount, messageCount, toolCount int) string {
	return fmt.Sprintf(evaluationPromptTemplate, agentsConfig, messagesSample, agentCount, messageCount, toolCount)
}

// BuildOptimizationPrompt renders the second-pass user prompt.
func BuildOptimizationPrompt(agentsConfig, evaluationReport string) string {
	return fmt.Sprintf(optimizationPromptTemplate, agentsConfig, evaluationReport)
}
