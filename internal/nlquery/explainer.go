package nlquery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskpilot/assistant-api/internal/llm"
)

// explainRowLimit bounds how many rows are serialized into the
// explanation prompt.
const explainRowLimit = 20

// LLMExplainer summarizes a result set in natural language
type LLMExplainer struct {
	completer Completer
}

// NewLLMExplainer creates an explainer
func NewLLMExplainer(completer Completer) *LLMExplainer {
	return &LLMExplainer{completer: completer}
}

// ExplainResult asks the model for a short summary of the result set.
// Callers treat failure as non-fatal.
func (e *LLMExplainer) ExplainResult(ctx context.Context, question, query string, columns []string, rows [][]interface{}) (string, error) {
	sample := rows
	truncated := false
	if len(sample) > explainRowLimit {
		sample = sample[:explainRowLimit]
		truncated = true
	}

	serialized, err := json.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("serialize rows: %w", err)
	}

	prompt := fmt.Sprintf(
		"用户的问题：%s\n执行的查询：%s\n列名：%v\n查询结果（共 %d 条）：%s\n",
		question, query, columns, len(rows), serialized)
	if truncated {
		prompt += fmt.Sprintf("（结果已截断，仅展示前 %d 条）\n", explainRowLimit)
	}
	prompt += "请用一两句中文概括这个查询结果，直接回答用户的问题。"

	summary, err := e.completer.Complete(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	}, 0.3)
	if err != nil {
		return "", fmt.Errorf("explanation generation: %w", err)
	}
	return summary, nil
}
