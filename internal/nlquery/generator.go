package nlquery

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskpilot/assistant-api/internal/corpus"
	"github.com/taskpilot/assistant-api/internal/db"
	"github.com/taskpilot/assistant-api/internal/llm"
)

// Completer is the slice of the chat client the generator and
// explainer need.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error)
}

// ExampleSource supplies schema context and solved examples for the
// generation prompt.
type ExampleSource interface {
	SimilarExamples(ctx context.Context, question string, k int) ([]corpus.Example, error)
	ByKind(ctx context.Context, kind string) ([]string, error)
}

// fewShotExamples is how many solved pairs are pulled into the prompt
const fewShotExamples = 3

// LLMGenerator turns questions into SQL with a completion model primed
// on the task schema and the most similar corpus examples.
type LLMGenerator struct {
	completer Completer
	examples  ExampleSource
	fallback  string
}

// NewLLMGenerator creates a generator. fallbackDDL is used when the
// corpus holds no schema entries.
func NewLLMGenerator(completer Completer, examples ExampleSource, fallbackDDL string) *LLMGenerator {
	return &LLMGenerator{
		completer: completer,
		examples:  examples,
		fallback:  fallbackDDL,
	}
}

// GenerateQuery produces a single read-only SQL statement for question
func (g *LLMGenerator) GenerateQuery(ctx context.Context, question string) (string, error) {
	messages, err := g.buildPrompt(ctx, question)
	if err != nil {
		return "", err
	}

	raw, err := g.completer.Complete(ctx, messages, 0.1)
	if err != nil {
		return "", fmt.Errorf("query generation: %w", err)
	}

	query := stripFences(raw)
	if query == "" {
		return "", fmt.Errorf("model produced no SQL for question")
	}
	if err := db.ValidateReadOnly(query); err != nil {
		return "", fmt.Errorf("generated query rejected: %w", err)
	}
	return query, nil
}

func (g *LLMGenerator) buildPrompt(ctx context.Context, question string) ([]llm.Message, error) {
	var system strings.Builder
	system.WriteString("你是一个 SQL 生成助手。根据下面的表结构，把用户的问题翻译成一条 PostgreSQL SELECT 语句。只输出 SQL，不要输出任何解释。\n\n")

	ddl, err := g.examples.ByKind(ctx, corpus.KindDDL)
	if err != nil {
		return nil, fmt.Errorf("load schema context: %w", err)
	}
	if len(ddl) == 0 && g.fallback != "" {
		ddl = []string{g.fallback}
	}
	for _, d := range ddl {
		system.WriteString(d)
		system.WriteString("\n")
	}

	docs, err := g.examples.ByKind(ctx, corpus.KindDocumentation)
	if err != nil {
		return nil, fmt.Errorf("load documentation context: %w", err)
	}
	for _, doc := range docs {
		system.WriteString("\n")
		system.WriteString(doc)
	}

	messages := []llm.Message{{Role: "system", Content: system.String()}}

	examples, err := g.examples.SimilarExamples(ctx, question, fewShotExamples)
	if err != nil {
		return nil, fmt.Errorf("load similar examples: %w", err)
	}
	for _, example := range examples {
		messages = append(messages,
			llm.Message{Role: "user", Content: example.Question},
			llm.Message{Role: "assistant", Content: example.SQL},
		)
	}

	return append(messages, llm.Message{Role: "user", Content: question}), nil
}

// stripFences removes markdown code fences the model tends to wrap
// around generated SQL.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
