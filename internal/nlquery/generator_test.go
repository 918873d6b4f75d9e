package nlquery

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/taskpilot/assistant-api/internal/corpus"
	"github.com/taskpilot/assistant-api/internal/llm"
)

type fakeCompleter struct {
	response string
	err      error
	messages []llm.Message
}

func (c *fakeCompleter) Complete(ctx context.Context, messages []llm.Message, temperature float64) (string, error) {
	c.messages = messages
	return c.response, c.err
}

type fakeExampleSource struct {
	examples []corpus.Example
	ddl      []string
	docs     []string
}

func (s *fakeExampleSource) SimilarExamples(ctx context.Context, question string, k int) ([]corpus.Example, error) {
	if k < len(s.examples) {
		return s.examples[:k], nil
	}
	return s.examples, nil
}

func (s *fakeExampleSource) ByKind(ctx context.Context, kind string) ([]string, error) {
	switch kind {
	case corpus.KindDDL:
		return s.ddl, nil
	case corpus.KindDocumentation:
		return s.docs, nil
	}
	return nil, nil
}

func TestLLMGenerator_GenerateQuery(t *testing.T) {
	completer := &fakeCompleter{response: "```sql\nSELECT COUNT(*) FROM tasks WHERE status = '待开始'\n```"}
	source := &fakeExampleSource{
		ddl:  []string{"CREATE TABLE tasks (id SERIAL PRIMARY KEY, title VARCHAR(200), status VARCHAR(20))"},
		docs: []string{"status 的取值为: 待开始, 进行中, 已完成"},
		examples: []corpus.Example{
			{Question: "有多少条任务", SQL: "SELECT COUNT(*) FROM tasks"},
		},
	}
	generator := NewLLMGenerator(completer, source, "")

	query, err := generator.GenerateQuery(context.Background(), "有多少条待办任务")
	if err != nil {
		t.Fatalf("GenerateQuery failed: %v", err)
	}
	if query != "SELECT COUNT(*) FROM tasks WHERE status = '待开始'" {
		t.Errorf("unexpected query: %q", query)
	}

	system := completer.messages[0]
	if system.Role != "system" {
		t.Fatalf("expected system message first, got role %q", system.Role)
	}
	if !strings.Contains(system.Content, "CREATE TABLE tasks") {
		t.Error("system prompt missing schema DDL")
	}
	if !strings.Contains(system.Content, "status 的取值为") {
		t.Error("system prompt missing documentation")
	}

	/* example pair then the question itself */
	if len(completer.messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(completer.messages))
	}
	if completer.messages[1].Content != "有多少条任务" || completer.messages[2].Content != "SELECT COUNT(*) FROM tasks" {
		t.Error("few-shot pair not threaded into the prompt")
	}
	if completer.messages[3].Content != "有多少条待办任务" {
		t.Errorf("question should be the final message, got %q", completer.messages[3].Content)
	}
}

func TestLLMGenerator_FallbackDDL(t *testing.T) {
	completer := &fakeCompleter{response: "SELECT 1"}
	generator := NewLLMGenerator(completer, &fakeExampleSource{}, "CREATE TABLE tasks (id SERIAL)")

	if _, err := generator.GenerateQuery(context.Background(), "任务"); err != nil {
		t.Fatalf("GenerateQuery failed: %v", err)
	}
	if !strings.Contains(completer.messages[0].Content, "CREATE TABLE tasks (id SERIAL)") {
		t.Error("empty corpus should fall back to the builtin DDL")
	}
}

func TestLLMGenerator_Errors(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
	}{
		{"completer error", &fakeCompleter{err: errors.New("model unavailable")}},
		{"empty response", &fakeCompleter{response: "```sql\n```"}},
		{"write statement rejected", &fakeCompleter{response: "DELETE FROM tasks"}},
		{"embedded drop rejected", &fakeCompleter{response: "SELECT 1; DROP TABLE tasks"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator := NewLLMGenerator(tt.completer, &fakeExampleSource{}, "")
			if _, err := generator.GenerateQuery(context.Background(), "任务"); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT 1", "SELECT 1"},
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
	}

	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
