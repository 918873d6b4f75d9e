package nlquery

import (
	"context"
	"fmt"

	"github.com/taskpilot/assistant-api/internal/cache"
	"github.com/taskpilot/assistant-api/internal/logging"
	"github.com/taskpilot/assistant-api/internal/metrics"
)

// Executor orchestrates question -> query -> result -> explanation,
// consulting the command cache before generation and the query cache
// before execution.
type Executor struct {
	generator Generator
	runner    Runner
	explainer Explainer
	commands  *cache.Store[string]
	results   *cache.Store[StructuredResult]
	logger    *logging.Logger
}

// NewExecutor creates an executor over injected collaborators
func NewExecutor(generator Generator, runner Runner, explainer Explainer,
	commands *cache.Store[string], results *cache.Store[StructuredResult], logger *logging.Logger) *Executor {
	return &Executor{
		generator: generator,
		runner:    runner,
		explainer: explainer,
		commands:  commands,
		results:   results,
		logger:    logger,
	}
}

// Process answers a question. The returned error is always a
// *QueryError identifying the step that failed; explanation failure is
// recovered locally with a templated summary and never surfaces.
func (e *Executor) Process(ctx context.Context, question string) (*StructuredResult, error) {
	query, err := e.resolveQuery(ctx, question)
	if err != nil {
		return nil, err
	}

	queryKey := cache.QueryKey(query, nil)
	if cached, ok := e.results.Get(queryKey); ok {
		metrics.RecordCacheLookup("query", true)
		return &cached, nil
	}
	metrics.RecordCacheLookup("query", false)

	columns, rows, err := e.runner.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, &QueryError{Kind: ExecutionFailed, Err: err}
	}

	message, err := e.explainer.ExplainResult(ctx, question, query, columns, rows)
	if err != nil {
		e.logger.Warn("Explanation generation failed, using templated summary", map[string]interface{}{
			"question": question,
			"error":    err.Error(),
		})
		message = templatedSummary(columns, rows)
	}

	result := shapeResult(message, query, columns, rows)
	e.results.Set(queryKey, *result)
	return result, nil
}

// resolveQuery returns the cached query text for question, generating
// and caching it on a miss.
func (e *Executor) resolveQuery(ctx context.Context, question string) (string, error) {
	key := cache.CommandKey(question)
	if query, ok := e.commands.Get(key); ok {
		metrics.RecordCacheLookup("command", true)
		return query, nil
	}
	metrics.RecordCacheLookup("command", false)

	query, err := e.generator.GenerateQuery(ctx, question)
	if err != nil {
		return "", &QueryError{Kind: GenerationFailed, Err: err}
	}
	if query == "" {
		return "", &QueryError{Kind: GenerationFailed, Err: fmt.Errorf("generator produced no query")}
	}

	e.commands.Set(key, query)
	return query, nil
}

// templatedSummary is the degraded explanation used when the external
// summarizer is unavailable.
func templatedSummary(columns []string, rows [][]interface{}) string {
	if len(rows) == 1 && len(columns) == 1 {
		return fmt.Sprintf("查询结果是: %v", rows[0][0])
	}
	return fmt.Sprintf("查询到 %d 条记录", len(rows))
}

// shapeResult formats rows for the wire. Exactly one row with one
// column collapses to the scalar itself with kind "single"; everything
// else is a table, flattened per row when there is a single column.
func shapeResult(message, query string, columns []string, rows [][]interface{}) *StructuredResult {
	result := &StructuredResult{
		Message: message,
		Query:   query,
		Kind:    ResultKindTable,
		Columns: columns,
	}

	if len(rows) == 1 && len(columns) == 1 {
		result.Kind = ResultKindSingle
		result.Rows = rows[0][0]
		return result
	}

	if len(columns) == 1 {
		flat := make([]interface{}, 0, len(rows))
		for _, row := range rows {
			flat = append(flat, row[0])
		}
		result.Rows = flat
		return result
	}

	formatted := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			record[col] = row[i]
		}
		formatted = append(formatted, record)
	}
	result.Rows = formatted
	return result
}
