// Package nlquery turns a natural-language question into an executed
// datastore query with a natural-language summary, through a pair of
// TTL caches that amortize the expensive generation and execution
// steps.
package nlquery

import (
	"context"
	"fmt"
)

// Result kinds
const (
	ResultKindSingle = "single"
	ResultKindTable  = "table"
)

// StructuredResult is the payload streamed back for a database-query
// intent. Rows holds the scalar value itself when exactly one row and
// one column were produced, a flat list for single-column results, and
// a list of column-keyed objects otherwise.
type StructuredResult struct {
	Message string      `json:"message"`
	Query   string      `json:"sql"`
	Rows    interface{} `json:"results"`
	Kind    string      `json:"type"`
	Columns []string    `json:"columns"`
}

// Error kinds for the distinct failure domains of Process
const (
	GenerationFailed = "generation_failed"
	ExecutionFailed  = "execution_failed"
)

// QueryError reports which step of the pipeline failed. The dispatcher
// pattern-matches on Kind to decide the fallback, never showing the
// raw error to the user.
type QueryError struct {
	Kind string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Generator resolves a question to an executable query
type Generator interface {
	GenerateQuery(ctx context.Context, question string) (string, error)
}

// Runner executes a resolved query against the backing datastore
type Runner interface {
	ExecuteQuery(ctx context.Context, query string) (columns []string, rows [][]interface{}, err error)
}

// Explainer produces a natural-language summary of a result set
type Explainer interface {
	ExplainResult(ctx context.Context, question, query string, columns []string, rows [][]interface{}) (string, error)
}
