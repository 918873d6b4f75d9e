// Package corpus stores the example corpus consumed by the query
// generator: schema DDL, business documentation, and question/SQL
// pairs. Entry metadata lives in Postgres; question embeddings live in
// a chromem-go collection so the generator can pull the most similar
// solved examples into its prompt.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
)

// Entry kinds
const (
	KindDDL           = "ddl"
	KindSQL           = "sql"
	KindDocumentation = "documentation"
)

// Entry is one training example
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"type"`
	Question  string    `json:"question,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Example is a retrieved question/SQL pair for few-shot prompting
type Example struct {
	Question string
	SQL      string
}

// Store is the corpus backed by Postgres and a chromem collection
type Store struct {
	db  *sql.DB
	col *chromem.Collection
}

// NewStore opens (or creates) the persistent vector collection under
// dataDir and prepares the metadata table.
func NewStore(ctx context.Context, database *sql.DB, dataDir string, embed chromem.EmbeddingFunc) (*Store, error) {
	dir := filepath.Join(dataDir, "corpus")
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create corpus dir: %w", err)
	}

	vdb, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("open corpus vector store: %w", err)
	}
	col := vdb.GetCollection("training_examples", embed)
	if col == nil {
		col, err = vdb.CreateCollection("training_examples", nil, embed)
		if err != nil {
			return nil, fmt.Errorf("create corpus collection: %w", err)
		}
	}

	s := &Store{db: database, col: col}
	if _, err := database.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS training_examples (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			question TEXT,
			content TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return nil, fmt.Errorf("create training_examples table: %w", err)
	}
	return s, nil
}

// Add stores one entry. SQL entries are indexed by their question so
// SimilarExamples can find them; other kinds are listed but not
// embedded.
func (s *Store) Add(ctx context.Context, kind, question, content string) (*Entry, error) {
	switch kind {
	case KindDDL, KindSQL, KindDocumentation:
	default:
		return nil, fmt.Errorf("unknown training data type: %s", kind)
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if kind == KindSQL && question == "" {
		return nil, fmt.Errorf("question is required for sql examples")
	}

	entry := &Entry{
		ID:        uuid.New().String(),
		Kind:      kind,
		Question:  question,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO training_examples (id, kind, question, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.Kind, entry.Question, entry.Content, entry.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert training example: %w", err)
	}

	if kind == KindSQL {
		err := s.col.AddDocument(ctx, chromem.Document{
			ID:       entry.ID,
			Content:  question,
			Metadata: map[string]string{"type": kind},
		})
		if err != nil {
			s.db.ExecContext(ctx, `DELETE FROM training_examples WHERE id = $1`, entry.ID)
			return nil, fmt.Errorf("index training example: %w", err)
		}
	}
	return entry, nil
}

// List returns all entries, newest first
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, question, content, created_at FROM training_examples ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list training examples: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var question sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &question, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan training example: %w", err)
		}
		e.Question = question.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Delete removes an entry from both stores
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM training_examples WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete training example: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("training example %s not found", id)
	}
	// The vector document only exists for sql entries; deleting a
	// missing ID is harmless.
	s.col.Delete(ctx, nil, nil, id)
	return nil
}

// SimilarExamples returns up to k solved question/SQL pairs most
// similar to question.
func (s *Store) SimilarExamples(ctx context.Context, question string, k int) ([]Example, error) {
	count := s.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.col.Query(ctx, question, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}

	examples := make([]Example, 0, len(results))
	for _, r := range results {
		var q, content string
		err := s.db.QueryRowContext(ctx,
			`SELECT question, content FROM training_examples WHERE id = $1`, r.ID).Scan(&q, &content)
		if err != nil {
			// Metadata row already deleted; skip the orphan.
			continue
		}
		examples = append(examples, Example{Question: q, SQL: content})
	}
	return examples, nil
}

// ByKind returns the content of every entry of one kind, oldest first
func (s *Store) ByKind(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM training_examples WHERE kind = $1 ORDER BY created_at`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s entries: %w", kind, err)
	}
	defer rows.Close()

	contents := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}
