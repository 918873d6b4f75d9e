// Package db owns the task datastore backing the NL2Query fast path:
// schema bootstrap, demo seed rows, and read-only query execution.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps the Postgres task database
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to Postgres and verifies the connection
func Open(dsn string, maxOpen, maxIdle int, connMaxLifetime time.Duration) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection for health checks
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB exposes the handle for components sharing the pool
func (s *Store) DB() *sql.DB {
	return s.db
}

// TaskSchemaDDL is the schema handed to the query generator as context
const TaskSchemaDDL = `CREATE TABLE IF NOT EXISTS tasks (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	status TEXT DEFAULT 'pending',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Init creates the task table and seeds demo rows when it is empty
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, TaskSchemaDDL); err != nil {
		return fmt.Errorf("create tasks table: %w", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&count); err != nil {
		return fmt.Errorf("count tasks: %w", err)
	}
	if count > 0 {
		return nil
	}

	seed := []struct {
		title       string
		description string
		status      string
		createdAt   string
	}{
		{"完成项目报告", "编写第一季度项目进展报告", "pending", "2024-03-14 10:00:00"},
		{"客户会议", "与客户讨论新需求", "completed", "2024-03-13 14:30:00"},
		{"代码审查", "审查团队提交的新功能代码", "pending", "2024-03-14 09:00:00"},
		{"系统测试", "执行系统集成测试", "pending", "2024-03-14 11:30:00"},
		{"文档更新", "更新API文档", "completed", "2024-03-12 16:00:00"},
	}
	for _, task := range seed {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO tasks (title, description, status, created_at) VALUES ($1, $2, $3, $4)`,
			task.title, task.description, task.status, task.createdAt); err != nil {
			return fmt.Errorf("seed tasks: %w", err)
		}
	}
	return nil
}

// dangerous lists statement keywords never allowed from generated SQL
var dangerous = []string{"DROP", "TRUNCATE", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "GRANT", "REVOKE"}

// ValidateReadOnly rejects anything but a plain SELECT statement
func ValidateReadOnly(query string) error {
	upper := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return fmt.Errorf("only SELECT queries are allowed")
	}
	for _, keyword := range dangerous {
		if containsWord(upper, keyword) {
			return fmt.Errorf("dangerous SQL operation not allowed: %s", keyword)
		}
	}
	return nil
}

// containsWord reports whether word occurs in s as a whole token
func containsWord(s, word string) bool {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '(' || r == ')' || r == ';' || r == ','
	}) {
		if field == word {
			return true
		}
	}
	return false
}

// ExecuteQuery runs a read-only query and returns ordered columns plus
// row values, with []byte cells decoded to strings.
func (s *Store) ExecuteQuery(ctx context.Context, query string) ([]string, [][]interface{}, error) {
	if err := ValidateReadOnly(query); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("read columns: %w", err)
	}

	results := make([][]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, results, nil
}
