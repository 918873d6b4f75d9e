// Package initialization brings the datastore and training corpus to
// a usable state at startup, retrying the steps that depend on
// external services coming up.
package initialization

import (
	"context"
	"fmt"

	"github.com/taskpilot/assistant-api/internal/corpus"
	"github.com/taskpilot/assistant-api/internal/db"
	"github.com/taskpilot/assistant-api/internal/logging"
)

// Bootstrap handles all application initialization tasks
type Bootstrap struct {
	store    *db.Store
	corpus   *corpus.Store
	seedFile string
	logger   *logging.Logger
}

// NewBootstrap creates a new bootstrap instance
func NewBootstrap(store *db.Store, corpusStore *corpus.Store, seedFile string, logger *logging.Logger) *Bootstrap {
	return &Bootstrap{
		store:    store,
		corpus:   corpusStore,
		seedFile: seedFile,
		logger:   logger,
	}
}

// Initialize performs all initialization tasks in the correct order
func (b *Bootstrap) Initialize(ctx context.Context) error {
	b.logger.Info("Starting bootstrap sequence", nil)

	// Step 1: Wait for the database to accept connections
	err := RetryWithBackoff(ctx, b.logger, "database ping", func(ctx context.Context) error {
		return b.store.Ping(ctx)
	})
	if err != nil {
		return fmt.Errorf("database unavailable: %w", err)
	}

	// Step 2: Create the task schema and demo data
	if err := b.store.Init(ctx); err != nil {
		return fmt.Errorf("initialize task schema: %w", err)
	}

	// Step 3: Seed the training corpus. A failed seed is not fatal;
	// the generator falls back to the builtin schema context.
	added, err := b.corpus.SeedFromFile(ctx, b.seedFile)
	if err != nil {
		b.logger.Warn("Failed to seed training corpus", map[string]interface{}{
			"file":  b.seedFile,
			"error": err.Error(),
		})
	} else if added > 0 {
		b.logger.Info("Seeded training corpus", map[string]interface{}{
			"file":  b.seedFile,
			"added": added,
		})
	}

	b.logger.Info("Bootstrap sequence complete", nil)
	return nil
}
