package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aevon-lab/aevon-rollup/internal/model"
	"github.com/aevon-lab/aevon-rollup/internal/rollup"
)

// JournaledExecutor records every definition issued through the wrapped
// executor. Journal failures are logged and never fail the definition.
type JournaledExecutor struct {
	next    rollup.Executor
	journal Journal
	runID   string
	nowFn   func() time.Time
}

// NewJournaledExecutor wraps next. Every definition it issues shares one run ID.
func NewJournaledExecutor(next rollup.Executor, journal Journal) *JournaledExecutor {
	return &JournaledExecutor{
		next:    next,
		journal: journal,
		runID:   uuid.NewString(),
		nowFn:   time.Now,
	}
}

// RunID identifies this executor's entries in the journal.
func (e *JournaledExecutor) RunID() string { return e.runID }

// Execute issues statement through the wrapped executor and journals the outcome.
// Canceled statements are not journaled.
func (e *JournaledExecutor) Execute(ctx context.Context, entity model.PhysicalEntity, statement string) error {
	execErr := e.next.Execute(ctx, entity, statement)
	if errors.Is(execErr, context.Canceled) || errors.Is(execErr, context.DeadlineExceeded) {
		return execErr
	}

	entry := JournalEntry{
		RunID:         e.runID,
		Name:          entity.Topic,
		Role:          entity.Role.String(),
		Namespace:     entity.Namespace,
		Statement:     statement,
		StatementHash: StatementHash(statement),
		Status:        StatusApplied,
		IssuedAt:      e.nowFn().UTC(),
	}
	if execErr != nil {
		entry.Status = StatusFailed
		entry.Error = execErr.Error()
	}

	if err := e.journal.Record(ctx, entry); err != nil {
		slog.Warn("[JournalAdapter] Failed to record definition",
			"name", entry.Name,
			"role", entry.Role,
			"error", err,
		)
	}
	return execErr
}

// StatementHash returns the hex SHA-256 of a statement.
func StatementHash(statement string) string {
	sum := sha256.Sum256([]byte(statement))
	return hex.EncodeToString(sum[:])
}
