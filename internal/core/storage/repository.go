package storage

import (
	"context"
	"time"
)

// Definition statuses recorded in the journal.
const (
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// JournalEntry is one definition issued to the engine.
type JournalEntry struct {
	RunID         string
	Name          string
	Role          string
	Namespace     string
	Statement     string
	StatementHash string
	Status        string
	Error         string
	IssuedAt      time.Time
}

// Journal stores the history of issued definitions.
type Journal interface {
	// Record stores entry. Re-recording an identical statement for the same
	// object and status is a no-op.
	Record(ctx context.Context, entry JournalEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)
}
