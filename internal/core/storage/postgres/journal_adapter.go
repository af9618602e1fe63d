package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aevon-lab/aevon-rollup/internal/core/storage"
)

// JournalAdapter implements storage.Journal using PostgreSQL.
type JournalAdapter struct {
	db *sql.DB
}

// NewJournalAdapter creates a JournalAdapter sharing the given connection.
func NewJournalAdapter(db *sql.DB) *JournalAdapter {
	return &JournalAdapter{db: db}
}

// Record inserts entry. Duplicates (same object, statement and status) are
// ignored by ON CONFLICT DO NOTHING.
func (a *JournalAdapter) Record(ctx context.Context, entry storage.JournalEntry) error {
	result, err := a.db.ExecContext(ctx, queryRecordDefinition,
		entry.RunID,
		entry.Name,
		entry.Role,
		nullString(entry.Namespace),
		entry.Statement,
		entry.StatementHash,
		entry.Status,
		nullString(entry.Error),
		entry.IssuedAt,
	)
	if err != nil {
		return fmt.Errorf("record definition %s: %w", entry.Name, err)
	}

	if n, err := result.RowsAffected(); err == nil && n == 0 {
		slog.Debug("[JournalAdapter] Definition already journaled",
			"name", entry.Name,
			"status", entry.Status,
		)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (a *JournalAdapter) Recent(ctx context.Context, limit int) ([]storage.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := a.db.QueryContext(ctx, queryRecentDefinitions, limit)
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var entries []storage.JournalEntry
	for rows.Next() {
		entry, err := scanJournalEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return entries, nil
}
