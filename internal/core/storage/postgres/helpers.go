package postgres

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/aevon-lab/aevon-rollup/internal/core/storage"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanJournalEntry scans a rollup_definitions row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanJournalEntry(row scanner) (storage.JournalEntry, error) {
	var (
		entry     storage.JournalEntry
		namespace sql.NullString
		errText   sql.NullString
	)
	err := row.Scan(
		&entry.RunID,
		&entry.Name,
		&entry.Role,
		&namespace,
		&entry.Statement,
		&entry.StatementHash,
		&entry.Status,
		&errText,
		&entry.IssuedAt,
	)
	if err != nil {
		return storage.JournalEntry{}, fmt.Errorf("failed to scan definition row: %w", err)
	}
	entry.Namespace = namespace.String
	entry.Error = errText.String
	return entry, nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix returns a LIKE pattern matching every string starting with prefix.
func likePrefix(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
