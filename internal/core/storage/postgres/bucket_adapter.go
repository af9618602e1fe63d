package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aevon-lab/aevon-rollup/internal/bucket"
)

// BucketAdapter keeps a queryable copy of materialized tables in the
// bucket_rows table. It implements bucket.TableCache for reads and
// bucket.Sink for appends.
type BucketAdapter struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewBucketAdapter creates a BucketAdapter sharing the given connection.
func NewBucketAdapter(db *sql.DB) *BucketAdapter {
	return &BucketAdapter{db: db, nowFn: time.Now}
}

// Scan returns the rows of table name whose key starts with prefix, ordered
// by key bytes.
func (a *BucketAdapter) Scan(ctx context.Context, name, prefix string) ([]bucket.Entry, error) {
	rows, err := a.db.QueryContext(ctx, queryScanBucketRows, name, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("scan bucket_rows %s: %w", name, err)
	}
	defer rows.Close()

	var entries []bucket.Entry
	for rows.Next() {
		var e bucket.Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan bucket_rows %s: scan row: %w", name, err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan bucket_rows %s: iterate rows: %w", name, err)
	}
	return entries, nil
}

// Send upserts one row. The latest payload for a key wins, matching table
// semantics on the engine side.
func (a *BucketAdapter) Send(ctx context.Context, topic string, key, value []byte) error {
	if _, err := a.db.ExecContext(ctx, queryUpsertBucketRow, topic, string(key), value, a.nowFn().UTC()); err != nil {
		return fmt.Errorf("upsert bucket row %s/%s: %w", topic, key, err)
	}
	return nil
}
