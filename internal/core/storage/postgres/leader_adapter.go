package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aevon-lab/aevon-rollup/internal/core/partition"
)

// LeaderAdapter elects one process per group with a session-level advisory
// lock. The lock lives on a dedicated connection and is held until Release
// or until that connection drops.
type LeaderAdapter struct {
	db    *sql.DB
	group string
	key   int64

	mu   sync.Mutex
	conn *sql.Conn
}

// NewLeaderAdapter creates a leader gate for group.
func NewLeaderAdapter(db *sql.DB, group string) *LeaderAdapter {
	return &LeaderAdapter{db: db, group: group, key: partition.LockKey(group)}
}

// IsLeader reports whether this process holds the group's lock, trying to
// acquire it when it does not.
func (a *LeaderAdapter) IsLeader(ctx context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		if err := a.conn.PingContext(ctx); err == nil {
			return true, nil
		}
		slog.Warn("[LeaderAdapter] Lost lock connection", "group", a.group)
		a.conn.Close()
		a.conn = nil
	}

	conn, err := a.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("leader %s: acquire connection: %w", a.group, err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, queryTryAdvisoryLock, a.key).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("leader %s: try lock: %w", a.group, err)
	}
	if !acquired {
		conn.Close()
		return false, nil
	}

	a.conn = conn
	slog.Info("[LeaderAdapter] Acquired leadership", "group", a.group, "lock_key", a.key)
	return true, nil
}

// Release gives up leadership.
func (a *LeaderAdapter) Release(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	defer func() {
		a.conn.Close()
		a.conn = nil
	}()

	var released bool
	if err := a.conn.QueryRowContext(ctx, queryAdvisoryUnlock, a.key).Scan(&released); err != nil {
		return fmt.Errorf("leader %s: unlock: %w", a.group, err)
	}
	slog.Info("[LeaderAdapter] Released leadership", "group", a.group, "released", released)
	return nil
}
