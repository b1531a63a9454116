package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"
)

const (
	busyMaxRetries = 3
	busyBaseDelay  = 50 * time.Millisecond
)

// isSQLiteConflict reports whether the error is a SQLITE_BUSY or
// "database is locked" error. Both mean another connection holds the
// write lock and the statement is worth retrying.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// execRetry runs a write statement, retrying conflict errors with
// exponential backoff (50ms, 100ms, then give up). Session workers
// share one database file, so short lock windows happen under load.
func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var res sql.Result
	var err error
	for i := 0; i < busyMaxRetries; i++ {
		res, err = s.db.ExecContext(ctx, query, args...)
		if err == nil || !isSQLiteConflict(err) {
			return res, err
		}
		if i < busyMaxRetries-1 {
			delay := busyBaseDelay * time.Duration(1<<i)
			slog.Debug("database locked, retrying write", "attempt", i+1, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return res, err
}
