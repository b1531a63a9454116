// Package ledger persists processed commands and maintains per-user
// usage analytics.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/taskvoice/backend/internal/domain"
	"github.com/taskvoice/backend/internal/store"
)

// Ledger appends finalized commands to the store and keeps the daily
// analytics buckets current. Buckets are cached in memory so the
// incremental averages never depend on a read-modify-write round trip.
type Ledger struct {
	store store.Store

	mu      sync.Mutex
	buckets map[string]*domain.AnalyticsBucket

	now func() time.Time
}

func New(st store.Store) *Ledger {
	return &Ledger{
		store:   st,
		buckets: make(map[string]*domain.AnalyticsBucket),
		now:     time.Now,
	}
}

// Record appends a finalized command and, unless it was cancelled,
// folds it into the user's analytics bucket. Session counters are the
// session handle's business, not the ledger's. Persistence failures
// are logged, not propagated: the command has already been answered
// and bookkeeping must not fail it retroactively.
func (l *Ledger) Record(ctx context.Context, cmd *domain.Command) {
	if err := l.store.AppendCommand(ctx, cmd); err != nil {
		slog.Error("failed to append command", "command_id", cmd.ID, "error", err)
	}

	if cmd.Status == domain.CommandStatusCancelled {
		return
	}

	snapshot := l.fold(cmd)
	if err := l.store.SaveAnalytics(ctx, snapshot); err != nil {
		slog.Error("failed to save analytics", "user_id", cmd.UserID, "error", err)
	}
}

// fold updates the user's in-memory bucket and returns a detached
// snapshot safe to persist outside the lock.
func (l *Ledger) fold(cmd *domain.Command) *domain.AnalyticsBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	period := domain.PeriodKey(l.now())
	key := bucketKey(cmd.UserID, period)
	b, ok := l.buckets[key]
	if !ok {
		b = domain.NewAnalyticsBucket(cmd.UserID, period)
		l.buckets[key] = b
	}
	b.Record(cmd)

	snapshot := *b
	snapshot.IntentCounts = copyCounts(b.IntentCounts)
	snapshot.LanguageCounts = copyCounts(b.LanguageCounts)
	return &snapshot
}

// Bucket returns the current bucket for a user, loading today's
// persisted state on first access.
func (l *Ledger) Bucket(ctx context.Context, userID string) (*domain.AnalyticsBucket, error) {
	l.mu.Lock()
	period := domain.PeriodKey(l.now())
	if b, ok := l.buckets[bucketKey(userID, period)]; ok {
		snapshot := *b
		snapshot.IntentCounts = copyCounts(b.IntentCounts)
		snapshot.LanguageCounts = copyCounts(b.LanguageCounts)
		l.mu.Unlock()
		return &snapshot, nil
	}
	l.mu.Unlock()

	return l.store.GetAnalytics(ctx, userID, period)
}

func bucketKey(userID, period string) string {
	return userID + "|" + period
}

func copyCounts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
