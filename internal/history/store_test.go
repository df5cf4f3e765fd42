package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolwatch/poolwatch/internal/watcher"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "alerts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := watcher.Alert{
		ID:        "alert-1",
		Kind:      watcher.KindFailover,
		Severity:  watcher.SeverityWarning,
		Title:     "Failover Detected",
		Message:   "blue -> green",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
	second := watcher.Alert{
		ID:        "alert-2",
		Kind:      watcher.KindHighErrorRate,
		Severity:  watcher.SeverityCritical,
		Title:     "High Error Rate",
		Message:   "15/167 requests",
		Timestamp: time.Date(2026, 8, 30, 12, 5, 0, 0, time.UTC),
	}

	require.NoError(t, store.Record(ctx, first, true, ""))
	require.NoError(t, store.Record(ctx, second, false, "webhook unreachable"))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, "alert-2", entries[0].ID)
	assert.Equal(t, watcher.KindHighErrorRate, entries[0].Kind)
	assert.Equal(t, watcher.SeverityCritical, entries[0].Severity)
	assert.False(t, entries[0].Delivered)
	assert.Equal(t, "webhook unreachable", entries[0].DeliveryErr)

	assert.Equal(t, "alert-1", entries[1].ID)
	assert.True(t, entries[1].Delivered)
	assert.Empty(t, entries[1].DeliveryErr)
	assert.Equal(t, first.Timestamp, entries[1].CreatedAt.UTC())
}

func TestStore_RecentHonorsLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		alert := watcher.Alert{
			ID:        string(rune('a' + i)),
			Kind:      watcher.KindFailover,
			Severity:  watcher.SeverityWarning,
			Title:     "Failover Detected",
			Message:   "m",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Record(ctx, alert, true, ""))
	}

	entries, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "e", entries[0].ID)
}

func TestStore_RecentOrdersMixedPrecisionTimestamps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// A whole-second timestamp must sort after an earlier sub-second one.
	older := watcher.Alert{
		ID:        "older",
		Kind:      watcher.KindFailover,
		Severity:  watcher.SeverityWarning,
		Title:     "Failover Detected",
		Message:   "m",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 0, 500_000_000, time.UTC),
	}
	newer := watcher.Alert{
		ID:        "newer",
		Kind:      watcher.KindFailover,
		Severity:  watcher.SeverityWarning,
		Title:     "Failover Detected",
		Message:   "m",
		Timestamp: time.Date(2026, 8, 30, 12, 0, 1, 0, time.UTC),
	}

	require.NoError(t, store.Record(ctx, older, true, ""))
	require.NoError(t, store.Record(ctx, newer, true, ""))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "newer", entries[0].ID)
	assert.Equal(t, "older", entries[1].ID)
	assert.Equal(t, older.Timestamp, entries[1].CreatedAt.UTC())
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	alert := watcher.Alert{
		ID:        "dup",
		Kind:      watcher.KindFailover,
		Severity:  watcher.SeverityWarning,
		Title:     "Failover Detected",
		Message:   "m",
		Timestamp: time.Now(),
	}

	require.NoError(t, store.Record(ctx, alert, true, ""))
	assert.Error(t, store.Record(ctx, alert, true, ""))
}
