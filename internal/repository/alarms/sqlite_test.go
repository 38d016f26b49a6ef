package alarms

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	alarm "github.com/alarmd/alarmd/internal/domain/alarm"
)

// openTestStore creates a store backed by a throwaway database file.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "alarms.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

// TestSQLiteStore_SaveAndList verifies the full field set survives a round trip.
func TestSQLiteStore_SaveAndList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	date := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.Local)
	next := time.Date(2025, time.March, 20, 6, 15, 0, 0, time.Local)

	value := &alarm.Value{
		ID:                   3,
		IsEnabled:            true,
		Hour:                 6,
		Minutes:              15,
		DaysOfWeek:           alarm.WeekdaysOf(time.Monday, time.Friday),
		Label:                "early shift",
		IsPrealarm:           true,
		IsVibrate:            true,
		Tone:                 alarm.Tone{Kind: alarm.ToneSound, URI: "file:///tone.ogg"},
		Skipping:             true,
		Date:                 &date,
		IsDeleteAfterDismiss: true,
		State:                "Skipping",
		NextTime:             next,
	}

	require.NoError(t, store.Save(ctx, value))

	values, err := store.List(ctx)

	require.NoError(t, err)
	require.Len(t, values, 1)

	got := values[0]

	// Instants come back in a serialized zone; compare them as instants and
	// everything else structurally.
	require.True(t, next.Equal(got.NextTime))
	require.NotNil(t, got.Date)
	require.True(t, date.Equal(*got.Date))

	got.NextTime = value.NextTime
	got.Date = value.Date
	require.Equal(t, value, got)
}

// TestSQLiteStore_SaveReplaces verifies Save is an upsert keyed by id.
func TestSQLiteStore_SaveReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	value := &alarm.Value{ID: 1, Hour: 7, State: "Disabled"}
	require.NoError(t, store.Save(ctx, value))

	value.Hour = 9
	value.IsEnabled = true
	value.State = "NormalSet"
	require.NoError(t, store.Save(ctx, value))

	values, err := store.List(ctx)

	require.NoError(t, err)
	require.Len(t, values, 1)
	require.Equal(t, 9, values[0].Hour)
	require.Equal(t, "NormalSet", values[0].State)
}

// TestSQLiteStore_ListOrdersByID verifies deterministic listing order.
func TestSQLiteStore_ListOrdersByID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	for _, id := range []int{5, 1, 3} {
		require.NoError(t, store.Save(ctx, &alarm.Value{ID: id, Hour: 7, State: "Disabled"}))
	}

	values, err := store.List(ctx)

	require.NoError(t, err)
	require.Len(t, values, 3)
	require.Equal(t, []int{1, 3, 5}, []int{values[0].ID, values[1].ID, values[2].ID})
}

// TestSQLiteStore_Delete verifies removal and the missing-row no-op.
func TestSQLiteStore_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Save(ctx, &alarm.Value{ID: 1, Hour: 7, State: "Disabled"}))
	require.NoError(t, store.Delete(ctx, 1))

	values, err := store.List(ctx)

	require.NoError(t, err)
	require.Empty(t, values)

	// Deleting again is not an error.
	require.NoError(t, store.Delete(ctx, 1))
}

// TestSQLiteStore_RejectsBadInput verifies constructor and Save guardrails.
func TestSQLiteStore_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := NewSQLiteStore(context.Background(), "")
	require.Error(t, err)

	store := openTestStore(t)
	require.Error(t, store.Save(context.Background(), nil))
}
