package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWeekdays verifies mask construction and queries.
func TestWeekdays(t *testing.T) {
	t.Parallel()

	mask := WeekdaysOf(time.Monday, time.Friday)

	require.True(t, mask.IsRepeating())
	require.True(t, mask.Contains(time.Monday))
	require.True(t, mask.Contains(time.Friday))
	require.False(t, mask.Contains(time.Sunday))
	require.Equal(t, "MoFr", mask.String())

	var empty Weekdays
	require.False(t, empty.IsRepeating())
	require.Equal(t, "once", empty.String())
}

// TestValue_Clone verifies the copy shares no mutable state with the original.
func TestValue_Clone(t *testing.T) {
	t.Parallel()

	date := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.Local)
	original := &Value{
		ID:         3,
		IsEnabled:  true,
		Hour:       7,
		Minutes:    30,
		DaysOfWeek: WeekdaysOf(time.Monday),
		Label:      "work",
		Date:       &date,
	}

	cloned := original.Clone()

	require.Equal(t, original, cloned)
	require.NotSame(t, original, cloned)
	require.NotSame(t, original.Date, cloned.Date)

	// Mutating the clone's date leaves the original intact.
	*cloned.Date = cloned.Date.AddDate(0, 0, 1)
	require.Equal(t, date, *original.Date)

	var nilValue *Value
	require.Nil(t, nilValue.Clone())
}
