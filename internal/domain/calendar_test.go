package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// businessWeek is Mon-Fri 09:00-17:00.
func businessWeek() BusinessCalendar {
	window := []BusinessWindow{{StartMinute: 9 * 60, EndMinute: 17 * 60}}
	return BusinessCalendar{
		time.Monday:    window,
		time.Tuesday:   window,
		time.Wednesday: window,
		time.Thursday:  window,
		time.Friday:    window,
	}
}

func mondayAt(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	ts := time.Date(2026, time.January, 5, hour, minute, 0, 0, time.UTC)
	require.Equal(t, time.Monday, ts.Weekday())
	return ts
}

func TestIsBusinessTime(t *testing.T) {
	cal := businessWeek()

	assert.True(t, cal.IsBusinessTime(mondayAt(t, 9, 0)))
	assert.True(t, cal.IsBusinessTime(mondayAt(t, 16, 59)))
	assert.False(t, cal.IsBusinessTime(mondayAt(t, 17, 0)))
	assert.False(t, cal.IsBusinessTime(mondayAt(t, 8, 30)))

	saturday := time.Date(2026, time.January, 10, 12, 0, 0, 0, time.UTC)
	require.Equal(t, time.Saturday, saturday.Weekday())
	assert.False(t, cal.IsBusinessTime(saturday))
}

func TestIsBusinessTimeEmptyCalendar(t *testing.T) {
	var cal BusinessCalendar
	assert.True(t, cal.IsBusinessTime(time.Date(2026, time.January, 10, 3, 0, 0, 0, time.UTC)))
}

func TestAddWithinWindow(t *testing.T) {
	cal := businessWeek()
	got := cal.Add(mondayAt(t, 9, 0), time.Hour)
	assert.Equal(t, mondayAt(t, 10, 0), got)
}

func TestAddSnapsToWindowStart(t *testing.T) {
	cal := businessWeek()
	got := cal.Add(mondayAt(t, 8, 0), 30*time.Minute)
	assert.Equal(t, mondayAt(t, 9, 30), got)
}

func TestAddCrossesDayBoundary(t *testing.T) {
	cal := businessWeek()
	got := cal.Add(mondayAt(t, 16, 30), time.Hour)
	tuesday := time.Date(2026, time.January, 6, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, tuesday, got)
}

func TestAddSkipsWeekend(t *testing.T) {
	cal := businessWeek()
	friday := time.Date(2026, time.January, 9, 16, 30, 0, 0, time.UTC)
	require.Equal(t, time.Friday, friday.Weekday())

	got := cal.Add(friday, time.Hour)
	assert.Equal(t, time.Date(2026, time.January, 12, 9, 30, 0, 0, time.UTC), got)
}

func TestAddEmptyCalendarIsWallClock(t *testing.T) {
	var cal BusinessCalendar
	start := time.Date(2026, time.January, 10, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, start.Add(3*time.Hour), cal.Add(start, 3*time.Hour))
}

func TestBetween(t *testing.T) {
	cal := businessWeek()

	assert.Equal(t, 90*time.Minute, cal.Between(mondayAt(t, 9, 30), mondayAt(t, 11, 0)))

	// Overnight: only the in-window slices count.
	tuesday := time.Date(2026, time.January, 6, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Hour, cal.Between(mondayAt(t, 16, 30), tuesday))

	// Entirely outside business hours.
	assert.Equal(t, time.Duration(0), cal.Between(mondayAt(t, 7, 0), mondayAt(t, 8, 0)))

	// Reversed range.
	assert.Equal(t, time.Duration(0), cal.Between(mondayAt(t, 11, 0), mondayAt(t, 9, 0)))
}
