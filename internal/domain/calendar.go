package domain

import "time"

// maxCalendarScanDays bounds window scans so a calendar with no business time
// cannot spin forever.
const maxCalendarScanDays = 1462

// BusinessWindow is a working interval within a day, in minutes from midnight.
type BusinessWindow struct {
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

// BusinessCalendar maps weekdays to working intervals. An empty calendar means
// around-the-clock business time.
type BusinessCalendar map[time.Weekday][]BusinessWindow

// IsBusinessTime reports whether ts falls inside a working interval.
func (c BusinessCalendar) IsBusinessTime(ts time.Time) bool {
	if len(c) == 0 {
		return true
	}
	minute := ts.Hour()*60 + ts.Minute()
	for _, window := range c[ts.Weekday()] {
		if minute >= window.StartMinute && minute < window.EndMinute {
			return true
		}
	}
	return false
}

// Add advances from by d counting only business time. When from is outside a
// window the clock starts at the next window boundary.
func (c BusinessCalendar) Add(from time.Time, d time.Duration) time.Time {
	if len(c) == 0 {
		return from.Add(d)
	}
	remaining := d
	cursor := from
	for day := 0; day < maxCalendarScanDays; day++ {
		dayStart := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, cursor.Location())
		for _, window := range c[cursor.Weekday()] {
			windowStart := dayStart.Add(time.Duration(window.StartMinute) * time.Minute)
			windowEnd := dayStart.Add(time.Duration(window.EndMinute) * time.Minute)
			if !windowEnd.After(cursor) {
				continue
			}
			segStart := windowStart
			if cursor.After(segStart) {
				segStart = cursor
			}
			available := windowEnd.Sub(segStart)
			if available >= remaining {
				return segStart.Add(remaining)
			}
			remaining -= available
		}
		cursor = dayStart.AddDate(0, 0, 1)
	}
	return cursor
}

// Between returns the business time elapsed between from and to.
func (c BusinessCalendar) Between(from, to time.Time) time.Duration {
	if !to.After(from) {
		return 0
	}
	if len(c) == 0 {
		return to.Sub(from)
	}
	var total time.Duration
	cursor := from
	for day := 0; day < maxCalendarScanDays && cursor.Before(to); day++ {
		dayStart := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 0, 0, 0, 0, cursor.Location())
		for _, window := range c[cursor.Weekday()] {
			windowStart := dayStart.Add(time.Duration(window.StartMinute) * time.Minute)
			windowEnd := dayStart.Add(time.Duration(window.EndMinute) * time.Minute)
			segStart := windowStart
			if cursor.After(segStart) {
				segStart = cursor
			}
			segEnd := windowEnd
			if to.Before(segEnd) {
				segEnd = to
			}
			if segEnd.After(segStart) {
				total += segEnd.Sub(segStart)
			}
		}
		cursor = dayStart.AddDate(0, 0, 1)
	}
	return total
}
