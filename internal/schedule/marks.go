// Package schedule runs periodic jobs on calendar-aligned marks. Successive
// marks are derived from the previous mark, never from the current time, so
// job duration and timer jitter cannot drift the cadence.
package schedule

import "time"

// NextSecondMark returns the next whole-second boundary after now.
func NextSecondMark(now time.Time) (time.Duration, time.Time) {
	target := now.Truncate(time.Second)
	if !target.After(now) {
		target = target.Add(time.Second)
	}
	return target.Sub(now), target
}

// NextMinuteMark returns the next mark at the given second of a minute.
func NextMinuteMark(now time.Time, sec int) (time.Duration, time.Time) {
	target := now.Truncate(time.Minute).Add(time.Duration(sec) * time.Second)
	if !target.After(now) {
		target = target.Add(time.Minute)
	}
	return target.Sub(now), target
}

// NextHourMark returns the next mark at the given minute and second of an hour.
func NextHourMark(now time.Time, min, sec int) (time.Duration, time.Time) {
	target := now.Truncate(time.Hour).
		Add(time.Duration(min)*time.Minute + time.Duration(sec)*time.Second)
	if !target.After(now) {
		target = target.Add(time.Hour)
	}
	return target.Sub(now), target
}

// NextDayMark returns the next mark at the given wall-clock time of day,
// in now's location.
func NextDayMark(now time.Time, hour, min, sec int) (time.Duration, time.Time) {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, sec, 0, now.Location())
	if !target.After(now) {
		target = target.AddDate(0, 0, 1)
	}
	return target.Sub(now), target
}

// NextWeekMark returns the next mark on the given weekday at the given
// wall-clock time.
func NextWeekMark(now time.Time, weekday time.Weekday, hour, min, sec int) (time.Duration, time.Time) {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, min, sec, 0, now.Location()).
		AddDate(0, 0, days)
	if !target.After(now) {
		target = target.AddDate(0, 0, 7)
	}
	return target.Sub(now), target
}

// NextMonthMark returns the next mark on the given day of the month at the
// given wall-clock time. Months shorter than day use their last day.
func NextMonthMark(now time.Time, day, hour, min, sec int) (time.Duration, time.Time) {
	target := monthMark(now.Year(), now.Month(), day, hour, min, sec, now.Location())
	if !target.After(now) {
		target = monthMark(now.Year(), now.Month()+1, day, hour, min, sec, now.Location())
	}
	return target.Sub(now), target
}

// NextYearMark returns the next mark on the given month and day at the given
// wall-clock time. Feb 29 falls back to Feb 28 in common years.
func NextYearMark(now time.Time, month time.Month, day, hour, min, sec int) (time.Duration, time.Time) {
	target := yearMark(now.Year(), month, day, hour, min, sec, now.Location())
	if !target.After(now) {
		target = yearMark(now.Year()+1, month, day, hour, min, sec, now.Location())
	}
	return target.Sub(now), target
}

// monthMark builds a mark in (year, month) with the day clamped to the
// month's length. month may be out of range; time.Date normalizes it.
func monthMark(year int, month time.Month, day, hour, min, sec int, loc *time.Location) time.Time {
	norm := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	if last := daysIn(norm.Year(), norm.Month(), loc); day > last {
		day = last
	}
	return time.Date(norm.Year(), norm.Month(), day, hour, min, sec, 0, loc)
}

func yearMark(year int, month time.Month, day, hour, min, sec int, loc *time.Location) time.Time {
	return monthMark(year, month, day, hour, min, sec, loc)
}

// daysIn returns the number of days in the month.
func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
