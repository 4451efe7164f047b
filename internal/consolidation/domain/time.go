package consolidation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// IntervalLength is the fixed resolution of the canonical grid.
	IntervalLength = 15 * time.Minute
	// SlotsPerDay is the number of grid intervals owned by one day.
	SlotsPerDay = 96

	minutesPerDay  = 24 * 60
	intervalMinute = 15
)

// TimeOfDay is a wall-clock time in minutes since midnight (0..1439).
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS". Seconds are dropped.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("consolidation: invalid time of day %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, fmt.Errorf("consolidation: invalid time of day %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("consolidation: invalid time of day %q", value)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("consolidation: invalid time of day %q", value)
		}
	}
	// Some exports write the end-of-day stamp as 24:00.
	if hour == 24 {
		if minute != 0 {
			return 0, fmt.Errorf("consolidation: invalid time of day %q", value)
		}
		return 0, nil
	}
	return NewTimeOfDay(hour, minute), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String formats as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Date is a calendar day without a clock.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the wall-clock date of t.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight of the date in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Weekday returns the day of week.
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// String formats as 2006-01-02.
func (d Date) String() string { return d.Time().Format("2006-01-02") }

// Key identifies one grid interval by its label: the date owning the
// interval and the wall-clock time at which the interval ends.
type Key struct {
	Date Date
	Time TimeOfDay
}

// KeyFor maps an instant to the label of the interval ending at it.
// Seconds are truncated. An instant at 00:00 closes the previous day.
func KeyFor(at time.Time) Key {
	wall := wallClock(at)
	tod := TimeOfDay(wall.Hour()*60 + wall.Minute())
	if tod == 0 {
		return Key{Date: DateOf(wall.AddDate(0, 0, -1)), Time: 0}
	}
	return Key{Date: DateOf(wall), Time: tod}
}

// KeyAt builds the key for a labelled (date, time) pair.
func KeyAt(date Date, tod TimeOfDay) Key {
	return Key{Date: date, Time: tod}
}

// End returns the instant at which the keyed interval ends.
func (k Key) End() time.Time {
	if k.Time == 0 {
		return k.Date.Time().AddDate(0, 0, 1)
	}
	return k.Date.Time().Add(time.Duration(k.Time) * time.Minute)
}

// Slot returns the position of the key inside its day block (0..95).
// The midnight label is the last slot.
func (k Key) Slot() int {
	return (int(k.Time)/intervalMinute + SlotsPerDay - 1) % SlotsPerDay
}

// OnGrid reports whether the time falls on a 15-minute boundary.
func (k Key) OnGrid() bool { return int(k.Time)%intervalMinute == 0 }

// String formats as "2006-01-02 15:04".
func (k Key) String() string { return k.Date.String() + " " + k.Time.String() }

func wallClock(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC)
}
