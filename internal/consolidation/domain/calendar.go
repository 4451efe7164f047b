package consolidation

import (
	"iter"
	"time"
)

// Interval is one 15-minute slot of the canonical grid.
type Interval struct {
	Key
	Start   time.Time
	End     time.Time
	Weekday time.Weekday
	Period  TariffPeriod
}

// CalendarGrid is the canonical, gap-free sequence of intervals of one month.
// Invariants:
// 1) Exactly SlotsPerDay x days-in-month intervals.
// 2) Ends are strictly increasing and lie in (month start, next month start].
// 3) Keys are unique; the midnight label closes its day block.
// 4) Immutable once built; classification is computed once here.
type CalendarGrid struct {
	year       int
	month      time.Month
	classifier TariffClassifier

	intervals []Interval
	index     map[Key]int
}

// NewCalendarGrid builds the grid for year/month and labels every interval.
func NewCalendarGrid(year int, month time.Month, holidays HolidaySet, rule BoundaryRule) (*CalendarGrid, error) {
	if year < 1 || month < time.January || month > time.December {
		return nil, ErrInvalidMonth
	}
	rule, err := ParseBoundaryRule(string(rule))
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := start.AddDate(0, 1, 0)
	days := int(next.Sub(start) / (24 * time.Hour))

	grid := &CalendarGrid{
		year:       year,
		month:      month,
		classifier: NewTariffClassifier(rule, holidays),
		intervals:  make([]Interval, 0, days*SlotsPerDay),
		index:      make(map[Key]int, days*SlotsPerDay),
	}
	for end := start.Add(IntervalLength); !end.After(next); end = end.Add(IntervalLength) {
		key := KeyFor(end)
		grid.index[key] = len(grid.intervals)
		grid.intervals = append(grid.intervals, Interval{
			Key:     key,
			Start:   end.Add(-IntervalLength),
			End:     end,
			Weekday: key.Date.Weekday(),
			Period:  grid.classifier.ClassifyKey(key),
		})
	}
	return grid, nil
}

// DaysIn returns the number of days of year/month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Year returns the grid year.
func (g *CalendarGrid) Year() int { return g.year }

// Month returns the grid month.
func (g *CalendarGrid) Month() time.Month { return g.month }

// Rule returns the boundary rule used for classification.
func (g *CalendarGrid) Rule() BoundaryRule { return g.classifier.Rule() }

// Holidays returns the holiday days used for classification.
func (g *CalendarGrid) Holidays() []int { return g.classifier.holidays.Days() }

// Len returns the number of intervals.
func (g *CalendarGrid) Len() int { return len(g.intervals) }

// At returns the i-th interval.
func (g *CalendarGrid) At(i int) Interval { return g.intervals[i] }

// IndexOf returns the position of key in the grid.
func (g *CalendarGrid) IndexOf(key Key) (int, bool) {
	i, ok := g.index[key]
	return i, ok
}

// All iterates the intervals in grid order. It can be ranged over repeatedly.
func (g *CalendarGrid) All() iter.Seq[Interval] {
	return func(yield func(Interval) bool) {
		for _, interval := range g.intervals {
			if !yield(interval) {
				return
			}
		}
	}
}

// Intervals returns a copy of the intervals.
func (g *CalendarGrid) Intervals() []Interval {
	out := make([]Interval, len(g.intervals))
	copy(out, g.intervals)
	return out
}

// Periods returns the tariff label of every interval in grid order.
func (g *CalendarGrid) Periods() []TariffPeriod {
	out := make([]TariffPeriod, len(g.intervals))
	for i, interval := range g.intervals {
		out[i] = interval.Period
	}
	return out
}
