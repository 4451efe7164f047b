package consolidation

import (
	"sort"
	"strconv"
	"strings"
)

// HolidaySet is a set of days of month (1..31) treated as off-peak all day.
type HolidaySet struct {
	days map[int]struct{}
}

// NewHolidaySet validates and builds a set.
func NewHolidaySet(days ...int) (HolidaySet, error) {
	set := HolidaySet{days: make(map[int]struct{}, len(days))}
	for _, day := range days {
		if day < 1 || day > 31 {
			return HolidaySet{}, ErrInvalidHolidayFormat
		}
		set.days[day] = struct{}{}
	}
	return set, nil
}

// ParseHolidays parses a comma separated list such as "5, 7,15".
// Blank input is the empty set. Any invalid token rejects the whole input.
func ParseHolidays(input string) (HolidaySet, error) {
	if strings.TrimSpace(input) == "" {
		return HolidaySet{}, nil
	}
	parts := strings.Split(input, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return HolidaySet{}, ErrInvalidHolidayFormat
		}
		days = append(days, day)
	}
	return NewHolidaySet(days...)
}

// Contains reports whether day is a holiday.
func (s HolidaySet) Contains(day int) bool {
	_, ok := s.days[day]
	return ok
}

// Days returns the holidays in ascending order.
func (s HolidaySet) Days() []int {
	days := make([]int, 0, len(s.days))
	for day := range s.days {
		days = append(days, day)
	}
	sort.Ints(days)
	return days
}

// Len returns the number of holidays.
func (s HolidaySet) Len() int { return len(s.days) }

// String formats as "5,7,15".
func (s HolidaySet) String() string {
	days := s.Days()
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(day)
	}
	return strings.Join(parts, ",")
}

func (s HolidaySet) clone() HolidaySet {
	cp := HolidaySet{days: make(map[int]struct{}, len(s.days))}
	for day := range s.days {
		cp.days[day] = struct{}{}
	}
	return cp
}
