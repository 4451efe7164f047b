package consolidation

import (
	"errors"
	"testing"
	"time"
)

func TestClassify_BoundariesOnWorkingDay(t *testing.T) {
	none := HolidaySet{}
	tuesday := time.Tuesday
	for tod := TimeOfDay(0); tod < minutesPerDay; tod++ {
		got := Classify(RuleOffPeakOutside, 6, tuesday, tod, none)
		want := PeriodHP
		if tod <= NewTimeOfDay(18, 0) || tod >= NewTimeOfDay(23, 15) {
			want = PeriodHFP
		}
		if got != want {
			t.Fatalf("classify %s: expected %s, got %s", tod, want, got)
		}
	}
	if got := Classify(RuleOffPeakOutside, 6, tuesday, NewTimeOfDay(18, 0), none); got != PeriodHFP {
		t.Fatalf("18:00 expected HFP, got %s", got)
	}
	if got := Classify(RuleOffPeakOutside, 6, tuesday, NewTimeOfDay(18, 1), none); got != PeriodHP {
		t.Fatalf("18:01 expected HP, got %s", got)
	}
	if got := Classify(RuleOffPeakOutside, 6, tuesday, NewTimeOfDay(23, 14), none); got != PeriodHP {
		t.Fatalf("23:14 expected HP, got %s", got)
	}
	if got := Classify(RuleOffPeakOutside, 6, tuesday, NewTimeOfDay(23, 15), none); got != PeriodHFP {
		t.Fatalf("23:15 expected HFP, got %s", got)
	}
}

func TestClassify_PeakWindowRuleDiffersAtEdges(t *testing.T) {
	none := HolidaySet{}
	cases := []struct {
		tod       TimeOfDay
		canonical TariffPeriod
		window    TariffPeriod
	}{
		{NewTimeOfDay(18, 5), PeriodHP, PeriodHFP},
		{NewTimeOfDay(18, 15), PeriodHP, PeriodHP},
		{NewTimeOfDay(23, 0), PeriodHP, PeriodHP},
		{NewTimeOfDay(23, 10), PeriodHP, PeriodHFP},
		{NewTimeOfDay(23, 15), PeriodHFP, PeriodHFP},
	}
	for _, tc := range cases {
		if got := Classify(RuleOffPeakOutside, 6, time.Tuesday, tc.tod, none); got != tc.canonical {
			t.Fatalf("canonical %s: expected %s, got %s", tc.tod, tc.canonical, got)
		}
		if got := Classify(RulePeakWindow, 6, time.Tuesday, tc.tod, none); got != tc.window {
			t.Fatalf("window %s: expected %s, got %s", tc.tod, tc.window, got)
		}
	}
}

func TestClassify_HolidaysAndSundaysAreOffPeak(t *testing.T) {
	holidays, err := NewHolidaySet(5)
	if err != nil {
		t.Fatalf("holidays: %v", err)
	}
	for _, rule := range []BoundaryRule{RuleOffPeakOutside, RulePeakWindow} {
		for tod := TimeOfDay(0); tod < minutesPerDay; tod += 15 {
			if got := Classify(rule, 5, time.Monday, tod, holidays); got != PeriodHFP {
				t.Fatalf("%s holiday %s: expected HFP, got %s", rule, tod, got)
			}
			if got := Classify(rule, 11, time.Sunday, tod, holidays); got != PeriodHFP {
				t.Fatalf("%s sunday %s: expected HFP, got %s", rule, tod, got)
			}
		}
	}
}

func TestClassify_February2024Scenario(t *testing.T) {
	holidays, err := ParseHolidays("5")
	if err != nil {
		t.Fatalf("holidays: %v", err)
	}
	grid, err := NewCalendarGrid(2024, time.February, holidays, "")
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	for interval := range grid.All() {
		if interval.Key.Date.Day == 5 && interval.Period != PeriodHFP {
			t.Fatalf("holiday interval %s: expected HFP", interval.Key)
		}
	}

	check := func(day int, tod TimeOfDay, want TariffPeriod) {
		t.Helper()
		i, ok := grid.IndexOf(KeyAt(Date{2024, time.February, day}, tod))
		if !ok {
			t.Fatalf("key Feb %d %s not in grid", day, tod)
		}
		if got := grid.At(i).Period; got != want {
			t.Fatalf("Feb %d %s: expected %s, got %s", day, tod, want, got)
		}
	}
	check(11, NewTimeOfDay(12, 0), PeriodHFP)
	check(6, NewTimeOfDay(12, 0), PeriodHFP)
	check(6, NewTimeOfDay(18, 0), PeriodHFP)
	check(6, NewTimeOfDay(18, 15), PeriodHP)
	check(6, NewTimeOfDay(19, 0), PeriodHP)
	check(6, NewTimeOfDay(23, 0), PeriodHP)
	check(6, NewTimeOfDay(23, 15), PeriodHFP)
	check(5, 0, PeriodHFP)

	if got := Classify(grid.Rule(), 6, time.Tuesday, NewTimeOfDay(23, 20), holidays); got != PeriodHFP {
		t.Fatalf("Feb 6 23:20: expected HFP, got %s", got)
	}
	if got := Classify(grid.Rule(), 6, time.Tuesday, NewTimeOfDay(0, 5), holidays); got != PeriodHFP {
		t.Fatalf("Feb 6 00:05: expected HFP, got %s", got)
	}
	if _, ok := grid.IndexOf(KeyFor(time.Date(2024, 2, 6, 0, 5, 0, 0, time.UTC))); ok {
		t.Fatalf("00:05 is not a grid boundary")
	}
}

func TestParseHolidays(t *testing.T) {
	set, err := ParseHolidays(" 5, 7,15 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set.String() != "5,7,15" {
		t.Fatalf("expected 5,7,15, got %s", set.String())
	}
	empty, err := ParseHolidays("   ")
	if err != nil || empty.Len() != 0 {
		t.Fatalf("expected empty set, got %v %v", empty.Days(), err)
	}
	for _, input := range []string{"5,x", "5,,7", "0", "32", "5;7"} {
		if _, err := ParseHolidays(input); !errors.Is(err, ErrInvalidHolidayFormat) {
			t.Fatalf("%q: expected ErrInvalidHolidayFormat, got %v", input, err)
		}
	}
}

func TestParseBoundaryRule(t *testing.T) {
	if rule, err := ParseBoundaryRule(""); err != nil || rule != DefaultBoundaryRule {
		t.Fatalf("expected default rule, got %s %v", rule, err)
	}
	if rule, err := ParseBoundaryRule("PEAK_WINDOW"); err != nil || rule != RulePeakWindow {
		t.Fatalf("expected peak_window, got %s %v", rule, err)
	}
	if _, err := ParseBoundaryRule("night"); !errors.Is(err, ErrUnknownTariffRule) {
		t.Fatalf("expected ErrUnknownTariffRule, got %v", err)
	}
}
