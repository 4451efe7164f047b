package consolidation

import (
	"strings"
	"time"
)

// TariffPeriod is the tariff label of an interval.
type TariffPeriod string

const (
	// PeriodHP is the peak period (hora punta).
	PeriodHP TariffPeriod = "HP"
	// PeriodHFP is the off-peak period (hora fuera de punta).
	PeriodHFP TariffPeriod = "HFP"
)

// BoundaryRule selects how a working day is split into HP and HFP.
// The two rules disagree at the edges (18:05, 23:10): the choice is
// configuration, not a fix.
type BoundaryRule string

const (
	// RuleOffPeakOutside: HFP when tod >= 23:15 or tod <= 18:00, HP otherwise.
	RuleOffPeakOutside BoundaryRule = "off_peak_outside"
	// RulePeakWindow: HP when 18:15 <= tod <= 23:00, HFP otherwise.
	RulePeakWindow BoundaryRule = "peak_window"

	// DefaultBoundaryRule is the canonical rule.
	DefaultBoundaryRule = RuleOffPeakOutside
)

var (
	offPeakFrom  = NewTimeOfDay(23, 15)
	offPeakUntil = NewTimeOfDay(18, 0)
	peakFrom     = NewTimeOfDay(18, 15)
	peakUntil    = NewTimeOfDay(23, 0)
)

// ParseBoundaryRule resolves a rule name; blank selects the default.
func ParseBoundaryRule(name string) (BoundaryRule, error) {
	switch BoundaryRule(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultBoundaryRule, nil
	case RuleOffPeakOutside:
		return RuleOffPeakOutside, nil
	case RulePeakWindow:
		return RulePeakWindow, nil
	default:
		return "", ErrUnknownTariffRule
	}
}

// Classify labels one interval. Holidays and Sundays are HFP all day;
// otherwise the boundary rule decides on the time of day.
func Classify(rule BoundaryRule, day int, weekday time.Weekday, tod TimeOfDay, holidays HolidaySet) TariffPeriod {
	if holidays.Contains(day) || weekday == time.Sunday {
		return PeriodHFP
	}
	switch rule {
	case RulePeakWindow:
		if tod >= peakFrom && tod <= peakUntil {
			return PeriodHP
		}
		return PeriodHFP
	default:
		if tod >= offPeakFrom || tod <= offPeakUntil {
			return PeriodHFP
		}
		return PeriodHP
	}
}

// TariffClassifier binds a rule and a holiday set for one run.
type TariffClassifier struct {
	rule     BoundaryRule
	holidays HolidaySet
}

// NewTariffClassifier constructs a classifier. An empty rule selects the default.
func NewTariffClassifier(rule BoundaryRule, holidays HolidaySet) TariffClassifier {
	if rule == "" {
		rule = DefaultBoundaryRule
	}
	return TariffClassifier{rule: rule, holidays: holidays.clone()}
}

// Rule returns the boundary rule.
func (c TariffClassifier) Rule() BoundaryRule { return c.rule }

// ClassifyKey labels the interval identified by key.
func (c TariffClassifier) ClassifyKey(key Key) TariffPeriod {
	return Classify(c.rule, key.Date.Day, key.Date.Weekday(), key.Time, c.holidays)
}
