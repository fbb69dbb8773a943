package domain

import (
	"strings"
	"time"
)

// Frequency is how often a subscription delivers and bills.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
	FrequencyCustom    Frequency = "custom"
)

// IsValid checks if the frequency is known.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly, FrequencyCustom:
		return true
	default:
		return false
	}
}

// ParseFrequency parses a frequency name, ignoring case and surrounding space.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", ErrInvalidFrequency
	}
	return f, nil
}

// periodDays are fixed offsets, not calendar arithmetic: monthly is always
// 30 days and drifts against calendar months.
var periodDays = map[Frequency]int{
	FrequencyDaily:     1,
	FrequencyWeekly:    7,
	FrequencyMonthly:   30,
	FrequencyQuarterly: 90,
	FrequencyYearly:    365,
}

// NextOccurrence returns the date one period after reference. Unknown
// frequencies, including custom, use the yearly offset.
func NextOccurrence(reference time.Time, f Frequency) time.Time {
	days, ok := periodDays[f]
	if !ok {
		days = periodDays[FrequencyYearly]
	}
	return DateOf(reference).AddDate(0, 0, days)
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire and storage format for calendar dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}
