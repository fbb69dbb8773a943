package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Schedule is a frequency plus, for custom frequencies, the weekdays on
// which deliveries happen.
type Schedule struct {
	frequency Frequency
	weekdays  []time.Weekday
}

// NewSchedule validates and creates a schedule.
func NewSchedule(frequency Frequency, weekdays []time.Weekday) (Schedule, error) {
	if !frequency.IsValid() {
		return Schedule{}, ErrInvalidFrequency
	}
	if frequency == FrequencyCustom && len(weekdays) == 0 {
		return Schedule{}, ErrCustomScheduleRequired
	}
	if frequency != FrequencyCustom && len(weekdays) > 0 {
		return Schedule{}, ErrWeekdaysRequireCustom
	}

	days := make([]time.Weekday, 0, len(weekdays))
	for _, d := range weekdays {
		if d < time.Sunday || d > time.Saturday {
			return Schedule{}, ErrInvalidWeekday
		}
		if !slices.Contains(days, d) {
			days = append(days, d)
		}
	}
	slices.Sort(days)

	return Schedule{frequency: frequency, weekdays: days}, nil
}

// MustSchedule is NewSchedule for fixed frequencies known to be valid.
func MustSchedule(frequency Frequency) Schedule {
	s, err := NewSchedule(frequency, nil)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Schedule) Frequency() Frequency { return s.frequency }

// Weekdays returns a copy of the custom delivery weekdays.
func (s Schedule) Weekdays() []time.Weekday { return slices.Clone(s.weekdays) }

// Equal reports whether two schedules produce the same dates.
func (s Schedule) Equal(other Schedule) bool {
	return s.frequency == other.frequency && slices.Equal(s.weekdays, other.weekdays)
}

// Next returns the first delivery date strictly after reference.
func (s Schedule) Next(reference time.Time) time.Time {
	reference = DateOf(reference)
	if s.frequency != FrequencyCustom || len(s.weekdays) == 0 {
		return NextOccurrence(reference, s.frequency)
	}

	byDay := make([]rrule.Weekday, 0, len(s.weekdays))
	for _, d := range s.weekdays {
		byDay = append(byDay, rruleWeekdays[d])
	}
	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   reference,
		Byweekday: byDay,
	})
	if err != nil {
		return NextOccurrence(reference, FrequencyWeekly)
	}
	next := rule.After(reference, false)
	if next.IsZero() {
		return NextOccurrence(reference, FrequencyWeekly)
	}
	return DateOf(next)
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

// ParseWeekdays parses a comma separated list such as "mon,thu" or
// "Monday, Thursday". An empty string yields no weekdays.
func ParseWeekdays(s string) ([]time.Weekday, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if len(name) < 3 {
			return nil, ErrInvalidWeekday
		}
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if name == full || name == full[:3] {
				days = append(days, d)
				found = true
				break
			}
		}
		if !found {
			return nil, ErrInvalidWeekday
		}
	}
	return days, nil
}

// FormatWeekdays renders weekdays as "mon,thu".
func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, 0, len(days))
	for _, d := range days {
		names = append(names, strings.ToLower(d.String()[:3]))
	}
	return strings.Join(names, ",")
}
