package schedule

import "time"

// Config controls when announcements fire and how often the clock is
// polled. The poll interval must be no coarser than one hour, or a whole
// boundary hour could pass between ticks unseen.
type Config struct {
	// WeeklyDay and Hour designate the weekly boundary: the announcement
	// hour on the designated weekday.
	WeeklyDay time.Weekday
	Hour      int

	// CheckInterval is the poll period.
	CheckInterval time.Duration
}

// DefaultConfig announces Sundays at hour 12, polling hourly.
func DefaultConfig() Config {
	return Config{
		WeeklyDay:     time.Sunday,
		Hour:          12,
		CheckInterval: time.Hour,
	}
}

// isWeeklyBoundary reports whether now falls inside the weekly boundary
// hour. True for the whole hour - the edge trigger in scheduler.go is what
// keeps the announcement to exactly one firing.
func (c Config) isWeeklyBoundary(now time.Time) bool {
	return now.Weekday() == c.WeeklyDay && now.Hour() == c.Hour
}

// isMonthlyBoundary reports whether now falls inside the announcement hour
// of the last day of the month, detected by tomorrow rolling into day 1.
func (c Config) isMonthlyBoundary(now time.Time) bool {
	tomorrow := now.AddDate(0, 0, 1)
	return tomorrow.Day() == 1 && now.Hour() == c.Hour
}
