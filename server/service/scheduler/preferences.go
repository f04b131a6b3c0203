package scheduler

import (
	"time"

	"github.com/pkg/errors"
)

// Preferences are the per-user constraints the resolver and conflict
// detector honor. Times of day are "HH:MM" strings interpreted in the
// user's timezone.
type Preferences struct {
	WorkHoursStart string
	WorkHoursEnd   string
	BreakStart     string
	BreakEnd       string
	Timezone       string
}

// DefaultPreferences returns the built-in defaults used when a user
// has never configured preferences.
func DefaultPreferences() *Preferences {
	return &Preferences{
		WorkHoursStart: "09:00",
		WorkHoursEnd:   "17:00",
		BreakStart:     "12:00",
		BreakEnd:       "13:00",
		Timezone:       "UTC",
	}
}

// Location resolves the user's timezone, falling back to UTC on an
// unknown zone name.
func (p *Preferences) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that every time-of-day field parses and that the
// work and break windows are ordered.
func (p *Preferences) Validate() error {
	fields := map[string]string{
		"work_hours_start": p.WorkHoursStart,
		"work_hours_end":   p.WorkHoursEnd,
		"break_start":      p.BreakStart,
		"break_end":        p.BreakEnd,
	}
	for name, value := range fields {
		if _, err := minutesOfDay(value); err != nil {
			return errors.Wrapf(err, "invalid %s", name)
		}
	}
	workStart, _ := minutesOfDay(p.WorkHoursStart)
	workEnd, _ := minutesOfDay(p.WorkHoursEnd)
	if workStart >= workEnd {
		return errors.New("work_hours_start must be before work_hours_end")
	}
	breakStart, _ := minutesOfDay(p.BreakStart)
	breakEnd, _ := minutesOfDay(p.BreakEnd)
	if breakStart >= breakEnd {
		return errors.New("break_start must be before break_end")
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		return errors.Wrapf(err, "invalid timezone %q", p.Timezone)
	}
	return nil
}

// workBounds returns the work-hours boundary for the day containing t,
// expressed in UTC.
func (p *Preferences) workBounds(t time.Time) (time.Time, time.Time) {
	return p.dayWindow(t, p.WorkHoursStart, p.WorkHoursEnd)
}

// breakBounds returns the break window for the day containing t,
// expressed in UTC.
func (p *Preferences) breakBounds(t time.Time) (time.Time, time.Time) {
	return p.dayWindow(t, p.BreakStart, p.BreakEnd)
}

func (p *Preferences) dayWindow(t time.Time, startOfDay, endOfDay string) (time.Time, time.Time) {
	loc := p.Location()
	local := t.In(loc)
	startMins, err := minutesOfDay(startOfDay)
	if err != nil {
		startMins = 0
	}
	endMins, err := minutesOfDay(endOfDay)
	if err != nil {
		endMins = 24 * 60
	}
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	start := midnight.Add(time.Duration(startMins) * time.Minute)
	end := midnight.Add(time.Duration(endMins) * time.Minute)
	return start.UTC(), end.UTC()
}

// minutesOfDay parses an "HH:MM" string into minutes since midnight.
func minutesOfDay(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid time of day %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
