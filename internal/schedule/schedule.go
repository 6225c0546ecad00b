// Package schedule computes the weekly posting instant. The main loop polls
// Due on a coarse ticker rather than sleeping until the target, so a laptop
// suspend or clock jump can't strand the trigger.
package schedule

import "time"

// NextRun returns the next occurrence of weekday at hour:minute in loc,
// strictly after now.
func NextRun(now time.Time, weekday time.Weekday, hour, minute int, loc *time.Location) time.Time {
	local := now.In(loc)
	daysAhead := (int(weekday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+daysAhead,
		hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// Weekly tracks a recurring weekly target instant.
type Weekly struct {
	weekday time.Weekday
	hour    int
	minute  int
	loc     *time.Location
	target  time.Time
}

// NewWeekly creates a weekly schedule with its first target computed from now.
func NewWeekly(now time.Time, weekday time.Weekday, hour, minute int, loc *time.Location) *Weekly {
	return &Weekly{
		weekday: weekday,
		hour:    hour,
		minute:  minute,
		loc:     loc,
		target:  NextRun(now, weekday, hour, minute, loc),
	}
}

// Target returns the current target instant.
func (w *Weekly) Target() time.Time {
	return w.target
}

// Due reports whether the target instant has passed.
func (w *Weekly) Due(now time.Time) bool {
	return !now.Before(w.target)
}

// Advance moves the target to the next weekly occurrence after now. Called
// after a fire (or a skipped fire) so a trigger can never run twice for the
// same instant.
func (w *Weekly) Advance(now time.Time) {
	w.target = NextRun(now, w.weekday, w.hour, w.minute, w.loc)
}
