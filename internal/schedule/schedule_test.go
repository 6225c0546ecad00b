package schedule

import (
	"testing"
	"time"
)

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func TestNextRunLaterSameWeek(t *testing.T) {
	loc := toronto(t)
	// Monday 2025-09-08 10:00 local; target Tuesday 12:00
	now := time.Date(2025, time.September, 8, 10, 0, 0, 0, loc)

	got := NextRun(now, time.Tuesday, 12, 0, loc)
	want := time.Date(2025, time.September, 9, 12, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRunSameDayBeforeTime(t *testing.T) {
	loc := toronto(t)
	// Tuesday 2025-09-09 08:00, before the 12:00 target: fires today
	now := time.Date(2025, time.September, 9, 8, 0, 0, 0, loc)

	got := NextRun(now, time.Tuesday, 12, 0, loc)
	want := time.Date(2025, time.September, 9, 12, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRunSameDayAfterTime(t *testing.T) {
	loc := toronto(t)
	// Tuesday 13:00, past the target: next week
	now := time.Date(2025, time.September, 9, 13, 0, 0, 0, loc)

	got := NextRun(now, time.Tuesday, 12, 0, loc)
	want := time.Date(2025, time.September, 16, 12, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestNextRunExactlyAtTarget(t *testing.T) {
	loc := toronto(t)
	now := time.Date(2025, time.September, 9, 12, 0, 0, 0, loc)

	// Strictly after now: exactly at the instant rolls to next week
	got := NextRun(now, time.Tuesday, 12, 0, loc)
	want := time.Date(2025, time.September, 16, 12, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}

func TestWeeklyDueAndAdvance(t *testing.T) {
	loc := toronto(t)
	now := time.Date(2025, time.September, 8, 10, 0, 0, 0, loc)
	w := NewWeekly(now, time.Tuesday, 12, 0, loc)

	if w.Due(now) {
		t.Error("schedule due before target")
	}

	atTarget := time.Date(2025, time.September, 9, 12, 0, 0, 0, loc)
	if !w.Due(atTarget) {
		t.Error("schedule not due at target")
	}
	if !w.Due(atTarget.Add(3 * time.Hour)) {
		t.Error("schedule not due after target")
	}

	w.Advance(atTarget.Add(time.Minute))
	if w.Due(atTarget.Add(2 * time.Minute)) {
		t.Error("schedule still due immediately after advance")
	}
	want := time.Date(2025, time.September, 16, 12, 0, 0, 0, loc)
	if !w.Target().Equal(want) {
		t.Errorf("advanced target = %v, want %v", w.Target(), want)
	}
}

func TestNextRunAcrossDSTFallBack(t *testing.T) {
	loc := toronto(t)
	// Saturday 2025-11-01; DST ends Sunday 2025-11-02. Target Tuesday must
	// still land on 12:00 local.
	now := time.Date(2025, time.November, 1, 9, 0, 0, 0, loc)

	got := NextRun(now, time.Tuesday, 12, 0, loc)
	if got.Hour() != 12 || got.Weekday() != time.Tuesday {
		t.Errorf("NextRun across DST = %v, want Tuesday 12:00 local", got)
	}
}
