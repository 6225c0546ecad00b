package models

import (
	"errors"
	"fmt"
)

// Error kinds. None of these are fatal to the running process: each command
// invocation fails independently and the error is reported back to the user.
var (
	// ErrInvalidInput marks malformed command arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDataUnavailable marks a stat feed missing data for the requested
	// week. Resolution is deferred and the bet reported as pending.
	ErrDataUnavailable = errors.New("stat data unavailable")

	// ErrStoreFailure marks an unreachable or failing persistence layer.
	ErrStoreFailure = errors.New("store failure")
)

// EligibilityError reports that a player had no week with a snap share at or
// above the configured minimum, so PPG is undefined. The bet stays pending.
type EligibilityError struct {
	Player     string
	MinSnapPct float64
	Weeks      int // weeks inspected
}

func (e *EligibilityError) Error() string {
	return fmt.Sprintf("%s has no qualifying game at >=%.0f%% snaps across %d week(s)",
		e.Player, e.MinSnapPct, e.Weeks)
}
