// Package models defines the core domain entities for the snapbet application:
// bets, weekly stat lines, and scoring profiles. All models include built-in
// validation to ensure data integrity throughout the application.
//
// Terminology:
//   - Bet: a recorded wager between friends on NFL player fantasy performance,
//     either head-to-head (player A vs player B by PPG) or a threshold bet
//     (player A over/under a fantasy-point line).
//   - Snap share: fraction of a team's offensive plays a player was on the
//     field for, expressed here as a percentage (0-100).
package models

import (
	"errors"
	"fmt"
	"time"
)

// ScoringProfile selects the reception-point weighting for fantasy scoring.
type ScoringProfile string

const (
	ProfilePPR      ScoringProfile = "PPR"
	ProfileHalfPPR  ScoringProfile = "HALF"
	ProfileStandard ScoringProfile = "STD"
)

// ParseScoringProfile parses a user-supplied profile name.
func ParseScoringProfile(s string) (ScoringProfile, error) {
	switch ScoringProfile(s) {
	case ProfilePPR, ProfileHalfPPR, ProfileStandard:
		return ScoringProfile(s), nil
	}
	return "", fmt.Errorf("%w: scoring must be one of: PPR, HALF, STD", ErrInvalidInput)
}

// BetKind distinguishes head-to-head bets from single-player threshold bets.
type BetKind string

const (
	KindHeadToHead BetKind = "h2h"
	KindThreshold  BetKind = "threshold"
)

// Comparator is the direction of a threshold bet.
type Comparator string

const (
	CompOver  Comparator = "over"
	CompUnder Comparator = "under"
)

// BetStatus is the lifecycle state of a bet. Closed marks a bet whose week
// window has fully passed without a decidable outcome (subject never met the
// snap-share minimum, or never appeared in the feed); it is retired from
// sweeps and open-bet listings but can still be force-resolved.
type BetStatus string

const (
	StatusPending  BetStatus = "pending"
	StatusResolved BetStatus = "resolved"
	StatusClosed   BetStatus = "closed"
)

// Outcome is the resolved result of a bet. OutcomePush means neither side won
// (exact PPG tie, or points landing exactly on a threshold line).
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomePlayerA Outcome = "a"
	OutcomePlayerB Outcome = "b"
	OutcomeOver    Outcome = "over"
	OutcomeUnder   Outcome = "under"
	OutcomePush    Outcome = "push"
)

// MaxParticipants is the maximum number of users that can be tagged on a bet.
const MaxParticipants = 6

// Bet represents a recorded wager on NFL player fantasy performance over a
// week range. Bets are append-only: once created they are immutable except for
// the resolution fields, and they are never deleted.
//
// Participants are display/notification tags. By convention the creator backs
// side A for head-to-head bets and the comparator they stated for threshold
// bets; tagged participants back the opposing side. The resolver never
// consults them.
type Bet struct {
	ID           int64          `json:"id"`
	Creator      string         `json:"creator"`
	Participants []string       `json:"participants"`
	Kind         BetKind        `json:"kind"`
	PlayerA      string         `json:"player_a"`
	PlayerB      string         `json:"player_b,omitempty"`
	Comparator   Comparator     `json:"comparator,omitempty"`
	Line         float64        `json:"line,omitempty"`
	Profile      ScoringProfile `json:"profile"`
	MinSnapPct   float64        `json:"min_snap_pct"`
	Season       int            `json:"season"`
	StartWeek    int            `json:"start_week"`
	EndWeek      int            `json:"end_week"`
	Description  string         `json:"description,omitempty"`
	Status       BetStatus      `json:"status"`
	Outcome      Outcome        `json:"outcome,omitempty"`
	ResolutionID string         `json:"resolution_id,omitempty"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks that all bet fields are valid.
func (b *Bet) Validate() error {
	if b.Creator == "" {
		return errors.New("bet creator must not be empty")
	}
	if b.PlayerA == "" {
		return errors.New("player A must not be empty")
	}
	switch b.Kind {
	case KindHeadToHead:
		if b.PlayerB == "" {
			return errors.New("player B must not be empty for a head-to-head bet")
		}
	case KindThreshold:
		if b.Comparator != CompOver && b.Comparator != CompUnder {
			return errors.New("comparator must be 'over' or 'under' for a threshold bet")
		}
		if b.Line < 0 {
			return errors.New("threshold line must not be negative")
		}
	default:
		return errors.New("bet kind must be 'h2h' or 'threshold'")
	}
	if _, err := ParseScoringProfile(string(b.Profile)); err != nil {
		return errors.New("scoring profile must be one of: PPR, HALF, STD")
	}
	if b.MinSnapPct < 0 || b.MinSnapPct > 100 {
		return errors.New("min snap pct must be between 0 and 100")
	}
	if b.Season < 1999 {
		return errors.New("season must be a valid NFL season year")
	}
	if b.StartWeek < 1 || b.StartWeek > 18 {
		return errors.New("start week must be between 1 and 18")
	}
	if b.EndWeek < b.StartWeek || b.EndWeek > 18 {
		return errors.New("end week must be between start week and 18")
	}
	if len(b.Participants) > MaxParticipants {
		return fmt.Errorf("at most %d participants can be tagged", MaxParticipants)
	}
	seen := make(map[string]bool, len(b.Participants))
	for _, p := range b.Participants {
		if p == "" {
			return errors.New("participant tags must not be empty")
		}
		if seen[p] {
			return errors.New("participant tags must be unique")
		}
		seen[p] = true
	}
	switch b.Status {
	case StatusPending, StatusClosed:
		if b.Outcome != OutcomeNone {
			return fmt.Errorf("%s bet must not carry an outcome", b.Status)
		}
	case StatusResolved:
		if b.Outcome == OutcomeNone {
			return errors.New("resolved bet must carry an outcome")
		}
		if b.ResolutionID == "" {
			return errors.New("resolved bet must carry a resolution ID")
		}
	default:
		return errors.New("status must be 'pending', 'resolved', or 'closed'")
	}
	return nil
}

// HasParticipant reports whether the given user is tagged on the bet.
func (b *Bet) HasParticipant(user string) bool {
	for _, p := range b.Participants {
		if p == user {
			return true
		}
	}
	return false
}

// Subject returns a short human-readable description of what the bet is on.
func (b *Bet) Subject() string {
	if b.Kind == KindThreshold {
		return fmt.Sprintf("%s %s %.2f PPG", b.PlayerA, b.Comparator, b.Line)
	}
	return fmt.Sprintf("%s vs %s", b.PlayerA, b.PlayerB)
}

// DedupeParticipants removes duplicate tags preserving first-seen order.
func DedupeParticipants(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
