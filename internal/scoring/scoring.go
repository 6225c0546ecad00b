// Package scoring implements the fantasy-point formula and points-per-game
// aggregation. Everything here is a pure function of its inputs, so resolving
// the same bet twice always produces the same numbers.
//
// The three scoring profiles differ only in the reception-point term:
// PPR awards 1 point per reception, HALF awards 0.5, STD awards none.
package scoring

import (
	"math"

	"snapbet/internal/models"
)

// Weights maps counting stats to point values for one scoring profile.
type Weights struct {
	Receptions   float64
	PassYard     float64
	PassTD       float64
	Interception float64
	RushYard     float64
	RushTD       float64
	RecYard      float64
	RecTD        float64
	FumbleLost   float64
}

var presets = map[models.ScoringProfile]Weights{
	models.ProfilePPR: {
		Receptions: 1.0, PassYard: 0.04, PassTD: 4.0, Interception: -2.0,
		RushYard: 0.1, RushTD: 6.0, RecYard: 0.1, RecTD: 6.0, FumbleLost: -2.0,
	},
	models.ProfileHalfPPR: {
		Receptions: 0.5, PassYard: 0.04, PassTD: 4.0, Interception: -2.0,
		RushYard: 0.1, RushTD: 6.0, RecYard: 0.1, RecTD: 6.0, FumbleLost: -2.0,
	},
	models.ProfileStandard: {
		Receptions: 0.0, PassYard: 0.04, PassTD: 4.0, Interception: -2.0,
		RushYard: 0.1, RushTD: 6.0, RecYard: 0.1, RecTD: 6.0, FumbleLost: -2.0,
	},
}

// WeightsFor returns the point weights for a profile. Unknown profiles get
// the PPR weights; callers are expected to validate profiles at the edge.
func WeightsFor(profile models.ScoringProfile) Weights {
	if w, ok := presets[profile]; ok {
		return w
	}
	return presets[models.ProfilePPR]
}

// Points computes the fantasy-point value of a single week's stat line,
// rounded to two decimals.
func Points(line models.StatLine, profile models.ScoringProfile) float64 {
	w := WeightsFor(profile)
	pts := line.Receptions*w.Receptions +
		line.PassingYards*w.PassYard +
		line.PassingTDs*w.PassTD +
		line.Interceptions*w.Interception +
		line.RushingYards*w.RushYard +
		line.RushingTDs*w.RushTD +
		line.ReceivingYards*w.RecYard +
		line.ReceivingTDs*w.RecTD +
		line.FumblesLost*w.FumbleLost
	return round2(pts)
}

// PPG computes points per game over the given weeks, counting only weeks with
// a snap share at or above minSnapPct. Weeks below the threshold are excluded
// from both numerator and denominator. Returns the PPG (rounded to two
// decimals), the number of qualifying games, and an *models.EligibilityError
// when no week qualifies; PPG is undefined in that case.
func PPG(lines []models.StatLine, profile models.ScoringProfile, minSnapPct float64) (float64, int, error) {
	var total float64
	qualified := 0
	player := ""

	for _, line := range lines {
		if player == "" {
			player = line.Player
		}
		if line.SnapSharePct < minSnapPct {
			continue
		}
		total += Points(line, profile)
		qualified++
	}

	if qualified == 0 {
		return 0, 0, &models.EligibilityError{
			Player:     player,
			MinSnapPct: minSnapPct,
			Weeks:      len(lines),
		}
	}

	return round2(total / float64(qualified)), qualified, nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
