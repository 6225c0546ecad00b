package models

import "errors"

// StatLine holds one player's offensive counting stats and snap share for a
// single week. Lines are sourced from the nflverse weekly feeds and are
// read-only within this system.
type StatLine struct {
	Player         string  `json:"player"`
	Team           string  `json:"team"`
	Season         int     `json:"season"`
	Week           int     `json:"week"`
	SnapSharePct   float64 `json:"snap_share_pct"` // 0-100
	Receptions     float64 `json:"receptions"`
	ReceivingYards float64 `json:"receiving_yards"`
	ReceivingTDs   float64 `json:"receiving_tds"`
	RushingYards   float64 `json:"rushing_yards"`
	RushingTDs     float64 `json:"rushing_tds"`
	PassingYards   float64 `json:"passing_yards"`
	PassingTDs     float64 `json:"passing_tds"`
	Interceptions  float64 `json:"interceptions"`
	FumblesLost    float64 `json:"fumbles_lost"`
}

// Validate checks that all stat line fields are valid.
func (l *StatLine) Validate() error {
	if l.Player == "" {
		return errors.New("stat line player must not be empty")
	}
	if l.Week < 1 || l.Week > 18 {
		return errors.New("stat line week must be between 1 and 18")
	}
	if l.SnapSharePct < 0 || l.SnapSharePct > 100 {
		return errors.New("snap share must be between 0 and 100")
	}
	if l.Receptions < 0 {
		return errors.New("receptions must not be negative")
	}
	return nil
}
