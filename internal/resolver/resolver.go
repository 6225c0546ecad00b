// Package resolver determines bet outcomes from computed fantasy points.
//
// Evaluate is a pure function: given the same bet and stat lines it always
// produces the same resolution, which is what makes re-resolution idempotent.
// Resolver wraps Evaluate with stat fetching and the store's compare-and-set
// commit, so a previously committed outcome is never changed unless the
// caller explicitly forces it.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"snapbet/internal/models"
	"snapbet/internal/scoring"
	"snapbet/internal/store"
)

// StatProvider supplies per-player weekly stat lines and the latest week with
// published data.
type StatProvider interface {
	WeeklyLines(ctx context.Context, player string, startWeek, endWeek int) ([]models.StatLine, error)
	CurrentMaxWeek(ctx context.Context) (int, error)
}

// Resolution is the outcome of evaluating a bet. When Deferred is set the bet
// stays pending and Reason says why.
type Resolution struct {
	Outcome  models.Outcome
	PPGA     float64
	PPGB     float64
	GamesA   int
	GamesB   int
	Deferred bool
	Reason   string
}

// Evaluate determines a bet's outcome from the stat lines of its subject(s).
// Head-to-head bets compare the two players' PPG; an exact tie is a push.
// Threshold bets compare player A's PPG against the line with a strict
// comparator; landing exactly on the line is a push.
//
// If either subject has no qualifying week (snap share below the bet's
// minimum in every week) or no stat lines at all, the resolution defers.
func Evaluate(bet models.Bet, linesA, linesB []models.StatLine) Resolution {
	ppgA, gamesA, res := subjectPPG(bet, bet.PlayerA, linesA)
	if res != nil {
		return *res
	}

	if bet.Kind == models.KindThreshold {
		// Outcome records which way the number landed; the reporter maps it
		// to win/loss per user based on the side each user took.
		out := models.OutcomePush
		switch {
		case ppgA > bet.Line:
			out = models.OutcomeOver
		case ppgA < bet.Line:
			out = models.OutcomeUnder
		}
		return Resolution{Outcome: out, PPGA: ppgA, GamesA: gamesA}
	}

	ppgB, gamesB, res := subjectPPG(bet, bet.PlayerB, linesB)
	if res != nil {
		res.PPGA = ppgA
		res.GamesA = gamesA
		return *res
	}

	out := models.OutcomePush
	switch {
	case ppgA > ppgB:
		out = models.OutcomePlayerA
	case ppgB > ppgA:
		out = models.OutcomePlayerB
	}
	return Resolution{Outcome: out, PPGA: ppgA, PPGB: ppgB, GamesA: gamesA, GamesB: gamesB}
}

// subjectPPG computes one subject's PPG, translating eligibility and missing
// data into a deferral.
func subjectPPG(bet models.Bet, player string, lines []models.StatLine) (float64, int, *Resolution) {
	if len(lines) == 0 {
		return 0, 0, &Resolution{
			Deferred: true,
			Reason:   fmt.Sprintf("no published stats for %s in weeks %d-%d", player, bet.StartWeek, bet.EndWeek),
		}
	}
	ppg, games, err := scoring.PPG(lines, bet.Profile, bet.MinSnapPct)
	if err != nil {
		return 0, 0, &Resolution{Deferred: true, Reason: err.Error()}
	}
	return ppg, games, nil
}

// Resolver resolves pending bets against the stat provider and commits
// outcomes to the store.
type Resolver struct {
	store    *store.Store
	provider StatProvider
	logger   zerolog.Logger
}

// New creates a new Resolver.
func New(s *store.Store, provider StatProvider, logger zerolog.Logger) *Resolver {
	return &Resolver{store: s, provider: provider, logger: logger}
}

// Resolve evaluates one bet and commits the outcome when it is decidable.
// A bet whose end week has no published data yet, or whose subject fails the
// eligibility filter, is left pending. Resolving an already-resolved bet
// without force returns the stored bet unchanged. With force the outcome is
// recomputed and overwritten under a fresh resolution id.
func (r *Resolver) Resolve(ctx context.Context, betID int64, force bool) (*models.Bet, Resolution, error) {
	bet, err := r.store.GetBet(ctx, betID)
	if err != nil {
		return nil, Resolution{}, err
	}

	if bet.Status == models.StatusResolved && !force {
		return bet, Resolution{Outcome: bet.Outcome}, nil
	}
	if bet.Status == models.StatusClosed && !force {
		return bet, Resolution{
			Deferred: true,
			Reason:   "bet closed without a decidable outcome, use force to re-resolve",
		}, nil
	}

	maxWeek, err := r.provider.CurrentMaxWeek(ctx)
	if err != nil {
		return bet, Resolution{}, err
	}
	if maxWeek < bet.EndWeek {
		return bet, Resolution{
			Deferred: true,
			Reason:   fmt.Sprintf("stats published through week %d, bet runs through week %d", maxWeek, bet.EndWeek),
		}, nil
	}

	res, err := r.evaluate(ctx, *bet)
	if err != nil {
		return bet, Resolution{}, err
	}
	if res.Deferred {
		r.logger.Info().Int64("bet", bet.ID).Str("reason", res.Reason).Msg("resolution deferred")
		return bet, res, nil
	}

	resolutionID := uuid.New().String()
	now := time.Now().UTC()
	err = r.store.CommitResolution(ctx, bet.ID, res.Outcome, resolutionID, now, force)
	if errors.Is(err, store.ErrAlreadyResolved) {
		// Lost a race with another invocation; the stored outcome stands.
		stored, getErr := r.store.GetBet(ctx, bet.ID)
		if getErr != nil {
			return bet, res, getErr
		}
		return stored, Resolution{Outcome: stored.Outcome}, nil
	}
	if err != nil {
		return bet, res, err
	}

	bet.Status = models.StatusResolved
	bet.Outcome = res.Outcome
	bet.ResolutionID = resolutionID
	bet.ResolvedAt = &now

	r.logger.Info().
		Int64("bet", bet.ID).
		Str("outcome", string(res.Outcome)).
		Float64("ppg_a", res.PPGA).
		Float64("ppg_b", res.PPGB).
		Msg("bet resolved")
	return bet, res, nil
}

// Preview evaluates a bet against currently published stats without touching
// the store, clamping the week range to what the feed has. Used for live
// standings on bets whose window is still open.
func (r *Resolver) Preview(ctx context.Context, bet models.Bet) (Resolution, error) {
	maxWeek, err := r.provider.CurrentMaxWeek(ctx)
	if err != nil {
		return Resolution{}, err
	}
	if maxWeek < bet.StartWeek {
		return Resolution{Deferred: true, Reason: "no stats published for the bet window yet"}, nil
	}
	clamped := bet
	if maxWeek < clamped.EndWeek {
		clamped.EndWeek = maxWeek
	}
	return r.evaluate(ctx, clamped)
}

func (r *Resolver) evaluate(ctx context.Context, bet models.Bet) (Resolution, error) {
	linesA, err := r.weeklyLines(ctx, bet, bet.PlayerA)
	if err != nil {
		return Resolution{}, err
	}

	var linesB []models.StatLine
	if bet.Kind == models.KindHeadToHead {
		linesB, err = r.weeklyLines(ctx, bet, bet.PlayerB)
		if err != nil {
			return Resolution{}, err
		}
	}

	return Evaluate(bet, linesA, linesB), nil
}

// weeklyLines maps a missing-player feed miss to empty lines (deferral)
// instead of an error, so one unknown name doesn't fail a whole sweep.
func (r *Resolver) weeklyLines(ctx context.Context, bet models.Bet, player string) ([]models.StatLine, error) {
	lines, err := r.provider.WeeklyLines(ctx, player, bet.StartWeek, bet.EndWeek)
	if errors.Is(err, models.ErrDataUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// Sweep resolves every pending bet of the season whose window has complete
// published data, then closes the ones that remained undecidable (no subject
// row in the feed, or no week over the snap-share minimum) so they stop
// re-entering sweeps and open-bet listings. Per-bet failures are logged and
// skipped; the sweep reports how many bets it resolved.
func (r *Resolver) Sweep(ctx context.Context, season int) (int, error) {
	maxWeek, err := r.provider.CurrentMaxWeek(ctx)
	if err != nil {
		return 0, err
	}
	if maxWeek == 0 {
		return 0, nil
	}

	pending, err := r.store.ListPending(ctx, season)
	if err != nil {
		return 0, err
	}

	resolved, failed := 0, 0
	for _, bet := range pending {
		if bet.EndWeek > maxWeek {
			continue
		}
		updated, res, err := r.Resolve(ctx, bet.ID, false)
		if err != nil {
			failed++
			r.logger.Warn().Err(err).Int64("bet", bet.ID).Msg("sweep: failed to resolve bet")
			continue
		}
		if !res.Deferred && updated.Status == models.StatusResolved {
			resolved++
		}
	}

	// Retire the undecidable remainder, but not on a pass where a transient
	// failure kept some bet from getting its fair resolution attempt.
	closed := 0
	if failed == 0 {
		closed, err = r.store.CloseCompleted(ctx, season, maxWeek)
		if err != nil {
			r.logger.Warn().Err(err).Msg("sweep: failed to close completed bets")
		}
	}

	r.logger.Info().
		Int("pending", len(pending)).
		Int("resolved", resolved).
		Int("closed", closed).
		Int("max_week", maxWeek).
		Msg("resolution sweep complete")
	return resolved, nil
}
