// Package reporter aggregates resolved bets into standings and renders the
// leaderboard and per-bet status messages. Rendering targets Telegram
// MarkdownV2, but the reporter itself has no side effects: it returns
// formatted payloads for the caller to post.
package reporter

import (
	"fmt"
	"sort"
	"strings"

	"snapbet/internal/models"
	"snapbet/internal/resolver"
)

// Record is one user's line in the standings.
type Record struct {
	User   string
	Wins   int
	Losses int
	Pushes int
	Bets   []int64 // bets the user participated in, in id order
}

// Standings aggregates win/loss/push records per user over the given bets.
// Only resolved bets count. The creator backs side A on head-to-head bets and
// the comparator they stated on threshold bets; tagged participants back the
// opposing side. Users are ordered by wins descending with a stable tie-break
// by user identifier ascending.
func Standings(bets []models.Bet) []Record {
	byUser := make(map[string]*Record)
	var order []string

	credit := func(user string, won, push bool, betID int64) {
		rec, ok := byUser[user]
		if !ok {
			rec = &Record{User: user}
			byUser[user] = rec
			order = append(order, user)
		}
		switch {
		case push:
			rec.Pushes++
		case won:
			rec.Wins++
		default:
			rec.Losses++
		}
		rec.Bets = append(rec.Bets, betID)
	}

	for _, bet := range bets {
		if bet.Status != models.StatusResolved {
			continue
		}
		push := bet.Outcome == models.OutcomePush
		creatorWon := bet.Outcome == models.OutcomePlayerA
		if bet.Kind == models.KindThreshold {
			creatorWon = !push && string(bet.Outcome) == string(bet.Comparator)
		}

		credit(bet.Creator, creatorWon, push, bet.ID)
		for _, p := range bet.Participants {
			if p == bet.Creator {
				continue
			}
			credit(p, !creatorWon, push, bet.ID)
		}
	}

	records := make([]Record, 0, len(order))
	for _, user := range order {
		records = append(records, *byUser[user])
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Wins != records[j].Wins {
			return records[i].Wins > records[j].Wins
		}
		return records[i].User < records[j].User
	})
	return records
}

// EmptyStandingsMessage is posted when a reporting period had no resolved bets.
const EmptyStandingsMessage = "No bets resolved this period\\. Use /addbet to get one going\\!"

// RenderStandings renders the leaderboard. A zero-length record set renders
// the empty-state message; it is never an error.
func RenderStandings(records []Record, title string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🏆 *%s*\n\n", Escape(title)))

	if len(records) == 0 {
		b.WriteString(EmptyStandingsMessage)
		return b.String()
	}

	for i, rec := range records {
		ids := make([]string, len(rec.Bets))
		for j, id := range rec.Bets {
			ids[j] = fmt.Sprintf("\\#%d", id)
		}
		b.WriteString(fmt.Sprintf("%d\\. *%s* — %d\\-%d",
			i+1, Escape(rec.User), rec.Wins, rec.Losses))
		if rec.Pushes > 0 {
			b.WriteString(fmt.Sprintf("\\-%d", rec.Pushes))
		}
		b.WriteString(fmt.Sprintf(" \\(%s\\)\n", strings.Join(ids, " ")))
	}
	return b.String()
}

// BetLine renders one bet's status line for the standings and weekly posts.
func BetLine(bet models.Bet, res resolver.Resolution) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("*\\#%d* %s", bet.ID, Escape(bet.Subject())))

	switch {
	case bet.Status == models.StatusResolved:
		b.WriteString(fmt.Sprintf(" — %s", Escape(outcomeText(bet))))
	case bet.Status == models.StatusClosed:
		b.WriteString(" — closed \\(no decidable outcome\\)")
	case res.Deferred:
		b.WriteString(fmt.Sprintf(" — pending \\(%s\\)", Escape(res.Reason)))
	default:
		b.WriteString(fmt.Sprintf(" — %s", Escape(leaderText(bet, res))))
	}

	b.WriteString(fmt.Sprintf("\n   %s, ≥%s%% snaps, W%d\\-%d",
		bet.Profile, Escape(trimFloat(bet.MinSnapPct)), bet.StartWeek, bet.EndWeek))
	if bet.Description != "" {
		b.WriteString(" — " + Escape(bet.Description))
	}
	if len(bet.Participants) > 0 {
		b.WriteString("\n   👥 " + Escape(strings.Join(bet.Participants, " ")))
	}
	return b.String()
}

// PPGText formats one side's points-per-game summary.
func PPGText(ppg float64, games int) string {
	unit := "games"
	if games == 1 {
		unit = "game"
	}
	return fmt.Sprintf("%.2f PPG over %d qualifying %s", ppg, games, unit)
}

func outcomeText(bet models.Bet) string {
	switch bet.Outcome {
	case models.OutcomePlayerA:
		return fmt.Sprintf("%s won", bet.PlayerA)
	case models.OutcomePlayerB:
		return fmt.Sprintf("%s won", bet.PlayerB)
	case models.OutcomeOver:
		return "over hit"
	case models.OutcomeUnder:
		return "under hit"
	case models.OutcomePush:
		return "push"
	}
	return "unresolved"
}

func leaderText(bet models.Bet, res resolver.Resolution) string {
	if bet.Kind == models.KindThreshold {
		return fmt.Sprintf("%s, line %.2f", PPGText(res.PPGA, res.GamesA), bet.Line)
	}
	delta := res.PPGA - res.PPGB
	switch {
	case delta > 0:
		return fmt.Sprintf("%s up by %.2f (%.2f vs %.2f)", bet.PlayerA, delta, res.PPGA, res.PPGB)
	case delta < 0:
		return fmt.Sprintf("%s up by %.2f (%.2f vs %.2f)", bet.PlayerB, -delta, res.PPGB, res.PPGA)
	}
	return fmt.Sprintf("tied at %.2f PPG", res.PPGA)
}

// trimFloat drops a trailing ".0" so thresholds like 25 render cleanly.
func trimFloat(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	return strings.TrimSuffix(s, ".0")
}

// Escape escapes the characters Telegram MarkdownV2 treats specially.
func Escape(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
