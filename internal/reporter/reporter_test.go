package reporter

import (
	"strings"
	"testing"

	"snapbet/internal/models"
	"snapbet/internal/resolver"
)

func resolvedBet(id int64, creator string, participants []string, outcome models.Outcome) models.Bet {
	return models.Bet{
		ID:           id,
		Creator:      creator,
		Participants: participants,
		Kind:         models.KindHeadToHead,
		PlayerA:      "A",
		PlayerB:      "B",
		Profile:      models.ProfilePPR,
		MinSnapPct:   25,
		Season:       2025,
		StartWeek:    1,
		EndWeek:      18,
		Status:       models.StatusResolved,
		Outcome:      outcome,
		ResolutionID: "res",
	}
}

func TestStandingsAggregation(t *testing.T) {
	bets := []models.Bet{
		resolvedBet(1, "alice", []string{"bob"}, models.OutcomePlayerA),   // alice W, bob L
		resolvedBet(2, "alice", []string{"bob"}, models.OutcomePlayerB),   // alice L, bob W
		resolvedBet(3, "carol", []string{"alice"}, models.OutcomePlayerA), // carol W, alice L
		resolvedBet(4, "bob", []string{"carol"}, models.OutcomePush),      // both push
	}

	records := Standings(bets)
	if len(records) != 3 {
		t.Fatalf("expected 3 users, got %d", len(records))
	}

	byUser := make(map[string]Record)
	for _, r := range records {
		byUser[r.User] = r
	}

	if r := byUser["alice"]; r.Wins != 1 || r.Losses != 2 || r.Pushes != 0 {
		t.Errorf("alice record = %d-%d-%d, want 1-2-0", r.Wins, r.Losses, r.Pushes)
	}
	if r := byUser["bob"]; r.Wins != 1 || r.Losses != 1 || r.Pushes != 1 {
		t.Errorf("bob record = %d-%d-%d, want 1-1-1", r.Wins, r.Losses, r.Pushes)
	}
	if r := byUser["carol"]; r.Wins != 1 || r.Losses != 0 || r.Pushes != 1 {
		t.Errorf("carol record = %d-%d-%d, want 1-0-1", r.Wins, r.Losses, r.Pushes)
	}
}

func thresholdBet(id int64, creator string, participants []string, comp models.Comparator, outcome models.Outcome) models.Bet {
	bet := resolvedBet(id, creator, participants, outcome)
	bet.Kind = models.KindThreshold
	bet.PlayerB = ""
	bet.Comparator = comp
	bet.Line = 12
	return bet
}

func TestStandingsThresholdCreditsStatedComparator(t *testing.T) {
	// The creator's side of a threshold bet is the comparator they stated,
	// not "over": when an under bet hits, its creator wins.
	bets := []models.Bet{
		thresholdBet(1, "alice", []string{"bob"}, models.CompUnder, models.OutcomeUnder), // alice W, bob L
		thresholdBet(2, "alice", []string{"bob"}, models.CompUnder, models.OutcomeOver),  // alice L, bob W
		thresholdBet(3, "carol", []string{"dave"}, models.CompOver, models.OutcomeOver),  // carol W, dave L
		thresholdBet(4, "carol", []string{"dave"}, models.CompOver, models.OutcomePush),  // both push
	}

	byUser := make(map[string]Record)
	for _, r := range Standings(bets) {
		byUser[r.User] = r
	}

	if r := byUser["alice"]; r.Wins != 1 || r.Losses != 1 {
		t.Errorf("alice record = %d-%d, want 1-1", r.Wins, r.Losses)
	}
	if r := byUser["bob"]; r.Wins != 1 || r.Losses != 1 {
		t.Errorf("bob record = %d-%d, want 1-1", r.Wins, r.Losses)
	}
	if r := byUser["carol"]; r.Wins != 1 || r.Losses != 0 || r.Pushes != 1 {
		t.Errorf("carol record = %d-%d-%d, want 1-0-1", r.Wins, r.Losses, r.Pushes)
	}
	if r := byUser["dave"]; r.Wins != 0 || r.Losses != 1 || r.Pushes != 1 {
		t.Errorf("dave record = %d-%d-%d, want 0-1-1", r.Wins, r.Losses, r.Pushes)
	}
}

func TestStandingsOrderingAndTieBreak(t *testing.T) {
	bets := []models.Bet{
		resolvedBet(1, "zoe", []string{"amy"}, models.OutcomePlayerA),  // zoe W, amy L
		resolvedBet(2, "amy", []string{"zoe"}, models.OutcomePlayerA),  // amy W, zoe L
		resolvedBet(3, "bea", []string{"dot"}, models.OutcomePlayerA),  // bea W, dot L
		resolvedBet(4, "bea", []string{"dot"}, models.OutcomePlayerA),  // bea W, dot L
	}

	records := Standings(bets)
	if records[0].User != "bea" {
		t.Errorf("leader = %s, want bea (2 wins)", records[0].User)
	}
	// amy and zoe both 1-1: tie broken by user id ascending
	if records[1].User != "amy" || records[2].User != "zoe" {
		t.Errorf("tie-break order = %s, %s; want amy, zoe", records[1].User, records[2].User)
	}
}

func TestStandingsIgnoresPending(t *testing.T) {
	pending := resolvedBet(1, "alice", []string{"bob"}, models.OutcomeNone)
	pending.Status = models.StatusPending
	pending.ResolutionID = ""

	records := Standings([]models.Bet{pending})
	if len(records) != 0 {
		t.Errorf("pending bets must not appear in standings, got %v", records)
	}
}

func TestRenderStandingsEmpty(t *testing.T) {
	msg := RenderStandings(nil, "Weekly Standings")
	if !strings.Contains(msg, "No bets resolved this period") {
		t.Errorf("empty standings should render the empty-state message, got %q", msg)
	}
}

func TestRenderStandingsListsRecords(t *testing.T) {
	records := Standings([]models.Bet{
		resolvedBet(7, "alice", []string{"bob"}, models.OutcomePlayerA),
	})
	msg := RenderStandings(records, "Weekly Standings")

	if !strings.Contains(msg, "alice") || !strings.Contains(msg, "1\\-0") {
		t.Errorf("rendered standings missing winner line: %q", msg)
	}
	if !strings.Contains(msg, "\\#7") {
		t.Errorf("rendered standings missing bet reference: %q", msg)
	}
}

func TestBetLineStates(t *testing.T) {
	resolved := resolvedBet(3, "alice", []string{"bob"}, models.OutcomePlayerA)
	lineResolved := BetLine(resolved, resolver.Resolution{})
	if !strings.Contains(lineResolved, "A won") {
		t.Errorf("resolved bet line missing outcome: %q", lineResolved)
	}

	pending := resolved
	pending.Status = models.StatusPending
	pending.Outcome = models.OutcomeNone
	lineDeferred := BetLine(pending, resolver.Resolution{Deferred: true, Reason: "no stats yet"})
	if !strings.Contains(lineDeferred, "pending") {
		t.Errorf("deferred bet line missing pending marker: %q", lineDeferred)
	}

	lineLive := BetLine(pending, resolver.Resolution{PPGA: 12.5, PPGB: 10.25, GamesA: 4, GamesB: 4})
	if !strings.Contains(lineLive, "up by 2\\.25") {
		t.Errorf("live bet line missing leader margin: %q", lineLive)
	}

	closed := pending
	closed.Status = models.StatusClosed
	lineClosed := BetLine(closed, resolver.Resolution{})
	if !strings.Contains(lineClosed, "closed") {
		t.Errorf("closed bet line missing closed marker: %q", lineClosed)
	}
}

func TestEscape(t *testing.T) {
	got := Escape("CeeDee Lamb (DAL) - 17.5!")
	want := "CeeDee Lamb \\(DAL\\) \\- 17\\.5\\!"
	if got != want {
		t.Errorf("Escape = %q, want %q", got, want)
	}
}

func TestPPGText(t *testing.T) {
	if got := PPGText(17.5, 1); got != "17.50 PPG over 1 qualifying game" {
		t.Errorf("PPGText singular = %q", got)
	}
	if got := PPGText(9.33, 3); got != "9.33 PPG over 3 qualifying games" {
		t.Errorf("PPGText plural = %q", got)
	}
}
