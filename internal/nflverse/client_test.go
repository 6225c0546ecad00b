package nflverse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"snapbet/internal/models"
)

const statsCSV = `player_id,player_display_name,team,season,season_type,week,receptions,receiving_yards,receiving_tds,rushing_yards,rushing_tds,passing_yards,passing_tds,interceptions,fumbles_lost
00-0001,CeeDee Lamb,DAL,2025,REG,1,8,110,1,0,0,0,0,0,0
00-0001,CeeDee Lamb,DAL,2025,REG,2,5,60,0,12,0,0,0,0,0
00-0001,CeeDee Lamb,DAL,2025,POST,19,9,140,2,0,0,0,0,0,0
00-0002,Amon-Ra St. Brown,DET,2025,REG,1,7,95,0,0,0,0,0,0,0
00-0003,Other Guy,DAL,2024,REG,1,4,50,0,0,0,0,0,0,0
`

const snapsCSV = `season,week,team,player,pfr_player_id,offense_pct
2025,1,DAL,CeeDee Lamb,LambCe00,0.92
2025,2,DAL,CeeDee Lamb,LambCe00,0.18
2025,1,DET,Amon-Ra St. Brown,StBrAm00,0.88
`

const playersCSV = `gsis_id,display_name,pfr_id
00-0001,CeeDee Lamb,LambCe00
00-0002,Amon-Ra St. Brown,StBrAm00
`

func testServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/stats_2025.csv", func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Write([]byte(statsCSV))
	})
	mux.HandleFunc("/snaps_2025.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(snapsCSV))
	})
	mux.HandleFunc("/players.csv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(playersCSV))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	return NewClient(ClientConfig{
		PlayerStatsURL: baseURL + "/stats_%d.csv",
		SnapCountsURL:  baseURL + "/snaps_%d.csv",
		PlayersURL:     baseURL + "/players.csv",
		Season:         2025,
		Timeout:        5 * time.Second,
		MaxRetries:     2,
		RetryDelayBase: 10 * time.Millisecond,
		CacheDir:       t.TempDir(),
		CacheTTL:       time.Hour,
	}, zerolog.Nop())
}

func TestWeeklyLinesJoinsSnapShares(t *testing.T) {
	srv := testServer(t, nil)
	c := testClient(t, srv.URL)

	lines, err := c.WeeklyLines(context.Background(), "ceedee lamb", 1, 18)
	if err != nil {
		t.Fatalf("WeeklyLines failed: %v", err)
	}

	// Postseason row and 2024 row are excluded
	if len(lines) != 2 {
		t.Fatalf("expected 2 regular-season lines, got %d", len(lines))
	}

	if lines[0].Week != 1 || lines[0].SnapSharePct != 92 {
		t.Errorf("week 1: got week=%d snap=%v, want week=1 snap=92", lines[0].Week, lines[0].SnapSharePct)
	}
	if lines[0].Receptions != 8 || lines[0].ReceivingYards != 110 || lines[0].ReceivingTDs != 1 {
		t.Errorf("week 1 counting stats wrong: %+v", lines[0])
	}
	if lines[1].Week != 2 || lines[1].SnapSharePct != 18 {
		t.Errorf("week 2: got week=%d snap=%v, want week=2 snap=18", lines[1].Week, lines[1].SnapSharePct)
	}
}

func TestWeeklyLinesWeekRange(t *testing.T) {
	srv := testServer(t, nil)
	c := testClient(t, srv.URL)

	lines, err := c.WeeklyLines(context.Background(), "CeeDee", 2, 2)
	if err != nil {
		t.Fatalf("WeeklyLines failed: %v", err)
	}
	if len(lines) != 1 || lines[0].Week != 2 {
		t.Errorf("expected only week 2, got %+v", lines)
	}
}

func TestWeeklyLinesUnknownPlayer(t *testing.T) {
	srv := testServer(t, nil)
	c := testClient(t, srv.URL)

	_, err := c.WeeklyLines(context.Background(), "Nobody Nowhere", 1, 18)
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestCurrentMaxWeek(t *testing.T) {
	srv := testServer(t, nil)
	c := testClient(t, srv.URL)

	week, err := c.CurrentMaxWeek(context.Background())
	if err != nil {
		t.Fatalf("CurrentMaxWeek failed: %v", err)
	}
	// Week 19 row is postseason and must not count
	if week != 2 {
		t.Errorf("CurrentMaxWeek = %d, want 2", week)
	}
}

func TestFeedCacheAvoidsRefetch(t *testing.T) {
	var hits atomic.Int64
	srv := testServer(t, &hits)
	c := testClient(t, srv.URL)

	if _, err := c.CurrentMaxWeek(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.CurrentMaxWeek(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := hits.Load(); got != 1 {
		t.Errorf("stats feed fetched %d times, want 1 (cache hit)", got)
	}
}

func TestDownloadUnavailableFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := testClient(t, srv.URL)
	_, err := c.CurrentMaxWeek(context.Background())
	if !errors.Is(err, models.ErrDataUnavailable) {
		t.Errorf("expected ErrDataUnavailable, got %v", err)
	}
}

func TestNormalizeSnapPct(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.92, 92},
		{1.0, 100},
		{0, 0},
		{85, 85}, // already a percentage
	}
	for _, tt := range tests {
		if got := normalizeSnapPct(tt.in); got != tt.want {
			t.Errorf("normalizeSnapPct(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
