// Package nflverse fetches the weekly player-stat and snap-count CSV feeds
// published by the nflverse project and joins them into per-week stat lines.
//
// The feeds are regenerated nightly during the season, so responses are cached
// on disk with a TTL; a slow or unreachable feed surfaces as a transient
// DataUnavailable error rather than hanging the caller.
package nflverse

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"snapbet/internal/models"
)

// ClientConfig holds the feed endpoints and fetch behavior.
type ClientConfig struct {
	PlayerStatsURL string // template with one %d (season)
	SnapCountsURL  string // template with one %d (season)
	PlayersURL     string // id map, not season-scoped
	Season         int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	CacheDir       string
	CacheTTL       time.Duration
}

// Client provides read-only access to the nflverse stat feeds.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new nflverse client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Season returns the season the client serves.
func (c *Client) Season() int {
	return c.cfg.Season
}

// table is a parsed CSV feed with column lookup by header name.
type table struct {
	cols map[string]int
	rows [][]string
}

func (t *table) get(row []string, col string) string {
	idx, ok := t.cols[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func (t *table) getFloat(row []string, col string) float64 {
	v, err := strconv.ParseFloat(t.get(row, col), 64)
	if err != nil {
		return 0
	}
	return v
}

func (t *table) getInt(row []string, col string) int {
	v, err := strconv.Atoi(t.get(row, col))
	if err != nil {
		return 0
	}
	return v
}

func parseTable(r io.Reader) (*table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV rows: %w", err)
	}
	return &table{cols: cols, rows: rows}, nil
}

// fetchFeed returns the feed at url, preferring a disk-cached copy younger
// than the cache TTL. Fresh downloads are written atomically (temp + rename)
// so a crash mid-write never leaves a corrupt cache entry.
func (c *Client) fetchFeed(ctx context.Context, url, cacheName string) (*table, error) {
	cachePath := filepath.Join(c.cfg.CacheDir, cacheName)

	if info, err := os.Stat(cachePath); err == nil && time.Since(info.ModTime()) < c.cfg.CacheTTL {
		f, err := os.Open(cachePath)
		if err == nil {
			defer f.Close()
			t, err := parseTable(f)
			if err == nil {
				c.logger.Debug().Str("feed", cacheName).Msg("serving feed from cache")
				return t, nil
			}
			c.logger.Warn().Err(err).Str("feed", cacheName).Msg("cached feed unreadable, refetching")
		}
	}

	body, err := c.download(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %v: %w", cacheName, err, models.ErrDataUnavailable)
	}

	if err := c.writeCache(cachePath, body); err != nil {
		// Cache misses are survivable; log and continue with the fetched bytes.
		c.logger.Warn().Err(err).Str("feed", cacheName).Msg("failed to cache feed")
	}

	t, err := parseTable(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %v: %w", cacheName, err, models.ErrDataUnavailable)
	}
	return t, nil
}

// download performs the HTTP GET with linear-backoff retry.
func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.cfg.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelayBase * time.Duration(i)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, lastErr
			}
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) writeCache(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, body, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return err
	}
	return nil
}

// feeds fetches the three season feeds concurrently.
func (c *Client) feeds(ctx context.Context) (stats, snaps, players *table, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		stats, err = c.fetchFeed(gctx,
			fmt.Sprintf(c.cfg.PlayerStatsURL, c.cfg.Season),
			fmt.Sprintf("player_stats_%d.csv", c.cfg.Season))
		return err
	})
	g.Go(func() error {
		var err error
		snaps, err = c.fetchFeed(gctx,
			fmt.Sprintf(c.cfg.SnapCountsURL, c.cfg.Season),
			fmt.Sprintf("snap_counts_%d.csv", c.cfg.Season))
		return err
	})
	g.Go(func() error {
		var err error
		players, err = c.fetchFeed(gctx, c.cfg.PlayersURL, "players_all.csv")
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return stats, snaps, players, nil
}

// snapKey identifies one player-week in the snap-count feed.
type snapKey struct {
	week int
	team string
	id   string // pfr id, or player name for the fallback index
}

// WeeklyLines returns the regular-season stat lines for a player between
// startWeek and endWeek inclusive. Player matching is a case-insensitive
// substring match on the feed's player name, mirroring how the bets name
// their subjects. Snap shares are joined from the snap-count feed by PFR id,
// falling back to a name match; a player-week with no snap row gets 0%.
//
// A player with no stat rows at all in the range is reported as
// DataUnavailable so resolution can defer rather than resolve incorrectly.
func (c *Client) WeeklyLines(ctx context.Context, player string, startWeek, endWeek int) ([]models.StatLine, error) {
	stats, snaps, players, err := c.feeds(ctx)
	if err != nil {
		return nil, err
	}

	// gsis id -> pfr id from the id-map feed
	pfrByGsis := make(map[string]string)
	for _, row := range players.rows {
		gsis := players.get(row, "gsis_id")
		pfr := players.get(row, "pfr_id")
		if gsis != "" && pfr != "" {
			pfrByGsis[gsis] = pfr
		}
	}

	// snap share indexes: primary by pfr id, fallback by feed player name
	byPfr := make(map[snapKey]float64)
	byName := make(map[snapKey]float64)
	for _, row := range snaps.rows {
		if snaps.getInt(row, "season") != c.cfg.Season {
			continue
		}
		week := snaps.getInt(row, "week")
		team := snaps.get(row, "team")
		pct := normalizeSnapPct(snaps.getFloat(row, "offense_pct"))
		if pfr := snaps.get(row, "pfr_player_id"); pfr != "" {
			byPfr[snapKey{week: week, team: team, id: pfr}] = pct
		}
		if name := snaps.get(row, "player"); name != "" {
			byName[snapKey{week: week, team: team, id: strings.ToLower(name)}] = pct
		}
	}

	needle := strings.ToLower(strings.TrimSpace(player))
	if needle == "" {
		return nil, fmt.Errorf("%w: player name must not be empty", models.ErrInvalidInput)
	}

	var lines []models.StatLine
	for _, row := range stats.rows {
		if stats.getInt(row, "season") != c.cfg.Season {
			continue
		}
		if stats.get(row, "season_type") != "REG" {
			continue
		}
		week := stats.getInt(row, "week")
		if week < startWeek || week > endWeek {
			continue
		}
		name := stats.get(row, "player_display_name")
		if name == "" {
			name = stats.get(row, "player_name")
		}
		if !strings.Contains(strings.ToLower(name), needle) {
			continue
		}

		team := stats.get(row, "team")
		if team == "" {
			team = stats.get(row, "recent_team")
		}

		snapPct := 0.0
		if pfr := pfrByGsis[stats.get(row, "player_id")]; pfr != "" {
			snapPct = byPfr[snapKey{week: week, team: team, id: pfr}]
		}
		if snapPct == 0 {
			snapPct = byName[snapKey{week: week, team: team, id: strings.ToLower(name)}]
		}

		lines = append(lines, models.StatLine{
			Player:         name,
			Team:           team,
			Season:         c.cfg.Season,
			Week:           week,
			SnapSharePct:   snapPct,
			Receptions:     stats.getFloat(row, "receptions"),
			ReceivingYards: stats.getFloat(row, "receiving_yards"),
			ReceivingTDs:   stats.getFloat(row, "receiving_tds"),
			RushingYards:   stats.getFloat(row, "rushing_yards"),
			RushingTDs:     stats.getFloat(row, "rushing_tds"),
			PassingYards:   stats.getFloat(row, "passing_yards"),
			PassingTDs:     stats.getFloat(row, "passing_tds"),
			Interceptions:  stats.getFloat(row, "interceptions"),
			FumblesLost:    stats.getFloat(row, "fumbles_lost"),
		})
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("no stat rows for %q in weeks %d-%d: %w",
			player, startWeek, endWeek, models.ErrDataUnavailable)
	}
	return lines, nil
}

// CurrentMaxWeek returns the latest regular-season week present in the stat
// feed, or 0 when the season has no published data yet.
func (c *Client) CurrentMaxWeek(ctx context.Context) (int, error) {
	stats, err := c.fetchFeed(ctx,
		fmt.Sprintf(c.cfg.PlayerStatsURL, c.cfg.Season),
		fmt.Sprintf("player_stats_%d.csv", c.cfg.Season))
	if err != nil {
		if errors.Is(err, models.ErrDataUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%v: %w", err, models.ErrDataUnavailable)
	}

	maxWeek := 0
	for _, row := range stats.rows {
		if stats.getInt(row, "season") != c.cfg.Season {
			continue
		}
		if stats.get(row, "season_type") != "REG" {
			continue
		}
		if w := stats.getInt(row, "week"); w > maxWeek {
			maxWeek = w
		}
	}
	return maxWeek, nil
}

// normalizeSnapPct converts the feed's offense_pct to a 0-100 percentage.
// The snap-count feed publishes a 0-1 fraction.
func normalizeSnapPct(v float64) float64 {
	if v > 0 && v <= 1.0 {
		return v * 100
	}
	return v
}
