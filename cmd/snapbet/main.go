package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"snapbet/internal/config"
	"snapbet/internal/logger"
	"snapbet/internal/models"
	"snapbet/internal/nflverse"
	"snapbet/internal/reporter"
	"snapbet/internal/resolver"
	"snapbet/internal/schedule"
	"snapbet/internal/store"
	"snapbet/internal/telegram"
)

var (
	configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// A .env file is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	season := cfg.Season(time.Now())

	st, err := store.Open(cfg.Store.DBPath, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to open bet store")
	}
	defer st.Close()

	feed := nflverse.NewClient(nflverse.ClientConfig{
		PlayerStatsURL: cfg.NFLVerse.PlayerStatsURL,
		SnapCountsURL:  cfg.NFLVerse.SnapCountsURL,
		PlayersURL:     cfg.NFLVerse.PlayersURL,
		Season:         season,
		Timeout:        cfg.NFLVerse.Timeout,
		MaxRetries:     cfg.NFLVerse.MaxRetries,
		RetryDelayBase: cfg.NFLVerse.RetryDelayBase,
		CacheDir:       cfg.NFLVerse.CacheDir,
		CacheTTL:       cfg.NFLVerse.CacheTTL,
	}, logg)

	res := resolver.New(st, feed, logg)

	profile, err := models.ParseScoringProfile(cfg.Scoring.DefaultProfile)
	if err != nil {
		logg.Fatal().Err(err).Msg("invalid default scoring profile")
	}

	defaults := telegram.Defaults{
		Profile:    profile,
		MinSnapPct: cfg.Scoring.MinSnapPct,
		Season:     season,
	}

	bot, err := telegram.New(
		cfg.Telegram.BotToken,
		cfg.Telegram.ChannelID,
		cfg.Telegram.MaxRetries,
		cfg.Telegram.RetryDelayBase,
		st, res, defaults, logg,
	)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to initialize Telegram bot")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logg.Info().Msg("shutdown signal received")
		cancel()
	}()

	go bot.Run(ctx)

	logg.Info().
		Int("season", season).
		Dur("sweep_interval", cfg.Resolver.SweepInterval).
		Bool("weekly_post", cfg.Weekly.Enabled).
		Msg("snapbet started")

	sweepTicker := time.NewTicker(cfg.Resolver.SweepInterval)
	defer sweepTicker.Stop()

	var weekly *schedule.Weekly
	weeklyTicker := time.NewTicker(cfg.Weekly.CheckInterval)
	defer weeklyTicker.Stop()

	if cfg.Weekly.Enabled {
		loc, err := time.LoadLocation(cfg.Weekly.Timezone)
		if err != nil {
			logg.Fatal().Err(err).Str("tz", cfg.Weekly.Timezone).Msg("invalid weekly timezone")
		}
		weekly = schedule.NewWeekly(time.Now(), cfg.WeeklyWeekday(), cfg.Weekly.Hour, cfg.Weekly.Minute, loc)
		logg.Info().Time("next_post", weekly.Target()).Msg("weekly post scheduled")
	}

	for {
		select {
		case <-ctx.Done():
			logg.Info().Msg("service stopped")
			return

		case <-sweepTicker.C:
			runSweep(ctx, res, season, logg)

		case now := <-weeklyTicker.C:
			if weekly == nil || !weekly.Due(now) {
				continue
			}
			// Settle what we can before reporting, so the post reflects
			// the freshest stats.
			runSweep(ctx, res, season, logg)
			if err := postWeeklyReport(ctx, st, res, bot, season); err != nil {
				logg.Error().Err(err).Msg("weekly post failed")
			}
			weekly.Advance(now)
			logg.Info().Time("next_post", weekly.Target()).Msg("weekly post done")
		}
	}
}

func runSweep(ctx context.Context, res *resolver.Resolver, season int, logg zerolog.Logger) {
	n, err := res.Sweep(ctx, season)
	if err != nil {
		logg.Error().Err(err).Msg("resolution sweep failed")
		return
	}
	if n > 0 {
		logg.Info().Int("resolved", n).Msg("resolution sweep settled bets")
	}
}

// postWeeklyReport composes the scheduled channel message: season standings
// from resolved bets, then a live line per open bet.
func postWeeklyReport(ctx context.Context, st *store.Store, res *resolver.Resolver, bot *telegram.Bot, season int) error {
	bets, err := st.ListSeason(ctx, season)
	if err != nil {
		return fmt.Errorf("failed to list season bets: %w", err)
	}

	var resolved []models.Bet
	var open []models.Bet
	for _, bet := range bets {
		switch bet.Status {
		case models.StatusResolved:
			resolved = append(resolved, bet)
		case models.StatusPending:
			open = append(open, bet)
		}
	}

	records := reporter.Standings(resolved)
	var sb strings.Builder
	sb.WriteString(reporter.RenderStandings(records, fmt.Sprintf("%d season standings", season)))

	if len(open) > 0 {
		sb.WriteString("\n\n*Open bets*\n")
		for _, bet := range open {
			live, err := res.Preview(ctx, bet)
			if err != nil {
				live = resolver.Resolution{Deferred: true, Reason: "stats unavailable"}
			}
			sb.WriteString("\n" + reporter.BetLine(bet, live))
		}
	}

	return bot.SendChannel(sb.String())
}
