// Package telegram runs the chat side of the bot: a long-polling update loop,
// command dispatch, and message delivery with retry for the weekly channel
// post. Replies use MarkdownV2 with a plain-text fallback when Telegram
// rejects the formatting.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"snapbet/internal/models"
	"snapbet/internal/reporter"
	"snapbet/internal/resolver"
	"snapbet/internal/store"
)

// Defaults are applied to new bets when the command omits an option.
type Defaults struct {
	Profile    models.ScoringProfile
	MinSnapPct float64
	Season     int
}

type handlerFunc func(ctx context.Context, user, args string) (string, error)

// Bot wires the Telegram API to the bet store and resolver.
type Bot struct {
	api            *tgbotapi.BotAPI
	channelID      int64
	maxRetries     int
	retryDelayBase time.Duration

	store    *store.Store
	resolver *resolver.Resolver
	defaults Defaults
	logger   zerolog.Logger

	handlers map[string]handlerFunc
}

// New creates the bot. channelID may be empty when no weekly channel post is
// configured.
func New(botToken, channelID string, maxRetries int, retryDelayBase time.Duration, st *store.Store, rs *resolver.Resolver, defaults Defaults, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	var channel int64
	if channelID != "" {
		channel, err = strconv.ParseInt(channelID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid channel ID: %w", err)
		}
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	b := &Bot{
		api:            api,
		channelID:      channel,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		store:          st,
		resolver:       rs,
		defaults:       defaults,
		logger:         logger.With().Str("component", "telegram").Logger(),
	}

	b.handlers = map[string]handlerFunc{
		"addbet":     b.handleAddBet,
		"mybets":     b.handleMyBets,
		"standings":  b.handleStandings,
		"editbet":    b.handleEditBet,
		"resolvebet": b.handleResolveBet,
		"help":       b.handleHelp,
		"start":      b.handleHelp,
	}

	return b, nil
}

// Run polls for updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info().Str("bot", b.api.Self.UserName).Msg("listening for commands")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.dispatch(ctx, update.Message)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message) {
	handler, ok := b.handlers[strings.ToLower(msg.Command())]
	if !ok {
		return
	}

	user := displayUser(msg.From)
	text, err := handler(ctx, user, strings.TrimSpace(msg.CommandArguments()))
	if err != nil {
		b.logger.Warn().
			Str("command", msg.Command()).
			Str("user", user).
			Err(err).
			Msg("command failed")
		text = userFacing(err)
	}

	b.reply(msg.Chat.ID, text)
}

// displayUser identifies a sender by @username, falling back to the numeric
// Telegram ID for accounts without one.
func displayUser(from *tgbotapi.User) string {
	if from == nil {
		return "unknown"
	}
	if from.UserName != "" {
		return from.UserName
	}
	return strconv.FormatInt(from.ID, 10)
}

// userFacing turns an internal error into a reply the chat can act on.
func userFacing(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return reporter.Escape("⚠️ " + trimSentinel(err, models.ErrInvalidInput))
	case errors.Is(err, store.ErrNotFound):
		return reporter.Escape("⚠️ No bet with that id.")
	case errors.Is(err, store.ErrAlreadyResolved):
		return reporter.Escape("⚠️ That bet is no longer pending. /resolvebet <id> force re-resolves it.")
	case errors.Is(err, models.ErrDataUnavailable):
		return reporter.Escape("📡 The stat feed is unavailable right now, try again in a bit.")
	default:
		return reporter.Escape("Something went wrong, try again in a bit.")
	}
}

// trimSentinel keeps the human half of a wrapped sentinel error message.
func trimSentinel(err error, sentinel error) string {
	msg := err.Error()
	if rest, found := strings.CutPrefix(msg, sentinel.Error()+": "); found {
		return rest
	}
	return msg
}

func (b *Bot) handleAddBet(ctx context.Context, user, args string) (string, error) {
	bet, err := parseAddBet(args, b.defaults)
	if err != nil {
		return "", err
	}
	bet.Creator = user
	bet.CreatedAt = time.Now().UTC()

	id, err := b.store.CreateBet(ctx, bet)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Bet \\#%d is on: %s", id, reporter.Escape(bet.Subject())))
	sb.WriteString(fmt.Sprintf("\n%s scoring, weeks %d\\-%d, min %s%% snaps",
		bet.Profile, bet.StartWeek, bet.EndWeek, reporter.Escape(strconv.FormatFloat(bet.MinSnapPct, 'f', -1, 64))))
	if len(bet.Participants) > 0 {
		sb.WriteString("\nIn: @" + reporter.Escape(strings.Join(bet.Participants, " @")))
	}
	if bet.Description != "" {
		sb.WriteString("\n_" + reporter.Escape(bet.Description) + "_")
	}
	return sb.String(), nil
}

func (b *Bot) handleMyBets(ctx context.Context, user, _ string) (string, error) {
	bets, err := b.store.ListByUser(ctx, user, b.defaults.Season)
	if err != nil {
		return "", err
	}
	if len(bets) == 0 {
		return reporter.Escape("You have no bets this season. /addbet to change that."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎟 *Your %d bets*\n", b.defaults.Season))
	for _, bet := range bets {
		res := b.previewOrEmpty(ctx, bet)
		sb.WriteString("\n" + reporter.BetLine(bet, res))
	}
	return sb.String(), nil
}

func (b *Bot) handleStandings(ctx context.Context, _, args string) (string, error) {
	resolved, title, err := b.resolvedForPeriod(ctx, args)
	if err != nil {
		return "", err
	}

	records := reporter.Standings(resolved)
	var sb strings.Builder
	sb.WriteString(reporter.RenderStandings(records, title))

	pending, err := b.store.ListPending(ctx, b.defaults.Season)
	if err != nil {
		return "", err
	}
	if len(pending) > 0 {
		sb.WriteString("\n\n*Open bets*\n")
		for _, bet := range pending {
			res := b.previewOrEmpty(ctx, bet)
			sb.WriteString("\n" + reporter.BetLine(bet, res))
		}
	}
	return sb.String(), nil
}

// resolvedForPeriod picks the resolved bets to rank. Default is the whole
// season; a numeric argument narrows it to the trailing N days.
func (b *Bot) resolvedForPeriod(ctx context.Context, args string) ([]models.Bet, string, error) {
	if args == "" {
		bets, err := b.store.ListSeason(ctx, b.defaults.Season)
		if err != nil {
			return nil, "", err
		}
		resolved := bets[:0:0]
		for _, bet := range bets {
			if bet.Status == models.StatusResolved {
				resolved = append(resolved, bet)
			}
		}
		return resolved, fmt.Sprintf("%d season standings", b.defaults.Season), nil
	}

	days, err := strconv.Atoi(args)
	if err != nil || days < 1 {
		return nil, "", fmt.Errorf("%w: usage: /standings [days]", models.ErrInvalidInput)
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	bets, err := b.store.ListResolvedSince(ctx, since)
	if err != nil {
		return nil, "", err
	}
	return bets, fmt.Sprintf("Standings, last %d days", days), nil
}

func (b *Bot) handleEditBet(ctx context.Context, user, args string) (string, error) {
	id, upd, err := parseEditBet(args)
	if err != nil {
		return "", err
	}

	bet, err := b.store.GetBet(ctx, id)
	if err != nil {
		return "", err
	}
	if bet.Creator != user {
		return "", fmt.Errorf("%w: only %s can edit bet #%d", models.ErrInvalidInput, bet.Creator, id)
	}

	if err := b.store.UpdateBet(ctx, id, upd); err != nil {
		return "", err
	}

	updated, err := b.store.GetBet(ctx, id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✏️ Bet \\#%d updated: %s", id, reporter.Escape(updated.Subject())), nil
}

func (b *Bot) handleResolveBet(ctx context.Context, _, args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return "", fmt.Errorf("%w: usage: /resolvebet <id> [force]", models.ErrInvalidInput)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id < 1 {
		return "", fmt.Errorf("%w: the first argument is the bet id", models.ErrInvalidInput)
	}
	force := false
	if len(fields) == 2 {
		if !strings.EqualFold(fields[1], "force") {
			return "", fmt.Errorf("%w: usage: /resolvebet <id> [force]", models.ErrInvalidInput)
		}
		force = true
	}

	bet, res, err := b.resolver.Resolve(ctx, id, force)
	if err != nil {
		return "", err
	}
	return reporter.BetLine(*bet, res), nil
}

func (b *Bot) handleHelp(_ context.Context, _, _ string) (string, error) {
	return reporter.Escape(strings.Join([]string{
		"🏈 snapbet tracks season-long fantasy bets between friends.",
		"",
		"/addbet A vs B | scoring=PPR snaps=25 weeks=1-18 desc=... | @friends",
		"/addbet Player over 15.5 | weeks=3-10 | @friends",
		"/mybets - your bets this season",
		"/standings [days] - win/loss table plus open bets",
		"/editbet <id> key=value ... - creator-only, pending bets",
		"/resolvebet <id> [force] - settle a bet from published stats",
		"",
		"Scoring profiles: PPR, HALF, STD. Weeks clamp to 1-18.",
	}, "\n")), nil
}

// previewOrEmpty evaluates a live resolution for display. Feed trouble shows
// the bet without numbers rather than failing the whole reply.
func (b *Bot) previewOrEmpty(ctx context.Context, bet models.Bet) resolver.Resolution {
	if bet.Status != models.StatusPending {
		return resolver.Resolution{Outcome: bet.Outcome}
	}
	res, err := b.resolver.Preview(ctx, bet)
	if err != nil {
		b.logger.Warn().Int64("bet", bet.ID).Err(err).Msg("preview failed")
		return resolver.Resolution{Deferred: true, Reason: "stats unavailable"}
	}
	return res
}

// SendChannel posts to the configured channel with retry. A zero channel ID
// is a no-op.
func (b *Bot) SendChannel(text string) error {
	if b.channelID == 0 {
		return nil
	}
	return b.send(b.channelID, text)
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if err := b.send(chatID, text); err != nil {
		b.logger.Error().Int64("chat", chatID).Err(err).Msg("failed to send reply")
	}
}

func (b *Bot) send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < b.maxRetries; i++ {
		_, err := b.api.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		// Bad entity errors mean the markup is wrong, not the network.
		// Retrying the same payload cannot help, so fall back to plain text.
		if strings.Contains(err.Error(), "can't parse entities") {
			plain := tgbotapi.NewMessage(chatID, text)
			if _, err := b.api.Send(plain); err == nil {
				return nil
			}
		}

		time.Sleep(b.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", b.maxRetries, lastErr)
}
