// Package store persists bets in a local sqlite database. The bet table is
// append-only: rows are created by commands, mutated only through partial
// updates and the resolution compare-and-set, and never deleted.
//
// All mutations are single statements, so concurrent command invocations
// cannot leave a record half-written.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"snapbet/internal/models"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// ErrNotFound is returned when no bet exists for the requested id.
var ErrNotFound = errors.New("bet not found")

// ErrAlreadyResolved is returned when a resolution commit targets a bet that
// already carries an outcome and force was not set.
var ErrAlreadyResolved = errors.New("bet already resolved")

// Store provides bet persistence on sqlite.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if necessary) the database at path and runs pending
// migrations.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info().Str("path", path).Msg("bet store opened")
	return &Store{db: db, logger: logger}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to set %q: %w", p, err)
		}
	}
	return nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Debug().Msg("migrations up to date")
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

const betColumns = `id, creator, kind, player_a, player_b, comparator, line,
	scoring, min_snap_pct, season, start_week, end_week, description,
	status, outcome, resolution_id, resolved_at, created_at, participants`

// CreateBet inserts a new bet and returns its assigned id.
func (s *Store) CreateBet(ctx context.Context, bet *models.Bet) (int64, error) {
	if err := bet.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO bets (creator, kind, player_a, player_b, comparator, line,
			scoring, min_snap_pct, season, start_week, end_week, description,
			status, outcome, resolution_id, created_at, participants)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)`,
		bet.Creator, bet.Kind, bet.PlayerA, bet.PlayerB, bet.Comparator, bet.Line,
		bet.Profile, bet.MinSnapPct, bet.Season, bet.StartWeek, bet.EndWeek,
		bet.Description, models.StatusPending, bet.CreatedAt,
		joinParticipants(bet.Participants),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: insert bet: %v", models.ErrStoreFailure, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert id: %v", models.ErrStoreFailure, err)
	}
	bet.ID = id
	return id, nil
}

// GetBet retrieves a bet by id.
func (s *Store) GetBet(ctx context.Context, id int64) (*models.Bet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+betColumns+` FROM bets WHERE id = ?`, id)
	bet, err := scanBet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get bet %d: %v", models.ErrStoreFailure, id, err)
	}
	return bet, nil
}

// ListPending returns all unresolved bets for a season, oldest first.
func (s *Store) ListPending(ctx context.Context, season int) ([]models.Bet, error) {
	return s.list(ctx,
		`SELECT `+betColumns+` FROM bets WHERE season = ? AND status = ? ORDER BY id`,
		season, models.StatusPending)
}

// ListSeason returns every bet recorded for a season, oldest first.
func (s *Store) ListSeason(ctx context.Context, season int) ([]models.Bet, error) {
	return s.list(ctx,
		`SELECT `+betColumns+` FROM bets WHERE season = ? ORDER BY id`, season)
}

// ListByUser returns bets the user created or is tagged on for a season.
func (s *Store) ListByUser(ctx context.Context, user string, season int) ([]models.Bet, error) {
	// Participants are stored comma-joined; the LIKE match over-selects for
	// users whose tag is a substring of another, so re-check after scanning.
	bets, err := s.list(ctx,
		`SELECT `+betColumns+` FROM bets
		 WHERE season = ? AND (creator = ? OR participants LIKE ?)
		 ORDER BY id`,
		season, user, "%"+user+"%")
	if err != nil {
		return nil, err
	}
	out := bets[:0]
	for _, b := range bets {
		if b.Creator == user || b.HasParticipant(user) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ListResolvedSince returns bets resolved at or after the given instant.
func (s *Store) ListResolvedSince(ctx context.Context, since time.Time) ([]models.Bet, error) {
	return s.list(ctx,
		`SELECT `+betColumns+` FROM bets
		 WHERE status = ? AND resolved_at >= ? ORDER BY resolved_at`,
		models.StatusResolved, since)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]models.Bet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list bets: %v", models.ErrStoreFailure, err)
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan bet: %v", models.ErrStoreFailure, err)
		}
		bets = append(bets, *bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate bets: %v", models.ErrStoreFailure, err)
	}
	return bets, nil
}

// BetUpdate carries the fields of an /editbet invocation. Nil pointers leave
// the stored value unchanged.
type BetUpdate struct {
	PlayerA           *string
	PlayerB           *string
	Profile           *models.ScoringProfile
	MinSnapPct        *float64
	StartWeek         *int
	EndWeek           *int
	Line              *float64
	Description       *string
	Participants      []string // replacement set when non-nil
	ClearParticipants bool
}

// apply folds the update into a bet record in memory.
func (u BetUpdate) apply(b *models.Bet) {
	if u.PlayerA != nil {
		b.PlayerA = *u.PlayerA
	}
	if u.PlayerB != nil {
		b.PlayerB = *u.PlayerB
	}
	if u.Profile != nil {
		b.Profile = *u.Profile
	}
	if u.MinSnapPct != nil {
		b.MinSnapPct = *u.MinSnapPct
	}
	if u.StartWeek != nil {
		b.StartWeek = *u.StartWeek
	}
	if u.EndWeek != nil {
		b.EndWeek = *u.EndWeek
	}
	if u.Line != nil {
		b.Line = *u.Line
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.ClearParticipants {
		b.Participants = nil
	} else if u.Participants != nil {
		b.Participants = u.Participants
	}
}

// UpdateBet applies a partial update to a pending bet, validating the merged
// record first. Resolved and closed bets are immutable; attempting to edit
// one returns ErrAlreadyResolved.
func (s *Store) UpdateBet(ctx context.Context, id int64, upd BetUpdate) error {
	var sets []string
	var args []any

	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if upd.PlayerA != nil {
		add("player_a", *upd.PlayerA)
	}
	if upd.PlayerB != nil {
		add("player_b", *upd.PlayerB)
	}
	if upd.Profile != nil {
		add("scoring", *upd.Profile)
	}
	if upd.MinSnapPct != nil {
		add("min_snap_pct", *upd.MinSnapPct)
	}
	if upd.StartWeek != nil {
		add("start_week", *upd.StartWeek)
	}
	if upd.EndWeek != nil {
		add("end_week", *upd.EndWeek)
	}
	if upd.Line != nil {
		add("line", *upd.Line)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.ClearParticipants {
		add("participants", "")
	} else if upd.Participants != nil {
		add("participants", joinParticipants(upd.Participants))
	}

	if len(sets) == 0 {
		return fmt.Errorf("%w: nothing to update", models.ErrInvalidInput)
	}

	// Validate the record the update would produce, so a partial edit cannot
	// leave a row that fails the bet invariants (empty player, reversed
	// weeks) and then errors on every resolve.
	current, err := s.GetBet(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != models.StatusPending {
		return fmt.Errorf("%w: id %d", ErrAlreadyResolved, id)
	}
	merged := *current
	upd.apply(&merged)
	if err := merged.Validate(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	args = append(args, id, models.StatusPending)
	res, err := s.db.ExecContext(ctx,
		`UPDATE bets SET `+strings.Join(sets, ", ")+` WHERE id = ? AND status = ?`,
		args...)
	if err != nil {
		return fmt.Errorf("%w: update bet %d: %v", models.ErrStoreFailure, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", models.ErrStoreFailure, err)
	}
	if n == 0 {
		// Distinguish a missing bet from an already-resolved one.
		if _, err := s.GetBet(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: id %d", ErrAlreadyResolved, id)
	}
	return nil
}

// CloseCompleted retires pending bets whose end week is at or before the
// latest published week, returning how many were closed. Bets resolved in the
// same pass are untouched; a closed bet can still be resolved with force.
func (s *Store) CloseCompleted(ctx context.Context, season, maxWeek int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bets SET status = ? WHERE season = ? AND status = ? AND end_week <= ?`,
		models.StatusClosed, season, models.StatusPending, maxWeek)
	if err != nil {
		return 0, fmt.Errorf("%w: close completed bets: %v", models.ErrStoreFailure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", models.ErrStoreFailure, err)
	}
	return int(n), nil
}

// CommitResolution stamps a bet's outcome. Without force the update is a
// compare-and-set against the pending status, so a bet resolved concurrently
// or previously is left untouched and ErrAlreadyResolved is returned. With
// force the outcome is overwritten and a fresh resolution id stamped.
func (s *Store) CommitResolution(ctx context.Context, id int64, outcome models.Outcome, resolutionID string, resolvedAt time.Time, force bool) error {
	query := `UPDATE bets SET status = ?, outcome = ?, resolution_id = ?, resolved_at = ?
		WHERE id = ? AND status = ?`
	args := []any{models.StatusResolved, outcome, resolutionID, resolvedAt, id, models.StatusPending}
	if force {
		query = `UPDATE bets SET status = ?, outcome = ?, resolution_id = ?, resolved_at = ?
			WHERE id = ?`
		args = []any{models.StatusResolved, outcome, resolutionID, resolvedAt, id}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: commit resolution for bet %d: %v", models.ErrStoreFailure, id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", models.ErrStoreFailure, err)
	}
	if n == 0 {
		if _, err := s.GetBet(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: id %d", ErrAlreadyResolved, id)
	}
	return nil
}

func joinParticipants(tags []string) string {
	return strings.Join(tags, ",")
}

func splitParticipants(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBet(sc scanner) (*models.Bet, error) {
	var b models.Bet
	var resolvedAt sql.NullTime
	var participants string

	err := sc.Scan(
		&b.ID, &b.Creator, &b.Kind, &b.PlayerA, &b.PlayerB, &b.Comparator,
		&b.Line, &b.Profile, &b.MinSnapPct, &b.Season, &b.StartWeek,
		&b.EndWeek, &b.Description, &b.Status, &b.Outcome, &b.ResolutionID,
		&resolvedAt, &b.CreatedAt, &participants,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		t := resolvedAt.Time
		b.ResolvedAt = &t
	}
	b.Participants = splitParticipants(participants)
	return &b, nil
}
