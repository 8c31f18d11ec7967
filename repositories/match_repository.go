package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/scorepool/prediction-league/models"
)

var (
	ErrMatchNotFound         = errors.New("match not found")
	ErrMatchIDConflict       = errors.New("match_id is already used in this tournament")
	ErrMatchInvalidReference = errors.New("match team or tournament reference is invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	// GetByMatchID looks a match up by its tournament-scoped number.
	GetByMatchID(ctx context.Context, tournamentID, matchID int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
	// ListStarted returns non-postponed matches whose kick-off has passed.
	ListStarted(ctx context.Context, tournamentID int, now time.Time) ([]*models.Match, error)
	// MaxMatchID returns the highest match_id used within the tournament, 0
	// when the tournament has no matches yet.
	MaxMatchID(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	ListByHomeWinnerOf(ctx context.Context, exec SQLExecutor, matchDBID int) ([]*models.Match, error)
	ListByAwayWinnerOf(ctx context.Context, exec SQLExecutor, matchDBID int) ([]*models.Match, error)
	UpdateScore(ctx context.Context, exec SQLExecutor, id int, score int) error
	// FillHomeSlot sets a concrete home team and clears the winner-of link.
	FillHomeSlot(ctx context.Context, exec SQLExecutor, id int, teamID int) error
	FillAwaySlot(ctx context.Context, exec SQLExecutor, id int, teamID int) error
	SetPostponed(ctx context.Context, exec SQLExecutor, id int, postponed bool) error
	// SwapHomeAway flips the sides of a mis-entered fixture, negating any score.
	SwapHomeAway(ctx context.Context, exec SQLExecutor, id int) error
	// ReassignTeam repoints every slot referencing one team at another.
	ReassignTeam(ctx context.Context, exec SQLExecutor, fromTeamID, toTeamID int) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, match_id, kick_off, home_team_id, home_team_winner_of,
	away_team_id, away_team_winner_of, score, postponed`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.MatchID, &m.KickOff, &m.HomeTeamID, &m.HomeWinnerOf,
		&m.AwayTeamID, &m.AwayWinnerOf, &m.Score, &m.Postponed,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches (tournament_id, match_id, kick_off, home_team_id, home_team_winner_of,
			away_team_id, away_team_winner_of, score, postponed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		match.TournamentID, match.MatchID, match.KickOff, match.HomeTeamID, match.HomeWinnerOf,
		match.AwayTeamID, match.AwayWinnerOf, match.Score, match.Postponed,
	).Scan(&match.ID)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByMatchID(ctx context.Context, tournamentID, matchID int) (*models.Match, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE tournament_id = $1 AND match_id = $2`,
		tournamentID, matchID)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	return r.list(ctx, r.db,
		`SELECT `+matchColumns+` FROM matches WHERE tournament_id = $1 ORDER BY kick_off, match_id`,
		tournamentID)
}

func (r *postgresMatchRepository) ListStarted(ctx context.Context, tournamentID int, now time.Time) ([]*models.Match, error) {
	return r.list(ctx, r.db,
		`SELECT `+matchColumns+` FROM matches
		 WHERE tournament_id = $1 AND postponed = FALSE AND kick_off <= $2
		 ORDER BY kick_off, match_id`,
		tournamentID, now)
}

func (r *postgresMatchRepository) MaxMatchID(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	var max sql.NullInt64
	err := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT MAX(match_id) FROM matches WHERE tournament_id = $1`, tournamentID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max match_id for tournament %d: %w", tournamentID, err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64), nil
}

func (r *postgresMatchRepository) ListByHomeWinnerOf(ctx context.Context, exec SQLExecutor, matchDBID int) ([]*models.Match, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT `+matchColumns+` FROM matches WHERE home_team_winner_of = $1 ORDER BY match_id`, matchDBID)
}

func (r *postgresMatchRepository) ListByAwayWinnerOf(ctx context.Context, exec SQLExecutor, matchDBID int) ([]*models.Match, error) {
	return r.list(ctx, r.getExecutor(exec),
		`SELECT `+matchColumns+` FROM matches WHERE away_team_winner_of = $1 ORDER BY match_id`, matchDBID)
}

func (r *postgresMatchRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, exec SQLExecutor, id int, score int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET score = $1 WHERE id = $2`, score, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FillHomeSlot(ctx context.Context, exec SQLExecutor, id int, teamID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET home_team_id = $1, home_team_winner_of = NULL WHERE id = $2`, teamID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) FillAwaySlot(ctx context.Context, exec SQLExecutor, id int, teamID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET away_team_id = $1, away_team_winner_of = NULL WHERE id = $2`, teamID, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetPostponed(ctx context.Context, exec SQLExecutor, id int, postponed bool) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE matches SET postponed = $1 WHERE id = $2`, postponed, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SwapHomeAway(ctx context.Context, exec SQLExecutor, id int) error {
	query := `
		UPDATE matches SET
			home_team_id = away_team_id,
			away_team_id = home_team_id,
			home_team_winner_of = away_team_winner_of,
			away_team_winner_of = home_team_winner_of,
			score = score * -1
		WHERE id = $1`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ReassignTeam(ctx context.Context, exec SQLExecutor, fromTeamID, toTeamID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx,
		`UPDATE matches SET home_team_id = $1 WHERE home_team_id = $2`, toTeamID, fromTeamID); err != nil {
		return fmt.Errorf("failed to reassign home team %d: %w", fromTeamID, err)
	}
	if _, err := executor.ExecContext(ctx,
		`UPDATE matches SET away_team_id = $1 WHERE away_team_id = $2`, toTeamID, fromTeamID); err != nil {
		return fmt.Errorf("failed to reassign away team %d: %w", fromTeamID, err)
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrMatchIDConflict
		case "23503":
			return ErrMatchInvalidReference
		}
	}
	return err
}
