package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/scorepool/prediction-league/models"
	"github.com/shopspring/decimal"
)

var (
	ErrPredictionNotFound   = errors.New("prediction not found")
	ErrPredictionConflict   = errors.New("match is already predicted")
	ErrPredictionInvalidRef = errors.New("invalid user or match reference")
)

// PredictorAggregate is the derived standing of one predictor: the sum of its
// prediction scores and the mean margin, over Scored predictions.
type PredictorAggregate struct {
	Score          decimal.Decimal
	MarginPerMatch decimal.Decimal
	Scored         int
}

type PredictionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, prediction *models.Prediction) error
	GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.Prediction, error)
	// ListByUserAndTournament returns the user's predictions newest kick-off
	// first, with match rows attached.
	ListByUserAndTournament(ctx context.Context, userID, tournamentID int) ([]*models.Prediction, error)
	ListByMatch(ctx context.Context, matchID int, nonLateOnly bool) ([]*models.Prediction, error)
	// ListRecentScored returns the user's latest scored predictions, newest
	// kick-off first, capped at limit.
	ListRecentScored(ctx context.Context, userID, tournamentID, limit int) ([]models.Prediction, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error
	AggregateByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*PredictorAggregate, error)
	// NegateValuesByMatch flips the sign of every stored prediction for a
	// match whose home and away sides were swapped.
	NegateValuesByMatch(ctx context.Context, exec SQLExecutor, matchID int) error
	// ReassignUser moves a duplicate account's predictions to the surviving
	// user, dropping rows that would collide.
	ReassignUser(ctx context.Context, exec SQLExecutor, fromUserID, toUserID int) error
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func (r *postgresPredictionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresPredictionRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Prediction) error {
	query := `
		INSERT INTO predictions (user_id, match_id, prediction, late, score, margin, correct)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, entered`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.UserID, p.MatchID, p.Value, p.Late,
		nullDecimal(p.Score), nullDecimal(p.Margin), p.Correct,
	).Scan(&p.ID, &p.Entered)

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrPredictionConflict
		case "23503":
			return ErrPredictionInvalidRef
		}
	}
	return err
}

func scanPrediction(row interface{ Scan(...interface{}) error }) (*models.Prediction, error) {
	p := &models.Prediction{}
	var score, margin decimal.NullDecimal
	err := row.Scan(&p.ID, &p.UserID, &p.MatchID, &p.Value, &p.Late, &p.Entered, &score, &margin, &p.Correct)
	if err != nil {
		return nil, err
	}
	p.Score = decimalPtr(score)
	p.Margin = decimalPtr(margin)
	return p, nil
}

const predictionColumns = `id, user_id, match_id, prediction, late, entered, score, margin, correct`

func (r *postgresPredictionRepository) GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.Prediction, error) {
	row := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT `+predictionColumns+` FROM predictions WHERE user_id = $1 AND match_id = $2`,
		userID, matchID)
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresPredictionRepository) ListByUserAndTournament(ctx context.Context, userID, tournamentID int) ([]*models.Prediction, error) {
	query := `
		SELECT p.id, p.user_id, p.match_id, p.prediction, p.late, p.entered, p.score, p.margin, p.correct,
		       m.id, m.tournament_id, m.match_id, m.kick_off, m.home_team_id, m.home_team_winner_of,
		       m.away_team_id, m.away_team_winner_of, m.score, m.postponed
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.tournament_id = $2
		ORDER BY m.kick_off DESC, m.match_id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions for user %d: %w", userID, err)
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p := &models.Prediction{}
		m := &models.Match{}
		var score, margin decimal.NullDecimal
		if scanErr := rows.Scan(
			&p.ID, &p.UserID, &p.MatchID, &p.Value, &p.Late, &p.Entered, &score, &margin, &p.Correct,
			&m.ID, &m.TournamentID, &m.MatchID, &m.KickOff, &m.HomeTeamID, &m.HomeWinnerOf,
			&m.AwayTeamID, &m.AwayWinnerOf, &m.Score, &m.Postponed,
		); scanErr != nil {
			return nil, scanErr
		}
		p.Score = decimalPtr(score)
		p.Margin = decimalPtr(margin)
		p.Match = m
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

func (r *postgresPredictionRepository) ListByMatch(ctx context.Context, matchID int, nonLateOnly bool) ([]*models.Prediction, error) {
	query := `
		SELECT p.id, p.user_id, p.match_id, p.prediction, p.late, p.entered, p.score, p.margin, p.correct,
		       u.username, u.first_name, u.last_name
		FROM predictions p
		JOIN users u ON u.id = p.user_id
		WHERE p.match_id = $1`
	if nonLateOnly {
		query += ` AND p.late = FALSE`
	}
	query += ` ORDER BY p.prediction DESC, p.id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p := &models.Prediction{}
		u := &models.User{}
		var score, margin decimal.NullDecimal
		if scanErr := rows.Scan(
			&p.ID, &p.UserID, &p.MatchID, &p.Value, &p.Late, &p.Entered, &score, &margin, &p.Correct,
			&u.Username, &u.FirstName, &u.LastName,
		); scanErr != nil {
			return nil, scanErr
		}
		p.Score = decimalPtr(score)
		p.Margin = decimalPtr(margin)
		u.ID = p.UserID
		p.User = u
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

func (r *postgresPredictionRepository) ListRecentScored(ctx context.Context, userID, tournamentID, limit int) ([]models.Prediction, error) {
	query := `
		SELECT p.id, p.user_id, p.match_id, p.prediction, p.late, p.entered, p.score, p.margin, p.correct
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.tournament_id = $2 AND m.score IS NOT NULL
		ORDER BY m.kick_off DESC, m.match_id DESC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, userID, tournamentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]models.Prediction, 0, limit)
	for rows.Next() {
		p, scanErr := scanPrediction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

func (r *postgresPredictionRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE predictions SET score = $1, margin = $2, correct = $3 WHERE id = $4`,
		score, margin, correct, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrPredictionNotFound)
}

func (r *postgresPredictionRepository) AggregateByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) (*PredictorAggregate, error) {
	query := `
		SELECT COALESCE(SUM(p.score), 0), COALESCE(AVG(p.margin), 0), COUNT(p.score)
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.tournament_id = $2 AND p.score IS NOT NULL`

	agg := &PredictorAggregate{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, userID, tournamentID).
		Scan(&agg.Score, &agg.MarginPerMatch, &agg.Scored)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate predictions for user %d: %w", userID, err)
	}
	return agg, nil
}

func (r *postgresPredictionRepository) NegateValuesByMatch(ctx context.Context, exec SQLExecutor, matchID int) error {
	_, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE predictions SET prediction = prediction * -1 WHERE match_id = $1`, matchID)
	return err
}

func (r *postgresPredictionRepository) ReassignUser(ctx context.Context, exec SQLExecutor, fromUserID, toUserID int) error {
	executor := r.getExecutor(exec)
	if _, err := executor.ExecContext(ctx, `
		DELETE FROM predictions p
		WHERE p.user_id = $1
		  AND EXISTS (
			SELECT 1 FROM predictions q
			WHERE q.user_id = $2 AND q.match_id = p.match_id
		  )`, fromUserID, toUserID); err != nil {
		return fmt.Errorf("failed to drop colliding predictions of user %d: %w", fromUserID, err)
	}
	if _, err := executor.ExecContext(ctx,
		`UPDATE predictions SET user_id = $1 WHERE user_id = $2`, toUserID, fromUserID); err != nil {
		return fmt.Errorf("failed to reassign predictions of user %d: %w", fromUserID, err)
	}
	return nil
}
