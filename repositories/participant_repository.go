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
	ErrParticipantNotFound   = errors.New("participant not found")
	ErrParticipantConflict   = errors.New("user is already registered for this tournament")
	ErrParticipantInvalidRef = errors.New("invalid tournament or user reference")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, participant *models.Participant) error
	GetByID(ctx context.Context, id int) (*models.Participant, error)
	GetByTournamentAndUser(ctx context.Context, tournamentID, userID int) (*models.Participant, error)
	// ListByTournament orders by score ascending (lower is better), unscored
	// participants last, id as the stable tie break. withUsers joins user rows.
	ListByTournament(ctx context.Context, tournamentID int, withUsers bool) ([]*models.Participant, error)
	UpdateAggregates(ctx context.Context, exec SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error
	// ReassignUser moves a duplicate account's registrations to the surviving
	// user, dropping rows that would collide with an existing registration.
	ReassignUser(ctx context.Context, exec SQLExecutor, fromUserID, toUserID int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query, p.TournamentID, p.UserID).
		Scan(&p.ID, &p.CreatedAt)
	return r.handleParticipantError(err)
}

func scanParticipant(row interface{ Scan(...interface{}) error }) (*models.Participant, error) {
	p := &models.Participant{}
	var score, margin decimal.NullDecimal
	err := row.Scan(&p.ID, &p.TournamentID, &p.UserID, &score, &margin, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.Score = decimalPtr(score)
	p.MarginPerMatch = decimalPtr(margin)
	return p, nil
}

func (r *postgresParticipantRepository) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tournament_id, user_id, score, margin_per_match, created_at
		FROM participants WHERE id = $1`, id)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipantRepository) GetByTournamentAndUser(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, tournament_id, user_id, score, margin_per_match, created_at
		FROM participants WHERE tournament_id = $1 AND user_id = $2`, tournamentID, userID)
	p, err := scanParticipant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, tournamentID int, withUsers bool) ([]*models.Participant, error) {
	query := `
		SELECT p.id, p.tournament_id, p.user_id, p.score, p.margin_per_match, p.created_at`
	if withUsers {
		query += `,
			u.id, u.username, u.first_name, u.last_name, u.email, u.active,
			u.can_receive_emails, u.email_on_new_tournament, u.created_at`
	}
	query += `
		FROM participants p`
	if withUsers {
		query += `
		JOIN users u ON u.id = p.user_id`
	}
	query += `
		WHERE p.tournament_id = $1
		ORDER BY p.score ASC NULLS LAST, p.id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		var score, margin decimal.NullDecimal
		if withUsers {
			u := &models.User{}
			if scanErr := rows.Scan(
				&p.ID, &p.TournamentID, &p.UserID, &score, &margin, &p.CreatedAt,
				&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Email, &u.Active,
				&u.CanReceiveEmails, &u.EmailOnNewTournament, &u.CreatedAt,
			); scanErr != nil {
				return nil, scanErr
			}
			p.User = u
		} else {
			if scanErr := rows.Scan(&p.ID, &p.TournamentID, &p.UserID, &score, &margin, &p.CreatedAt); scanErr != nil {
				return nil, scanErr
			}
		}
		p.Score = decimalPtr(score)
		p.MarginPerMatch = decimalPtr(margin)
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

func (r *postgresParticipantRepository) UpdateAggregates(ctx context.Context, exec SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE participants SET score = $1, margin_per_match = $2 WHERE id = $3`,
		score, marginPerMatch, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ReassignUser(ctx context.Context, exec SQLExecutor, fromUserID, toUserID int) error {
	executor := r.getExecutor(exec)
	// Drop registrations that would collide with one the surviving user
	// already holds, then move the rest.
	if _, err := executor.ExecContext(ctx, `
		DELETE FROM participants p
		WHERE p.user_id = $1
		  AND EXISTS (
			SELECT 1 FROM participants q
			WHERE q.user_id = $2 AND q.tournament_id = p.tournament_id
		  )`, fromUserID, toUserID); err != nil {
		return fmt.Errorf("failed to drop colliding registrations of user %d: %w", fromUserID, err)
	}
	if _, err := executor.ExecContext(ctx,
		`UPDATE participants SET user_id = $1 WHERE user_id = $2`, toUserID, fromUserID); err != nil {
		return fmt.Errorf("failed to reassign registrations of user %d: %w", fromUserID, err)
	}
	return nil
}

func (r *postgresParticipantRepository) handleParticipantError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrParticipantConflict
		case "23503":
			return ErrParticipantInvalidRef
		}
	}
	return err
}
