package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/scorepool/prediction-league/models"
)

var (
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name or code is already in use for this sport")
	ErrTeamInvalidSport = errors.New("invalid sport reference")
)

type TeamRepository interface {
	Create(ctx context.Context, exec SQLExecutor, team *models.Team) error
	GetByID(ctx context.Context, id int) (*models.Team, error)
	// FindBySportAndName resolves a fixture-upload cell: exact match on any
	// of the name fields first, then on the 3-letter code.
	FindBySportAndName(ctx context.Context, sportID int, name string) (*models.Team, error)
	ListBySport(ctx context.Context, sportID int) ([]models.Team, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresTeamRepository struct {
	db *sql.DB
}

func NewPostgresTeamRepository(db *sql.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const teamColumns = `id, sport_id, name, code, short_name, full_name, alt_name`

func scanTeam(row interface{ Scan(...interface{}) error }) (*models.Team, error) {
	t := &models.Team{}
	err := row.Scan(&t.ID, &t.SportID, &t.Name, &t.Code, &t.ShortName, &t.FullName, &t.AltName)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) Create(ctx context.Context, exec SQLExecutor, team *models.Team) error {
	query := `
		INSERT INTO teams (sport_id, name, code, short_name, full_name, alt_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		team.SportID, team.Name, team.Code, team.ShortName, team.FullName, team.AltName,
	).Scan(&team.ID)

	return r.handleTeamError(err)
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id int) (*models.Team, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	t, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) FindBySportAndName(ctx context.Context, sportID int, name string) (*models.Team, error) {
	query := `
		SELECT ` + teamColumns + `
		FROM teams
		WHERE sport_id = $1
		  AND (name = $2 OR short_name = $2 OR full_name = $2 OR alt_name = $2)`
	row := r.db.QueryRowContext(ctx, query, sportID, name)
	t, err := scanTeam(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Fall back to the 3-letter code.
	row = r.db.QueryRowContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE sport_id = $1 AND code = $2`, sportID, name)
	t, err = scanTeam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTeamRepository) ListBySport(ctx context.Context, sportID int) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE sport_id = $1 ORDER BY name`, sportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query teams for sport %d: %w", sportID, err)
	}
	defer rows.Close()

	teams := make([]models.Team, 0)
	for rows.Next() {
		t, scanErr := scanTeam(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		teams = append(teams, *t)
	}
	return teams, rows.Err()
}

func (r *postgresTeamRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return r.handleTeamError(err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) handleTeamError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrTeamNameConflict
		case "23503":
			if pqErr.Constraint == "teams_sport_id_fkey" {
				return ErrTeamInvalidSport
			}
		}
	}
	return err
}
