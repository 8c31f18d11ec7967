package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/scorepool/prediction-league/models"
)

var (
	ErrSportNotFound     = errors.New("sport not found")
	ErrSportNameConflict = errors.New("sport name is already in use")
)

type SportRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sport *models.Sport) error
	GetByID(ctx context.Context, id int) (*models.Sport, error)
	GetByName(ctx context.Context, name string) (*models.Sport, error)
	List(ctx context.Context) ([]models.Sport, error)
}

type postgresSportRepository struct {
	db *sql.DB
}

func NewPostgresSportRepository(db *sql.DB) SportRepository {
	return &postgresSportRepository{db: db}
}

func (r *postgresSportRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresSportRepository) Create(ctx context.Context, exec SQLExecutor, sport *models.Sport) error {
	query := `
		INSERT INTO sports (name, scoring_unit, match_start_verb)
		VALUES ($1, $2, $3)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		sport.Name, sport.ScoringUnit, sport.MatchStartVerb,
	).Scan(&sport.ID)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrSportNameConflict
	}
	return err
}

func (r *postgresSportRepository) GetByID(ctx context.Context, id int) (*models.Sport, error) {
	return r.getOne(ctx, `SELECT id, name, scoring_unit, match_start_verb FROM sports WHERE id = $1`, id)
}

func (r *postgresSportRepository) GetByName(ctx context.Context, name string) (*models.Sport, error) {
	return r.getOne(ctx, `SELECT id, name, scoring_unit, match_start_verb FROM sports WHERE name = $1`, name)
}

func (r *postgresSportRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Sport, error) {
	s := &models.Sport{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&s.ID, &s.Name, &s.ScoringUnit, &s.MatchStartVerb)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSportNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresSportRepository) List(ctx context.Context) ([]models.Sport, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, scoring_unit, match_start_verb FROM sports ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sports := make([]models.Sport, 0)
	for rows.Next() {
		var s models.Sport
		if err := rows.Scan(&s.ID, &s.Name, &s.ScoringUnit, &s.MatchStartVerb); err != nil {
			return nil, err
		}
		sports = append(sports, s)
	}
	return sports, rows.Err()
}
