package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/scorepool/prediction-league/models"
	"github.com/shopspring/decimal"
)

var (
	ErrBenchmarkNotFound   = errors.New("benchmark not found")
	ErrBenchmarkConflict   = errors.New("benchmark name is already in use for this tournament")
	ErrBenchmarkInvalidRef = errors.New("invalid tournament reference")
)

type BenchmarkRepository interface {
	Create(ctx context.Context, exec SQLExecutor, benchmark *models.Benchmark) error
	GetByID(ctx context.Context, id int) (*models.Benchmark, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Benchmark, error)
	UpdateAggregates(ctx context.Context, exec SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error
}

type postgresBenchmarkRepository struct {
	db *sql.DB
}

func NewPostgresBenchmarkRepository(db *sql.DB) BenchmarkRepository {
	return &postgresBenchmarkRepository{db: db}
}

func (r *postgresBenchmarkRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const benchmarkColumns = `id, tournament_id, name, algorithm, static_value, range_start, range_end,
	can_receive_bonus, score, margin_per_match`

func scanBenchmark(row interface{ Scan(...interface{}) error }) (*models.Benchmark, error) {
	b := &models.Benchmark{}
	var static, score, margin decimal.NullDecimal
	err := row.Scan(
		&b.ID, &b.TournamentID, &b.Name, &b.Algorithm, &static, &b.RangeStart, &b.RangeEnd,
		&b.CanReceiveBonus, &score, &margin,
	)
	if err != nil {
		return nil, err
	}
	b.StaticValue = decimalPtr(static)
	b.Score = decimalPtr(score)
	b.MarginPerMatch = decimalPtr(margin)
	return b, nil
}

func (r *postgresBenchmarkRepository) Create(ctx context.Context, exec SQLExecutor, b *models.Benchmark) error {
	query := `
		INSERT INTO benchmarks (tournament_id, name, algorithm, static_value, range_start, range_end, can_receive_bonus)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		b.TournamentID, b.Name, b.Algorithm, nullDecimal(b.StaticValue),
		b.RangeStart, b.RangeEnd, b.CanReceiveBonus,
	).Scan(&b.ID)

	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return ErrBenchmarkConflict
		case "23503":
			return ErrBenchmarkInvalidRef
		}
	}
	return err
}

func (r *postgresBenchmarkRepository) GetByID(ctx context.Context, id int) (*models.Benchmark, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+benchmarkColumns+` FROM benchmarks WHERE id = $1`, id)
	b, err := scanBenchmark(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBenchmarkNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *postgresBenchmarkRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Benchmark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+benchmarkColumns+` FROM benchmarks
		WHERE tournament_id = $1
		ORDER BY score ASC NULLS LAST, id ASC`, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	benchmarks := make([]*models.Benchmark, 0)
	for rows.Next() {
		b, scanErr := scanBenchmark(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		benchmarks = append(benchmarks, b)
	}
	return benchmarks, rows.Err()
}

func (r *postgresBenchmarkRepository) UpdateAggregates(ctx context.Context, exec SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE benchmarks SET score = $1, margin_per_match = $2 WHERE id = $3`,
		score, marginPerMatch, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBenchmarkNotFound)
}
