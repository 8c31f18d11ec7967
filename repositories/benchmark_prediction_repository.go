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
	ErrBenchmarkPredictionNotFound = errors.New("benchmark prediction not found")
	ErrBenchmarkPredictionConflict = errors.New("benchmark already predicted this match")
)

type BenchmarkPredictionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, prediction *models.BenchmarkPrediction) error
	GetByBenchmarkAndMatch(ctx context.Context, exec SQLExecutor, benchmarkID, matchID int) (*models.BenchmarkPrediction, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.BenchmarkPrediction, error)
	ListRecentScored(ctx context.Context, benchmarkID, limit int) ([]models.BenchmarkPrediction, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error
	AggregateByBenchmark(ctx context.Context, exec SQLExecutor, benchmarkID int) (*PredictorAggregate, error)
}

type postgresBenchmarkPredictionRepository struct {
	db *sql.DB
}

func NewPostgresBenchmarkPredictionRepository(db *sql.DB) BenchmarkPredictionRepository {
	return &postgresBenchmarkPredictionRepository{db: db}
}

func (r *postgresBenchmarkPredictionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const benchmarkPredictionColumns = `id, benchmark_id, match_id, prediction, score, margin, correct`

func scanBenchmarkPrediction(row interface{ Scan(...interface{}) error }) (*models.BenchmarkPrediction, error) {
	p := &models.BenchmarkPrediction{}
	var score, margin decimal.NullDecimal
	err := row.Scan(&p.ID, &p.BenchmarkID, &p.MatchID, &p.Value, &score, &margin, &p.Correct)
	if err != nil {
		return nil, err
	}
	p.Score = decimalPtr(score)
	p.Margin = decimalPtr(margin)
	return p, nil
}

func (r *postgresBenchmarkPredictionRepository) Create(ctx context.Context, exec SQLExecutor, p *models.BenchmarkPrediction) error {
	query := `
		INSERT INTO benchmark_predictions (benchmark_id, match_id, prediction, score, margin, correct)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.BenchmarkID, p.MatchID, p.Value,
		nullDecimal(p.Score), nullDecimal(p.Margin), p.Correct,
	).Scan(&p.ID)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrBenchmarkPredictionConflict
	}
	return err
}

func (r *postgresBenchmarkPredictionRepository) GetByBenchmarkAndMatch(ctx context.Context, exec SQLExecutor, benchmarkID, matchID int) (*models.BenchmarkPrediction, error) {
	row := r.getExecutor(exec).QueryRowContext(ctx,
		`SELECT `+benchmarkPredictionColumns+` FROM benchmark_predictions
		 WHERE benchmark_id = $1 AND match_id = $2`, benchmarkID, matchID)
	p, err := scanBenchmarkPrediction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBenchmarkPredictionNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *postgresBenchmarkPredictionRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.BenchmarkPrediction, error) {
	query := `
		SELECT p.id, p.benchmark_id, p.match_id, p.prediction, p.score, p.margin, p.correct,
		       b.name, b.algorithm, b.static_value, b.range_start, b.range_end, b.can_receive_bonus
		FROM benchmark_predictions p
		JOIN benchmarks b ON b.id = p.benchmark_id
		WHERE p.match_id = $1
		ORDER BY p.prediction DESC, p.id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]*models.BenchmarkPrediction, 0)
	for rows.Next() {
		p := &models.BenchmarkPrediction{}
		b := &models.Benchmark{}
		var score, margin, static decimal.NullDecimal
		scanErr := rows.Scan(
			&p.ID, &p.BenchmarkID, &p.MatchID, &p.Value, &score, &margin, &p.Correct,
			&b.Name, &b.Algorithm, &static, &b.RangeStart, &b.RangeEnd, &b.CanReceiveBonus,
		)
		if scanErr != nil {
			return nil, scanErr
		}
		p.Score = decimalPtr(score)
		p.Margin = decimalPtr(margin)
		b.ID = p.BenchmarkID
		b.StaticValue = decimalPtr(static)
		p.Benchmark = b
		predictions = append(predictions, p)
	}
	return predictions, rows.Err()
}

func (r *postgresBenchmarkPredictionRepository) ListRecentScored(ctx context.Context, benchmarkID, limit int) ([]models.BenchmarkPrediction, error) {
	query := `
		SELECT p.id, p.benchmark_id, p.match_id, p.prediction, p.score, p.margin, p.correct
		FROM benchmark_predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.benchmark_id = $1 AND m.score IS NOT NULL
		ORDER BY m.kick_off DESC, m.match_id DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, benchmarkID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	predictions := make([]models.BenchmarkPrediction, 0, limit)
	for rows.Next() {
		p, scanErr := scanBenchmarkPrediction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		predictions = append(predictions, *p)
	}
	return predictions, rows.Err()
}

func (r *postgresBenchmarkPredictionRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error {
	result, err := r.getExecutor(exec).ExecContext(ctx,
		`UPDATE benchmark_predictions SET score = $1, margin = $2, correct = $3 WHERE id = $4`,
		score, margin, correct, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrBenchmarkPredictionNotFound)
}

func (r *postgresBenchmarkPredictionRepository) AggregateByBenchmark(ctx context.Context, exec SQLExecutor, benchmarkID int) (*PredictorAggregate, error) {
	query := `
		SELECT COALESCE(SUM(score), 0), COALESCE(AVG(margin), 0), COUNT(score)
		FROM benchmark_predictions
		WHERE benchmark_id = $1 AND score IS NOT NULL`

	agg := &PredictorAggregate{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, benchmarkID).
		Scan(&agg.Score, &agg.MarginPerMatch, &agg.Scored)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate predictions for benchmark %d: %w", benchmarkID, err)
	}
	return agg, nil
}
