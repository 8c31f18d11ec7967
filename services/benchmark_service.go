package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// BenchmarkService creates synthetic predictors and back-fills their
// predictions over matches that have already started.
type BenchmarkService struct {
	db          *sql.DB
	tournaments repositories.TournamentRepository
	benchmarks  repositories.BenchmarkRepository
	scorer      *ScorerService
	logger      *slog.Logger
}

func NewBenchmarkService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	benchmarks repositories.BenchmarkRepository,
	scorer *ScorerService,
	logger *slog.Logger,
) *BenchmarkService {
	return &BenchmarkService{
		db:          db,
		tournaments: tournaments,
		benchmarks:  benchmarks,
		scorer:      scorer,
		logger:      logger,
	}
}

// validateParams enforces the per-algorithm parameter contract: static needs
// exactly a static value, random exactly a range, mean and median neither.
func validateParams(b *models.Benchmark) error {
	hasStatic := b.StaticValue != nil
	hasRange := b.RangeStart != nil && b.RangeEnd != nil
	hasAnyRange := b.RangeStart != nil || b.RangeEnd != nil

	switch b.Algorithm {
	case models.AlgorithmStatic:
		if !hasStatic || hasAnyRange {
			return ErrBenchmarkInvalidParams
		}
	case models.AlgorithmRandom:
		if !hasRange || hasStatic {
			return ErrBenchmarkInvalidParams
		}
		if *b.RangeStart > *b.RangeEnd {
			return ErrBenchmarkInvalidParams
		}
	case models.AlgorithmMean, models.AlgorithmMedian:
		if hasStatic || hasAnyRange {
			return ErrBenchmarkInvalidParams
		}
	default:
		return ErrBenchmarkInvalidParams
	}
	return nil
}

// Create validates and stores a benchmark, then back-fills predictions for
// every started match and computes the new benchmark's aggregates, mirroring
// a late join. The recompute targets only the new benchmark so it works on
// the uncommitted row inside the transaction.
func (s *BenchmarkService) Create(ctx context.Context, benchmark *models.Benchmark) error {
	if benchmark.Name == "" {
		return ErrBenchmarkNameRequired
	}
	if err := validateParams(benchmark); err != nil {
		return err
	}
	tournament, err := s.tournaments.GetByID(ctx, benchmark.TournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if tournament.IsClosed() {
		return ErrTournamentNotActive
	}

	return runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.benchmarks.Create(ctx, exec, benchmark); err != nil {
			return err
		}
		if err := s.scorer.BackfillBenchmark(ctx, exec, tournament, benchmark); err != nil {
			return err
		}
		return s.scorer.RecomputeBenchmark(ctx, exec, benchmark)
	})
}

// List returns the tournament's benchmarks ordered best score first.
func (s *BenchmarkService) List(ctx context.Context, tournamentID int) ([]*models.Benchmark, error) {
	return s.benchmarks.ListByTournament(ctx, tournamentID)
}
