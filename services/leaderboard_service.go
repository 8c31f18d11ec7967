package services

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// LeaderboardService assembles the read-side views: the standings table, a
// match's prediction list, and prediction histories. Reads fan out where the
// sources are independent.
type LeaderboardService struct {
	participants     repositories.ParticipantRepository
	benchmarks       repositories.BenchmarkRepository
	predictions      repositories.PredictionRepository
	benchPredictions repositories.BenchmarkPredictionRepository
}

func NewLeaderboardService(
	participants repositories.ParticipantRepository,
	benchmarks repositories.BenchmarkRepository,
	predictions repositories.PredictionRepository,
	benchPredictions repositories.BenchmarkPredictionRepository,
) *LeaderboardService {
	return &LeaderboardService{
		participants:     participants,
		benchmarks:       benchmarks,
		predictions:      predictions,
		benchPredictions: benchPredictions,
	}
}

// Table returns the standings ascending by score, unscored rows last.
// Benchmarks, when requested, are merged into the same ordering. recent > 0
// attaches each predictor's latest scored predictions.
func (s *LeaderboardService) Table(ctx context.Context, tournamentID int, includeBenchmarks bool, recent int) ([]models.LeaderboardEntry, error) {
	var (
		participants []*models.Participant
		benchmarks   []*models.Benchmark
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		participants, err = s.participants.ListByTournament(gctx, tournamentID, true)
		return err
	})
	if includeBenchmarks {
		g.Go(func() error {
			var err error
			benchmarks, err = s.benchmarks.ListByTournament(gctx, tournamentID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := make([]models.LeaderboardEntry, 0, len(participants)+len(benchmarks))
	for _, p := range participants {
		entry := models.LeaderboardEntry{
			Kind:           models.PredictorParticipant,
			PredictorID:    p.ID,
			Name:           p.DisplayName(),
			Score:          p.Score,
			MarginPerMatch: p.MarginPerMatch,
		}
		if recent > 0 {
			preds, err := s.predictions.ListRecentScored(ctx, p.UserID, tournamentID, recent)
			if err != nil {
				return nil, err
			}
			entry.Recent = preds
		}
		entries = append(entries, entry)
	}
	for _, b := range benchmarks {
		entry := models.LeaderboardEntry{
			Kind:           models.PredictorBenchmark,
			PredictorID:    b.ID,
			Name:           b.String(),
			Score:          b.Score,
			MarginPerMatch: b.MarginPerMatch,
		}
		if recent > 0 {
			preds, err := s.benchPredictions.ListRecentScored(ctx, b.ID, recent)
			if err != nil {
				return nil, err
			}
			entry.RecentBench = preds
		}
		entries = append(entries, entry)
	}

	sortEntries(entries)
	return entries, nil
}

// sortEntries orders scored entries ascending, unscored last, stable within
// ties so repository ordering survives.
func sortEntries(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Score, entries[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
}

// MatchPredictions lists every prediction for a match, optionally merged
// with benchmark predictions, best score first, unscored rows after.
func (s *LeaderboardService) MatchPredictions(ctx context.Context, matchID int, includeBenchmarks bool) ([]models.MatchPredictionRow, error) {
	var (
		preds      []*models.Prediction
		benchPreds []*models.BenchmarkPrediction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		preds, err = s.predictions.ListByMatch(gctx, matchID, false)
		return err
	})
	if includeBenchmarks {
		g.Go(func() error {
			var err error
			benchPreds, err = s.benchPredictions.ListByMatch(gctx, matchID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rows := make([]models.MatchPredictionRow, 0, len(preds)+len(benchPreds))
	for _, p := range preds {
		name := ""
		if p.User != nil {
			name = p.User.DisplayName()
		}
		rows = append(rows, models.MatchPredictionRow{
			Kind:    models.PredictorParticipant,
			Name:    name,
			Value:   p.Value,
			Score:   p.Score,
			Margin:  p.Margin,
			Correct: p.Correct,
			Late:    p.Late,
		})
	}
	for _, bp := range benchPreds {
		name := ""
		if bp.Benchmark != nil {
			name = bp.Benchmark.String()
		}
		rows = append(rows, models.MatchPredictionRow{
			Kind:    models.PredictorBenchmark,
			Name:    name,
			Value:   bp.Value,
			Score:   bp.Score,
			Margin:  bp.Margin,
			Correct: bp.Correct,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Score, rows[j].Score
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
	return rows, nil
}
