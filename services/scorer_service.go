package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
	"github.com/scorepool/prediction-league/scoring"
)

// ResultReport summarizes a batch result entry.
type ResultReport struct {
	Applied  int
	Rejected int
}

// ScorerService records match results and runs the scoring cascade: score
// every predictor's prediction, recompute the table, advance bracket slots.
// Each match entry is one transaction.
type ScorerService struct {
	db               *sql.DB
	tournaments      repositories.TournamentRepository
	matches          repositories.MatchRepository
	participants     repositories.ParticipantRepository
	benchmarks       repositories.BenchmarkRepository
	predictions      repositories.PredictionRepository
	benchPredictions repositories.BenchmarkPredictionRepository
	logger           *slog.Logger
	now              func() time.Time
}

func NewScorerService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	participants repositories.ParticipantRepository,
	benchmarks repositories.BenchmarkRepository,
	predictions repositories.PredictionRepository,
	benchPredictions repositories.BenchmarkPredictionRepository,
	logger *slog.Logger,
) *ScorerService {
	return &ScorerService{
		db:               db,
		tournaments:      tournaments,
		matches:          matches,
		participants:     participants,
		benchmarks:       benchmarks,
		predictions:      predictions,
		benchPredictions: benchPredictions,
		logger:           logger,
		now:              time.Now,
	}
}

// SubmitResults applies a batch of results keyed by tournament-scoped match
// number. Values arrive as strings from the admin surface; entries that do
// not parse as integers, or that name an unknown match, are rejected and
// logged without touching the rest of the batch.
func (s *ScorerService) SubmitResults(ctx context.Context, tournamentID int, results map[int]string) (*ResultReport, error) {
	tournament, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.State != models.StateActive {
		return nil, ErrTournamentNotActive
	}

	report := &ResultReport{}
	for matchNumber, raw := range results {
		score, err := strconv.Atoi(raw)
		if err != nil {
			s.logger.WarnContext(ctx, "rejected result: not an integer",
				slog.Int("tournament_id", tournamentID),
				slog.Int("match_id", matchNumber),
				slog.String("value", raw))
			report.Rejected++
			continue
		}
		match, err := s.matches.GetByMatchID(ctx, tournamentID, matchNumber)
		if err != nil {
			s.logger.WarnContext(ctx, "rejected result: unknown match",
				slog.Int("tournament_id", tournamentID),
				slog.Int("match_id", matchNumber),
				slog.Any("error", err))
			report.Rejected++
			continue
		}
		if err := s.RecordResult(ctx, tournament, match, score); err != nil {
			return report, fmt.Errorf("record result for match %d: %w", matchNumber, err)
		}
		report.Applied++
	}
	return report, nil
}

// RecordResult sets a match score and runs the full cascade in one
// transaction. Re-entering a score is allowed and recomputes everything
// downstream idempotently.
func (s *ScorerService) RecordResult(ctx context.Context, tournament *models.Tournament, match *models.Match, score int) error {
	return runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.matches.UpdateScore(ctx, exec, match.ID, score); err != nil {
			return err
		}
		match.Score = &score

		if err := s.scoreMatch(ctx, exec, tournament, match); err != nil {
			return err
		}
		if err := s.RecomputeTable(ctx, exec, tournament.ID); err != nil {
			return err
		}
		return s.advanceBracket(ctx, exec, match)
	})
}

// scoreMatch runs checkPrediction for every participant and benchmark of the
// tournament against one played match.
func (s *ScorerService) scoreMatch(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, match *models.Match) error {
	participants, err := s.participants.ListByTournament(ctx, tournament.ID, false)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if err := s.checkParticipantPrediction(ctx, exec, tournament, p, match); err != nil {
			return fmt.Errorf("participant %d: %w", p.ID, err)
		}
	}

	benchmarks, err := s.benchmarks.ListByTournament(ctx, tournament.ID)
	if err != nil {
		return err
	}
	if len(benchmarks) == 0 {
		return nil
	}
	crowd, err := s.crowdValues(ctx, match.ID)
	if err != nil {
		return err
	}
	for _, b := range benchmarks {
		if err := s.checkBenchmarkPrediction(ctx, exec, tournament, b, match, crowd); err != nil {
			return fmt.Errorf("benchmark %d: %w", b.ID, err)
		}
	}
	return nil
}

// crowdValues collects the non-late participant prediction values for a
// match, the input to the mean and median benchmark algorithms.
func (s *ScorerService) crowdValues(ctx context.Context, matchID int) ([]decimal.Decimal, error) {
	preds, err := s.predictions.ListByMatch(ctx, matchID, true)
	if err != nil {
		return nil, err
	}
	values := make([]decimal.Decimal, 0, len(preds))
	for _, p := range preds {
		values = append(values, p.Value)
	}
	return values, nil
}

// checkParticipantPrediction fetches or late-creates the participant's
// prediction for the match and stores its score against the result. A
// missing prediction becomes a late zero, which never earns bonus.
func (s *ScorerService) checkParticipantPrediction(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, participant *models.Participant, match *models.Match) error {
	if match.Score == nil {
		return nil
	}
	pred, err := s.predictions.GetByUserAndMatch(ctx, exec, participant.UserID, match.ID)
	if errors.Is(err, repositories.ErrPredictionNotFound) {
		pred = &models.Prediction{
			UserID:  participant.UserID,
			MatchID: match.ID,
			Value:   decimal.Zero,
			Late:    true,
			Entered: s.now().UTC(),
		}
		if err := s.predictions.Create(ctx, exec, pred); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	result := decimal.NewFromInt(int64(*match.Score))
	out := scoring.Score(pred.Value, result, tournament.Bonus, tournament.DrawBonus, pred.Late)
	return s.predictions.UpdateResult(ctx, exec, pred.ID, out.Score, out.Margin, out.Correct)
}

// checkBenchmarkPrediction does the same for a benchmark, synthesizing the
// value from its algorithm on first sight of the match. The persisted value
// is the durable truth: a random benchmark keeps its first roll.
func (s *ScorerService) checkBenchmarkPrediction(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, benchmark *models.Benchmark, match *models.Match, crowd []decimal.Decimal) error {
	if match.Score == nil {
		return nil
	}
	pred, err := s.benchPredictions.GetByBenchmarkAndMatch(ctx, exec, benchmark.ID, match.ID)
	if errors.Is(err, repositories.ErrBenchmarkPredictionNotFound) {
		value, valErr := scoring.BenchmarkValue(benchmark, crowd)
		if valErr != nil {
			return valErr
		}
		pred = &models.BenchmarkPrediction{
			BenchmarkID: benchmark.ID,
			MatchID:     match.ID,
			Value:       value,
		}
		if err := s.benchPredictions.Create(ctx, exec, pred); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	result := decimal.NewFromInt(int64(*match.Score))
	out := scoring.Score(pred.Value, result, tournament.Bonus, tournament.DrawBonus, !benchmark.CanReceiveBonus)
	return s.benchPredictions.UpdateResult(ctx, exec, pred.ID, out.Score, out.Margin, out.Correct)
}

// RecomputeTable refreshes the stored aggregates of every predictor in the
// tournament. Predictors with no scored predictions keep nil aggregates.
// The predictor lists read from the pool, so a predictor row inserted on the
// current transaction is not visible here; creation paths must recompute the
// new predictor through RecomputeParticipant/RecomputeBenchmark instead.
func (s *ScorerService) RecomputeTable(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	participants, err := s.participants.ListByTournament(ctx, tournamentID, false)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if err := s.RecomputeParticipant(ctx, exec, tournamentID, p); err != nil {
			return err
		}
	}

	benchmarks, err := s.benchmarks.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	for _, b := range benchmarks {
		if err := s.RecomputeBenchmark(ctx, exec, b); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeParticipant refreshes one participant's stored aggregates. Reads
// and writes go through the supplied executor, so it works on a participant
// row the surrounding transaction has not committed yet.
func (s *ScorerService) RecomputeParticipant(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, participant *models.Participant) error {
	agg, err := s.predictions.AggregateByUserAndTournament(ctx, exec, participant.UserID, tournamentID)
	if err != nil {
		return err
	}
	if agg.Scored == 0 {
		return nil
	}
	return s.participants.UpdateAggregates(ctx, exec, participant.ID, agg.Score, agg.MarginPerMatch)
}

// RecomputeBenchmark refreshes one benchmark's stored aggregates through the
// supplied executor.
func (s *ScorerService) RecomputeBenchmark(ctx context.Context, exec repositories.SQLExecutor, benchmark *models.Benchmark) error {
	agg, err := s.benchPredictions.AggregateByBenchmark(ctx, exec, benchmark.ID)
	if err != nil {
		return err
	}
	if agg.Scored == 0 {
		return nil
	}
	return s.benchmarks.UpdateAggregates(ctx, exec, benchmark.ID, agg.Score, agg.MarginPerMatch)
}

// advanceBracket fills downstream winner-of slots once the match has a
// decisive score. A draw advances nobody. Filling a slot never re-scores.
func (s *ScorerService) advanceBracket(ctx context.Context, exec repositories.SQLExecutor, match *models.Match) error {
	winner := match.WinnerTeamID()
	if winner == nil {
		return nil
	}

	homeSide, err := s.matches.ListByHomeWinnerOf(ctx, exec, match.ID)
	if err != nil {
		return err
	}
	for _, m := range homeSide {
		if err := s.matches.FillHomeSlot(ctx, exec, m.ID, *winner); err != nil {
			return err
		}
	}

	awaySide, err := s.matches.ListByAwayWinnerOf(ctx, exec, match.ID)
	if err != nil {
		return err
	}
	for _, m := range awaySide {
		if err := s.matches.FillAwaySlot(ctx, exec, m.ID, *winner); err != nil {
			return err
		}
	}
	return nil
}

// BackfillParticipant creates and scores late predictions for every match of
// the tournament that has already started. Run when a participant joins
// after kick-offs have passed.
func (s *ScorerService) BackfillParticipant(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, participant *models.Participant) error {
	started, err := s.matches.ListStarted(ctx, tournament.ID, s.now())
	if err != nil {
		return err
	}
	for _, match := range started {
		if match.Score == nil {
			pred := &models.Prediction{
				UserID:  participant.UserID,
				MatchID: match.ID,
				Value:   decimal.Zero,
				Late:    true,
				Entered: s.now().UTC(),
			}
			if err := s.predictions.Create(ctx, exec, pred); err != nil && !errors.Is(err, repositories.ErrPredictionConflict) {
				return err
			}
			continue
		}
		if err := s.checkParticipantPrediction(ctx, exec, tournament, participant, match); err != nil {
			return err
		}
	}
	return nil
}

// BackfillBenchmark synthesizes and scores predictions for every started
// match, so a benchmark added mid-season competes on the full fixture list.
func (s *ScorerService) BackfillBenchmark(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, benchmark *models.Benchmark) error {
	started, err := s.matches.ListStarted(ctx, tournament.ID, s.now())
	if err != nil {
		return err
	}
	for _, match := range started {
		crowd, err := s.crowdValues(ctx, match.ID)
		if err != nil {
			return err
		}
		if match.Score == nil {
			value, err := scoring.BenchmarkValue(benchmark, crowd)
			if err != nil {
				return err
			}
			pred := &models.BenchmarkPrediction{BenchmarkID: benchmark.ID, MatchID: match.ID, Value: value}
			if err := s.benchPredictions.Create(ctx, exec, pred); err != nil && !errors.Is(err, repositories.ErrBenchmarkPredictionConflict) {
				return err
			}
			continue
		}
		if err := s.checkBenchmarkPrediction(ctx, exec, tournament, benchmark, match, crowd); err != nil {
			return err
		}
	}
	return nil
}
