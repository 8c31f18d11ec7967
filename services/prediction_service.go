package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// PredictionService accepts participant predictions ahead of kick-off.
type PredictionService struct {
	tournaments  repositories.TournamentRepository
	matches      repositories.MatchRepository
	participants repositories.ParticipantRepository
	predictions  repositories.PredictionRepository
	now          func() time.Time
}

func NewPredictionService(
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	participants repositories.ParticipantRepository,
	predictions repositories.PredictionRepository,
) *PredictionService {
	return &PredictionService{
		tournaments:  tournaments,
		matches:      matches,
		participants: participants,
		predictions:  predictions,
		now:          time.Now,
	}
}

// Submit stores a prediction for a match the user is registered to predict.
// The tournament must be active and the match must not have kicked off; a
// second prediction for the same match is rejected, not overwritten.
func (s *PredictionService) Submit(ctx context.Context, userID, matchID int, value decimal.Decimal) (*models.Prediction, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	tournament, err := s.tournaments.GetByID(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.State != models.StateActive {
		return nil, ErrTournamentNotActive
	}
	if _, err := s.participants.GetByTournamentAndUser(ctx, tournament.ID, userID); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	if match.HasStarted(s.now()) {
		return nil, ErrMatchAlreadyStarted
	}

	prediction := &models.Prediction{
		UserID:  userID,
		MatchID: matchID,
		Value:   value,
		Entered: s.now().UTC(),
	}
	if err := s.predictions.Create(ctx, nil, prediction); err != nil {
		if errors.Is(err, repositories.ErrPredictionConflict) {
			return nil, ErrAlreadyPredicted
		}
		return nil, err
	}
	return prediction, nil
}

// History returns the user's predictions in a tournament, newest kick-off
// first, with match rows attached.
func (s *PredictionService) History(ctx context.Context, userID, tournamentID int) ([]*models.Prediction, error) {
	return s.predictions.ListByUserAndTournament(ctx, userID, tournamentID)
}
