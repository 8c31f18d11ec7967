package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// ParticipantService handles roster joins, including the late back-fill a
// mid-season joiner needs so they compete on the full fixture list.
type ParticipantService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	users        repositories.UserRepository
	scorer       *ScorerService
	logger       *slog.Logger
}

func NewParticipantService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	users repositories.UserRepository,
	scorer *ScorerService,
	logger *slog.Logger,
) *ParticipantService {
	return &ParticipantService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		users:        users,
		scorer:       scorer,
		logger:       logger,
	}
}

// Join registers a user for a tournament. Joining twice is an idempotent
// no-op returning the existing registration. When the tournament already has
// started matches, the joiner gets late zero predictions for those, scored
// where results exist, and their aggregates computed. Only the joiner is
// recomputed: late predictions never feed crowd values, so nobody else's
// aggregates can change.
func (s *ParticipantService) Join(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	tournament, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.IsClosed() {
		return nil, ErrTournamentNotActive
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	participant := &models.Participant{TournamentID: tournamentID, UserID: userID}
	err = runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.participants.Create(ctx, exec, participant); err != nil {
			return err
		}
		if err := s.scorer.BackfillParticipant(ctx, exec, tournament, participant); err != nil {
			return err
		}
		return s.scorer.RecomputeParticipant(ctx, exec, tournamentID, participant)
	})
	if errors.Is(err, repositories.ErrParticipantConflict) {
		s.logger.InfoContext(ctx, "join skipped: already registered",
			slog.Int("tournament_id", tournamentID), slog.Int("user_id", userID))
		return s.participants.GetByTournamentAndUser(ctx, tournamentID, userID)
	}
	if err != nil {
		return nil, err
	}
	return participant, nil
}

// Get resolves a registration by tournament and user.
func (s *ParticipantService) Get(ctx context.Context, tournamentID, userID int) (*models.Participant, error) {
	participant, err := s.participants.GetByTournamentAndUser(ctx, tournamentID, userID)
	if errors.Is(err, repositories.ErrParticipantNotFound) {
		return nil, ErrParticipantNotFound
	}
	return participant, err
}
