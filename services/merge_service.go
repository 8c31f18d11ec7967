package services

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// MergeService collapses duplicate teams and users created by inconsistent
// CSV uploads or double registrations. Each secondary merges in its own
// transaction, so a failure partway leaves the completed merges standing.
type MergeService struct {
	db           *sql.DB
	teams        repositories.TeamRepository
	users        repositories.UserRepository
	matches      repositories.MatchRepository
	participants repositories.ParticipantRepository
	predictions  repositories.PredictionRepository
	logger       *slog.Logger
}

func NewMergeService(
	db *sql.DB,
	teams repositories.TeamRepository,
	users repositories.UserRepository,
	matches repositories.MatchRepository,
	participants repositories.ParticipantRepository,
	predictions repositories.PredictionRepository,
	logger *slog.Logger,
) *MergeService {
	return &MergeService{
		db:           db,
		teams:        teams,
		users:        users,
		matches:      matches,
		participants: participants,
		predictions:  predictions,
		logger:       logger,
	}
}

// MergeTeams repoints every match slot from the secondary teams to the
// primary, then deletes the secondaries. All teams must belong to the same
// sport. Returns the number of teams merged away.
func (s *MergeService) MergeTeams(ctx context.Context, primaryID int, secondaryIDs []int) (int, error) {
	primary, err := s.getTeam(ctx, primaryID)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, id := range secondaryIDs {
		if id == primaryID {
			continue
		}
		secondary, err := s.getTeam(ctx, id)
		if err != nil {
			return merged, err
		}
		if secondary.SportID != primary.SportID {
			return merged, ErrMergeSportMismatch
		}
		err = runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
			if err := s.matches.ReassignTeam(ctx, exec, secondary.ID, primary.ID); err != nil {
				return err
			}
			return s.teams.Delete(ctx, exec, secondary.ID)
		})
		if err != nil {
			return merged, err
		}
		s.logger.InfoContext(ctx, "team merged",
			slog.Int("primary_id", primary.ID), slog.Int("secondary_id", secondary.ID))
		merged++
	}
	if merged == 0 {
		return 0, ErrMergeNothingToDo
	}
	return merged, nil
}

// MergeUsers repoints the secondary users' registrations and predictions to
// the primary, dropping rows that would collide with an existing primary
// row, then deletes the secondaries. Returns the number of users merged
// away.
func (s *MergeService) MergeUsers(ctx context.Context, primaryID int, secondaryIDs []int) (int, error) {
	if _, err := s.getUser(ctx, primaryID); err != nil {
		return 0, err
	}

	merged := 0
	for _, id := range secondaryIDs {
		if id == primaryID {
			continue
		}
		if _, err := s.getUser(ctx, id); err != nil {
			return merged, err
		}
		err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
			if err := s.participants.ReassignUser(ctx, exec, id, primaryID); err != nil {
				return err
			}
			if err := s.predictions.ReassignUser(ctx, exec, id, primaryID); err != nil {
				return err
			}
			return s.users.Delete(ctx, exec, id)
		})
		if err != nil {
			return merged, err
		}
		s.logger.InfoContext(ctx, "user merged",
			slog.Int("primary_id", primaryID), slog.Int("secondary_id", id))
		merged++
	}
	if merged == 0 {
		return 0, ErrMergeNothingToDo
	}
	return merged, nil
}

func (s *MergeService) getTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrTeamNotFound) {
		return nil, ErrTeamNotFound
	}
	return team, err
}

func (s *MergeService) getUser(ctx context.Context, id int) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}
