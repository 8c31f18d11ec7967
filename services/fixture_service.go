package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// slotLabelMaxDepth bounds the winner-of label walk. References can only
// point at already-created matches, so a longer chain means corrupt data.
const slotLabelMaxDepth = 8

// FixtureService manages the fixture list: match creation with
// tournament-scoped numbering, postponements, and the home/away swap fix.
type FixtureService struct {
	db          *sql.DB
	matches     repositories.MatchRepository
	teams       repositories.TeamRepository
	predictions repositories.PredictionRepository
	logger      *slog.Logger
}

func NewFixtureService(
	db *sql.DB,
	matches repositories.MatchRepository,
	teams repositories.TeamRepository,
	predictions repositories.PredictionRepository,
	logger *slog.Logger,
) *FixtureService {
	return &FixtureService{
		db:          db,
		matches:     matches,
		teams:       teams,
		predictions: predictions,
		logger:      logger,
	}
}

// CreateMatch validates the side slots and stores the match, assigning the
// next tournament-scoped match number when none is given. A winner-of
// reference must name an existing match of the same tournament, which keeps
// reference cycles unconstructible.
func (s *FixtureService) CreateMatch(ctx context.Context, match *models.Match) error {
	if err := validateSlot(match.HomeTeamID, match.HomeWinnerOf); err != nil {
		return err
	}
	if err := validateSlot(match.AwayTeamID, match.AwayWinnerOf); err != nil {
		return err
	}

	return runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		for _, ref := range []*int{match.HomeWinnerOf, match.AwayWinnerOf} {
			if ref == nil {
				continue
			}
			upstream, err := s.matches.GetByID(ctx, *ref)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchNotFound) {
					return ErrWinnerOfUnknown
				}
				return err
			}
			if upstream.TournamentID != match.TournamentID {
				return ErrWinnerOfUnknown
			}
		}

		if match.MatchID == 0 {
			maxID, err := s.matches.MaxMatchID(ctx, exec, match.TournamentID)
			if err != nil {
				return err
			}
			match.MatchID = maxID + 1
		}
		return s.matches.Create(ctx, exec, match)
	})
}

func validateSlot(teamID, winnerOf *int) error {
	if (teamID == nil) == (winnerOf == nil) {
		return ErrMatchSlotInvalid
	}
	return nil
}

// Postpone bulk-flags matches by tournament-scoped number and returns how
// many were updated. Unknown numbers are logged and skipped.
func (s *FixtureService) Postpone(ctx context.Context, tournamentID int, matchNumbers []int, postponed bool) (int, error) {
	updated := 0
	for _, number := range matchNumbers {
		match, err := s.matches.GetByMatchID(ctx, tournamentID, number)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				s.logger.WarnContext(ctx, "postpone skipped: unknown match",
					slog.Int("tournament_id", tournamentID), slog.Int("match_id", number))
				continue
			}
			return updated, err
		}
		if err := s.matches.SetPostponed(ctx, nil, match.ID, postponed); err != nil {
			return updated, err
		}
		updated++
	}
	return updated, nil
}

// SwapHomeAway corrects a fixture entered the wrong way round: the sides and
// winner-of links swap, and the score and every stored prediction for the
// match flip sign. Scored predictions keep their score; margins and
// correctness are symmetric under the swap.
func (s *FixtureService) SwapHomeAway(ctx context.Context, matchDBID int) error {
	if _, err := s.matches.GetByID(ctx, matchDBID); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return ErrMatchNotFound
		}
		return err
	}
	return runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.matches.SwapHomeAway(ctx, exec, matchDBID); err != nil {
			return err
		}
		return s.predictions.NegateValuesByMatch(ctx, exec, matchDBID)
	})
}

// ListByTournament returns the fixture list with slot labels resolved.
func (s *FixtureService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	return s.matches.ListByTournament(ctx, tournamentID)
}

// SlotLabel renders one side of a fixture for display: the team name when
// the slot is filled, otherwise a winner-of chain ending in "TBD" when the
// upstream match is itself undecided.
func (s *FixtureService) SlotLabel(ctx context.Context, teamID, winnerOf *int) string {
	return s.slotLabel(ctx, teamID, winnerOf, 0)
}

func (s *FixtureService) slotLabel(ctx context.Context, teamID, winnerOf *int, depth int) string {
	if teamID != nil {
		team, err := s.teams.GetByID(ctx, *teamID)
		if err != nil {
			return "TBD"
		}
		return team.Name
	}
	if winnerOf == nil || depth >= slotLabelMaxDepth {
		return "TBD"
	}
	upstream, err := s.matches.GetByID(ctx, *winnerOf)
	if err != nil {
		return "TBD"
	}
	home := s.slotLabel(ctx, upstream.HomeTeamID, upstream.HomeWinnerOf, depth+1)
	away := s.slotLabel(ctx, upstream.AwayTeamID, upstream.AwayWinnerOf, depth+1)
	return fmt.Sprintf("Winner of %s v %s", home, away)
}
