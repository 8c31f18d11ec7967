package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
	"github.com/scorepool/prediction-league/storage"
)

var (
	defaultBonus     = decimal.NewFromInt(2)
	defaultDrawBonus = decimal.NewFromInt(1)
)

// TournamentService owns the tournament lifecycle: creation, the
// pending→active→finished→archived transitions, and the notifications and
// final export those transitions trigger.
type TournamentService struct {
	db           *sql.DB
	tournaments  repositories.TournamentRepository
	participants repositories.ParticipantRepository
	users        repositories.UserRepository
	scorer       *ScorerService
	mailer       Mailer
	uploader     storage.FileUploader
	logger       *slog.Logger
}

// NewTournamentService wires the lifecycle service. mailer and uploader may
// be nil: transitions then skip notification and export instead of failing.
func NewTournamentService(
	db *sql.DB,
	tournaments repositories.TournamentRepository,
	participants repositories.ParticipantRepository,
	users repositories.UserRepository,
	scorer *ScorerService,
	mailer Mailer,
	uploader storage.FileUploader,
	logger *slog.Logger,
) *TournamentService {
	return &TournamentService{
		db:           db,
		tournaments:  tournaments,
		participants: participants,
		users:        users,
		scorer:       scorer,
		mailer:       mailer,
		uploader:     uploader,
		logger:       logger,
	}
}

// Create registers a pending tournament, generating the slug from the name
// when absent and applying the default bonus settings.
func (s *TournamentService) Create(ctx context.Context, tournament *models.Tournament) error {
	if tournament.Name == "" {
		return fmt.Errorf("tournament name is required")
	}
	if tournament.Slug == "" {
		tournament.Slug = slug.Make(tournament.Name)
	}
	if tournament.Bonus.IsZero() {
		tournament.Bonus = defaultBonus
	}
	if tournament.DrawBonus.IsZero() {
		tournament.DrawBonus = defaultDrawBonus
	}
	tournament.State = models.StatePending
	return s.tournaments.Create(ctx, nil, tournament)
}

func (s *TournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournaments.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, ErrTournamentNotFound
	}
	return tournament, err
}

func (s *TournamentService) GetBySlug(ctx context.Context, tournamentSlug string) (*models.Tournament, error) {
	tournament, err := s.tournaments.GetBySlug(ctx, tournamentSlug)
	if errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, ErrTournamentNotFound
	}
	return tournament, err
}

func (s *TournamentService) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.tournaments.List(ctx, filter)
}

// Open activates a pending tournament and announces it to every user who
// opted into new-competition mail. Returns the number of mails sent. Opening
// a tournament in any other state is a logged no-op.
func (s *TournamentService) Open(ctx context.Context, id int) (int, error) {
	tournament, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if tournament.State != models.StatePending {
		s.logger.InfoContext(ctx, "open skipped: tournament not pending",
			slog.Int("tournament_id", id),
			slog.String("state", string(tournament.State)))
		return 0, nil
	}
	if err := s.tournaments.UpdateState(ctx, nil, id, models.StateActive); err != nil {
		return 0, err
	}

	if s.mailer == nil {
		return 0, nil
	}
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	subject := fmt.Sprintf("New prediction competition: %s", tournament.Name)
	sent := 0
	for _, u := range users {
		if !u.CanReceiveEmails || !u.EmailOnNewTournament || u.Email == "" {
			continue
		}
		body := s.openBody(tournament, &u)
		if err := s.mailer.Send(ctx, u.Email, subject, body); err != nil {
			s.logger.WarnContext(ctx, "announcement mail failed",
				slog.Int("user_id", u.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Close finishes an active tournament: recompute the table, record the
// winner, mail every participant their result, and archive the final
// standings to object storage. Returns the number of mails sent. Closing a
// tournament in any other state is a logged no-op.
func (s *TournamentService) Close(ctx context.Context, id int) (int, error) {
	tournament, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if tournament.State != models.StateActive {
		s.logger.InfoContext(ctx, "close skipped: tournament not active",
			slog.Int("tournament_id", id),
			slog.String("state", string(tournament.State)))
		return 0, nil
	}

	if err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		return s.scorer.RecomputeTable(ctx, exec, id)
	}); err != nil {
		return 0, err
	}

	standings, err := s.participants.ListByTournament(ctx, id, true)
	if err != nil {
		return 0, err
	}
	var winner *models.Participant
	for _, p := range standings {
		if p.Score != nil {
			winner = p
			break
		}
	}

	if err := runInTx(ctx, s.db, func(exec repositories.SQLExecutor) error {
		if err := s.tournaments.UpdateState(ctx, exec, id, models.StateFinished); err != nil {
			return err
		}
		if winner != nil {
			return s.tournaments.UpdateWinner(ctx, exec, id, winner.ID)
		}
		return nil
	}); err != nil {
		return 0, err
	}

	s.exportStandings(ctx, tournament, standings)

	if s.mailer == nil || winner == nil {
		return 0, nil
	}
	subject := fmt.Sprintf("Final standings: %s", tournament.Name)
	sent := 0
	for _, p := range standings {
		u := p.User
		if u == nil || !u.Active || !u.CanReceiveEmails || u.Email == "" {
			continue
		}
		body := s.closeBody(tournament, p, winner)
		if err := s.mailer.Send(ctx, u.Email, subject, body); err != nil {
			s.logger.WarnContext(ctx, "result mail failed",
				slog.Int("participant_id", p.ID), slog.Any("error", err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Archive bulk-archives tournaments without notification and returns how
// many actually changed state.
func (s *TournamentService) Archive(ctx context.Context, ids []int) (int, error) {
	archived := 0
	for _, id := range ids {
		tournament, err := s.Get(ctx, id)
		if err != nil {
			return archived, err
		}
		if tournament.State == models.StateArchived {
			continue
		}
		if err := s.tournaments.UpdateState(ctx, nil, id, models.StateArchived); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

// exportStandings uploads the final leaderboard as CSV. Export failures are
// logged, never fatal: the close has already happened.
func (s *TournamentService) exportStandings(ctx context.Context, tournament *models.Tournament, standings []*models.Participant) {
	if s.uploader == nil {
		return
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"rank", "name", "score", "margin_per_match"})
	for i, p := range standings {
		score, margin := "", ""
		if p.Score != nil {
			score = p.Score.String()
		}
		if p.MarginPerMatch != nil {
			margin = p.MarginPerMatch.String()
		}
		_ = w.Write([]string{strconv.Itoa(i + 1), p.DisplayName(), score, margin})
	}
	w.Flush()

	key := fmt.Sprintf("exports/%s/final-standings.csv", tournament.Slug)
	if _, err := s.uploader.Upload(ctx, key, "text/csv", &buf); err != nil {
		s.logger.WarnContext(ctx, "standings export failed",
			slog.Int("tournament_id", tournament.ID),
			slog.String("key", key),
			slog.Any("error", err))
		return
	}
	s.logger.InfoContext(ctx, "standings exported",
		slog.Int("tournament_id", tournament.ID),
		slog.String("key", key),
		slog.String("url", s.uploader.GetPublicURL(key)))
}

func (s *TournamentService) openBody(tournament *models.Tournament, user *models.User) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hi %s,\n\n", user.DisplayName())
	fmt.Fprintf(&buf, "%s is open for predictions.\n", tournament.Name)
	fmt.Fprintf(&buf, "Bonus for a correct result: %s. Draw bonus: %s.\n\n",
		tournament.Bonus, tournament.DrawBonusValue())
	buf.WriteString("Example scores for a correct winner:\n")
	for _, e := range ExampleScores(tournament.Bonus, tournament.DrawBonus) {
		fmt.Fprintf(&buf, "  margin %s: %s\n", e.Margin, e.Score)
	}
	return buf.String()
}

func (s *TournamentService) closeBody(tournament *models.Tournament, p, winner *models.Participant) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hi %s,\n\n", p.DisplayName())
	fmt.Fprintf(&buf, "%s has finished. Winner: %s (%s).\n",
		tournament.Name, winner.DisplayName(), winner.Score)
	if p.Score != nil {
		fmt.Fprintf(&buf, "Your final score: %s", p.Score)
		if p.MarginPerMatch != nil {
			fmt.Fprintf(&buf, " (%s per match)", p.MarginPerMatch)
		}
		buf.WriteString(".\n")
	}
	return buf.String()
}
