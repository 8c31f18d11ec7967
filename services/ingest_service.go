package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

// tbdCell marks a fixture side resolved through a winner-of reference
// instead of a named team.
const tbdCell = "TBD"

var kickOffLayouts = []string{
	"2006-01-02 15:04",
	time.RFC3339,
	"02/01/2006 15:04",
}

// IngestReport summarizes a CSV upload: rows stored and rows skipped.
type IngestReport struct {
	Applied int
	Skipped int
}

// IngestService loads teams and fixtures from CSV files. Every row is its
// own atomic unit: a bad row is logged and skipped, and never rolls back the
// rows before it.
type IngestService struct {
	tournaments repositories.TournamentRepository
	matches     repositories.MatchRepository
	teams       repositories.TeamRepository
	fixtures    *FixtureService
	logger      *slog.Logger
}

func NewIngestService(
	tournaments repositories.TournamentRepository,
	matches repositories.MatchRepository,
	teams repositories.TeamRepository,
	fixtures *FixtureService,
	logger *slog.Logger,
) *IngestService {
	return &IngestService{
		tournaments: tournaments,
		matches:     matches,
		teams:       teams,
		fixtures:    fixtures,
		logger:      logger,
	}
}

// header maps column names from the first CSV record to their indices.
type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	h := make(header, len(record))
	for i, name := range record {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h, nil
}

func (h header) get(record []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

// UploadTeams ingests team rows {name, code, short_name?, full_name?,
// alt_name?} for one sport.
func (s *IngestService) UploadTeams(ctx context.Context, sportID int, r io.Reader) (*IngestReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	h, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.skipRow(ctx, "teams", line, err)
			report.Skipped++
			continue
		}

		team := &models.Team{
			SportID:   sportID,
			Name:      h.get(record, "name"),
			Code:      h.get(record, "code"),
			ShortName: optional(h.get(record, "short_name")),
			FullName:  optional(h.get(record, "full_name")),
			AltName:   optional(h.get(record, "alt_name")),
		}
		if team.Name == "" || team.Code == "" {
			s.skipRow(ctx, "teams", line, errors.New("name and code are required"))
			report.Skipped++
			continue
		}
		if err := s.teams.Create(ctx, nil, team); err != nil {
			s.skipRow(ctx, "teams", line, err)
			report.Skipped++
			continue
		}
		report.Applied++
	}
	return report, nil
}

// UploadFixtures ingests fixture rows {match_id?, home_team, away_team,
// kick_off, home_team_winner_of?, away_team_winner_of?}. A side named TBD is
// resolved through its winner-of column, which must reference an
// already-uploaded match number in the same tournament.
func (s *IngestService) UploadFixtures(ctx context.Context, tournamentID int, r io.Reader) (*IngestReport, error) {
	tournament, err := s.tournaments.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	h, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	report := &IngestReport{}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.skipRow(ctx, "fixtures", line, err)
			report.Skipped++
			continue
		}
		if err := s.ingestFixtureRow(ctx, tournament, h, record); err != nil {
			s.skipRow(ctx, "fixtures", line, err)
			report.Skipped++
			continue
		}
		report.Applied++
	}
	return report, nil
}

func (s *IngestService) ingestFixtureRow(ctx context.Context, tournament *models.Tournament, h header, record []string) error {
	kickOff, err := parseKickOff(h.get(record, "kick_off"))
	if err != nil {
		return err
	}

	match := &models.Match{TournamentID: tournament.ID, KickOff: kickOff}
	if raw := h.get(record, "match_id"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("match_id %q is not a number", raw)
		}
		match.MatchID = number
	}

	match.HomeTeamID, match.HomeWinnerOf, err = s.resolveSide(ctx, tournament,
		h.get(record, "home_team"), h.get(record, "home_team_winner_of"))
	if err != nil {
		return fmt.Errorf("home side: %w", err)
	}
	match.AwayTeamID, match.AwayWinnerOf, err = s.resolveSide(ctx, tournament,
		h.get(record, "away_team"), h.get(record, "away_team_winner_of"))
	if err != nil {
		return fmt.Errorf("away side: %w", err)
	}

	return s.fixtures.CreateMatch(ctx, match)
}

// resolveSide turns a team cell into a concrete team reference or, for the
// literal TBD, a winner-of link to an already-uploaded match.
func (s *IngestService) resolveSide(ctx context.Context, tournament *models.Tournament, teamCell, winnerOfCell string) (teamID, winnerOf *int, err error) {
	if strings.EqualFold(teamCell, tbdCell) {
		if winnerOfCell == "" {
			return nil, nil, errors.New("TBD side without a winner-of match number")
		}
		number, convErr := strconv.Atoi(winnerOfCell)
		if convErr != nil {
			return nil, nil, fmt.Errorf("winner-of %q is not a number", winnerOfCell)
		}
		upstream, lookupErr := s.matches.GetByMatchID(ctx, tournament.ID, number)
		if lookupErr != nil {
			if errors.Is(lookupErr, repositories.ErrMatchNotFound) {
				return nil, nil, ErrWinnerOfUnknown
			}
			return nil, nil, lookupErr
		}
		return nil, &upstream.ID, nil
	}

	if teamCell == "" {
		return nil, nil, errors.New("empty team cell")
	}
	team, lookupErr := s.teams.FindBySportAndName(ctx, tournament.SportID, teamCell)
	if lookupErr != nil {
		if errors.Is(lookupErr, repositories.ErrTeamNotFound) {
			return nil, nil, fmt.Errorf("unknown team %q", teamCell)
		}
		return nil, nil, lookupErr
	}
	return &team.ID, nil, nil
}

func parseKickOff(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("kick_off is required")
	}
	for _, layout := range kickOffLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable kick_off %q", value)
}

func (s *IngestService) skipRow(ctx context.Context, upload string, line int, err error) {
	s.logger.WarnContext(ctx, "csv row skipped",
		slog.String("upload", upload),
		slog.Int("line", line),
		slog.Any("error", err))
}
