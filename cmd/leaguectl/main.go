package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/scorepool/prediction-league/config"
	"github.com/scorepool/prediction-league/db"
	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
	"github.com/scorepool/prediction-league/services"
	"github.com/scorepool/prediction-league/storage"
)

// leaguectl is the administrative surface of the engine: everything the
// competition admin does goes through these subcommands.

var (
	logger *slog.Logger

	sportRepo       repositories.SportRepository
	teamRepo        repositories.TeamRepository
	userRepo        repositories.UserRepository
	participantRepo repositories.ParticipantRepository

	tournamentSvc  *services.TournamentService
	participantSvc *services.ParticipantService
	benchmarkSvc   *services.BenchmarkService
	scorerSvc      *services.ScorerService
	leaderboardSvc *services.LeaderboardService
	predictionSvc  *services.PredictionService
	fixtureSvc     *services.FixtureService
	ingestSvc      *services.IngestService
	mergeSvc       *services.MergeService

	uploader storage.FileUploader
)

var rootCmd = &cobra.Command{
	Use:           "leaguectl",
	Short:         "Administer prediction-league competitions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func setup() error {
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	sportRepo = repositories.NewPostgresSportRepository(dbConn)
	tournaments := repositories.NewPostgresTournamentRepository(dbConn)
	teams := repositories.NewPostgresTeamRepository(dbConn)
	teamRepo = teams
	matches := repositories.NewPostgresMatchRepository(dbConn)
	users := repositories.NewPostgresUserRepository(dbConn)
	userRepo = users
	participants := repositories.NewPostgresParticipantRepository(dbConn)
	participantRepo = participants
	benchmarks := repositories.NewPostgresBenchmarkRepository(dbConn)
	predictions := repositories.NewPostgresPredictionRepository(dbConn)
	benchPredictions := repositories.NewPostgresBenchmarkPredictionRepository(dbConn)

	var mailer services.Mailer
	if cfg.SMTP != nil {
		mailer = services.NewEmailService(*cfg.SMTP)
	}
	if cfg.R2 != nil {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("initialize object storage: %w", err)
		}
	}

	scorerSvc = services.NewScorerService(dbConn, tournaments, matches, participants, benchmarks, predictions, benchPredictions, logger)
	tournamentSvc = services.NewTournamentService(dbConn, tournaments, participants, users, scorerSvc, mailer, uploader, logger)
	participantSvc = services.NewParticipantService(dbConn, tournaments, participants, users, scorerSvc, logger)
	benchmarkSvc = services.NewBenchmarkService(dbConn, tournaments, benchmarks, scorerSvc, logger)
	leaderboardSvc = services.NewLeaderboardService(participants, benchmarks, predictions, benchPredictions)
	predictionSvc = services.NewPredictionService(tournaments, matches, participants, predictions)
	fixtureSvc = services.NewFixtureService(dbConn, matches, teams, predictions, logger)
	ingestSvc = services.NewIngestService(tournaments, matches, teams, fixtureSvc, logger)
	mergeSvc = services.NewMergeService(dbConn, teams, users, matches, participants, predictions, logger)
	return nil
}

// resolveSport accepts either a numeric sport id or a sport name.
func resolveSport(cmd *cobra.Command, arg string) (*models.Sport, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		return sportRepo.GetByID(cmd.Context(), id)
	}
	return sportRepo.GetByName(cmd.Context(), arg)
}

func newAddSportCmd() *cobra.Command {
	var (
		unit string
		verb string
	)
	cmd := &cobra.Command{
		Use:   "add-sport <name>",
		Short: "Register a sport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sport := &models.Sport{
				Name:           args[0],
				ScoringUnit:    unit,
				MatchStartVerb: verb,
			}
			if err := sportRepo.Create(cmd.Context(), nil, sport); err != nil {
				return err
			}
			fmt.Printf("sport %d created (%s)\n", sport.ID, sport.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "point", "scoring unit, e.g. goal or point")
	cmd.Flags().StringVar(&verb, "verb", "Kick Off", "match start verb shown on fixtures")
	return cmd
}

func newSportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sports",
		Short: "List registered sports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sports, err := sportRepo.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, s := range sports {
				fmt.Printf("%3d. %-20s %s\n", s.ID, s.Name, s.ScoringUnit)
			}
			return nil
		},
	}
}

func newCreateCmd() *cobra.Command {
	var (
		name      string
		slugFlag  string
		sportArg  string
		year      int
		bonus     string
		drawBonus string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pending tournament",
		RunE: func(cmd *cobra.Command, args []string) error {
			sport, err := resolveSport(cmd, sportArg)
			if err != nil {
				return err
			}
			tournament := &models.Tournament{
				Name:    name,
				Slug:    slugFlag,
				SportID: sport.ID,
				Year:    year,
			}
			if bonus != "" {
				if tournament.Bonus, err = decimal.NewFromString(bonus); err != nil {
					return fmt.Errorf("invalid --bonus: %w", err)
				}
			}
			if drawBonus != "" {
				if tournament.DrawBonus, err = decimal.NewFromString(drawBonus); err != nil {
					return fmt.Errorf("invalid --draw-bonus: %w", err)
				}
			}
			if err := tournamentSvc.Create(cmd.Context(), tournament); err != nil {
				return err
			}
			fmt.Printf("created tournament %d (%s)\n", tournament.ID, tournament.Slug)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "tournament name (required)")
	cmd.Flags().StringVar(&slugFlag, "slug", "", "URL slug (derived from name when empty)")
	cmd.Flags().StringVar(&sportArg, "sport", "", "sport id or name (required)")
	cmd.Flags().IntVar(&year, "year", 0, "season year")
	cmd.Flags().StringVar(&bonus, "bonus", "", "correct-result bonus (default 2)")
	cmd.Flags().StringVar(&drawBonus, "draw-bonus", "", "draw bonus multiplier (default 1)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("sport")
	return cmd
}

func newTournamentsCmd() *cobra.Command {
	var (
		state string
		year  int
	)
	cmd := &cobra.Command{
		Use:   "tournaments",
		Short: "List tournaments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repositories.ListTournamentsFilter{}
			if state != "" {
				s := models.TournamentState(state)
				filter.State = &s
			}
			if year != 0 {
				filter.Year = &year
			}
			tournaments, err := tournamentSvc.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			for _, t := range tournaments {
				fmt.Printf("%3d. %-30s %-10s %d\n", t.ID, t.Name, t.State, t.Year)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state")
	cmd.Flags().IntVar(&year, "year", 0, "filter by season year")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tournament-id-or-slug>",
		Short: "Show one tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				tournament *models.Tournament
				err        error
			)
			if id, convErr := strconv.Atoi(args[0]); convErr == nil {
				tournament, err = tournamentSvc.Get(cmd.Context(), id)
			} else {
				tournament, err = tournamentSvc.GetBySlug(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			fmt.Printf("%d %s (%s) state=%s bonus=%s draw-bonus=%s\n",
				tournament.ID, tournament.Name, tournament.Slug, tournament.State,
				tournament.Bonus.String(), tournament.DrawBonus.String())
			if tournament.WinnerID != nil {
				winner, err := participantRepo.GetByID(cmd.Context(), *tournament.WinnerID)
				if err != nil {
					return err
				}
				if winner.User, err = userRepo.GetByID(cmd.Context(), winner.UserID); err != nil {
					return err
				}
				fmt.Printf("winner: %s\n", winner.DisplayName())
			}
			return nil
		},
	}
}

func newTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teams <sport>",
		Short: "List a sport's teams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sport, err := resolveSport(cmd, args[0])
			if err != nil {
				return err
			}
			teams, err := teamRepo.ListBySport(cmd.Context(), sport.ID)
			if err != nil {
				return err
			}
			for _, team := range teams {
				fmt.Printf("%3d. %-4s %s\n", team.ID, team.Code, team.Name)
			}
			return nil
		},
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <tournament-id>",
		Short: "Activate a pending tournament and announce it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			sent, err := tournamentSvc.Open(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("tournament %d opened, %d announcement mails sent\n", id, sent)
			return nil
		},
	}
}

func newCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <tournament-id>",
		Short: "Finish an active tournament, notify participants, export standings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			sent, err := tournamentSvc.Close(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("tournament %d closed, %d result mails sent\n", id, sent)
			return nil
		},
	}
}

func newArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <tournament-id>...",
		Short: "Archive tournaments without notification",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseInts(args)
			if err != nil {
				return err
			}
			archived, err := tournamentSvc.Archive(cmd.Context(), ids)
			if err != nil {
				return err
			}
			fmt.Printf("%d tournaments archived\n", archived)
			return nil
		},
	}
}

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <tournament-id> <match=value>...",
		Short: "Enter match results and run the scoring cascade",
		Long: `Enter results as tournament-scoped match numbers, e.g.:

  leaguectl results 3 1=2 2=-1 3=0

Invalid values and unknown match numbers are rejected per entry.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			results := make(map[int]string, len(args)-1)
			for _, pair := range args[1:] {
				number, value, ok := strings.Cut(pair, "=")
				if !ok {
					return fmt.Errorf("invalid result %q, expected match=value", pair)
				}
				matchNumber, err := strconv.Atoi(number)
				if err != nil {
					return fmt.Errorf("invalid match number %q", number)
				}
				results[matchNumber] = value
			}
			report, err := scorerSvc.SubmitResults(cmd.Context(), id, results)
			if err != nil {
				return err
			}
			fmt.Printf("%d results applied, %d rejected\n", report.Applied, report.Rejected)
			return nil
		},
	}
}

func newUploadTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-teams <sport> <csv-file>",
		Short: "Ingest a teams CSV for a sport",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sport, err := resolveSport(cmd, args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			report, err := ingestSvc.UploadTeams(cmd.Context(), sport.ID, f)
			if err != nil {
				return err
			}
			fmt.Printf("%d teams loaded, %d rows skipped\n", report.Applied, report.Skipped)
			return nil
		},
	}
}

func newUploadFixturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-fixtures <tournament-id> <csv-file>",
		Short: "Ingest a fixtures CSV for a tournament",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			report, err := ingestSvc.UploadFixtures(cmd.Context(), id, f)
			if err != nil {
				return err
			}
			fmt.Printf("%d fixtures loaded, %d rows skipped\n", report.Applied, report.Skipped)
			return nil
		},
	}
}

func newTableCmd() *cobra.Command {
	var (
		benchmarks bool
		recent     int
	)
	cmd := &cobra.Command{
		Use:   "table <tournament-id>",
		Short: "Print the standings table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			entries, err := leaderboardSvc.Table(cmd.Context(), id, benchmarks, recent)
			if err != nil {
				return err
			}
			for i, entry := range entries {
				score, margin := "-", "-"
				if entry.Score != nil {
					score = entry.Score.StringFixed(2)
				}
				if entry.MarginPerMatch != nil {
					margin = entry.MarginPerMatch.StringFixed(2)
				}
				fmt.Printf("%3d. %-30s %10s %10s\n", i+1, entry.Name, score, margin)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&benchmarks, "benchmarks", false, "include benchmark predictors")
	cmd.Flags().IntVar(&recent, "recent", 0, "attach the latest N scored predictions per row")
	return cmd
}

func newAddUserCmd() *cobra.Command {
	var (
		email     string
		firstName string
		lastName  string
		noMail    bool
	)
	cmd := &cobra.Command{
		Use:   "add-user <username>",
		Short: "Register a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user := &models.User{
				Username:             args[0],
				Email:                email,
				FirstName:            firstName,
				LastName:             lastName,
				Active:               true,
				CanReceiveEmails:     !noMail,
				EmailOnNewTournament: !noMail,
			}
			if err := userRepo.Create(cmd.Context(), nil, user); err != nil {
				return err
			}
			fmt.Printf("user %d created (%s)\n", user.ID, user.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	cmd.Flags().BoolVar(&noMail, "no-mail", false, "opt the user out of all mail")
	return cmd
}

func newJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <tournament-id> <user>",
		Short: "Register a user, back-filling late predictions when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tournamentID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			userID, err := resolveUser(cmd, args[1])
			if err != nil {
				return err
			}
			participant, err := participantSvc.Join(cmd.Context(), tournamentID, userID)
			if err != nil {
				return err
			}
			fmt.Printf("participant %d registered\n", participant.ID)
			return nil
		},
	}
}

func newAddBenchmarkCmd() *cobra.Command {
	var (
		name       string
		algorithm  string
		static     string
		rangeStart int
		rangeEnd   int
		withBonus  bool
	)
	cmd := &cobra.Command{
		Use:   "add-benchmark <tournament-id>",
		Short: "Add a synthetic predictor to a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			benchmark := &models.Benchmark{
				TournamentID:    id,
				Name:            name,
				Algorithm:       models.BenchmarkAlgorithm(algorithm),
				CanReceiveBonus: withBonus,
			}
			if static != "" {
				v, err := decimal.NewFromString(static)
				if err != nil {
					return fmt.Errorf("invalid --static: %w", err)
				}
				benchmark.StaticValue = &v
			}
			if cmd.Flags().Changed("range-start") {
				benchmark.RangeStart = &rangeStart
			}
			if cmd.Flags().Changed("range-end") {
				benchmark.RangeEnd = &rangeEnd
			}
			if err := benchmarkSvc.Create(cmd.Context(), benchmark); err != nil {
				return err
			}
			fmt.Printf("benchmark %d created (%s)\n", benchmark.ID, benchmark.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "benchmark name (required)")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "static, mean, median or random (required)")
	cmd.Flags().StringVar(&static, "static", "", "value for the static algorithm")
	cmd.Flags().IntVar(&rangeStart, "range-start", 0, "lower bound for the random algorithm")
	cmd.Flags().IntVar(&rangeEnd, "range-end", 0, "upper bound for the random algorithm")
	cmd.Flags().BoolVar(&withBonus, "with-bonus", false, "score under participant bonus rules")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("algorithm")
	return cmd
}

func resolveUser(cmd *cobra.Command, arg string) (int, error) {
	if id, err := strconv.Atoi(arg); err == nil {
		return id, nil
	}
	user, err := userRepo.GetByUsername(cmd.Context(), arg)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <user> <match-db-id> <value>",
		Short: "Enter a prediction on a participant's behalf",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser(cmd, args[0])
			if err != nil {
				return err
			}
			matchID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid match id %q", args[1])
			}
			value, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid prediction value %q", args[2])
			}
			prediction, err := predictionSvc.Submit(cmd.Context(), userID, matchID, value)
			if err != nil {
				return err
			}
			fmt.Printf("prediction %d stored\n", prediction.ID)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <user> <tournament-id>",
		Short: "Show a user's predictions in a tournament",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := resolveUser(cmd, args[0])
			if err != nil {
				return err
			}
			tournamentID, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[1])
			}
			participant, err := participantSvc.Get(cmd.Context(), tournamentID, userID)
			if err != nil {
				return err
			}
			if participant.Score != nil {
				fmt.Printf("total score %s\n", participant.Score.StringFixed(2))
			}
			predictions, err := predictionSvc.History(cmd.Context(), userID, tournamentID)
			if err != nil {
				return err
			}
			for _, p := range predictions {
				score := "-"
				if p.Score != nil {
					score = p.Score.StringFixed(2)
				}
				late := ""
				if p.Late {
					late = " (late)"
				}
				fmt.Printf("match %d: predicted %s, score %s%s\n", p.MatchID, p.Value.String(), score, late)
			}
			return nil
		},
	}
}

func newPredictionsCmd() *cobra.Command {
	var benchmarks bool
	cmd := &cobra.Command{
		Use:   "predictions <match-db-id>",
		Short: "List every prediction for a match, best score first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			matchID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id %q", args[0])
			}
			rows, err := leaderboardSvc.MatchPredictions(cmd.Context(), matchID, benchmarks)
			if err != nil {
				return err
			}
			for _, row := range rows {
				score := "-"
				if row.Score != nil {
					score = row.Score.StringFixed(2)
				}
				fmt.Printf("%-30s %8s %8s\n", row.Name, row.Value.String(), score)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&benchmarks, "benchmarks", false, "include benchmark predictions")
	return cmd
}

func newFixturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fixtures <tournament-id>",
		Short: "Print the fixture list with resolved slot labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid tournament id %q", args[0])
			}
			matches, err := fixtureSvc.ListByTournament(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, m := range matches {
				home := fixtureSvc.SlotLabel(cmd.Context(), m.HomeTeamID, m.HomeWinnerOf)
				away := fixtureSvc.SlotLabel(cmd.Context(), m.AwayTeamID, m.AwayWinnerOf)
				score := ""
				if m.Score != nil {
					score = fmt.Sprintf(" score=%+d", *m.Score)
				}
				flag := ""
				if m.Postponed {
					flag = " [postponed]"
				}
				fmt.Printf("%3d. %s v %s at %s%s%s\n", m.MatchID, home, away,
					m.KickOff.Format(time.RFC3339), score, flag)
			}
			return nil
		},
	}
}

func newPostponeCmd() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "postpone <tournament-id> <match-number>...",
		Short: "Flag matches as postponed (or clear with --clear)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseInts(args)
			if err != nil {
				return err
			}
			updated, err := fixtureSvc.Postpone(cmd.Context(), ids[0], ids[1:], !clear)
			if err != nil {
				return err
			}
			fmt.Printf("%d matches updated\n", updated)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "clear the postponed flag instead of setting it")
	return cmd
}

func newSwapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swap <match-db-id>",
		Short: "Swap a fixture's home and away sides",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid match id %q", args[0])
			}
			if err := fixtureSvc.SwapHomeAway(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Printf("match %d sides swapped\n", id)
			return nil
		},
	}
}

func newDeleteExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-export <tournament-slug>",
		Short: "Remove an archived standings export from object storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if uploader == nil {
				return fmt.Errorf("object storage is not configured")
			}
			key := fmt.Sprintf("exports/%s/final-standings.csv", args[0])
			if err := uploader.Delete(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Printf("%s deleted\n", key)
			return nil
		},
	}
}

func newMergeTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-teams <primary-id> <secondary-id>...",
		Short: "Merge duplicate teams into the primary",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseInts(args)
			if err != nil {
				return err
			}
			merged, err := mergeSvc.MergeTeams(cmd.Context(), ids[0], ids[1:])
			if err != nil {
				return err
			}
			fmt.Printf("%d teams merged into %d\n", merged, ids[0])
			return nil
		},
	}
}

func newMergeUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge-users <primary-id> <secondary-id>...",
		Short: "Merge duplicate user accounts into the primary",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseInts(args)
			if err != nil {
				return err
			}
			merged, err := mergeSvc.MergeUsers(cmd.Context(), ids[0], ids[1:])
			if err != nil {
				return err
			}
			fmt.Printf("%d users merged into %d\n", merged, ids[0])
			return nil
		},
	}
}

func parseInts(args []string) ([]int, error) {
	ids := make([]int, len(args))
	for i, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids[i] = id
	}
	return ids, nil
}

func main() {
	rootCmd.AddCommand(
		newAddSportCmd(),
		newSportsCmd(),
		newTeamsCmd(),
		newCreateCmd(),
		newTournamentsCmd(),
		newShowCmd(),
		newOpenCmd(),
		newCloseCmd(),
		newArchiveCmd(),
		newResultsCmd(),
		newUploadTeamsCmd(),
		newUploadFixturesCmd(),
		newTableCmd(),
		newAddUserCmd(),
		newJoinCmd(),
		newPredictCmd(),
		newHistoryCmd(),
		newPredictionsCmd(),
		newFixturesCmd(),
		newAddBenchmarkCmd(),
		newPostponeCmd(),
		newSwapCmd(),
		newDeleteExportCmd(),
		newMergeTeamsCmd(),
		newMergeUsersCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
