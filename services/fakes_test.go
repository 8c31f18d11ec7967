package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
	"github.com/scorepool/prediction-league/storage"
)

// memStore backs the in-memory repository fakes. Services run over it with a
// nil *sql.DB, so runInTx passes a nil executor straight through.
type memStore struct {
	nextID int

	sports           map[int]*models.Sport
	teams            map[int]*models.Team
	tournaments      map[int]*models.Tournament
	matches          map[int]*models.Match
	users            map[int]*models.User
	participants     map[int]*models.Participant
	benchmarks       map[int]*models.Benchmark
	predictions      map[int]*models.Prediction
	benchPredictions map[int]*models.BenchmarkPrediction
}

func newMemStore() *memStore {
	return &memStore{
		sports:           map[int]*models.Sport{},
		teams:            map[int]*models.Team{},
		tournaments:      map[int]*models.Tournament{},
		matches:          map[int]*models.Match{},
		users:            map[int]*models.User{},
		participants:     map[int]*models.Participant{},
		benchmarks:       map[int]*models.Benchmark{},
		predictions:      map[int]*models.Prediction{},
		benchPredictions: map[int]*models.BenchmarkPrediction{},
	}
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

// --- tournaments ---

type fakeTournamentRepo struct{ store *memStore }

func (r *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	for _, existing := range r.store.tournaments {
		if existing.Name == t.Name || existing.Slug == t.Slug {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.store.id()
	t.CreatedAt = time.Now()
	clone := *t
	r.store.tournaments[t.ID] = &clone
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	t, ok := r.store.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *fakeTournamentRepo) GetBySlug(_ context.Context, slug string) (*models.Tournament, error) {
	for _, t := range r.store.tournaments {
		if t.Slug == slug {
			clone := *t
			return &clone, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, t := range r.store.tournaments {
		if filter.SportID != nil && t.SportID != *filter.SportID {
			continue
		}
		if filter.State != nil && t.State != *filter.State {
			continue
		}
		if filter.Year != nil && t.Year != *filter.Year {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) UpdateState(_ context.Context, _ repositories.SQLExecutor, id int, state models.TournamentState) error {
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.State = state
	return nil
}

func (r *fakeTournamentRepo) UpdateWinner(_ context.Context, _ repositories.SQLExecutor, id, winnerParticipantID int) error {
	t, ok := r.store.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.WinnerID = &winnerParticipantID
	return nil
}

// --- teams ---

type fakeTeamRepo struct{ store *memStore }

func (r *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	if _, ok := r.store.sports[team.SportID]; !ok && len(r.store.sports) > 0 {
		return repositories.ErrTeamInvalidSport
	}
	for _, existing := range r.store.teams {
		if existing.SportID == team.SportID && (existing.Name == team.Name || existing.Code == team.Code) {
			return repositories.ErrTeamNameConflict
		}
	}
	team.ID = r.store.id()
	clone := *team
	r.store.teams[team.ID] = &clone
	return nil
}

func (r *fakeTeamRepo) GetByID(_ context.Context, id int) (*models.Team, error) {
	team, ok := r.store.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	clone := *team
	return &clone, nil
}

func (r *fakeTeamRepo) FindBySportAndName(_ context.Context, sportID int, name string) (*models.Team, error) {
	match := func(field *string) bool { return field != nil && *field == name }
	for _, team := range r.store.teams {
		if team.SportID != sportID {
			continue
		}
		if team.Name == name || match(team.ShortName) || match(team.FullName) || match(team.AltName) {
			clone := *team
			return &clone, nil
		}
	}
	for _, team := range r.store.teams {
		if team.SportID == sportID && strings.EqualFold(team.Code, name) {
			clone := *team
			return &clone, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *fakeTeamRepo) ListBySport(_ context.Context, sportID int) ([]models.Team, error) {
	out := make([]models.Team, 0)
	for _, team := range r.store.teams {
		if team.SportID == sportID {
			out = append(out, *team)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTeamRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.store.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.store.teams, id)
	return nil
}

// --- matches ---

type fakeMatchRepo struct{ store *memStore }

func (r *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, m *models.Match) error {
	for _, existing := range r.store.matches {
		if existing.TournamentID == m.TournamentID && existing.MatchID == m.MatchID {
			return repositories.ErrMatchIDConflict
		}
	}
	m.ID = r.store.id()
	clone := *m
	r.store.matches[m.ID] = &clone
	return nil
}

func (r *fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	m, ok := r.store.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	clone := *m
	return &clone, nil
}

func (r *fakeMatchRepo) GetByMatchID(_ context.Context, tournamentID, matchID int) (*models.Match, error) {
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.MatchID == matchID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repositories.ErrMatchNotFound
}

func (r *fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (r *fakeMatchRepo) ListStarted(_ context.Context, tournamentID int, now time.Time) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.HasStarted(now) {
			clone := *m
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

func (r *fakeMatchRepo) MaxMatchID(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	max := 0
	for _, m := range r.store.matches {
		if m.TournamentID == tournamentID && m.MatchID > max {
			max = m.MatchID
		}
	}
	return max, nil
}

func (r *fakeMatchRepo) ListByHomeWinnerOf(_ context.Context, _ repositories.SQLExecutor, matchDBID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.HomeWinnerOf != nil && *m.HomeWinnerOf == matchDBID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) ListByAwayWinnerOf(_ context.Context, _ repositories.SQLExecutor, matchDBID int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	for _, m := range r.store.matches {
		if m.AwayWinnerOf != nil && *m.AwayWinnerOf == matchDBID {
			clone := *m
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeMatchRepo) UpdateScore(_ context.Context, _ repositories.SQLExecutor, id, score int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Score = &score
	return nil
}

func (r *fakeMatchRepo) FillHomeSlot(_ context.Context, _ repositories.SQLExecutor, id, teamID int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeTeamID = &teamID
	m.HomeWinnerOf = nil
	return nil
}

func (r *fakeMatchRepo) FillAwaySlot(_ context.Context, _ repositories.SQLExecutor, id, teamID int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.AwayTeamID = &teamID
	m.AwayWinnerOf = nil
	return nil
}

func (r *fakeMatchRepo) SetPostponed(_ context.Context, _ repositories.SQLExecutor, id int, postponed bool) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.Postponed = postponed
	return nil
}

func (r *fakeMatchRepo) SwapHomeAway(_ context.Context, _ repositories.SQLExecutor, id int) error {
	m, ok := r.store.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeTeamID, m.AwayTeamID = m.AwayTeamID, m.HomeTeamID
	m.HomeWinnerOf, m.AwayWinnerOf = m.AwayWinnerOf, m.HomeWinnerOf
	if m.Score != nil {
		negated := -*m.Score
		m.Score = &negated
	}
	return nil
}

func (r *fakeMatchRepo) ReassignTeam(_ context.Context, _ repositories.SQLExecutor, fromTeamID, toTeamID int) error {
	for _, m := range r.store.matches {
		if m.HomeTeamID != nil && *m.HomeTeamID == fromTeamID {
			id := toTeamID
			m.HomeTeamID = &id
		}
		if m.AwayTeamID != nil && *m.AwayTeamID == fromTeamID {
			id := toTeamID
			m.AwayTeamID = &id
		}
	}
	return nil
}

// --- users ---

type fakeUserRepo struct{ store *memStore }

func (r *fakeUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	for _, existing := range r.store.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return repositories.ErrUserConflict
		}
	}
	u.ID = r.store.id()
	clone := *u
	r.store.users[u.ID] = &clone
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.store.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range r.store.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) ListActive(_ context.Context) ([]models.User, error) {
	out := make([]models.User, 0)
	for _, u := range r.store.users {
		if u.Active {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.store.users[id]; !ok {
		return repositories.ErrUserNotFound
	}
	delete(r.store.users, id)
	return nil
}

// --- participants ---

type fakeParticipantRepo struct{ store *memStore }

func (r *fakeParticipantRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	for _, existing := range r.store.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.store.id()
	p.CreatedAt = time.Now()
	clone := *p
	r.store.participants[p.ID] = &clone
	return nil
}

func (r *fakeParticipantRepo) GetByID(_ context.Context, id int) (*models.Participant, error) {
	p, ok := r.store.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	clone := *p
	return &clone, nil
}

func (r *fakeParticipantRepo) GetByTournamentAndUser(_ context.Context, tournamentID, userID int) (*models.Participant, error) {
	for _, p := range r.store.participants {
		if p.TournamentID == tournamentID && p.UserID == userID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(_ context.Context, tournamentID int, withUsers bool) ([]*models.Participant, error) {
	out := make([]*models.Participant, 0)
	for _, p := range r.store.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		clone := *p
		if withUsers {
			if u, ok := r.store.users[p.UserID]; ok {
				userClone := *u
				clone.User = &userClone
			}
		}
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Score, out[j].Score
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		case a.Equal(*b):
			return out[i].ID < out[j].ID
		default:
			return a.LessThan(*b)
		}
	})
	return out, nil
}

func (r *fakeParticipantRepo) UpdateAggregates(_ context.Context, _ repositories.SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	p, ok := r.store.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	s, m := score, marginPerMatch
	p.Score = &s
	p.MarginPerMatch = &m
	return nil
}

func (r *fakeParticipantRepo) ReassignUser(_ context.Context, _ repositories.SQLExecutor, fromUserID, toUserID int) error {
	taken := map[int]bool{}
	for _, p := range r.store.participants {
		if p.UserID == toUserID {
			taken[p.TournamentID] = true
		}
	}
	for id, p := range r.store.participants {
		if p.UserID != fromUserID {
			continue
		}
		if taken[p.TournamentID] {
			delete(r.store.participants, id)
			continue
		}
		p.UserID = toUserID
	}
	return nil
}

// --- benchmarks ---

type fakeBenchmarkRepo struct{ store *memStore }

func (r *fakeBenchmarkRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Benchmark) error {
	if _, ok := r.store.tournaments[b.TournamentID]; !ok {
		return repositories.ErrBenchmarkInvalidRef
	}
	for _, existing := range r.store.benchmarks {
		if existing.TournamentID == b.TournamentID && existing.Name == b.Name {
			return repositories.ErrBenchmarkConflict
		}
	}
	b.ID = r.store.id()
	clone := *b
	r.store.benchmarks[b.ID] = &clone
	return nil
}

func (r *fakeBenchmarkRepo) GetByID(_ context.Context, id int) (*models.Benchmark, error) {
	b, ok := r.store.benchmarks[id]
	if !ok {
		return nil, repositories.ErrBenchmarkNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *fakeBenchmarkRepo) ListByTournament(_ context.Context, tournamentID int) ([]*models.Benchmark, error) {
	out := make([]*models.Benchmark, 0)
	for _, b := range r.store.benchmarks {
		if b.TournamentID == tournamentID {
			clone := *b
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Score, out[j].Score
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.LessThan(*b)
		}
	})
	return out, nil
}

func (r *fakeBenchmarkRepo) UpdateAggregates(_ context.Context, _ repositories.SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	b, ok := r.store.benchmarks[id]
	if !ok {
		return repositories.ErrBenchmarkNotFound
	}
	s, m := score, marginPerMatch
	b.Score = &s
	b.MarginPerMatch = &m
	return nil
}

// --- predictions ---

type fakePredictionRepo struct{ store *memStore }

func (r *fakePredictionRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Prediction) error {
	for _, existing := range r.store.predictions {
		if existing.UserID == p.UserID && existing.MatchID == p.MatchID {
			return repositories.ErrPredictionConflict
		}
	}
	if _, ok := r.store.matches[p.MatchID]; !ok {
		return repositories.ErrPredictionInvalidRef
	}
	p.ID = r.store.id()
	if p.Entered.IsZero() {
		p.Entered = time.Now()
	}
	clone := *p
	r.store.predictions[p.ID] = &clone
	return nil
}

func (r *fakePredictionRepo) GetByUserAndMatch(_ context.Context, _ repositories.SQLExecutor, userID, matchID int) (*models.Prediction, error) {
	for _, p := range r.store.predictions {
		if p.UserID == userID && p.MatchID == matchID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repositories.ErrPredictionNotFound
}

func (r *fakePredictionRepo) ListByUserAndTournament(_ context.Context, userID, tournamentID int) ([]*models.Prediction, error) {
	out := make([]*models.Prediction, 0)
	for _, p := range r.store.predictions {
		m, ok := r.store.matches[p.MatchID]
		if !ok || m.TournamentID != tournamentID || p.UserID != userID {
			continue
		}
		clone := *p
		matchClone := *m
		clone.Match = &matchClone
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Match.KickOff.After(out[j].Match.KickOff) })
	return out, nil
}

func (r *fakePredictionRepo) ListByMatch(_ context.Context, matchID int, nonLateOnly bool) ([]*models.Prediction, error) {
	out := make([]*models.Prediction, 0)
	for _, p := range r.store.predictions {
		if p.MatchID != matchID || (nonLateOnly && p.Late) {
			continue
		}
		clone := *p
		if u, ok := r.store.users[p.UserID]; ok {
			userClone := *u
			clone.User = &userClone
		}
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakePredictionRepo) ListRecentScored(_ context.Context, userID, tournamentID, limit int) ([]models.Prediction, error) {
	out := make([]models.Prediction, 0)
	for _, p := range r.store.predictions {
		m, ok := r.store.matches[p.MatchID]
		if !ok || m.TournamentID != tournamentID || p.UserID != userID || m.Score == nil {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.store.matches[out[i].MatchID].KickOff.After(r.store.matches[out[j].MatchID].KickOff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakePredictionRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error {
	p, ok := r.store.predictions[id]
	if !ok {
		return repositories.ErrPredictionNotFound
	}
	s, m, c := score, margin, correct
	p.Score = &s
	p.Margin = &m
	p.Correct = &c
	return nil
}

func (r *fakePredictionRepo) AggregateByUserAndTournament(_ context.Context, _ repositories.SQLExecutor, userID, tournamentID int) (*repositories.PredictorAggregate, error) {
	agg := &repositories.PredictorAggregate{}
	sum, marginSum := decimal.Zero, decimal.Zero
	for _, p := range r.store.predictions {
		m, ok := r.store.matches[p.MatchID]
		if !ok || m.TournamentID != tournamentID || p.UserID != userID || p.Score == nil {
			continue
		}
		sum = sum.Add(*p.Score)
		marginSum = marginSum.Add(*p.Margin)
		agg.Scored++
	}
	if agg.Scored > 0 {
		agg.Score = sum
		agg.MarginPerMatch = marginSum.Div(decimal.NewFromInt(int64(agg.Scored)))
	}
	return agg, nil
}

func (r *fakePredictionRepo) NegateValuesByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) error {
	for _, p := range r.store.predictions {
		if p.MatchID == matchID {
			p.Value = p.Value.Neg()
		}
	}
	return nil
}

func (r *fakePredictionRepo) ReassignUser(_ context.Context, _ repositories.SQLExecutor, fromUserID, toUserID int) error {
	taken := map[int]bool{}
	for _, p := range r.store.predictions {
		if p.UserID == toUserID {
			taken[p.MatchID] = true
		}
	}
	for id, p := range r.store.predictions {
		if p.UserID != fromUserID {
			continue
		}
		if taken[p.MatchID] {
			delete(r.store.predictions, id)
			continue
		}
		p.UserID = toUserID
	}
	return nil
}

// --- benchmark predictions ---

type fakeBenchmarkPredictionRepo struct{ store *memStore }

func (r *fakeBenchmarkPredictionRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.BenchmarkPrediction) error {
	for _, existing := range r.store.benchPredictions {
		if existing.BenchmarkID == p.BenchmarkID && existing.MatchID == p.MatchID {
			return repositories.ErrBenchmarkPredictionConflict
		}
	}
	p.ID = r.store.id()
	clone := *p
	r.store.benchPredictions[p.ID] = &clone
	return nil
}

func (r *fakeBenchmarkPredictionRepo) GetByBenchmarkAndMatch(_ context.Context, _ repositories.SQLExecutor, benchmarkID, matchID int) (*models.BenchmarkPrediction, error) {
	for _, p := range r.store.benchPredictions {
		if p.BenchmarkID == benchmarkID && p.MatchID == matchID {
			clone := *p
			return &clone, nil
		}
	}
	return nil, repositories.ErrBenchmarkPredictionNotFound
}

func (r *fakeBenchmarkPredictionRepo) ListByMatch(_ context.Context, matchID int) ([]*models.BenchmarkPrediction, error) {
	out := make([]*models.BenchmarkPrediction, 0)
	for _, p := range r.store.benchPredictions {
		if p.MatchID != matchID {
			continue
		}
		clone := *p
		if b, ok := r.store.benchmarks[p.BenchmarkID]; ok {
			benchClone := *b
			clone.Benchmark = &benchClone
		}
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeBenchmarkPredictionRepo) ListRecentScored(_ context.Context, benchmarkID, limit int) ([]models.BenchmarkPrediction, error) {
	out := make([]models.BenchmarkPrediction, 0)
	for _, p := range r.store.benchPredictions {
		m, ok := r.store.matches[p.MatchID]
		if !ok || p.BenchmarkID != benchmarkID || m.Score == nil {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return r.store.matches[out[i].MatchID].KickOff.After(r.store.matches[out[j].MatchID].KickOff)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeBenchmarkPredictionRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, score, margin decimal.Decimal, correct bool) error {
	p, ok := r.store.benchPredictions[id]
	if !ok {
		return repositories.ErrBenchmarkPredictionNotFound
	}
	s, m, c := score, margin, correct
	p.Score = &s
	p.Margin = &m
	p.Correct = &c
	return nil
}

func (r *fakeBenchmarkPredictionRepo) AggregateByBenchmark(_ context.Context, _ repositories.SQLExecutor, benchmarkID int) (*repositories.PredictorAggregate, error) {
	agg := &repositories.PredictorAggregate{}
	sum, marginSum := decimal.Zero, decimal.Zero
	for _, p := range r.store.benchPredictions {
		if p.BenchmarkID != benchmarkID || p.Score == nil {
			continue
		}
		sum = sum.Add(*p.Score)
		marginSum = marginSum.Add(*p.Margin)
		agg.Scored++
	}
	if agg.Scored > 0 {
		agg.Score = sum
		agg.MarginPerMatch = marginSum.Div(decimal.NewFromInt(int64(agg.Scored)))
	}
	return agg, nil
}

// --- collaborators ---

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeMailer struct {
	sent   []sentMail
	failTo map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	if m.failTo[to] {
		return fmt.Errorf("delivery to %s failed", to)
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type fakeUploader struct {
	objects map[string][]byte
	failAll bool
}

func (u *fakeUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.failAll {
		return nil, fmt.Errorf("upload of %s failed", key)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = data
	return &storage.UploadResult{Key: key}, nil
}

func (u *fakeUploader) Delete(_ context.Context, key string) error {
	delete(u.objects, key)
	return nil
}

func (u *fakeUploader) GetPublicURL(key string) string {
	return "https://exports.test/" + key
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- test environment ---

type testEnv struct {
	store *memStore

	tournaments      *fakeTournamentRepo
	teams            *fakeTeamRepo
	matches          *fakeMatchRepo
	users            *fakeUserRepo
	participants     *fakeParticipantRepo
	benchmarks       *fakeBenchmarkRepo
	predictions      *fakePredictionRepo
	benchPredictions *fakeBenchmarkPredictionRepo

	scorer       *ScorerService
	leaderboard  *LeaderboardService
	fixtures     *FixtureService
	ingest       *IngestService
	merges       *MergeService
	participant  *ParticipantService
	benchmark    *BenchmarkService
	predictionSv *PredictionService
}

func newTestEnv() *testEnv {
	store := newMemStore()
	env := &testEnv{
		store:            store,
		tournaments:      &fakeTournamentRepo{store: store},
		teams:            &fakeTeamRepo{store: store},
		matches:          &fakeMatchRepo{store: store},
		users:            &fakeUserRepo{store: store},
		participants:     &fakeParticipantRepo{store: store},
		benchmarks:       &fakeBenchmarkRepo{store: store},
		predictions:      &fakePredictionRepo{store: store},
		benchPredictions: &fakeBenchmarkPredictionRepo{store: store},
	}
	logger := slogDiscard()
	env.scorer = NewScorerService(nil, env.tournaments, env.matches, env.participants, env.benchmarks, env.predictions, env.benchPredictions, logger)
	env.leaderboard = NewLeaderboardService(env.participants, env.benchmarks, env.predictions, env.benchPredictions)
	env.fixtures = NewFixtureService(nil, env.matches, env.teams, env.predictions, logger)
	env.ingest = NewIngestService(env.tournaments, env.matches, env.teams, env.fixtures, logger)
	env.merges = NewMergeService(nil, env.teams, env.users, env.matches, env.participants, env.predictions, logger)
	env.participant = NewParticipantService(nil, env.tournaments, env.participants, env.users, env.scorer, logger)
	env.benchmark = NewBenchmarkService(nil, env.tournaments, env.benchmarks, env.scorer, logger)
	env.predictionSv = NewPredictionService(env.tournaments, env.matches, env.participants, env.predictions)
	return env
}

// --- seed helpers ---

func (e *testEnv) seedSport() *models.Sport {
	sport := &models.Sport{ID: e.store.id(), Name: "Football", ScoringUnit: "goal", MatchStartVerb: "Kick Off"}
	e.store.sports[sport.ID] = sport
	return sport
}

func (e *testEnv) seedTournament(state models.TournamentState, bonus, drawBonus string) *models.Tournament {
	sport := e.seedSport()
	t := &models.Tournament{
		ID:        e.store.id(),
		Name:      fmt.Sprintf("League %d", e.store.nextID),
		Slug:      fmt.Sprintf("league-%d", e.store.nextID),
		SportID:   sport.ID,
		State:     state,
		Bonus:     decimal.RequireFromString(bonus),
		DrawBonus: decimal.RequireFromString(drawBonus),
		Year:      2026,
	}
	e.store.tournaments[t.ID] = t
	return t
}

func (e *testEnv) seedTeam(sportID int, name, code string) *models.Team {
	team := &models.Team{ID: e.store.id(), SportID: sportID, Name: name, Code: code}
	e.store.teams[team.ID] = team
	return team
}

func (e *testEnv) seedUser(username string) *models.User {
	u := &models.User{
		ID:                   e.store.id(),
		Username:             username,
		Email:                username + "@example.com",
		Active:               true,
		CanReceiveEmails:     true,
		EmailOnNewTournament: true,
	}
	e.store.users[u.ID] = u
	return u
}

func (e *testEnv) seedParticipant(tournamentID, userID int) *models.Participant {
	p := &models.Participant{ID: e.store.id(), TournamentID: tournamentID, UserID: userID}
	e.store.participants[p.ID] = p
	return p
}

func (e *testEnv) seedMatch(tournamentID, matchNumber int, homeTeamID, awayTeamID *int, kickOff time.Time) *models.Match {
	m := &models.Match{
		ID:           e.store.id(),
		TournamentID: tournamentID,
		MatchID:      matchNumber,
		KickOff:      kickOff,
		HomeTeamID:   homeTeamID,
		AwayTeamID:   awayTeamID,
	}
	e.store.matches[m.ID] = m
	return m
}

func (e *testEnv) seedPrediction(userID, matchID int, value string, late bool) *models.Prediction {
	p := &models.Prediction{
		ID:      e.store.id(),
		UserID:  userID,
		MatchID: matchID,
		Value:   decimal.RequireFromString(value),
		Late:    late,
		Entered: time.Now(),
	}
	e.store.predictions[p.ID] = p
	return p
}

func intPtr(v int) *int { return &v }

// --- transaction visibility ---
//
// The staged repos mimic READ COMMITTED visibility: a row created inside a
// transaction stays in a pending set that pool-connection reads (GetByID,
// ListByTournament and friends) cannot see until commit is called, while
// executor-scoped writes still reach it. They catch creation paths that try
// to read their own uncommitted rows through the pool.

type stagedParticipantRepo struct {
	*fakeParticipantRepo
	pending map[int]*models.Participant
}

func newStagedParticipantRepo(inner *fakeParticipantRepo) *stagedParticipantRepo {
	return &stagedParticipantRepo{fakeParticipantRepo: inner, pending: map[int]*models.Participant{}}
}

func (r *stagedParticipantRepo) Create(_ context.Context, _ repositories.SQLExecutor, p *models.Participant) error {
	for _, existing := range r.store.participants {
		if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.store.id()
	p.CreatedAt = time.Now()
	clone := *p
	r.pending[p.ID] = &clone
	return nil
}

func (r *stagedParticipantRepo) UpdateAggregates(ctx context.Context, exec repositories.SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	if p, ok := r.pending[id]; ok {
		s, m := score, marginPerMatch
		p.Score = &s
		p.MarginPerMatch = &m
		return nil
	}
	return r.fakeParticipantRepo.UpdateAggregates(ctx, exec, id, score, marginPerMatch)
}

func (r *stagedParticipantRepo) commit() {
	for id, p := range r.pending {
		r.store.participants[id] = p
		delete(r.pending, id)
	}
}

type stagedBenchmarkRepo struct {
	*fakeBenchmarkRepo
	pending map[int]*models.Benchmark
}

func newStagedBenchmarkRepo(inner *fakeBenchmarkRepo) *stagedBenchmarkRepo {
	return &stagedBenchmarkRepo{fakeBenchmarkRepo: inner, pending: map[int]*models.Benchmark{}}
}

func (r *stagedBenchmarkRepo) Create(_ context.Context, _ repositories.SQLExecutor, b *models.Benchmark) error {
	if _, ok := r.store.tournaments[b.TournamentID]; !ok {
		return repositories.ErrBenchmarkInvalidRef
	}
	for _, existing := range r.store.benchmarks {
		if existing.TournamentID == b.TournamentID && existing.Name == b.Name {
			return repositories.ErrBenchmarkConflict
		}
	}
	b.ID = r.store.id()
	clone := *b
	r.pending[b.ID] = &clone
	return nil
}

func (r *stagedBenchmarkRepo) UpdateAggregates(ctx context.Context, exec repositories.SQLExecutor, id int, score, marginPerMatch decimal.Decimal) error {
	if b, ok := r.pending[id]; ok {
		s, m := score, marginPerMatch
		b.Score = &s
		b.MarginPerMatch = &m
		return nil
	}
	return r.fakeBenchmarkRepo.UpdateAggregates(ctx, exec, id, score, marginPerMatch)
}

func (r *stagedBenchmarkRepo) commit() {
	for id, b := range r.pending {
		r.store.benchmarks[id] = b
		delete(r.pending, id)
	}
}
