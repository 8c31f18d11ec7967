package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorepool/prediction-league/models"
)

func TestCreateMatchAssignsNextNumber(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Milan", "MIL")
	away := env.seedTeam(tournament.SportID, "Inter", "INT")
	env.seedMatch(tournament.ID, 7, &home.ID, &away.ID, time.Now().Add(time.Hour))

	match := &models.Match{
		TournamentID: tournament.ID,
		KickOff:      time.Now().Add(48 * time.Hour),
		HomeTeamID:   &home.ID,
		AwayTeamID:   &away.ID,
	}
	require.NoError(t, env.fixtures.CreateMatch(ctx, match))
	assert.Equal(t, 8, match.MatchID)
	assert.NotZero(t, match.ID)
}

func TestCreateMatchSlotValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Milan", "MIL")
	away := env.seedTeam(tournament.SportID, "Inter", "INT")
	semi := env.seedMatch(tournament.ID, 1, &home.ID, &away.ID, time.Now().Add(time.Hour))
	other := env.seedTournament(models.StateActive, "2", "1")
	foreign := env.seedMatch(other.ID, 1, &home.ID, &away.ID, time.Now().Add(time.Hour))

	err := env.fixtures.CreateMatch(ctx, &models.Match{
		TournamentID: tournament.ID,
		KickOff:      time.Now().Add(time.Hour),
		AwayTeamID:   &away.ID,
	})
	assert.ErrorIs(t, err, ErrMatchSlotInvalid)

	err = env.fixtures.CreateMatch(ctx, &models.Match{
		TournamentID: tournament.ID,
		KickOff:      time.Now().Add(time.Hour),
		HomeTeamID:   &home.ID,
		HomeWinnerOf: &semi.ID,
		AwayTeamID:   &away.ID,
	})
	assert.ErrorIs(t, err, ErrMatchSlotInvalid)

	err = env.fixtures.CreateMatch(ctx, &models.Match{
		TournamentID: tournament.ID,
		KickOff:      time.Now().Add(time.Hour),
		HomeWinnerOf: intPtr(9999),
		AwayTeamID:   &away.ID,
	})
	assert.ErrorIs(t, err, ErrWinnerOfUnknown)

	err = env.fixtures.CreateMatch(ctx, &models.Match{
		TournamentID: tournament.ID,
		KickOff:      time.Now().Add(time.Hour),
		HomeWinnerOf: &foreign.ID,
		AwayTeamID:   &away.ID,
	})
	assert.ErrorIs(t, err, ErrWinnerOfUnknown)
}

func TestPostponeSkipsUnknownNumbers(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Milan", "MIL")
	away := env.seedTeam(tournament.SportID, "Inter", "INT")
	first := env.seedMatch(tournament.ID, 1, &home.ID, &away.ID, time.Now().Add(time.Hour))
	second := env.seedMatch(tournament.ID, 2, &home.ID, &away.ID, time.Now().Add(time.Hour))

	updated, err := env.fixtures.Postpone(ctx, tournament.ID, []int{1, 2, 42}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.True(t, env.store.matches[first.ID].Postponed)
	assert.True(t, env.store.matches[second.ID].Postponed)

	updated, err = env.fixtures.Postpone(ctx, tournament.ID, []int{1}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.False(t, env.store.matches[first.ID].Postponed)
}

func TestSwapHomeAwayFlipsEverything(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Milan", "MIL")
	away := env.seedTeam(tournament.SportID, "Inter", "INT")
	match := env.seedMatch(tournament.ID, 1, &home.ID, &away.ID, time.Now().Add(-time.Hour))
	score := 2
	env.store.matches[match.ID].Score = &score

	user := env.seedUser("swapper")
	env.seedParticipant(tournament.ID, user.ID)
	env.seedPrediction(user.ID, match.ID, "3", false)

	require.NoError(t, env.fixtures.SwapHomeAway(ctx, match.ID))

	got := env.store.matches[match.ID]
	assert.Equal(t, &away.ID, got.HomeTeamID)
	assert.Equal(t, &home.ID, got.AwayTeamID)
	require.NotNil(t, got.Score)
	assert.Equal(t, -2, *got.Score)

	preds, err := env.predictions.ListByMatch(ctx, match.ID, false)
	require.NoError(t, err)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].Value.Equal(d("-3")))

	assert.ErrorIs(t, env.fixtures.SwapHomeAway(ctx, 9999), ErrMatchNotFound)
}

func TestSlotLabel(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Milan", "MIL")
	away := env.seedTeam(tournament.SportID, "Inter", "INT")
	semi := env.seedMatch(tournament.ID, 1, &home.ID, &away.ID, time.Now().Add(time.Hour))
	final := env.seedMatch(tournament.ID, 2, nil, &away.ID, time.Now().Add(48*time.Hour))
	env.store.matches[final.ID].HomeWinnerOf = &semi.ID

	assert.Equal(t, "Milan", env.fixtures.SlotLabel(ctx, &home.ID, nil))
	assert.Equal(t, "Winner of Milan v Inter", env.fixtures.SlotLabel(ctx, nil, &semi.ID))
	assert.Equal(t, "TBD", env.fixtures.SlotLabel(ctx, nil, nil))
	assert.Equal(t, "TBD", env.fixtures.SlotLabel(ctx, nil, intPtr(9999)))
}
