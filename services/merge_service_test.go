package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorepool/prediction-league/models"
	"github.com/scorepool/prediction-league/repositories"
)

func TestMergeTeamsRepointsMatches(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	primary := env.seedTeam(tournament.SportID, "Manchester United", "MUN")
	dupe := env.seedTeam(tournament.SportID, "Man Utd", "MU")
	other := env.seedTeam(tournament.SportID, "Everton", "EVE")
	match := env.seedMatch(tournament.ID, 1, &dupe.ID, &other.ID, time.Now().Add(time.Hour))

	merged, err := env.merges.MergeTeams(ctx, primary.ID, []int{dupe.ID, primary.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	got := env.store.matches[match.ID]
	require.NotNil(t, got.HomeTeamID)
	assert.Equal(t, primary.ID, *got.HomeTeamID)

	_, err = env.teams.GetByID(ctx, dupe.ID)
	assert.ErrorIs(t, err, repositories.ErrTeamNotFound)
}

func TestMergeTeamsSportMismatch(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	football := env.seedTournament(models.StateActive, "2", "1")
	cricket := env.seedTournament(models.StateActive, "2", "1")
	primary := env.seedTeam(football.SportID, "Surrey", "SUR")
	foreign := env.seedTeam(cricket.SportID, "Surrey CCC", "SCC")

	_, err := env.merges.MergeTeams(ctx, primary.ID, []int{foreign.ID})
	assert.ErrorIs(t, err, ErrMergeSportMismatch)
}

func TestMergeTeamsNothingToDo(t *testing.T) {
	env := newTestEnv()
	tournament := env.seedTournament(models.StateActive, "2", "1")
	primary := env.seedTeam(tournament.SportID, "Solo", "SOL")

	_, err := env.merges.MergeTeams(context.Background(), primary.ID, []int{primary.ID})
	assert.ErrorIs(t, err, ErrMergeNothingToDo)
}

func TestMergeUsersDropsCollidingRows(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	tournament := env.seedTournament(models.StateActive, "2", "1")
	home := env.seedTeam(tournament.SportID, "Leeds", "LEE")
	away := env.seedTeam(tournament.SportID, "Hull", "HUL")
	shared := env.seedMatch(tournament.ID, 1, &home.ID, &away.ID, time.Now().Add(time.Hour))
	only := env.seedMatch(tournament.ID, 2, &home.ID, &away.ID, time.Now().Add(time.Hour))

	primary := env.seedUser("keeper")
	dupe := env.seedUser("keeper2")
	env.seedParticipant(tournament.ID, primary.ID)
	env.seedParticipant(tournament.ID, dupe.ID)
	env.seedPrediction(primary.ID, shared.ID, "1", false)
	env.seedPrediction(dupe.ID, shared.ID, "2", false)
	env.seedPrediction(dupe.ID, only.ID, "3", false)

	merged, err := env.merges.MergeUsers(ctx, primary.ID, []int{dupe.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, merged)

	_, err = env.users.GetByID(ctx, dupe.ID)
	assert.ErrorIs(t, err, repositories.ErrUserNotFound)

	preds, err := env.predictions.ListByUserAndTournament(ctx, primary.ID, tournament.ID)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	byMatch := map[int]string{}
	for _, p := range preds {
		byMatch[p.MatchID] = p.Value.String()
	}
	assert.Equal(t, "1", byMatch[shared.ID])
	assert.Equal(t, "3", byMatch[only.ID])

	participants, err := env.participants.ListByTournament(ctx, tournament.ID, false)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestMergeUsersUnknownPrimary(t *testing.T) {
	env := newTestEnv()
	_, err := env.merges.MergeUsers(context.Background(), 9999, []int{1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
