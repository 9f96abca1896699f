package services

import (
	"context"
	"testing"

	"github.com/Dosada05/matchpoint/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstPendingRoundOne(t *testing.T, matches []*models.Match) *models.Match {
	t.Helper()
	for _, match := range matches {
		if match.Round == 1 && match.ParentMatchID == nil && match.Status == models.MatchStatusPending {
			return match
		}
	}
	t.Fatal("no pending round-1 match")
	return nil
}

func TestProcessMatchFinishPropagatesWinner(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)

	match := firstPendingRoundOne(t, result.Matches)
	require.NoError(t, env.flow.StartMatch(ctx, match.ID))

	pairA, err := env.pairRepo.GetByMatchAndNumber(ctx, match.ID, 1)
	require.NoError(t, err)
	require.NoError(t, env.scoreRepo.Upsert(ctx, nil, &models.MatchScore{
		MatchID: match.ID, GameCountA: 2, GameCountB: 0, Reason: models.WinReasonNormal,
	}))

	require.NoError(t, env.flow.ProcessMatchFinish(ctx, match.ID))

	updated, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusFinished, updated.Status)

	score, err := env.scoreRepo.GetByMatch(ctx, match.ID)
	require.NoError(t, err)
	require.NotNil(t, score.WinnerEntryID)
	assert.Equal(t, *pairA.EntryID, *score.WinnerEntryID)
	require.NotNil(t, score.EndedAt)

	// The winner occupies side A of the final (this match fed slot A).
	require.NotNil(t, updated.NextMatchID)
	finalPair, err := env.pairRepo.GetByMatchAndNumber(ctx, *updated.NextMatchID, 1)
	require.NoError(t, err)
	assert.Equal(t, *pairA.EntryID, *finalPair.EntryID)
}

func TestProcessMatchFinishRejectsUndetermined(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	match := firstPendingRoundOne(t, result.Matches)

	// No score, two live entrants: there is no winner to record.
	err = env.flow.ProcessMatchFinish(ctx, match.ID)
	assert.ErrorIs(t, err, ErrMatchWinnerUndetermined)

	require.NoError(t, env.flow.StartMatch(ctx, match.ID))
	require.NoError(t, env.scoreRepo.Upsert(ctx, nil, &models.MatchScore{
		MatchID: match.ID, GameCountA: 2, GameCountB: 1, Reason: models.WinReasonNormal,
	}))
	require.NoError(t, env.flow.ProcessMatchFinish(ctx, match.ID))
	assert.ErrorIs(t, env.flow.ProcessMatchFinish(ctx, match.ID), ErrMatchAlreadyFinished)
}

func TestPropagateWinnerIsIdempotent(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	match := firstPendingRoundOne(t, result.Matches)
	pairA, err := env.pairRepo.GetByMatchAndNumber(ctx, match.ID, 1)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.flow.PropagateWinnerToNextMatch(ctx, match.ID, *pairA.EntryID))
	}

	next, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	pairs, err := env.pairRepo.ListByMatch(ctx, *next.NextMatchID)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, *pairA.EntryID, *pairs[0].EntryID)
	assert.Equal(t, 1, pairs[0].PairNumber)
}

func TestTeamMatchMajorityAggregation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatTeam3)
	env.addEntries(t, tournament, 2, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	// One bracket node plus three children.
	require.Len(t, result.Matches, 4)

	parent := result.Matches[0]
	require.Nil(t, parent.ParentMatchID)
	children, err := env.matchRepo.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)

	teamA, err := env.pairRepo.GetByMatchAndNumber(ctx, parent.ID, 1)
	require.NoError(t, err)
	teamB, err := env.pairRepo.GetByMatchAndNumber(ctx, parent.ID, 2)
	require.NoError(t, err)

	// Child results: A, B, A. The parent closes 2-1 for team A.
	childScores := []struct{ a, b int }{{2, 0}, {0, 2}, {2, 1}}
	for i, child := range children {
		require.NoError(t, env.flow.StartMatch(ctx, child.ID))
		require.NoError(t, env.scoreRepo.Upsert(ctx, nil, &models.MatchScore{
			MatchID: child.ID, GameCountA: childScores[i].a, GameCountB: childScores[i].b,
			Reason: models.WinReasonNormal,
		}))
		require.NoError(t, env.flow.ProcessMatchFinish(ctx, child.ID))

		updatedParent, err := env.matchRepo.GetByID(ctx, parent.ID)
		require.NoError(t, err)
		if i < len(children)-1 {
			assert.Equal(t, models.MatchStatusPending, updatedParent.Status,
				"parent must stay open until every child finished")
		} else {
			assert.Equal(t, models.MatchStatusFinished, updatedParent.Status)
		}
	}

	parentScore, err := env.scoreRepo.GetByMatch(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, parentScore.GameCountA)
	assert.Equal(t, 1, parentScore.GameCountB)
	require.NotNil(t, parentScore.WinnerEntryID)
	assert.Equal(t, *teamA.EntryID, *parentScore.WinnerEntryID)
	assert.NotEqual(t, *teamB.EntryID, *parentScore.WinnerEntryID)
}

func TestShouldFinishParentMatchEarlyMajority(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatTeam3)
	env.addEntries(t, tournament, 2, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	parent := result.Matches[0]
	children, err := env.matchRepo.ListChildren(ctx, parent.ID)
	require.NoError(t, err)
	teamA, err := env.pairRepo.GetByMatchAndNumber(ctx, parent.ID, 1)
	require.NoError(t, err)

	done, _, err := env.flow.ShouldFinishParentMatch(ctx, parent.ID)
	require.NoError(t, err)
	assert.False(t, done)

	// Two wins out of three reach the majority even with one child open.
	for _, child := range children[:2] {
		require.NoError(t, env.flow.StartMatch(ctx, child.ID))
		require.NoError(t, env.scoreRepo.Upsert(ctx, nil, &models.MatchScore{
			MatchID: child.ID, GameCountA: 2, GameCountB: 0, Reason: models.WinReasonNormal,
		}))
		require.NoError(t, env.flow.ProcessMatchFinish(ctx, child.ID))
	}

	done, winner, err := env.flow.ShouldFinishParentMatch(ctx, parent.ID)
	require.NoError(t, err)
	assert.True(t, done)
	require.NotNil(t, winner)
	assert.Equal(t, *teamA.EntryID, *winner)
}

func TestMatchStatusTransitions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	match := firstPendingRoundOne(t, result.Matches)

	assert.ErrorIs(t, env.flow.PauseMatch(ctx, match.ID), ErrInvalidStatusTransition)

	require.NoError(t, env.flow.StartMatch(ctx, match.ID))
	assert.ErrorIs(t, env.flow.StartMatch(ctx, match.ID), ErrInvalidStatusTransition)

	require.NoError(t, env.flow.PauseMatch(ctx, match.ID))
	require.NoError(t, env.flow.ResumeMatch(ctx, match.ID))

	updated, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, updated.Status)
}

func TestRevertMatchFinish(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	match := firstPendingRoundOne(t, result.Matches)

	assert.ErrorIs(t, env.flow.RevertMatchFinish(ctx, match.ID), ErrMatchNotFinished)

	require.NoError(t, env.flow.StartMatch(ctx, match.ID))
	require.NoError(t, env.scoreRepo.Upsert(ctx, nil, &models.MatchScore{
		MatchID: match.ID, GameCountA: 2, GameCountB: 1, Reason: models.WinReasonNormal,
	}))
	require.NoError(t, env.flow.ProcessMatchFinish(ctx, match.ID))

	require.NoError(t, env.flow.RevertMatchFinish(ctx, match.ID))

	updated, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusInProgress, updated.Status)

	score, err := env.scoreRepo.GetByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Nil(t, score.WinnerEntryID)
	assert.Nil(t, score.EndedAt)
	// Game counts survive the revert.
	assert.Equal(t, 2, score.GameCountA)
	assert.Equal(t, 1, score.GameCountB)
}

func TestDetermineMatchWinnerResolvesByeChain(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	entries := env.addEntries(t, tournament, 5, 2)

	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)

	// The top seed's round-1 match is a bye; its winner is the seed.
	byeMatch := result.Matches[0]
	require.Equal(t, models.MatchStatusFinished, byeMatch.Status)
	winner, err := env.flow.DetermineMatchWinner(ctx, byeMatch.ID)
	require.NoError(t, err)
	require.NotNil(t, winner)
	assert.Equal(t, entries[0].ID, *winner)

	// The semifinal above it has an unplayed side: no winner yet.
	winner, err = env.flow.DetermineMatchWinner(ctx, *byeMatch.NextMatchID)
	require.NoError(t, err)
	assert.Nil(t, winner)
}
