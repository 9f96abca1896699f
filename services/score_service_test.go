package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedMatch(t *testing.T, env *testEnv) *models.Match {
	t.Helper()
	ctx := context.Background()
	tournament := env.addTournament(t, models.FormatSingles)
	env.addEntries(t, tournament, 4, 0)
	result, err := env.draw.GenerateDraw(ctx, 1, tournament.ID, UmpirePolicyNone)
	require.NoError(t, err)
	match := firstPendingRoundOne(t, result.Matches)
	require.NoError(t, env.flow.StartMatch(ctx, match.ID))
	return match
}

func TestAddPointFoldsRunningScore(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	version := 0
	for _, pointType := range []models.PointType{
		models.PointTypeA, models.PointTypeA, models.PointTypeB, models.PointTypeA,
	} {
		result, err := env.score.AddPoint(ctx, AddPointInput{
			MatchID:         match.ID,
			Type:            pointType,
			ExpectedVersion: version,
		})
		require.NoError(t, err)
		assert.False(t, result.Replayed)
		assert.Equal(t, version+1, result.NewVersion)
		version = result.NewVersion
	}

	score, err := env.scoreRepo.GetByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, score.GameCountA)
	assert.Equal(t, 0, score.GameCountB)
	require.NotNil(t, score.FinalScore)
	assert.Equal(t, "3-1", *score.FinalScore)

	updated, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Version)
}

func TestAddPointClosesGameAtThreshold(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	for i := 0; i < defaultPointsPerGame; i++ {
		_, err := env.score.AddPoint(ctx, AddPointInput{
			MatchID:         match.ID,
			Type:            models.PointTypeA,
			ExpectedVersion: i,
		})
		require.NoError(t, err)
	}

	score, err := env.scoreRepo.GetByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, score.GameCountA)
	assert.Equal(t, 0, score.GameCountB)
	require.NotNil(t, score.FinalScore)
	assert.Equal(t, "21-0", *score.FinalScore)
}

func TestAddPointVersionConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	_, err := env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ExpectedVersion: 5,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

// racingPointRepo advances the match version right after a successful
// insert, standing in for a concurrent writer landing between the point
// append and the aggregate update.
type racingPointRepo struct {
	fakePointRepo
}

func (r racingPointRepo) Insert(ctx context.Context, exec repositories.SQLExecutor, point *models.Point) error {
	if err := r.fakePointRepo.Insert(ctx, exec, point); err != nil {
		return err
	}
	r.s.mu.Lock()
	r.s.matches[point.MatchID].Version++
	r.s.mu.Unlock()
	return nil
}

func TestAddPointConflictAfterInsertKeepsPoint(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	score := NewScoreService(fakeTransactor{}, env.matchRepo, env.phaseRepo, env.scoreRepo,
		racingPointRepo{fakePointRepo: env.pointRepo}, nil, logger)

	_, err := score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ExpectedVersion: 0,
	})
	assert.ErrorIs(t, err, ErrVersionConflict)

	// Only the version advance is contested: the point row survives and a
	// refetch-and-refold recovers it.
	points, err := env.pointRepo.ListActiveByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	current, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
}

func TestAddPointIdempotentReplay(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)
	clientUUID := uuid.NewString()

	first, err := env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ClientUUID: clientUUID, ExpectedVersion: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.NewVersion)

	// A retry with the same client uuid counts nothing and bumps nothing.
	second, err := env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ClientUUID: clientUUID, ExpectedVersion: 1,
	})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, 1, second.NewVersion)
	assert.Equal(t, first.Point.ID, second.Point.ID)

	points, err := env.pointRepo.ListActiveByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Len(t, points, 1)
}

func TestAddPointValidation(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	_, err := env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointType("C_score"), ExpectedVersion: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidPointType)

	_, err = env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ClientUUID: "not-a-uuid", ExpectedVersion: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidClientUUID)

	require.NoError(t, env.flow.PauseMatch(ctx, match.ID))
	_, err = env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ExpectedVersion: 0,
	})
	assert.ErrorIs(t, err, ErrMatchNotInProgress)

	// Rejected submissions leave no trace: no point row, no version bump.
	points, err := env.pointRepo.ListActiveByMatch(ctx, match.ID)
	require.NoError(t, err)
	assert.Empty(t, points)

	current, err := env.matchRepo.GetByID(ctx, match.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Version)
}

func TestUndoPoint(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	for i, pointType := range []models.PointType{models.PointTypeA, models.PointTypeB} {
		_, err := env.score.AddPoint(ctx, AddPointInput{
			MatchID: match.ID, Type: pointType, ExpectedVersion: i,
		})
		require.NoError(t, err)
	}

	result, err := env.score.UndoPoint(ctx, match.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.NewVersion)
	assert.Equal(t, models.PointTypeB, result.Point.Type)
	require.NotNil(t, result.Score.FinalScore)
	assert.Equal(t, "1-0", *result.Score.FinalScore)

	_, err = env.score.UndoPoint(ctx, match.ID, 3)
	require.NoError(t, err)

	_, err = env.score.UndoPoint(ctx, match.ID, 4)
	assert.ErrorIs(t, err, ErrNoActivePoints)
}

func TestUndoPointVersionConflict(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	match := startedMatch(t, env)

	_, err := env.score.AddPoint(ctx, AddPointInput{
		MatchID: match.ID, Type: models.PointTypeA, ExpectedVersion: 0,
	})
	require.NoError(t, err)

	_, err = env.score.UndoPoint(ctx, match.ID, 0)
	assert.ErrorIs(t, err, ErrVersionConflict)
}
