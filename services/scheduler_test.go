package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Dosada05/matchpoint/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStatus(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name   string
		in     models.Tournament
		expect *models.TournamentStatus
	}{
		{"soon before reg opens", models.Tournament{Status: models.StatusSoon, RegDate: future}, nil},
		{"soon after reg opens", models.Tournament{Status: models.StatusSoon, RegDate: past}, statusPtr(models.StatusRegistration)},
		{"registration after start", models.Tournament{Status: models.StatusRegistration, StartDate: past}, statusPtr(models.StatusActive)},
		{"active after end", models.Tournament{Status: models.StatusActive, EndDate: past}, statusPtr(models.StatusCompleted)},
		{"active before end", models.Tournament{Status: models.StatusActive, EndDate: future}, nil},
		{"completed stays put", models.Tournament{Status: models.StatusCompleted, EndDate: past}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nextStatus(&tc.in, now)
			if tc.expect == nil {
				assert.Nil(t, got)
			} else {
				require.NotNil(t, got)
				assert.Equal(t, *tc.expect, *got)
			}
		})
	}
}

func TestRollForwardAdvancesOneStepPerTick(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tournament := &models.Tournament{
		Name:        "Overdue Open",
		Format:      models.FormatSingles,
		Status:      models.StatusSoon,
		OrganizerID: 1,
		RegDate:     time.Now().Add(-72 * time.Hour),
		StartDate:   time.Now().Add(-48 * time.Hour),
		EndDate:     time.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, env.tournamentRepo.Create(ctx, tournament))

	scheduler, err := NewStatusScheduler(env.tournamentRepo, time.Minute, logger)
	require.NoError(t, err)

	expected := []models.TournamentStatus{
		models.StatusRegistration,
		models.StatusActive,
		models.StatusCompleted,
	}
	for _, want := range expected {
		require.NoError(t, scheduler.RollForward(ctx))
		current, err := env.tournamentRepo.GetByID(ctx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, want, current.Status)
	}

	// Terminal status is stable.
	require.NoError(t, scheduler.RollForward(ctx))
	current, err := env.tournamentRepo.GetByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, current.Status)
}

func statusPtr(s models.TournamentStatus) *models.TournamentStatus {
	return &s
}
