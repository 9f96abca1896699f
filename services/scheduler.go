package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"github.com/go-co-op/gocron/v2"
)

// StatusScheduler rolls tournament statuses forward on a fixed interval
// as their registration, start and end dates pass.
type StatusScheduler struct {
	tournamentRepo repositories.TournamentRepository
	interval       time.Duration
	scheduler      gocron.Scheduler
	logger         *slog.Logger
}

func NewStatusScheduler(tournamentRepo repositories.TournamentRepository, interval time.Duration, logger *slog.Logger) (*StatusScheduler, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &StatusScheduler{
		tournamentRepo: tournamentRepo,
		interval:       interval,
		scheduler:      scheduler,
		logger:         logger,
	}, nil
}

func (s *StatusScheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if err := s.RollForward(ctx); err != nil {
				s.logger.Error("tournament status roll-forward failed", slog.Any("error", err))
			}
		}),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	return nil
}

func (s *StatusScheduler) Shutdown() error {
	return s.scheduler.Shutdown()
}

// RollForward advances every non-terminal tournament whose next date has
// passed. One tick moves a tournament at most one step; a long-overdue
// tournament catches up over consecutive ticks.
func (s *StatusScheduler) RollForward(ctx context.Context) error {
	now := time.Now()
	tournaments, err := s.tournamentRepo.ListByStatuses(ctx,
		models.StatusSoon, models.StatusRegistration, models.StatusActive)
	if err != nil {
		return err
	}
	for _, tournament := range tournaments {
		next := nextStatus(tournament, now)
		if next == nil {
			continue
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, *next); err != nil {
			s.logger.Error("failed to advance tournament status",
				slog.Int("tournament_id", tournament.ID),
				slog.String("to", string(*next)),
				slog.Any("error", err),
			)
			continue
		}
		s.logger.Info("tournament status advanced",
			slog.Int("tournament_id", tournament.ID),
			slog.String("from", string(tournament.Status)),
			slog.String("to", string(*next)),
		)
	}
	return nil
}

func nextStatus(tournament *models.Tournament, now time.Time) *models.TournamentStatus {
	var next models.TournamentStatus
	switch tournament.Status {
	case models.StatusSoon:
		if !now.Before(tournament.RegDate) {
			next = models.StatusRegistration
		}
	case models.StatusRegistration:
		if !now.Before(tournament.StartDate) {
			next = models.StatusActive
		}
	case models.StatusActive:
		if !now.Before(tournament.EndDate) {
			next = models.StatusCompleted
		}
	}
	if next == "" {
		return nil
	}
	return &next
}
