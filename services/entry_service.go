package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
)

type RosterPairInput struct {
	Player1ID int  `json:"player1_id"`
	Player2ID *int `json:"player2_id,omitempty"`
}

type EntryInput struct {
	Name     string            `json:"name"`
	Seed     *int              `json:"seed,omitempty"`
	GroupKey *string           `json:"group_key,omitempty"`
	Roster   []RosterPairInput `json:"roster,omitempty"`
}

type EntryService interface {
	CreateEntry(ctx context.Context, userID, tournamentID int, input EntryInput) (*models.Entry, error)
	ListEntries(ctx context.Context, tournamentID int, onlyActive bool) ([]*models.Entry, error)
	// ReplaceImport retires every current entry and inserts the given
	// list as the new active set, atomically.
	ReplaceImport(ctx context.Context, userID, tournamentID int, inputs []EntryInput) ([]*models.Entry, error)
}

type entryService struct {
	transactor     repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	rosterRepo     repositories.TournamentPairRepository
	matchRepo      repositories.MatchRepository
	scoreRepo      repositories.ScoreRepository
	capabilities   CapabilityChecker
	logger         *slog.Logger
}

func NewEntryService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	rosterRepo repositories.TournamentPairRepository,
	matchRepo repositories.MatchRepository,
	scoreRepo repositories.ScoreRepository,
	capabilities CapabilityChecker,
	logger *slog.Logger,
) EntryService {
	return &entryService{
		transactor:     transactor,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		rosterRepo:     rosterRepo,
		matchRepo:      matchRepo,
		scoreRepo:      scoreRepo,
		capabilities:   capabilities,
		logger:         logger,
	}
}

func (s *entryService) CreateEntry(ctx context.Context, userID, tournamentID int, input EntryInput) (*models.Entry, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, tournamentID); err != nil {
		return nil, err
	}
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	var entry *models.Entry
	txErr := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, err = s.insertEntry(ctx, exec, tournament, input)
		return err
	})
	if txErr != nil {
		return nil, txErr
	}
	return entry, nil
}

func (s *entryService) ListEntries(ctx context.Context, tournamentID int, onlyActive bool) ([]*models.Entry, error) {
	if _, err := s.getTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.entryRepo.ListByTournament(ctx, tournamentID, onlyActive, nil)
}

func (s *entryService) ReplaceImport(ctx context.Context, userID, tournamentID int, inputs []EntryInput) ([]*models.Entry, error) {
	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, tournamentID); err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusCanceled {
		return nil, ErrTournamentNotActive
	}
	if err := s.guardImport(ctx, tournamentID); err != nil {
		return nil, err
	}
	for _, input := range inputs {
		if err := validateEntryInput(input); err != nil {
			return nil, err
		}
	}

	entries := make([]*models.Entry, 0, len(inputs))
	txErr := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.entryRepo.DeactivateByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		for _, input := range inputs {
			entry, err := s.insertEntry(ctx, exec, tournament, input)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logger.Info("entry list replaced",
		slog.Int("tournament_id", tournamentID),
		slog.Int("entries", len(entries)),
	)
	return entries, nil
}

// guardImport mirrors the draw regeneration guard: entries stay
// replaceable until a match is running or has a played result.
func (s *entryService) guardImport(ctx context.Context, tournamentID int) error {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return err
	}
	for _, match := range matches {
		switch match.Status {
		case models.MatchStatusInProgress, models.MatchStatusPaused:
			return ErrDrawLocked
		case models.MatchStatusFinished:
			score, err := s.scoreRepo.GetByMatch(ctx, match.ID)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchScoreNotFound) {
					continue
				}
				return err
			}
			if score.Reason == models.WinReasonNormal {
				return ErrDrawLocked
			}
		}
	}
	return nil
}

func (s *entryService) insertEntry(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, input EntryInput) (*models.Entry, error) {
	entry := &models.Entry{
		TournamentID: tournament.ID,
		Kind:         entryKindForFormat(tournament.Format),
		Name:         strings.TrimSpace(input.Name),
		Seed:         input.Seed,
		GroupKey:     input.GroupKey,
		Active:       true,
	}
	if err := s.entryRepo.Create(ctx, exec, entry); err != nil {
		return nil, err
	}
	for _, pair := range input.Roster {
		roster := &models.TournamentPair{
			EntryID:   entry.ID,
			Player1ID: pair.Player1ID,
			Player2ID: pair.Player2ID,
		}
		if err := s.rosterRepo.Create(ctx, exec, roster); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func (s *entryService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *entryService) authorize(ctx context.Context, userID, tournamentID int) error {
	if s.capabilities == nil {
		return nil
	}
	if ok, err := s.capabilities.IsAdmin(ctx, userID); err != nil {
		return err
	} else if ok {
		return nil
	}
	if ok, err := s.capabilities.IsTournamentAdmin(ctx, userID, tournamentID); err != nil {
		return err
	} else if ok {
		return nil
	}
	return ErrForbiddenOperation
}

func validateEntryInput(input EntryInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: entry name is required", ErrValidationFailed)
	}
	if input.Seed != nil && *input.Seed < 1 {
		return fmt.Errorf("%w: seed must be positive", ErrValidationFailed)
	}
	return nil
}

func entryKindForFormat(format models.TournamentFormat) models.EntryKind {
	switch {
	case format.IsTeam():
		return models.EntryKindTeam
	case format == models.FormatDoubles:
		return models.EntryKindDoubles
	default:
		return models.EntryKindSingles
	}
}
