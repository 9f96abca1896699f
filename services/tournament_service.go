package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"github.com/Dosada05/matchpoint/storage"
)

type CreateTournamentInput struct {
	Name      string                  `json:"name"`
	Format    models.TournamentFormat `json:"format"`
	RegDate   time.Time               `json:"reg_date"`
	StartDate time.Time               `json:"start_date"`
	EndDate   time.Time               `json:"end_date"`
}

type TournamentService interface {
	Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, userID, id int, status models.TournamentStatus) (*models.Tournament, error)
	UploadLogo(ctx context.Context, userID, id int, filename, contentType string, body io.Reader) (*models.Tournament, error)
	AddUmpire(ctx context.Context, userID, tournamentID, umpireUserID int) error
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	userRepo       repositories.UserRepository
	capabilities   CapabilityChecker
	uploader       storage.FileUploader
	logger         *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	userRepo repositories.UserRepository,
	capabilities CapabilityChecker,
	uploader storage.FileUploader,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		userRepo:       userRepo,
		capabilities:   capabilities,
		uploader:       uploader,
		logger:         logger,
	}
}

var validFormats = map[models.TournamentFormat]bool{
	models.FormatSingles: true,
	models.FormatDoubles: true,
	models.FormatTeam3:   true,
	models.FormatTeam5:   true,
}

// Status moves forward only, except cancellation which is open until the
// tournament completes.
var statusTransitions = map[models.TournamentStatus][]models.TournamentStatus{
	models.StatusSoon:         {models.StatusRegistration, models.StatusCanceled},
	models.StatusRegistration: {models.StatusActive, models.StatusCanceled},
	models.StatusActive:       {models.StatusCompleted, models.StatusCanceled},
}

func (s *tournamentService) Create(ctx context.Context, organizerID int, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if !validFormats[input.Format] {
		return nil, fmt.Errorf("%w: unknown format %q", ErrValidationFailed, input.Format)
	}
	if !input.EndDate.After(input.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", ErrValidationFailed)
	}
	if input.RegDate.After(input.StartDate) {
		return nil, fmt.Errorf("%w: registration must open before the start date", ErrValidationFailed)
	}

	tournament := &models.Tournament{
		Name:        name,
		Format:      input.Format,
		Status:      models.StatusSoon,
		OrganizerID: organizerID,
		RegDate:     input.RegDate,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		if errors.Is(err, repositories.ErrTournamentNameConflict) {
			return nil, fmt.Errorf("%w: tournament name already taken", ErrValidationFailed)
		}
		return nil, err
	}
	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("format", string(tournament.Format)),
	)
	return tournament, nil
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	s.hydrateLogoURL(tournament)
	return tournament, nil
}

func (s *tournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	tournaments, err := s.tournamentRepo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	for _, tournament := range tournaments {
		s.hydrateLogoURL(tournament)
	}
	return tournaments, nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, userID, id int, status models.TournamentStatus) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}
	allowed := false
	for _, next := range statusTransitions[tournament.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, tournament.Status, status)
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, err
	}
	tournament.Status = status
	return tournament, nil
}

func (s *tournamentService) UploadLogo(ctx context.Context, userID, id int, filename, contentType string, body io.Reader) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, id); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, errors.New("file storage is not configured")
	}

	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return nil, fmt.Errorf("%w: unsupported logo format %q", ErrValidationFailed, ext)
	}

	key := fmt.Sprintf("tournaments/%d/logo%s", id, ext)
	if _, err := s.uploader.Upload(ctx, key, contentType, body); err != nil {
		return nil, fmt.Errorf("failed to upload logo: %w", err)
	}
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		return nil, err
	}
	tournament.LogoKey = &key
	s.hydrateLogoURL(tournament)
	return tournament, nil
}

func (s *tournamentService) AddUmpire(ctx context.Context, userID, tournamentID, umpireUserID int) error {
	if err := s.authorize(ctx, userID, tournamentID); err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, umpireUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.Role != models.RoleUmpire && user.Role != models.RoleAdmin {
		return fmt.Errorf("%w: user %d does not have the umpire role", ErrValidationFailed, umpireUserID)
	}
	return s.tournamentRepo.AddUmpire(ctx, tournamentID, umpireUserID)
}

func (s *tournamentService) authorize(ctx context.Context, userID, tournamentID int) error {
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

func (s *tournamentService) hydrateLogoURL(tournament *models.Tournament) {
	if s.uploader == nil || tournament.LogoKey == nil {
		return
	}
	url := s.uploader.GetPublicURL(*tournament.LogoKey)
	tournament.LogoURL = &url
}
