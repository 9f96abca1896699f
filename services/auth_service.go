package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type Claims struct {
	UserID int             `json:"user_id"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Nickname  *string `json:"nickname,omitempty"`
	Email     string  `json:"email"`
	Password  string  `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// CapabilityChecker answers the authorization questions services ask
// before mutating tournament state.
type CapabilityChecker interface {
	IsAdmin(ctx context.Context, userID int) (bool, error)
	IsTournamentAdmin(ctx context.Context, userID, tournamentID int) (bool, error)
	IsUmpire(ctx context.Context, userID, tournamentID, matchID int) (bool, error)
}

type AuthService interface {
	CapabilityChecker
	Register(ctx context.Context, input RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, input LoginInput) (*AuthResult, error)
	ParseToken(tokenString string) (*Claims, error)
}

type authService struct {
	userRepo       repositories.UserRepository
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	jwtSecret      []byte
}

func NewAuthService(
	userRepo repositories.UserRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	jwtSecret string,
) AuthService {
	return &authService{
		userRepo:       userRepo,
		tournamentRepo: tournamentRepo,
		matchRepo:      matchRepo,
		jwtSecret:      []byte(jwtSecret),
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: invalid email", ErrValidationFailed)
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidationFailed)
	}
	if input.FirstName == "" || input.LastName == "" {
		return nil, fmt.Errorf("%w: first and last name are required", ErrValidationFailed)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Nickname:     input.Nickname,
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RolePlayer,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrAuthEmailTaken
		}
		return nil, err
	}
	return s.issueToken(user)
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAuthInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrAuthInvalidCredentials
	}
	return s.issueToken(user)
}

func (s *authService) issueToken(user *models.User) (*AuthResult, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &AuthResult{Token: signed, User: user}, nil
}

func (s *authService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrAuthInvalidCredentials
	}
	return claims, nil
}

func (s *authService) IsAdmin(ctx context.Context, userID int) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.Role == models.RoleAdmin, nil
}

// IsTournamentAdmin holds for the tournament's organizer.
func (s *authService) IsTournamentAdmin(ctx context.Context, userID, tournamentID int) (bool, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return false, nil
		}
		return false, err
	}
	return tournament.OrganizerID == userID, nil
}

// IsUmpire holds when the user is on the tournament's umpire roster and,
// when a concrete match is named, is assigned to that match.
func (s *authService) IsUmpire(ctx context.Context, userID, tournamentID, matchID int) (bool, error) {
	umpires, err := s.tournamentRepo.ListUmpireIDs(ctx, tournamentID)
	if err != nil {
		return false, err
	}
	onRoster := false
	for _, id := range umpires {
		if id == userID {
			onRoster = true
			break
		}
	}
	if !onRoster {
		return false, nil
	}
	if matchID == 0 {
		return true, nil
	}
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return false, nil
		}
		return false, err
	}
	if match.UmpireID == nil {
		return true, nil
	}
	return *match.UmpireID == userID, nil
}
