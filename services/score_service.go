package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/matchpoint/brackets"
	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"github.com/google/uuid"
)

type AddPointInput struct {
	MatchID         int              `json:"match_id"`
	Type            models.PointType `json:"point_type"`
	ClientUUID      string           `json:"client_uuid"`
	ExpectedVersion int              `json:"expected_version"`
}

type PointResult struct {
	Point      *models.Point      `json:"point,omitempty"`
	Score      *models.MatchScore `json:"score"`
	NewVersion int                `json:"new_version"`
	Replayed   bool               `json:"replayed"`
}

type ScoreService interface {
	AddPoint(ctx context.Context, input AddPointInput) (*PointResult, error)
	UndoPoint(ctx context.Context, matchID, expectedVersion int) (*PointResult, error)
}

type scoreService struct {
	transactor repositories.Transactor
	matchRepo  repositories.MatchRepository
	phaseRepo  repositories.PhaseRepository
	scoreRepo  repositories.ScoreRepository
	pointRepo  repositories.PointRepository
	hub        *brackets.Hub
	logger     *slog.Logger
}

func NewScoreService(
	transactor repositories.Transactor,
	matchRepo repositories.MatchRepository,
	phaseRepo repositories.PhaseRepository,
	scoreRepo repositories.ScoreRepository,
	pointRepo repositories.PointRepository,
	hub *brackets.Hub,
	logger *slog.Logger,
) ScoreService {
	return &scoreService{
		transactor: transactor,
		matchRepo:  matchRepo,
		phaseRepo:  phaseRepo,
		scoreRepo:  scoreRepo,
		pointRepo:  pointRepo,
		hub:        hub,
		logger:     logger,
	}
}

// AddPoint appends one scoring event and refreshes the match aggregate.
//
// The point row is committed on its own before the aggregate update: the
// aggregate is a pure fold over active points, so a version conflict on
// the aggregate step leaves a recomputable state, and the client uuid
// makes a retried submission a replay rather than a double count.
func (s *scoreService) AddPoint(ctx context.Context, input AddPointInput) (*PointResult, error) {
	if input.Type != models.PointTypeA && input.Type != models.PointTypeB {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPointType, input.Type)
	}
	clientUUID := input.ClientUUID
	if clientUUID == "" {
		clientUUID = uuid.NewString()
	} else if _, err := uuid.Parse(clientUUID); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidClientUUID, input.ClientUUID)
	}

	match, err := s.getMatch(ctx, input.MatchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, ErrMatchNotInProgress
	}
	if match.Version != input.ExpectedVersion {
		return nil, ErrVersionConflict
	}

	point := &models.Point{
		MatchID:    input.MatchID,
		Type:       input.Type,
		ClientUUID: clientUUID,
	}
	if err := s.pointRepo.Insert(ctx, nil, point); err != nil {
		if errors.Is(err, repositories.ErrPointDuplicate) {
			return s.replay(ctx, input.MatchID, clientUUID)
		}
		return nil, err
	}

	score, err := s.refreshAggregate(ctx, match, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	s.broadcastScore(match, score)

	return &PointResult{
		Point:      point,
		Score:      score,
		NewVersion: input.ExpectedVersion + 1,
	}, nil
}

// UndoPoint soft-deletes the most recent active point and refolds the
// aggregate from the survivors.
func (s *scoreService) UndoPoint(ctx context.Context, matchID, expectedVersion int) (*PointResult, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusInProgress {
		return nil, ErrMatchNotInProgress
	}
	if match.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	points, err := s.pointRepo.ListActiveByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrNoActivePoints
	}
	last := points[len(points)-1]

	phase, err := s.getPhase(ctx, match.PhaseID)
	if err != nil {
		return nil, err
	}

	var score *models.MatchScore
	txErr := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.pointRepo.MarkUndone(ctx, exec, last.ID); err != nil {
			return err
		}
		score, err = s.upsertAggregate(ctx, exec, matchID, points[:len(points)-1], phase)
		if err != nil {
			return err
		}
		ok, err := s.matchRepo.BumpVersion(ctx, exec, matchID, expectedVersion)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVersionConflict
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	s.broadcastScore(match, score)

	return &PointResult{
		Point:      last,
		Score:      score,
		NewVersion: expectedVersion + 1,
	}, nil
}

// replay serves a duplicate client uuid: the original point already
// counted, so return the current state without bumping the version.
func (s *scoreService) replay(ctx context.Context, matchID int, clientUUID string) (*PointResult, error) {
	existing, err := s.pointRepo.GetByClientUUID(ctx, matchID, clientUUID)
	if err != nil {
		return nil, err
	}
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	score, err := s.scoreRepo.GetByMatch(ctx, matchID)
	if err != nil && !errors.Is(err, repositories.ErrMatchScoreNotFound) {
		return nil, err
	}
	s.logger.Info("point replayed",
		slog.Int("match_id", matchID),
		slog.String("client_uuid", clientUUID),
	)
	return &PointResult{
		Point:      existing,
		Score:      score,
		NewVersion: match.Version,
		Replayed:   true,
	}, nil
}

// refreshAggregate refolds all active points (the just-inserted one is
// committed and visible) and applies the aggregate plus the version bump
// in one transaction.
func (s *scoreService) refreshAggregate(ctx context.Context, match *models.Match, expectedVersion int) (*models.MatchScore, error) {
	points, err := s.pointRepo.ListActiveByMatch(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	phase, err := s.getPhase(ctx, match.PhaseID)
	if err != nil {
		return nil, err
	}

	var score *models.MatchScore
	txErr := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		score, err = s.upsertAggregate(ctx, exec, match.ID, points, phase)
		if err != nil {
			return err
		}
		ok, err := s.matchRepo.BumpVersion(ctx, exec, match.ID, expectedVersion)
		if err != nil {
			return err
		}
		if !ok {
			return ErrVersionConflict
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return score, nil
}

// upsertAggregate folds points into game counts and a running score
// line, preserving any already-recorded winner fields on the row.
func (s *scoreService) upsertAggregate(ctx context.Context, exec repositories.SQLExecutor, matchID int, points []*models.Point, phase *models.Phase) (*models.MatchScore, error) {
	score, err := s.scoreRepo.GetByMatch(ctx, matchID)
	if err != nil {
		if !errors.Is(err, repositories.ErrMatchScoreNotFound) {
			return nil, err
		}
		score = &models.MatchScore{MatchID: matchID, Reason: models.WinReasonNormal}
	}

	gamesA, gamesB, line := foldPoints(points, phase.PointsPerGame)
	score.GameCountA = gamesA
	score.GameCountB = gamesB
	if line == "" {
		score.FinalScore = nil
	} else {
		score.FinalScore = &line
	}
	if err := s.scoreRepo.Upsert(ctx, exec, score); err != nil {
		return nil, err
	}
	return score, nil
}

// foldPoints replays the point stream in receipt order. A game closes
// the moment either side reaches pointsPerGame; the returned line lists
// every game's score, the still-open game last.
func foldPoints(points []*models.Point, pointsPerGame int) (gamesA, gamesB int, line string) {
	if pointsPerGame <= 0 {
		pointsPerGame = defaultPointsPerGame
	}
	var games []string
	pointsA, pointsB := 0, 0
	for _, point := range points {
		if point.Type == models.PointTypeA {
			pointsA++
		} else {
			pointsB++
		}
		if pointsA >= pointsPerGame || pointsB >= pointsPerGame {
			if pointsA > pointsB {
				gamesA++
			} else {
				gamesB++
			}
			games = append(games, fmt.Sprintf("%d-%d", pointsA, pointsB))
			pointsA, pointsB = 0, 0
		}
	}
	if pointsA > 0 || pointsB > 0 {
		games = append(games, fmt.Sprintf("%d-%d", pointsA, pointsB))
	}
	return gamesA, gamesB, strings.Join(games, ", ")
}

func (s *scoreService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

func (s *scoreService) getPhase(ctx context.Context, phaseID int) (*models.Phase, error) {
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	return phase, nil
}

func (s *scoreService) broadcastScore(match *models.Match, score *models.MatchScore) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(tournamentRoom(match.TournamentID), brackets.Message{
		Type: brackets.EventScoreUpdated,
		Payload: map[string]interface{}{
			"match_id": match.ID,
			"score":    score,
		},
	})
}
