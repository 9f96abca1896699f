package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
)

var ErrPhaseNotFound = errors.New("phase not found")

type PhaseRepository interface {
	Create(ctx context.Context, exec SQLExecutor, phase *models.Phase) error
	GetByID(ctx context.Context, id int) (*models.Phase, error)
	GetLatestByTournament(ctx context.Context, tournamentID int) (*models.Phase, error)
	// DeleteByTournament removes every phase of the tournament; matches,
	// slots, scores and points go with them via ON DELETE CASCADE.
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresPhaseRepository struct {
	db *sql.DB
}

func NewPostgresPhaseRepository(db *sql.DB) PhaseRepository {
	return &postgresPhaseRepository{db: db}
}

func (r *postgresPhaseRepository) Create(ctx context.Context, exec SQLExecutor, phase *models.Phase) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO phases (tournament_id, sequence, games_to_win, points_per_game)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		phase.TournamentID,
		phase.Sequence,
		phase.GamesToWin,
		phase.PointsPerGame,
	).Scan(&phase.ID, &phase.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert phase for tournament %d: %w", phase.TournamentID, err)
	}
	return nil
}

func (r *postgresPhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	query := `
		SELECT id, tournament_id, sequence, games_to_win, points_per_game, created_at
		FROM phases
		WHERE id = $1`
	return r.scanPhase(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresPhaseRepository) GetLatestByTournament(ctx context.Context, tournamentID int) (*models.Phase, error) {
	query := `
		SELECT id, tournament_id, sequence, games_to_win, points_per_game, created_at
		FROM phases
		WHERE tournament_id = $1
		ORDER BY sequence DESC, id DESC
		LIMIT 1`
	return r.scanPhase(r.db.QueryRowContext(ctx, query, tournamentID))
}

func (r *postgresPhaseRepository) scanPhase(row *sql.Row) (*models.Phase, error) {
	phase := &models.Phase{}
	err := row.Scan(
		&phase.ID,
		&phase.TournamentID,
		&phase.Sequence,
		&phase.GamesToWin,
		&phase.PointsPerGame,
		&phase.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to scan phase: %w", err)
	}
	return phase, nil
}

func (r *postgresPhaseRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	if exec == nil {
		exec = r.db
	}
	_, err := exec.ExecContext(ctx, `DELETE FROM phases WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to delete phases for tournament %d: %w", tournamentID, err)
	}
	return nil
}
