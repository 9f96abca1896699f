package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
	"github.com/lib/pq"
)

var (
	ErrPointNotFound  = errors.New("point not found")
	ErrPointDuplicate = errors.New("point with this client uuid already recorded")
)

type PointRepository interface {
	Insert(ctx context.Context, exec SQLExecutor, point *models.Point) error
	// ListActiveByMatch returns non-undone points in receipt order.
	ListActiveByMatch(ctx context.Context, matchID int) ([]*models.Point, error)
	GetByClientUUID(ctx context.Context, matchID int, clientUUID string) (*models.Point, error)
	MarkUndone(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresPointRepository struct {
	db *sql.DB
}

func NewPostgresPointRepository(db *sql.DB) PointRepository {
	return &postgresPointRepository{db: db}
}

func (r *postgresPointRepository) Insert(ctx context.Context, exec SQLExecutor, point *models.Point) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO points (match_id, point_type, client_uuid, undone)
		VALUES ($1, $2, $3, false)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		point.MatchID,
		point.Type,
		point.ClientUUID,
	).Scan(&point.ID, &point.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrPointDuplicate
		}
		return fmt.Errorf("failed to insert point for match %d: %w", point.MatchID, err)
	}
	return nil
}

func (r *postgresPointRepository) ListActiveByMatch(ctx context.Context, matchID int) ([]*models.Point, error) {
	query := `
		SELECT id, match_id, point_type, client_uuid, created_at, undone
		FROM points
		WHERE match_id = $1 AND undone = false
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query points for match %d: %w", matchID, err)
	}
	defer rows.Close()

	points := make([]*models.Point, 0)
	for rows.Next() {
		var point models.Point
		if scanErr := rows.Scan(
			&point.ID,
			&point.MatchID,
			&point.Type,
			&point.ClientUUID,
			&point.CreatedAt,
			&point.Undone,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan point row: %w", scanErr)
		}
		points = append(points, &point)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during point rows iteration: %w", err)
	}
	return points, nil
}

func (r *postgresPointRepository) GetByClientUUID(ctx context.Context, matchID int, clientUUID string) (*models.Point, error) {
	query := `
		SELECT id, match_id, point_type, client_uuid, created_at, undone
		FROM points
		WHERE match_id = $1 AND client_uuid = $2`

	point := &models.Point{}
	err := r.db.QueryRowContext(ctx, query, matchID, clientUUID).Scan(
		&point.ID,
		&point.MatchID,
		&point.Type,
		&point.ClientUUID,
		&point.CreatedAt,
		&point.Undone,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPointNotFound
		}
		return nil, fmt.Errorf("failed to scan point by client uuid %s: %w", clientUUID, err)
	}
	return point, nil
}

func (r *postgresPointRepository) MarkUndone(ctx context.Context, exec SQLExecutor, id int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE points SET undone = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("MarkUndone: failed to execute query for point %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPointNotFound)
}
