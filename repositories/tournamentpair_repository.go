package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
)

var ErrTournamentPairNotFound = errors.New("tournament pair not found")

type TournamentPairRepository interface {
	Create(ctx context.Context, exec SQLExecutor, pair *models.TournamentPair) error
	GetByID(ctx context.Context, id int) (*models.TournamentPair, error)
	ListByEntry(ctx context.Context, entryID int) ([]*models.TournamentPair, error)
}

type postgresTournamentPairRepository struct {
	db *sql.DB
}

func NewPostgresTournamentPairRepository(db *sql.DB) TournamentPairRepository {
	return &postgresTournamentPairRepository{db: db}
}

func (r *postgresTournamentPairRepository) Create(ctx context.Context, exec SQLExecutor, pair *models.TournamentPair) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO tournament_pairs (entry_id, player1_id, player2_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		pair.EntryID,
		pair.Player1ID,
		pair.Player2ID,
	).Scan(&pair.ID, &pair.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tournament pair for entry %d: %w", pair.EntryID, err)
	}
	return nil
}

func (r *postgresTournamentPairRepository) GetByID(ctx context.Context, id int) (*models.TournamentPair, error) {
	query := `
		SELECT id, entry_id, player1_id, player2_id, created_at
		FROM tournament_pairs
		WHERE id = $1`

	pair := &models.TournamentPair{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pair.ID,
		&pair.EntryID,
		&pair.Player1ID,
		&pair.Player2ID,
		&pair.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentPairNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament pair by id %d: %w", id, err)
	}
	return pair, nil
}

func (r *postgresTournamentPairRepository) ListByEntry(ctx context.Context, entryID int) ([]*models.TournamentPair, error) {
	query := `
		SELECT id, entry_id, player1_id, player2_id, created_at
		FROM tournament_pairs
		WHERE entry_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournament pairs for entry %d: %w", entryID, err)
	}
	defer rows.Close()

	pairs := make([]*models.TournamentPair, 0)
	for rows.Next() {
		var pair models.TournamentPair
		if scanErr := rows.Scan(
			&pair.ID,
			&pair.EntryID,
			&pair.Player1ID,
			&pair.Player2ID,
			&pair.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament pair row: %w", scanErr)
		}
		pairs = append(pairs, &pair)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament pair rows iteration: %w", err)
	}
	return pairs, nil
}
