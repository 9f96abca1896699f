package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
)

var ErrMatchPairNotFound = errors.New("match pair not found")

type MatchPairRepository interface {
	// Upsert writes the pair occupying (match_id, pair_number), replacing
	// any existing row. Winner propagation relies on this being safe to
	// repeat with identical arguments.
	Upsert(ctx context.Context, exec SQLExecutor, pair *models.MatchPair) error
	GetByMatchAndNumber(ctx context.Context, matchID, pairNumber int) (*models.MatchPair, error)
	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchPair, error)
}

type postgresMatchPairRepository struct {
	db *sql.DB
}

func NewPostgresMatchPairRepository(db *sql.DB) MatchPairRepository {
	return &postgresMatchPairRepository{db: db}
}

func (r *postgresMatchPairRepository) Upsert(ctx context.Context, exec SQLExecutor, pair *models.MatchPair) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO match_pairs (match_id, pair_number, entry_id, player1_id, player2_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (match_id, pair_number)
		DO UPDATE SET entry_id = EXCLUDED.entry_id,
		              player1_id = EXCLUDED.player1_id,
		              player2_id = EXCLUDED.player2_id
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		pair.MatchID,
		pair.PairNumber,
		pair.EntryID,
		pair.Player1ID,
		pair.Player2ID,
	).Scan(&pair.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert pair %d of match %d: %w", pair.PairNumber, pair.MatchID, err)
	}
	return nil
}

func (r *postgresMatchPairRepository) GetByMatchAndNumber(ctx context.Context, matchID, pairNumber int) (*models.MatchPair, error) {
	query := `
		SELECT id, match_id, pair_number, entry_id, player1_id, player2_id
		FROM match_pairs
		WHERE match_id = $1 AND pair_number = $2`

	pair := &models.MatchPair{}
	err := r.db.QueryRowContext(ctx, query, matchID, pairNumber).Scan(
		&pair.ID,
		&pair.MatchID,
		&pair.PairNumber,
		&pair.EntryID,
		&pair.Player1ID,
		&pair.Player2ID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchPairNotFound
		}
		return nil, fmt.Errorf("failed to scan pair %d of match %d: %w", pairNumber, matchID, err)
	}
	return pair, nil
}

func (r *postgresMatchPairRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchPair, error) {
	query := `
		SELECT id, match_id, pair_number, entry_id, player1_id, player2_id
		FROM match_pairs
		WHERE match_id = $1
		ORDER BY pair_number ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs for match %d: %w", matchID, err)
	}
	defer rows.Close()

	pairs := make([]*models.MatchPair, 0, 2)
	for rows.Next() {
		var pair models.MatchPair
		if scanErr := rows.Scan(
			&pair.ID,
			&pair.MatchID,
			&pair.PairNumber,
			&pair.EntryID,
			&pair.Player1ID,
			&pair.Player2ID,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan pair row: %w", scanErr)
		}
		pairs = append(pairs, &pair)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during pair rows iteration: %w", err)
	}
	return pairs, nil
}
