package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
)

var ErrMatchScoreNotFound = errors.New("match score not found")

type ScoreRepository interface {
	GetByMatch(ctx context.Context, matchID int) (*models.MatchScore, error)
	// Upsert writes the single aggregate row per match.
	Upsert(ctx context.Context, exec SQLExecutor, score *models.MatchScore) error
}

type postgresScoreRepository struct {
	db *sql.DB
}

func NewPostgresScoreRepository(db *sql.DB) ScoreRepository {
	return &postgresScoreRepository{db: db}
}

func (r *postgresScoreRepository) GetByMatch(ctx context.Context, matchID int) (*models.MatchScore, error) {
	query := `
		SELECT match_id, game_count_a, game_count_b, final_score, winner_entry_id, ended_at, winning_reason
		FROM match_scores
		WHERE match_id = $1`

	score := &models.MatchScore{}
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(
		&score.MatchID,
		&score.GameCountA,
		&score.GameCountB,
		&score.FinalScore,
		&score.WinnerEntryID,
		&score.EndedAt,
		&score.Reason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchScoreNotFound
		}
		return nil, fmt.Errorf("failed to scan score for match %d: %w", matchID, err)
	}
	return score, nil
}

func (r *postgresScoreRepository) Upsert(ctx context.Context, exec SQLExecutor, score *models.MatchScore) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO match_scores (match_id, game_count_a, game_count_b, final_score, winner_entry_id, ended_at, winning_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id)
		DO UPDATE SET game_count_a = EXCLUDED.game_count_a,
		              game_count_b = EXCLUDED.game_count_b,
		              final_score = EXCLUDED.final_score,
		              winner_entry_id = EXCLUDED.winner_entry_id,
		              ended_at = EXCLUDED.ended_at,
		              winning_reason = EXCLUDED.winning_reason`

	_, err := exec.ExecContext(ctx, query,
		score.MatchID,
		score.GameCountA,
		score.GameCountB,
		score.FinalScore,
		score.WinnerEntryID,
		score.EndedAt,
		score.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert score for match %d: %w", score.MatchID, err)
	}
	return nil
}
