package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/matchpoint/models"
)

var ErrMatchSlotNotFound = errors.New("match slot not found")

type SlotRepository interface {
	Create(ctx context.Context, exec SQLExecutor, slot *models.MatchSlot) error
	ListByMatch(ctx context.Context, matchID int) ([]*models.MatchSlot, error)
}

type postgresSlotRepository struct {
	db *sql.DB
}

func NewPostgresSlotRepository(db *sql.DB) SlotRepository {
	return &postgresSlotRepository{db: db}
}

func (r *postgresSlotRepository) Create(ctx context.Context, exec SQLExecutor, slot *models.MatchSlot) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO match_slots (match_id, slot_number, source_type, entry_id, source_match_id, label)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	err := exec.QueryRowContext(ctx, query,
		slot.MatchID,
		slot.SlotNumber,
		slot.Source,
		slot.EntryID,
		slot.SourceMatchID,
		slot.Label,
	).Scan(&slot.ID)
	if err != nil {
		return fmt.Errorf("failed to insert slot %d of match %d: %w", slot.SlotNumber, slot.MatchID, err)
	}
	return nil
}

func (r *postgresSlotRepository) ListByMatch(ctx context.Context, matchID int) ([]*models.MatchSlot, error) {
	query := `
		SELECT id, match_id, slot_number, source_type, entry_id, source_match_id, label
		FROM match_slots
		WHERE match_id = $1
		ORDER BY slot_number ASC`

	rows, err := r.db.QueryContext(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots for match %d: %w", matchID, err)
	}
	defer rows.Close()

	slots := make([]*models.MatchSlot, 0, 2)
	for rows.Next() {
		var slot models.MatchSlot
		if scanErr := rows.Scan(
			&slot.ID,
			&slot.MatchID,
			&slot.SlotNumber,
			&slot.Source,
			&slot.EntryID,
			&slot.SourceMatchID,
			&slot.Label,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan slot row: %w", scanErr)
		}
		slots = append(slots, &slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during slot rows iteration: %w", err)
	}
	return slots, nil
}
