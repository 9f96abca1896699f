package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dosada05/matchpoint/models"
	"github.com/lib/pq"
)

var (
	ErrEntryNotFound          = errors.New("entry not found")
	ErrEntryTournamentInvalid = errors.New("entry tournament conflict or invalid")
)

type EntryRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.Entry) error
	GetByID(ctx context.Context, id int) (*models.Entry, error)
	ListByTournament(ctx context.Context, tournamentID int, onlyActive bool, kind *models.EntryKind) ([]*models.Entry, error)
	// DeactivateByTournament soft-retires every entry before a replace
	// import; bracket slots keep referencing the old rows by value.
	DeactivateByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) EntryRepository {
	return &postgresEntryRepository{db: db}
}

func (r *postgresEntryRepository) Create(ctx context.Context, exec SQLExecutor, entry *models.Entry) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO entries (tournament_id, kind, name, seed, group_key, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		entry.TournamentID,
		entry.Kind,
		entry.Name,
		entry.Seed,
		entry.GroupKey,
		entry.Active,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "entries_tournament_id_fkey" {
			return ErrEntryTournamentInvalid
		}
		return fmt.Errorf("failed to insert entry for tournament %d: %w", entry.TournamentID, err)
	}
	return nil
}

func (r *postgresEntryRepository) GetByID(ctx context.Context, id int) (*models.Entry, error) {
	query := `
		SELECT id, tournament_id, kind, name, seed, group_key, active, created_at
		FROM entries
		WHERE id = $1`

	entry := &models.Entry{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&entry.ID,
		&entry.TournamentID,
		&entry.Kind,
		&entry.Name,
		&entry.Seed,
		&entry.GroupKey,
		&entry.Active,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan entry by id %d: %w", id, err)
	}
	return entry, nil
}

func (r *postgresEntryRepository) ListByTournament(ctx context.Context, tournamentID int, onlyActive bool, kind *models.EntryKind) ([]*models.Entry, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT id, tournament_id, kind, name, seed, group_key, active, created_at
		FROM entries
		WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if onlyActive {
		queryBuilder.WriteString(" AND active = true")
	}
	if kind != nil {
		queryBuilder.WriteString(" AND kind = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *kind)
	}
	// Seeded entries first (ascending seed), then registration order.
	queryBuilder.WriteString(" ORDER BY seed ASC NULLS LAST, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	entries := make([]*models.Entry, 0)
	for rows.Next() {
		var entry models.Entry
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.TournamentID,
			&entry.Kind,
			&entry.Name,
			&entry.Seed,
			&entry.GroupKey,
			&entry.Active,
			&entry.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", scanErr)
		}
		entries = append(entries, &entry)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during entry rows iteration: %w", err)
	}
	return entries, nil
}

func (r *postgresEntryRepository) DeactivateByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	if exec == nil {
		exec = r.db
	}
	_, err := exec.ExecContext(ctx, `UPDATE entries SET active = false WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to deactivate entries for tournament %d: %w", tournamentID, err)
	}
	return nil
}
