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
	ErrTournamentNotFound     = errors.New("tournament not found")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	ListByStatuses(ctx context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error)
	// Umpire roster per tournament.
	AddUmpire(ctx context.Context, tournamentID, userID int) error
	ListUmpireIDs(ctx context.Context, tournamentID int) ([]int, error)
}

const tournamentColumns = `id, name, format, status, organizer_id, logo_key, reg_date, start_date, end_date, created_at`

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, format, status, organizer_id, logo_key, reg_date, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name,
		tournament.Format,
		tournament.Status,
		tournament.OrganizerID,
		tournament.LogoKey,
		tournament.RegDate,
		tournament.StartDate,
		tournament.EndDate,
	).Scan(&tournament.ID, &tournament.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to insert tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	tournament := &models.Tournament{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&tournament.ID,
		&tournament.Name,
		&tournament.Format,
		&tournament.Status,
		&tournament.OrganizerID,
		&tournament.LogoKey,
		&tournament.RegDate,
		&tournament.StartDate,
		&tournament.EndDate,
		&tournament.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return tournament, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, statusFilter *models.TournamentStatus) ([]*models.Tournament, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + tournamentColumns + ` FROM tournaments`)

	args := []interface{}{}
	if statusFilter != nil {
		queryBuilder.WriteString(" WHERE status = $1")
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY start_date DESC, id DESC")

	return r.queryTournaments(ctx, queryBuilder.String(), args...)
}

func (r *postgresTournamentRepository) ListByStatuses(ctx context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error) {
	if len(statuses) == 0 {
		return []*models.Tournament{}, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]interface{}, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = s
	}
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE status IN (` +
		strings.Join(placeholders, ", ") + `) ORDER BY id ASC`
	return r.queryTournaments(ctx, query, args...)
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]*models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]*models.Tournament, 0)
	for rows.Next() {
		var tournament models.Tournament
		if scanErr := rows.Scan(
			&tournament.ID,
			&tournament.Name,
			&tournament.Format,
			&tournament.Status,
			&tournament.OrganizerID,
			&tournament.LogoKey,
			&tournament.RegDate,
			&tournament.StartDate,
			&tournament.EndDate,
			&tournament.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, &tournament)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to execute query for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tournaments SET logo_key = $1 WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("UpdateLogoKey: failed to execute query for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) AddUmpire(ctx context.Context, tournamentID, userID int) error {
	query := `
		INSERT INTO tournament_umpires (tournament_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (tournament_id, user_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to add umpire %d to tournament %d: %w", userID, tournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) ListUmpireIDs(ctx context.Context, tournamentID int) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM tournament_umpires WHERE tournament_id = $1 ORDER BY user_id ASC`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query umpires for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("failed to scan umpire row: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during umpire rows iteration: %w", err)
	}
	return ids, nil
}
