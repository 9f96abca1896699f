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
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchPhaseInvalid      = errors.New("match phase conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)
	ListByPhase(ctx context.Context, phaseID int) ([]*models.Match, error)
	ListChildren(ctx context.Context, parentMatchID int) ([]*models.Match, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	UpdateNextMatchID(ctx context.Context, exec SQLExecutor, id int, nextMatchID *int) error
	UpdateWinnerSources(ctx context.Context, exec SQLExecutor, id int, sourceA, sourceB *int) error
	UpdateAssignment(ctx context.Context, exec SQLExecutor, id int, umpireID *int, court *string) error
	// BumpVersion performs the optimistic compare-and-swap: the version
	// advances only when it still equals expectedVersion. Returns false
	// on a CAS miss.
	BumpVersion(ctx context.Context, exec SQLExecutor, id, expectedVersion int) (bool, error)
}

const matchColumns = `id, tournament_id, phase_id, round, slot_index, match_number, round_label,
	       match_type, status, version, umpire_id, court, parent_match_id,
	       next_match_id, winner_source_match_a, winner_source_match_b, created_at`

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO matches
			(tournament_id, phase_id, round, slot_index, match_number, round_label,
			 match_type, status, version, umpire_id, court, parent_match_id,
			 next_match_id, winner_source_match_a, winner_source_match_b)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.TournamentID,
		match.PhaseID,
		match.Round,
		match.SlotIndex,
		match.MatchNumber,
		match.RoundLabel,
		match.Type,
		match.Status,
		match.Version,
		match.UmpireID,
		match.Court,
		match.ParentMatchID,
		match.NextMatchID,
		match.WinnerSourceMatchA,
		match.WinnerSourceMatchB,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	match := &models.Match{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&match.ID,
		&match.TournamentID,
		&match.PhaseID,
		&match.Round,
		&match.SlotIndex,
		&match.MatchNumber,
		&match.RoundLabel,
		&match.Type,
		&match.Status,
		&match.Version,
		&match.UmpireID,
		&match.Court,
		&match.ParentMatchID,
		&match.NextMatchID,
		&match.WinnerSourceMatchA,
		&match.WinnerSourceMatchB,
		&match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if statusFilter != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(len(args) + 1))
		args = append(args, *statusFilter)
	}
	queryBuilder.WriteString(" ORDER BY round ASC, slot_index ASC, id ASC")

	return r.queryMatches(ctx, queryBuilder.String(), args...)
}

func (r *postgresMatchRepository) ListByPhase(ctx context.Context, phaseID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE phase_id = $1
		ORDER BY round ASC, slot_index ASC, id ASC`
	return r.queryMatches(ctx, query, phaseID)
}

func (r *postgresMatchRepository) ListChildren(ctx context.Context, parentMatchID int) ([]*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE parent_match_id = $1
		ORDER BY match_number ASC, id ASC`
	return r.queryMatches(ctx, query, parentMatchID)
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		var match models.Match
		if scanErr := rows.Scan(
			&match.ID,
			&match.TournamentID,
			&match.PhaseID,
			&match.Round,
			&match.SlotIndex,
			&match.MatchNumber,
			&match.RoundLabel,
			&match.Type,
			&match.Status,
			&match.Version,
			&match.UmpireID,
			&match.Court,
			&match.ParentMatchID,
			&match.NextMatchID,
			&match.WinnerSourceMatchA,
			&match.WinnerSourceMatchB,
			&match.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		matches = append(matches, &match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE matches SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("UpdateStatus: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateNextMatchID(ctx context.Context, exec SQLExecutor, id int, nextMatchID *int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE matches SET next_match_id = $1 WHERE id = $2`, nextMatchID, id)
	if err != nil {
		return fmt.Errorf("UpdateNextMatchID: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateWinnerSources(ctx context.Context, exec SQLExecutor, id int, sourceA, sourceB *int) error {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE matches SET winner_source_match_a = $1, winner_source_match_b = $2 WHERE id = $3`
	result, err := exec.ExecContext(ctx, query, sourceA, sourceB, id)
	if err != nil {
		return fmt.Errorf("UpdateWinnerSources: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateAssignment(ctx context.Context, exec SQLExecutor, id int, umpireID *int, court *string) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `UPDATE matches SET umpire_id = $1, court = $2 WHERE id = $3`, umpireID, court, id)
	if err != nil {
		return fmt.Errorf("UpdateAssignment: failed to execute query for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) BumpVersion(ctx context.Context, exec SQLExecutor, id, expectedVersion int) (bool, error) {
	if exec == nil {
		exec = r.db
	}
	query := `UPDATE matches SET version = version + 1 WHERE id = $1 AND version = $2`
	result, err := exec.ExecContext(ctx, query, id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("BumpVersion: failed to execute query for match %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("BumpVersion: failed to check affected rows: %w", err)
	}
	return rowsAffected == 1, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_phase_id_fkey":
			return ErrMatchPhaseInvalid
		}
	}
	return err
}
