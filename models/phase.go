package models

import "time"

// Phase is one bracket generation episode for a tournament. Regenerating
// the draw deletes the phase, which cascades to its matches, slots,
// scores and points.
type Phase struct {
	ID            int       `json:"id"`
	TournamentID  int       `json:"tournament_id"`
	Sequence      int       `json:"sequence"`
	GamesToWin    int       `json:"games_to_win"`
	PointsPerGame int       `json:"points_per_game"`
	CreatedAt     time.Time `json:"created_at"`
}
