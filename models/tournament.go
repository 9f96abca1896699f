package models

import "time"

type TournamentStatus string

const (
	StatusSoon         TournamentStatus = "soon"
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

type TournamentFormat string

const (
	FormatSingles TournamentFormat = "singles"
	FormatDoubles TournamentFormat = "doubles"
	FormatTeam3   TournamentFormat = "team3"
	FormatTeam5   TournamentFormat = "team5"
)

// IsTeam reports whether bracket nodes are parent team matches with
// child individual matches underneath.
func (f TournamentFormat) IsTeam() bool {
	return f == FormatTeam3 || f == FormatTeam5
}

// ChildMatchCount is the number of individual matches played inside one
// team match. Zero for individual formats.
func (f TournamentFormat) ChildMatchCount() int {
	switch f {
	case FormatTeam3:
		return 3
	case FormatTeam5:
		return 5
	default:
		return 0
	}
}

type Tournament struct {
	ID          int              `json:"id"`
	Name        string           `json:"name"`
	Format      TournamentFormat `json:"format"`
	Status      TournamentStatus `json:"status"`
	OrganizerID int              `json:"organizer_id"`
	LogoKey     *string          `json:"-"`
	LogoURL     *string          `json:"logo_url,omitempty"`
	RegDate     time.Time        `json:"reg_date"`
	StartDate   time.Time        `json:"start_date"`
	EndDate     time.Time        `json:"end_date"`
	CreatedAt   time.Time        `json:"created_at"`
}
