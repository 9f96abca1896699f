package models

import "time"

type EntryKind string

const (
	EntryKindTeam    EntryKind = "team"
	EntryKindDoubles EntryKind = "doubles"
	EntryKindSingles EntryKind = "singles"
)

// Entry is one participant unit of a tournament: a team, a doubles pair
// or a singles player. Once a bracket references it, placement is by
// value-copy into slots, so the row itself stays immutable; a replace
// import only flips Active off and inserts fresh rows.
type Entry struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	Kind         EntryKind `json:"kind"`
	Name         string    `json:"name"`
	Seed         *int      `json:"seed,omitempty"`
	GroupKey     *string   `json:"group_key,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// TournamentPair is a roster pairing under an entry: the concrete
// player(s) that can occupy a match slot for that entry. Singles entries
// have pairs with Player2ID nil.
type TournamentPair struct {
	ID        int       `json:"id"`
	EntryID   int       `json:"entry_id"`
	Player1ID int       `json:"player1_id"`
	Player2ID *int      `json:"player2_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
