package models

import "time"

type MatchStatus string

const (
	MatchStatusPending    MatchStatus = "pending"
	MatchStatusInProgress MatchStatus = "inprogress"
	MatchStatusPaused     MatchStatus = "paused"
	MatchStatusFinished   MatchStatus = "finished"
)

type MatchType string

const (
	MatchTypeTeam       MatchType = "team_match"
	MatchTypeIndividual MatchType = "individual_match"
)

type WinningReason string

const (
	WinReasonNormal  WinningReason = "NORMAL"
	WinReasonRetire  WinningReason = "RETIRE"
	WinReasonDefault WinningReason = "DEFAULT"
)

// Match is one bracket node. Round 1 matches have no source matches;
// every later match is fed by exactly the two matches at round-1 slots
// 2s and 2s+1, recorded in WinnerSourceMatchA/B during draw generation.
// Version is the optimistic concurrency counter bumped on every scoring
// mutation.
type Match struct {
	ID                 int         `json:"id"`
	TournamentID       int         `json:"tournament_id"`
	PhaseID            int         `json:"phase_id"`
	Round              int         `json:"round"`
	SlotIndex          int         `json:"slot_index"`
	MatchNumber        int         `json:"match_number"`
	RoundLabel         string      `json:"round_label"`
	Type               MatchType   `json:"type"`
	Status             MatchStatus `json:"status"`
	Version            int         `json:"version"`
	UmpireID           *int        `json:"umpire_id,omitempty"`
	Court              *string     `json:"court,omitempty"`
	ParentMatchID      *int        `json:"parent_match_id,omitempty"`
	NextMatchID        *int        `json:"next_match_id,omitempty"`
	WinnerSourceMatchA *int        `json:"winner_source_match_a,omitempty"`
	WinnerSourceMatchB *int        `json:"winner_source_match_b,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
}

type SlotSource string

const (
	SlotSourceEntry  SlotSource = "entry"
	SlotSourceWinner SlotSource = "winner"
	SlotSourceLoser  SlotSource = "loser"
	SlotSourceBye    SlotSource = "bye"
)

// MatchSlot is one of the two input positions of a match. An entry slot
// always carries a concrete entry id; winner/loser slots carry the match
// id whose result feeds them; bye slots carry nothing.
type MatchSlot struct {
	ID            int        `json:"id"`
	MatchID       int        `json:"match_id"`
	SlotNumber    int        `json:"slot_number"` // 1 or 2
	Source        SlotSource `json:"source_type"`
	EntryID       *int       `json:"entry_id,omitempty"`
	SourceMatchID *int       `json:"source_match_id,omitempty"`
	Label         *string    `json:"label,omitempty"`
}

// MatchPair is the materialized participant occupying one side of a
// match, written once the actual entrant (not a placeholder) is known.
type MatchPair struct {
	ID         int  `json:"id"`
	MatchID    int  `json:"match_id"`
	PairNumber int  `json:"pair_number"` // 1 or 2
	EntryID    *int `json:"entry_id,omitempty"`
	Player1ID  *int `json:"player1_id,omitempty"`
	Player2ID  *int `json:"player2_id,omitempty"`
}

// MatchScore is the single derived aggregate per match, created lazily
// on the first point or on bye resolution, never deleted except through
// phase regeneration.
type MatchScore struct {
	MatchID       int           `json:"match_id"`
	GameCountA    int           `json:"game_count_a"`
	GameCountB    int           `json:"game_count_b"`
	FinalScore    *string       `json:"final_score,omitempty"`
	WinnerEntryID *int          `json:"winner_entry_id,omitempty"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	Reason        WinningReason `json:"winning_reason,omitempty"`
}

type PointType string

const (
	PointTypeA PointType = "A_score"
	PointTypeB PointType = "B_score"
)

// Point is an append-only scoring event. The only mutation ever applied
// is the soft-undo flag; the aggregate is a fold over all non-undone
// points in receipt order.
type Point struct {
	ID         int       `json:"id"`
	MatchID    int       `json:"match_id"`
	Type       PointType `json:"point_type"`
	ClientUUID string    `json:"client_uuid"`
	CreatedAt  time.Time `json:"created_at"`
	Undone     bool      `json:"undone"`
}
