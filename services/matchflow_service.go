package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/matchpoint/brackets"
	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
)

// Walkover resolution follows winner-source pointers backwards through
// bye chains; the bracket depth bounds the recursion, this is a hard cap.
const maxWalkoverResolveDepth = 16

type MatchFlowService interface {
	DetermineMatchWinner(ctx context.Context, matchID int) (*int, error)
	UpdateMatchScoreWithWinner(ctx context.Context, matchID, winnerEntryID int, reason models.WinningReason) error
	ProcessMatchFinish(ctx context.Context, matchID int) error
	PropagateWinnerToNextMatch(ctx context.Context, matchID, winnerEntryID int) error
	FinishParentTeamMatch(ctx context.Context, parentMatchID int) (*int, error)
	ShouldFinishParentMatch(ctx context.Context, parentMatchID int) (bool, *int, error)

	StartMatch(ctx context.Context, matchID int) error
	PauseMatch(ctx context.Context, matchID int) error
	ResumeMatch(ctx context.Context, matchID int) error
	RevertMatchFinish(ctx context.Context, matchID int) error
}

type matchFlowService struct {
	matchRepo  repositories.MatchRepository
	slotRepo   repositories.SlotRepository
	pairRepo   repositories.MatchPairRepository
	scoreRepo  repositories.ScoreRepository
	rosterRepo repositories.TournamentPairRepository
	hub        *brackets.Hub
}

func NewMatchFlowService(
	matchRepo repositories.MatchRepository,
	slotRepo repositories.SlotRepository,
	pairRepo repositories.MatchPairRepository,
	scoreRepo repositories.ScoreRepository,
	rosterRepo repositories.TournamentPairRepository,
	hub *brackets.Hub,
) MatchFlowService {
	return &matchFlowService{
		matchRepo:  matchRepo,
		slotRepo:   slotRepo,
		pairRepo:   pairRepo,
		scoreRepo:  scoreRepo,
		rosterRepo: rosterRepo,
		hub:        hub,
	}
}

// DetermineMatchWinner returns the entry id of the match winner, or nil
// when no winner can be determined yet. A recorded score with unequal
// game counts decides directly; otherwise the match is a walkover case
// and the single non-bye slot decides, resolved recursively through
// winner-source matches since a bye's winner may itself be a propagated
// winner from an even earlier bye.
func (s *matchFlowService) DetermineMatchWinner(ctx context.Context, matchID int) (*int, error) {
	score, err := s.getScore(ctx, matchID)
	if err != nil {
		return nil, err
	}

	if score != nil && score.GameCountA != score.GameCountB {
		winningPairNumber := 1
		if score.GameCountB > score.GameCountA {
			winningPairNumber = 2
		}
		pair, err := s.pairRepo.GetByMatchAndNumber(ctx, matchID, winningPairNumber)
		if err != nil && !errors.Is(err, repositories.ErrMatchPairNotFound) {
			return nil, err
		}
		if pair != nil && pair.EntryID != nil {
			return pair.EntryID, nil
		}
		// Pairs never materialized; fall back to the slot on that side.
		return s.resolveSlotNumber(ctx, matchID, winningPairNumber)
	}

	if score != nil && score.WinnerEntryID != nil {
		// Already recorded (bye resolution writes the winner directly).
		return score.WinnerEntryID, nil
	}

	slots, err := s.slotRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	occupied := nonByeSlots(slots)
	if len(occupied) != 1 {
		return nil, nil
	}
	return s.resolveSlotEntry(ctx, occupied[0], 0)
}

func (s *matchFlowService) resolveSlotNumber(ctx context.Context, matchID, slotNumber int) (*int, error) {
	slots, err := s.slotRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	for _, slot := range slots {
		if slot.SlotNumber == slotNumber {
			return s.resolveSlotEntry(ctx, slot, 0)
		}
	}
	return nil, nil
}

func (s *matchFlowService) resolveSlotEntry(ctx context.Context, slot *models.MatchSlot, depth int) (*int, error) {
	if slot == nil || depth > maxWalkoverResolveDepth {
		return nil, nil
	}
	switch slot.Source {
	case models.SlotSourceEntry:
		return slot.EntryID, nil
	case models.SlotSourceWinner:
		if slot.SourceMatchID == nil {
			return nil, nil
		}
		srcScore, err := s.getScore(ctx, *slot.SourceMatchID)
		if err != nil {
			return nil, err
		}
		if srcScore != nil && srcScore.WinnerEntryID != nil {
			return srcScore.WinnerEntryID, nil
		}
		srcSlots, err := s.slotRepo.ListByMatch(ctx, *slot.SourceMatchID)
		if err != nil {
			return nil, err
		}
		occupied := nonByeSlots(srcSlots)
		if len(occupied) != 1 {
			return nil, nil
		}
		return s.resolveSlotEntry(ctx, occupied[0], depth+1)
	default:
		// loser slots need a recorded loser, bye slots never resolve
		return nil, nil
	}
}

// UpdateMatchScoreWithWinner idempotently records the winner on the
// match's score row.
func (s *matchFlowService) UpdateMatchScoreWithWinner(ctx context.Context, matchID, winnerEntryID int, reason models.WinningReason) error {
	score, err := s.getScore(ctx, matchID)
	if err != nil {
		return err
	}
	if score == nil {
		score = &models.MatchScore{MatchID: matchID}
	}
	if score.WinnerEntryID != nil && *score.WinnerEntryID == winnerEntryID && score.EndedAt != nil && score.Reason == reason {
		return nil
	}
	now := time.Now()
	score.WinnerEntryID = &winnerEntryID
	score.EndedAt = &now
	score.Reason = reason
	return s.scoreRepo.Upsert(ctx, nil, score)
}

// ShouldFinishParentMatch reports whether a team in the parent match has
// already reached the child-match majority, and which entry it is.
func (s *matchFlowService) ShouldFinishParentMatch(ctx context.Context, parentMatchID int) (bool, *int, error) {
	children, err := s.matchRepo.ListChildren(ctx, parentMatchID)
	if err != nil {
		return false, nil, err
	}
	if len(children) == 0 {
		return false, nil, nil
	}
	wins, ordered, _, err := s.childTeamWins(ctx, children)
	if err != nil {
		return false, nil, err
	}
	majority := (len(children) + 1) / 2
	for _, team := range ordered {
		if wins[team] >= majority {
			t := team
			return true, &t, nil
		}
	}
	return false, nil, nil
}

// FinishParentTeamMatch closes a team match once all of its children are
// finished, aggregating per-team win counts into game_count_a/b. The A/B
// assignment follows the parent's own pair numbers (pair 1 = A) rather
// than win-count insertion order; teams not occupying either pair fall
// back to first-seen order. Returns the winning entry id, which may be
// nil when no team reached the majority.
func (s *matchFlowService) FinishParentTeamMatch(ctx context.Context, parentMatchID int) (*int, error) {
	parent, err := s.getMatch(ctx, parentMatchID)
	if err != nil {
		return nil, err
	}
	if parent.Status == models.MatchStatusFinished {
		score, err := s.getScore(ctx, parentMatchID)
		if err != nil {
			return nil, err
		}
		if score != nil {
			return score.WinnerEntryID, nil
		}
		return nil, nil
	}

	children, err := s.matchRepo.ListChildren(ctx, parentMatchID)
	if err != nil {
		return nil, err
	}
	wins, ordered, allFinished, err := s.childTeamWins(ctx, children)
	if err != nil {
		return nil, err
	}
	if !allFinished {
		return nil, ErrMatchNotFinished
	}

	teamA, teamB := s.parentTeams(ctx, parentMatchID, ordered)

	score := &models.MatchScore{MatchID: parentMatchID, Reason: models.WinReasonNormal}
	if teamA != nil {
		score.GameCountA = wins[*teamA]
	}
	if teamB != nil {
		score.GameCountB = wins[*teamB]
	}

	majority := (len(children) + 1) / 2
	var winner *int
	for _, team := range ordered {
		if wins[team] >= majority {
			t := team
			winner = &t
			break
		}
	}
	now := time.Now()
	score.WinnerEntryID = winner
	score.EndedAt = &now
	if err := s.scoreRepo.Upsert(ctx, nil, score); err != nil {
		return nil, err
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, parentMatchID, models.MatchStatusFinished); err != nil {
		return nil, err
	}
	s.broadcastMatch(parent)
	return winner, nil
}

// childTeamWins folds finished children into per-team win counts,
// keeping first-seen team order for the insertion-order fallback.
func (s *matchFlowService) childTeamWins(ctx context.Context, children []*models.Match) (map[int]int, []int, bool, error) {
	wins := make(map[int]int)
	ordered := make([]int, 0, 2)
	allFinished := true
	for _, child := range children {
		if child.Status != models.MatchStatusFinished {
			allFinished = false
			continue
		}
		childScore, err := s.getScore(ctx, child.ID)
		if err != nil {
			return nil, nil, false, err
		}
		if childScore == nil || childScore.WinnerEntryID == nil {
			continue
		}
		team := *childScore.WinnerEntryID
		if _, seen := wins[team]; !seen {
			ordered = append(ordered, team)
		}
		wins[team]++
	}
	return wins, ordered, allFinished, nil
}

func (s *matchFlowService) parentTeams(ctx context.Context, parentMatchID int, ordered []int) (*int, *int) {
	var teamA, teamB *int
	if pairA, err := s.pairRepo.GetByMatchAndNumber(ctx, parentMatchID, 1); err == nil && pairA.EntryID != nil {
		teamA = pairA.EntryID
	}
	if pairB, err := s.pairRepo.GetByMatchAndNumber(ctx, parentMatchID, 2); err == nil && pairB.EntryID != nil {
		teamB = pairB.EntryID
	}
	if teamA == nil && len(ordered) > 0 {
		teamA = &ordered[0]
	}
	if teamB == nil && len(ordered) > 1 {
		teamB = &ordered[1]
	}
	return teamA, teamB
}

// PropagateWinnerToNextMatch materializes the winner into the downstream
// match's pair for the slot fed by this match. The target slot is picked
// by exact winner-source pointer match, with slot-index parity as a
// fallback when the wiring is absent. The upsert makes repeated
// propagation with identical arguments a no-op, so a crash mid-way is
// recoverable by re-running.
func (s *matchFlowService) PropagateWinnerToNextMatch(ctx context.Context, matchID, winnerEntryID int) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.NextMatchID == nil {
		return nil
	}
	next, err := s.getMatch(ctx, *match.NextMatchID)
	if err != nil {
		return err
	}

	slotNumber := 0
	switch {
	case next.WinnerSourceMatchA != nil && *next.WinnerSourceMatchA == match.ID:
		slotNumber = 1
	case next.WinnerSourceMatchB != nil && *next.WinnerSourceMatchB == match.ID:
		slotNumber = 2
	case match.SlotIndex%2 == 0:
		slotNumber = 1
	default:
		slotNumber = 2
	}

	player1, player2, err := s.resolveWinnerPlayers(ctx, matchID, winnerEntryID)
	if err != nil {
		return err
	}

	entryID := winnerEntryID
	pair := &models.MatchPair{
		MatchID:    next.ID,
		PairNumber: slotNumber,
		EntryID:    &entryID,
		Player1ID:  player1,
		Player2ID:  player2,
	}
	if err := s.pairRepo.Upsert(ctx, nil, pair); err != nil {
		return fmt.Errorf("failed to propagate winner of match %d into match %d: %w", matchID, next.ID, err)
	}

	// Team matches mirror the advancing team onto their children so
	// child winner determination has pairs to work with.
	nextChildren, err := s.matchRepo.ListChildren(ctx, next.ID)
	if err != nil {
		return err
	}
	for _, child := range nextChildren {
		childPair := &models.MatchPair{
			MatchID:    child.ID,
			PairNumber: slotNumber,
			EntryID:    &entryID,
			Player1ID:  player1,
			Player2ID:  player2,
		}
		if err := s.pairRepo.Upsert(ctx, nil, childPair); err != nil {
			return fmt.Errorf("failed to mirror winner of match %d onto child match %d: %w", matchID, child.ID, err)
		}
	}
	return nil
}

// resolveWinnerPlayers finds the concrete player ids that occupied the
// winning side of the just-finished match, falling back to the first
// roster pair under the winning entry when no exact match exists.
func (s *matchFlowService) resolveWinnerPlayers(ctx context.Context, matchID, winnerEntryID int) (*int, *int, error) {
	pairs, err := s.pairRepo.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	for _, pair := range pairs {
		if pair.EntryID != nil && *pair.EntryID == winnerEntryID {
			return pair.Player1ID, pair.Player2ID, nil
		}
	}
	roster, err := s.rosterRepo.ListByEntry(ctx, winnerEntryID)
	if err != nil {
		return nil, nil, err
	}
	if len(roster) > 0 {
		p1 := roster[0].Player1ID
		return &p1, roster[0].Player2ID, nil
	}
	return nil, nil, nil
}

// ProcessMatchFinish is the top-level completion entry point: it records
// the determined winner, and either rolls the result up into the parent
// team match (propagating the parent's winner when the parent closes) or
// propagates the match's own winner directly.
func (s *matchFlowService) ProcessMatchFinish(ctx context.Context, matchID int) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status == models.MatchStatusFinished {
		return ErrMatchAlreadyFinished
	}

	winner, err := s.DetermineMatchWinner(ctx, matchID)
	if err != nil {
		return err
	}
	if winner == nil {
		return ErrMatchWinnerUndetermined
	}

	score, err := s.getScore(ctx, matchID)
	if err != nil {
		return err
	}
	reason := models.WinReasonNormal
	if score == nil {
		reason = models.WinReasonDefault
	} else if score.Reason == models.WinReasonRetire || score.Reason == models.WinReasonDefault {
		reason = score.Reason
	}

	if err := s.UpdateMatchScoreWithWinner(ctx, matchID, *winner, reason); err != nil {
		return err
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, matchID, models.MatchStatusFinished); err != nil {
		return err
	}
	s.broadcastMatch(match)

	if match.ParentMatchID != nil {
		children, err := s.matchRepo.ListChildren(ctx, *match.ParentMatchID)
		if err != nil {
			return err
		}
		for _, child := range children {
			if child.ID != matchID && child.Status != models.MatchStatusFinished {
				// Parent stays open until every child is finished.
				return nil
			}
		}
		parentWinner, err := s.FinishParentTeamMatch(ctx, *match.ParentMatchID)
		if err != nil {
			return err
		}
		if parentWinner == nil {
			return nil
		}
		return s.PropagateWinnerToNextMatch(ctx, *match.ParentMatchID, *parentWinner)
	}

	return s.PropagateWinnerToNextMatch(ctx, matchID, *winner)
}

func (s *matchFlowService) StartMatch(ctx context.Context, matchID int) error {
	return s.transition(ctx, matchID, models.MatchStatusInProgress, models.MatchStatusPending)
}

func (s *matchFlowService) PauseMatch(ctx context.Context, matchID int) error {
	return s.transition(ctx, matchID, models.MatchStatusPaused, models.MatchStatusInProgress)
}

func (s *matchFlowService) ResumeMatch(ctx context.Context, matchID int) error {
	return s.transition(ctx, matchID, models.MatchStatusInProgress, models.MatchStatusPaused)
}

// RevertMatchFinish is the explicit finished -> inprogress transition.
// The recorded winner is cleared but game counts and points survive.
func (s *matchFlowService) RevertMatchFinish(ctx context.Context, matchID int) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if match.Status != models.MatchStatusFinished {
		return ErrMatchNotFinished
	}
	score, err := s.getScore(ctx, matchID)
	if err != nil {
		return err
	}
	if score != nil {
		score.WinnerEntryID = nil
		score.EndedAt = nil
		score.Reason = models.WinReasonNormal
		if err := s.scoreRepo.Upsert(ctx, nil, score); err != nil {
			return err
		}
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, matchID, models.MatchStatusInProgress); err != nil {
		return err
	}
	s.broadcastMatch(match)
	return nil
}

func (s *matchFlowService) transition(ctx context.Context, matchID int, to models.MatchStatus, allowedFrom ...models.MatchStatus) error {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return err
	}
	allowed := false
	for _, from := range allowedFrom {
		if match.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, match.Status, to)
	}
	if err := s.matchRepo.UpdateStatus(ctx, nil, matchID, to); err != nil {
		return err
	}
	s.broadcastMatch(match)
	return nil
}

func (s *matchFlowService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// getScore returns nil without error when no score row exists yet.
func (s *matchFlowService) getScore(ctx context.Context, matchID int) (*models.MatchScore, error) {
	score, err := s.scoreRepo.GetByMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchScoreNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return score, nil
}

func (s *matchFlowService) broadcastMatch(match *models.Match) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToRoom(tournamentRoom(match.TournamentID), brackets.Message{
		Type:    brackets.EventMatchUpdated,
		Payload: map[string]interface{}{"match_id": match.ID},
	})
}

func nonByeSlots(slots []*models.MatchSlot) []*models.MatchSlot {
	occupied := make([]*models.MatchSlot, 0, len(slots))
	for _, slot := range slots {
		if slot.Source != models.SlotSourceBye {
			occupied = append(occupied, slot)
		}
	}
	return occupied
}

func tournamentRoom(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}
