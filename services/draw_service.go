package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/bits"
	"sync"
	"time"

	"github.com/Dosada05/matchpoint/brackets"
	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
	"golang.org/x/sync/errgroup"
)

type UmpireAssignmentPolicy string

const (
	UmpirePolicyNone   UmpireAssignmentPolicy = "none"
	UmpirePolicyRotate UmpireAssignmentPolicy = "rotate"
)

const (
	defaultGamesToWin    = 2
	defaultPointsPerGame = 21

	groupSeparationSweeps = 2
)

type DrawResult struct {
	Phase                *models.Phase   `json:"phase"`
	Matches              []*models.Match `json:"matches"`
	BracketSize          int             `json:"bracket_size"`
	ByeCount             int             `json:"bye_count"`
	RecommendedSeedCount int             `json:"recommended_seed_count"`
}

type BracketView struct {
	Phase   *models.Phase                `json:"phase"`
	Matches []*models.Match              `json:"matches"`
	Slots   map[int][]*models.MatchSlot  `json:"slots"`
	Pairs   map[int][]*models.MatchPair  `json:"pairs"`
	Scores  map[int]*models.MatchScore   `json:"scores"`
}

type DrawService interface {
	GenerateDraw(ctx context.Context, userID, tournamentID int, policy UmpireAssignmentPolicy) (*DrawResult, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
}

type drawService struct {
	transactor     repositories.Transactor
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	phaseRepo      repositories.PhaseRepository
	matchRepo      repositories.MatchRepository
	slotRepo       repositories.SlotRepository
	pairRepo       repositories.MatchPairRepository
	scoreRepo      repositories.ScoreRepository
	rosterRepo     repositories.TournamentPairRepository
	matchFlow      MatchFlowService
	capabilities   CapabilityChecker
	hub            *brackets.Hub
	logger         *slog.Logger
}

func NewDrawService(
	transactor repositories.Transactor,
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	phaseRepo repositories.PhaseRepository,
	matchRepo repositories.MatchRepository,
	slotRepo repositories.SlotRepository,
	pairRepo repositories.MatchPairRepository,
	scoreRepo repositories.ScoreRepository,
	rosterRepo repositories.TournamentPairRepository,
	matchFlow MatchFlowService,
	capabilities CapabilityChecker,
	hub *brackets.Hub,
	logger *slog.Logger,
) DrawService {
	return &drawService{
		transactor:     transactor,
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		phaseRepo:      phaseRepo,
		matchRepo:      matchRepo,
		slotRepo:       slotRepo,
		pairRepo:       pairRepo,
		scoreRepo:      scoreRepo,
		rosterRepo:     rosterRepo,
		matchFlow:      matchFlow,
		capabilities:   capabilities,
		hub:            hub,
		logger:         logger,
	}
}

type byeResolution struct {
	matchID       int
	winnerEntryID int
}

// GenerateDraw rebuilds the tournament's bracket from its active
// entries: it deletes any existing phase (cascade), places entries into
// a power-of-two bracket with four-corner seeding and bye minimization,
// creates every round's matches and slots, wires next-match pointers,
// finishes round-1 byes with a DEFAULT result and propagates their
// winners into round 2.
func (s *drawService) GenerateDraw(ctx context.Context, userID, tournamentID int, policy UmpireAssignmentPolicy) (*DrawResult, error) {
	if policy == "" {
		policy = UmpirePolicyNone
	}
	if policy != UmpirePolicyNone && policy != UmpirePolicyRotate {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUmpirePolicy, policy)
	}

	tournament, err := s.getTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, tournamentID); err != nil {
		return nil, err
	}
	if err := s.guardRegenerate(ctx, tournamentID); err != nil {
		return nil, err
	}

	var kindFilter *models.EntryKind
	if tournament.Format.IsTeam() {
		kind := models.EntryKindTeam
		kindFilter = &kind
	}
	entries, err := s.entryRepo.ListByTournament(ctx, tournamentID, true, kindFilter)
	if err != nil {
		return nil, err
	}
	if len(entries) < 2 {
		return nil, ErrNotEnoughEntries
	}

	bracketSize := brackets.NextPowerOfTwo(len(entries))
	byeCount := bracketSize - len(entries)
	roundCount := bits.Len(uint(bracketSize)) - 1
	seedCount := brackets.RecommendedSeedCount(bracketSize)

	order := brackets.SeedOrder(bracketSize)
	fullPairs := brackets.FullPairs(bracketSize/2, bracketSize/2-byeCount)
	slotEntries := assignEntriesToSlots(entries, order, fullPairs)
	separateGroupPairs(slotEntries, groupSeparationSweeps)

	s.logger.Info("generating draw",
		slog.Int("tournament_id", tournamentID),
		slog.Int("entries", len(entries)),
		slog.Int("bracket_size", bracketSize),
		slog.Int("byes", byeCount),
		slog.Int("recommended_seeds", seedCount),
	)

	var (
		phase      *models.Phase
		allMatches []*models.Match
		byes       []byeResolution
	)

	txErr := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.phaseRepo.DeleteByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}
		phase = &models.Phase{
			TournamentID:  tournamentID,
			Sequence:      1,
			GamesToWin:    defaultGamesToWin,
			PointsPerGame: defaultPointsPerGame,
		}
		if err := s.phaseRepo.Create(ctx, exec, phase); err != nil {
			return err
		}

		grid, created, childMatches, err := s.createMatches(ctx, exec, tournament, phase, bracketSize, roundCount)
		if err != nil {
			return err
		}
		allMatches = created

		if err := s.wirePointers(ctx, exec, grid, roundCount); err != nil {
			return err
		}
		if err := s.insertSlots(ctx, exec, grid, slotEntries, childMatches, roundCount); err != nil {
			return err
		}

		byes, err = s.resolveByes(ctx, exec, grid[1], slotEntries)
		if err != nil {
			return err
		}

		if policy == UmpirePolicyRotate {
			if err := s.rotateUmpires(ctx, exec, tournamentID, grid[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Bye winners advance outside the transaction: propagation is an
	// idempotent upsert, so a failure here is re-runnable. Per-match
	// failures are reported via logs only.
	for _, bye := range byes {
		if err := s.matchFlow.PropagateWinnerToNextMatch(ctx, bye.matchID, bye.winnerEntryID); err != nil {
			s.logger.Error("bye winner propagation failed",
				slog.Int("match_id", bye.matchID),
				slog.Int("winner_entry_id", bye.winnerEntryID),
				slog.Any("error", err),
			)
		}
	}

	if s.hub != nil {
		s.hub.BroadcastToRoom(tournamentRoom(tournamentID), brackets.Message{
			Type:    brackets.EventBracketGenerated,
			Payload: map[string]interface{}{"tournament_id": tournamentID, "phase_id": phase.ID},
		})
	}

	return &DrawResult{
		Phase:                phase,
		Matches:              allMatches,
		BracketSize:          bracketSize,
		ByeCount:             byeCount,
		RecommendedSeedCount: seedCount,
	}, nil
}

func (s *drawService) authorize(ctx context.Context, userID, tournamentID int) error {
	if s.capabilities == nil {
		return nil
	}
	if ok, err := s.capabilities.IsAdmin(ctx, userID); err != nil {
		return err
	} else if ok {
		return nil
	}
	if ok, err := s.capabilities.IsTournamentAdmin(ctx, userID, tournamentID); err != nil {
		return err
	} else if ok {
		return nil
	}
	return ErrForbiddenOperation
}

// guardRegenerate blocks regeneration while any match is running or has
// a played (non-walkover) result. Bye-only completions do not block.
func (s *drawService) guardRegenerate(ctx context.Context, tournamentID int) error {
	matches, err := s.matchRepo.ListByTournament(ctx, tournamentID, nil)
	if err != nil {
		return err
	}
	for _, match := range matches {
		switch match.Status {
		case models.MatchStatusInProgress, models.MatchStatusPaused:
			return ErrDrawLocked
		case models.MatchStatusFinished:
			score, err := s.scoreRepo.GetByMatch(ctx, match.ID)
			if err != nil {
				if errors.Is(err, repositories.ErrMatchScoreNotFound) {
					continue
				}
				return err
			}
			if score.Reason == models.WinReasonNormal {
				return ErrDrawLocked
			}
		}
	}
	return nil
}

// createMatches writes one match per bracket node per round, plus child
// individual matches under every node for team formats. grid[r][s] is
// the node match of round r at slot s; the returned map holds every
// node's children keyed by parent match id.
func (s *drawService) createMatches(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament, phase *models.Phase, bracketSize, roundCount int) ([][]*models.Match, []*models.Match, map[int][]*models.Match, error) {
	grid := make([][]*models.Match, roundCount+1)
	all := make([]*models.Match, 0, 2*bracketSize)
	childMatches := make(map[int][]*models.Match)
	childCount := tournament.Format.ChildMatchCount()
	matchType := models.MatchTypeIndividual
	if childCount > 0 {
		matchType = models.MatchTypeTeam
	}

	matchNumber := 0
	for r := 1; r <= roundCount; r++ {
		count := bracketSize >> uint(r)
		grid[r] = make([]*models.Match, count)
		for slotIdx := 0; slotIdx < count; slotIdx++ {
			matchNumber++
			match := &models.Match{
				TournamentID: tournament.ID,
				PhaseID:      phase.ID,
				Round:        r,
				SlotIndex:    slotIdx,
				MatchNumber:  matchNumber,
				RoundLabel:   roundLabel(r, roundCount),
				Type:         matchType,
				Status:       models.MatchStatusPending,
			}
			if err := s.matchRepo.Create(ctx, exec, match); err != nil {
				return nil, nil, nil, err
			}
			grid[r][slotIdx] = match
			all = append(all, match)

			for c := 0; c < childCount; c++ {
				matchNumber++
				parentID := match.ID
				child := &models.Match{
					TournamentID:  tournament.ID,
					PhaseID:       phase.ID,
					Round:         r,
					SlotIndex:     slotIdx,
					MatchNumber:   matchNumber,
					RoundLabel:    match.RoundLabel,
					Type:          models.MatchTypeIndividual,
					Status:        models.MatchStatusPending,
					ParentMatchID: &parentID,
				}
				if err := s.matchRepo.Create(ctx, exec, child); err != nil {
					return nil, nil, nil, err
				}
				all = append(all, child)
				childMatches[match.ID] = append(childMatches[match.ID], child)
			}
		}
	}
	return grid, all, childMatches, nil
}

// wirePointers is the second pass over created matches: round r slot s
// advances to round r+1 slot s/2, and every round>1 match records the
// two feeder matches (even feeder slot = A, odd = B).
func (s *drawService) wirePointers(ctx context.Context, exec repositories.SQLExecutor, grid [][]*models.Match, roundCount int) error {
	for r := 1; r < roundCount; r++ {
		for slotIdx, match := range grid[r] {
			next := grid[r+1][slotIdx/2]
			if err := s.matchRepo.UpdateNextMatchID(ctx, exec, match.ID, &next.ID); err != nil {
				return err
			}
			match.NextMatchID = &next.ID
		}
	}
	for r := 2; r <= roundCount; r++ {
		for slotIdx, match := range grid[r] {
			sourceA := grid[r-1][2*slotIdx]
			sourceB := grid[r-1][2*slotIdx+1]
			if err := s.matchRepo.UpdateWinnerSources(ctx, exec, match.ID, &sourceA.ID, &sourceB.ID); err != nil {
				return err
			}
			match.WinnerSourceMatchA = &sourceA.ID
			match.WinnerSourceMatchB = &sourceB.ID
		}
	}
	return nil
}

func (s *drawService) insertSlots(ctx context.Context, exec repositories.SQLExecutor, grid [][]*models.Match, slotEntries []*models.Entry, childMatches map[int][]*models.Match, roundCount int) error {
	for slotIdx, match := range grid[1] {
		for side := 0; side < 2; side++ {
			entry := slotEntries[2*slotIdx+side]
			slot := &models.MatchSlot{MatchID: match.ID, SlotNumber: side + 1}
			if entry != nil {
				entryID := entry.ID
				slot.Source = models.SlotSourceEntry
				slot.EntryID = &entryID
			} else {
				label := "BYE"
				slot.Source = models.SlotSourceBye
				slot.Label = &label
			}
			if err := s.slotRepo.Create(ctx, exec, slot); err != nil {
				return err
			}
			if entry != nil {
				if err := s.materializePair(ctx, exec, match.ID, side+1, entry, childMatches[match.ID]); err != nil {
					return err
				}
			}
		}
	}

	for r := 2; r <= roundCount; r++ {
		for slotIdx, match := range grid[r] {
			feeders := []*models.Match{grid[r-1][2*slotIdx], grid[r-1][2*slotIdx+1]}
			for side, feeder := range feeders {
				feederID := feeder.ID
				slot := &models.MatchSlot{
					MatchID:       match.ID,
					SlotNumber:    side + 1,
					Source:        models.SlotSourceWinner,
					SourceMatchID: &feederID,
				}
				if err := s.slotRepo.Create(ctx, exec, slot); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// materializePair writes the known entrant into the match pair for the
// slot, mirrored onto the given child matches for team formats. The
// children are passed in because they were created through the same
// transaction executor and a pool read cannot see them yet.
func (s *drawService) materializePair(ctx context.Context, exec repositories.SQLExecutor, matchID, pairNumber int, entry *models.Entry, children []*models.Match) error {
	entryID := entry.ID
	var player1, player2 *int
	roster, err := s.rosterRepo.ListByEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if len(roster) > 0 {
		p1 := roster[0].Player1ID
		player1 = &p1
		player2 = roster[0].Player2ID
	}
	pair := &models.MatchPair{MatchID: matchID, PairNumber: pairNumber, EntryID: &entryID, Player1ID: player1, Player2ID: player2}
	if err := s.pairRepo.Upsert(ctx, exec, pair); err != nil {
		return err
	}
	for _, child := range children {
		childPair := &models.MatchPair{MatchID: child.ID, PairNumber: pairNumber, EntryID: &entryID, Player1ID: player1, Player2ID: player2}
		if err := s.pairRepo.Upsert(ctx, exec, childPair); err != nil {
			return err
		}
	}
	return nil
}

// resolveByes finishes every round-1 match with a single entrant:
// DEFAULT winning reason, winner recorded immediately.
func (s *drawService) resolveByes(ctx context.Context, exec repositories.SQLExecutor, firstRound []*models.Match, slotEntries []*models.Entry) ([]byeResolution, error) {
	byes := make([]byeResolution, 0)
	for slotIdx, match := range firstRound {
		a := slotEntries[2*slotIdx]
		b := slotEntries[2*slotIdx+1]
		if (a == nil) == (b == nil) {
			continue
		}
		winner := a
		if winner == nil {
			winner = b
		}
		winnerID := winner.ID
		now := time.Now()
		score := &models.MatchScore{
			MatchID:       match.ID,
			WinnerEntryID: &winnerID,
			EndedAt:       &now,
			Reason:        models.WinReasonDefault,
		}
		if err := s.scoreRepo.Upsert(ctx, exec, score); err != nil {
			return nil, err
		}
		if err := s.matchRepo.UpdateStatus(ctx, exec, match.ID, models.MatchStatusFinished); err != nil {
			return nil, err
		}
		match.Status = models.MatchStatusFinished
		byes = append(byes, byeResolution{matchID: match.ID, winnerEntryID: winnerID})
	}
	return byes, nil
}

func (s *drawService) rotateUmpires(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, firstRound []*models.Match) error {
	umpires, err := s.tournamentRepo.ListUmpireIDs(ctx, tournamentID)
	if err != nil {
		return err
	}
	if len(umpires) == 0 {
		return nil
	}
	assigned := 0
	for _, match := range firstRound {
		if match.Status == models.MatchStatusFinished {
			continue
		}
		umpireID := umpires[assigned%len(umpires)]
		if err := s.matchRepo.UpdateAssignment(ctx, exec, match.ID, &umpireID, nil); err != nil {
			return err
		}
		match.UmpireID = &umpireID
		assigned++
	}
	return nil
}

// GetBracket assembles the full bracket payload: matches with their
// slots, pairs and scores, fetched concurrently.
func (s *drawService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	phase, err := s.phaseRepo.GetLatestByTournament(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, err
	}
	matches, err := s.matchRepo.ListByPhase(ctx, phase.ID)
	if err != nil {
		return nil, err
	}

	view := &BracketView{
		Phase:   phase,
		Matches: matches,
		Slots:   make(map[int][]*models.MatchSlot, len(matches)),
		Pairs:   make(map[int][]*models.MatchPair, len(matches)),
		Scores:  make(map[int]*models.MatchScore, len(matches)),
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, match := range matches {
		match := match
		g.Go(func() error {
			slots, err := s.slotRepo.ListByMatch(gCtx, match.ID)
			if err != nil {
				return err
			}
			pairs, err := s.pairRepo.ListByMatch(gCtx, match.ID)
			if err != nil {
				return err
			}
			score, err := s.scoreRepo.GetByMatch(gCtx, match.ID)
			if err != nil && !errors.Is(err, repositories.ErrMatchScoreNotFound) {
				return err
			}
			mu.Lock()
			view.Slots[match.ID] = slots
			view.Pairs[match.ID] = pairs
			if score != nil {
				view.Scores[match.ID] = score
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

func (s *drawService) getTournament(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

// roundLabel names rounds by ordinal convention, except the last two
// rounds are always 準決勝 (semifinal) and 決勝 (final).
func roundLabel(round, roundCount int) string {
	switch {
	case round == roundCount:
		return "決勝"
	case round == roundCount-1:
		return "準決勝"
	default:
		return fmt.Sprintf("%d回戦", round)
	}
}

// assignEntriesToSlots maps entries (strongest seed first) onto bracket
// slots following the placement order, leaving the lower-priority slot
// of every bye pair empty. A bye pair holds exactly one real entrant, so
// no round-1 match is ever bye-vs-bye.
func assignEntriesToSlots(entries []*models.Entry, order []int, fullPairs map[int]bool) []*models.Entry {
	n := len(order)
	rank := make([]int, n)
	for i, slot := range order {
		rank[slot] = i
	}

	isBye := make([]bool, n)
	for pair := 0; pair < n/2; pair++ {
		if fullPairs[pair] {
			continue
		}
		a, b := 2*pair, 2*pair+1
		if rank[a] < rank[b] {
			isBye[b] = true
		} else {
			isBye[a] = true
		}
	}

	assigned := make([]*models.Entry, n)
	next := 0
	for _, slot := range order {
		if isBye[slot] || next >= len(entries) {
			continue
		}
		assigned[slot] = entries[next]
		next++
	}
	return assigned
}

// separateGroupPairs is a best-effort post-process: where both entrants
// of a round-1 pair share a grouping key, swap the unseeded one with an
// unseeded entrant from another pair whose key differs, as long as the
// swap creates no new conflict. Bounded sweeps, not guaranteed optimal.
func separateGroupPairs(slots []*models.Entry, sweeps int) {
	n := len(slots)
	for sweep := 0; sweep < sweeps; sweep++ {
		moved := false
		for pair := 0; pair < n/2; pair++ {
			a, b := slots[2*pair], slots[2*pair+1]
			if !sameGroup(a, b) {
				continue
			}
			// Prefer to move the unseeded half of the conflicting pair.
			victim := 2*pair + 1
			if slots[victim] == nil || slots[victim].Seed != nil {
				victim = 2 * pair
			}
			if slots[victim] == nil || slots[victim].Seed != nil {
				continue
			}
			if swapOut(slots, pair, victim) {
				moved = true
			}
		}
		if !moved {
			break
		}
	}
}

func swapOut(slots []*models.Entry, conflictPair, victim int) bool {
	n := len(slots)
	moving := slots[victim]
	for other := 0; other < n/2; other++ {
		if other == conflictPair {
			continue
		}
		for side := 0; side < 2; side++ {
			idx := 2*other + side
			candidate := slots[idx]
			if candidate == nil || candidate.Seed != nil {
				continue
			}
			if sameGroup(candidate, moving) {
				continue
			}
			// The candidate's partner must not conflict with the entrant
			// moving in, and vice versa for the vacated pair.
			partner := slots[2*other+(1-side)]
			if sameGroup(partner, moving) {
				continue
			}
			stay := slots[2*conflictPair]
			if victim == 2*conflictPair {
				stay = slots[2*conflictPair+1]
			}
			if sameGroup(stay, candidate) {
				continue
			}
			slots[victim], slots[idx] = slots[idx], slots[victim]
			return true
		}
	}
	return false
}

func sameGroup(a, b *models.Entry) bool {
	return a != nil && b != nil &&
		a.GroupKey != nil && b.GroupKey != nil &&
		*a.GroupKey == *b.GroupKey
}
