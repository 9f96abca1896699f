package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/matchpoint/models"
	"github.com/Dosada05/matchpoint/repositories"
)

// In-memory repository fakes. They implement only the semantics the
// services rely on: identity assignment, the upsert keys and the
// filtered list orderings.

type fakeTransactor struct{}

func (fakeTransactor) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

type allowAllChecker struct{}

func (allowAllChecker) IsAdmin(context.Context, int) (bool, error)               { return true, nil }
func (allowAllChecker) IsTournamentAdmin(context.Context, int, int) (bool, error) { return true, nil }
func (allowAllChecker) IsUmpire(context.Context, int, int, int) (bool, error)     { return true, nil }

type fakeStore struct {
	mu sync.Mutex

	nextID int

	tournaments map[int]*models.Tournament
	umpires     map[int][]int
	entries     map[int]*models.Entry
	rosters     map[int][]*models.TournamentPair
	phases      map[int]*models.Phase
	matches     map[int]*models.Match
	slots       map[int][]*models.MatchSlot
	pairs       map[int]map[int]*models.MatchPair // matchID -> pairNumber
	scores      map[int]*models.MatchScore
	points      []*models.Point
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tournaments: make(map[int]*models.Tournament),
		umpires:     make(map[int][]int),
		entries:     make(map[int]*models.Entry),
		rosters:     make(map[int][]*models.TournamentPair),
		phases:      make(map[int]*models.Phase),
		matches:     make(map[int]*models.Match),
		slots:       make(map[int][]*models.MatchSlot),
		pairs:       make(map[int]map[int]*models.MatchPair),
		scores:      make(map[int]*models.MatchScore),
	}
}

func (s *fakeStore) id() int {
	s.nextID++
	return s.nextID
}

// --- TournamentRepository ---

type fakeTournamentRepo struct{ s *fakeStore }

func (r fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	t.CreatedAt = time.Now()
	r.s.tournaments[t.ID] = t
	return nil
}

func (r fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	copied := *t
	return &copied, nil
}

func (r fakeTournamentRepo) List(_ context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if status == nil || t.Status == *status {
			copied := *t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTournamentRepo) ListByStatuses(_ context.Context, statuses ...models.TournamentStatus) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.s.tournaments {
		for _, status := range statuses {
			if t.Status == status {
				copied := *t
				out = append(out, &copied)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r fakeTournamentRepo) UpdateLogoKey(_ context.Context, id int, logoKey *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.LogoKey = logoKey
	return nil
}

func (r fakeTournamentRepo) AddUmpire(_ context.Context, tournamentID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range r.s.umpires[tournamentID] {
		if id == userID {
			return nil
		}
	}
	r.s.umpires[tournamentID] = append(r.s.umpires[tournamentID], userID)
	return nil
}

func (r fakeTournamentRepo) ListUmpireIDs(_ context.Context, tournamentID int) ([]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := append([]int(nil), r.s.umpires[tournamentID]...)
	sort.Ints(ids)
	return ids, nil
}

// --- EntryRepository ---

type fakeEntryRepo struct{ s *fakeStore }

func (r fakeEntryRepo) Create(_ context.Context, _ repositories.SQLExecutor, entry *models.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry.ID = r.s.id()
	entry.CreatedAt = time.Now()
	copied := *entry
	r.s.entries[entry.ID] = &copied
	return nil
}

func (r fakeEntryRepo) GetByID(_ context.Context, id int) (*models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entry, ok := r.s.entries[id]
	if !ok {
		return nil, repositories.ErrEntryNotFound
	}
	copied := *entry
	return &copied, nil
}

func (r fakeEntryRepo) ListByTournament(_ context.Context, tournamentID int, onlyActive bool, kind *models.EntryKind) ([]*models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Entry, 0)
	for _, entry := range r.s.entries {
		if entry.TournamentID != tournamentID {
			continue
		}
		if onlyActive && !entry.Active {
			continue
		}
		if kind != nil && entry.Kind != *kind {
			continue
		}
		copied := *entry
		out = append(out, &copied)
	}
	// seed ASC NULLS LAST, then id ASC
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed:
			return *a.Seed < *b.Seed
		case a.Seed != nil && b.Seed == nil:
			return true
		case a.Seed == nil && b.Seed != nil:
			return false
		default:
			return a.ID < b.ID
		}
	})
	return out, nil
}

func (r fakeEntryRepo) DeactivateByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, entry := range r.s.entries {
		if entry.TournamentID == tournamentID {
			entry.Active = false
		}
	}
	return nil
}

// --- TournamentPairRepository ---

type fakeRosterRepo struct{ s *fakeStore }

func (r fakeRosterRepo) Create(_ context.Context, _ repositories.SQLExecutor, pair *models.TournamentPair) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pair.ID = r.s.id()
	pair.CreatedAt = time.Now()
	copied := *pair
	r.s.rosters[pair.EntryID] = append(r.s.rosters[pair.EntryID], &copied)
	return nil
}

func (r fakeRosterRepo) GetByID(_ context.Context, id int) (*models.TournamentPair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, pairs := range r.s.rosters {
		for _, pair := range pairs {
			if pair.ID == id {
				copied := *pair
				return &copied, nil
			}
		}
	}
	return nil, repositories.ErrTournamentPairNotFound
}

func (r fakeRosterRepo) ListByEntry(_ context.Context, entryID int) ([]*models.TournamentPair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.TournamentPair, 0, len(r.s.rosters[entryID]))
	for _, pair := range r.s.rosters[entryID] {
		copied := *pair
		out = append(out, &copied)
	}
	return out, nil
}

// --- PhaseRepository ---

type fakePhaseRepo struct{ s *fakeStore }

func (r fakePhaseRepo) Create(_ context.Context, _ repositories.SQLExecutor, phase *models.Phase) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	phase.ID = r.s.id()
	phase.CreatedAt = time.Now()
	copied := *phase
	r.s.phases[phase.ID] = &copied
	return nil
}

func (r fakePhaseRepo) GetByID(_ context.Context, id int) (*models.Phase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	phase, ok := r.s.phases[id]
	if !ok {
		return nil, repositories.ErrPhaseNotFound
	}
	copied := *phase
	return &copied, nil
}

func (r fakePhaseRepo) GetLatestByTournament(_ context.Context, tournamentID int) (*models.Phase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Phase
	for _, phase := range r.s.phases {
		if phase.TournamentID != tournamentID {
			continue
		}
		if latest == nil || phase.ID > latest.ID {
			latest = phase
		}
	}
	if latest == nil {
		return nil, repositories.ErrPhaseNotFound
	}
	copied := *latest
	return &copied, nil
}

// DeleteByTournament mimics ON DELETE CASCADE down to points.
func (r fakePhaseRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, phase := range r.s.phases {
		if phase.TournamentID == tournamentID {
			delete(r.s.phases, id)
		}
	}
	for id, match := range r.s.matches {
		if match.TournamentID != tournamentID {
			continue
		}
		delete(r.s.matches, id)
		delete(r.s.slots, id)
		delete(r.s.pairs, id)
		delete(r.s.scores, id)
		kept := r.s.points[:0]
		for _, point := range r.s.points {
			if point.MatchID != id {
				kept = append(kept, point)
			}
		}
		r.s.points = kept
	}
	return nil
}

// --- MatchRepository ---

type fakeMatchRepo struct{ s *fakeStore }

func (r fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	match.ID = r.s.id()
	match.CreatedAt = time.Now()
	copied := *match
	r.s.matches[match.ID] = &copied
	return nil
}

func (r fakeMatchRepo) GetByID(_ context.Context, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	match, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r fakeMatchRepo) list(filter func(*models.Match) bool) []*models.Match {
	out := make([]*models.Match, 0)
	for _, match := range r.s.matches {
		if filter(match) {
			copied := *match
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out
}

func (r fakeMatchRepo) ListByTournament(_ context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(m *models.Match) bool {
		return m.TournamentID == tournamentID && (status == nil || m.Status == *status)
	}), nil
}

func (r fakeMatchRepo) ListByPhase(_ context.Context, phaseID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(m *models.Match) bool { return m.PhaseID == phaseID }), nil
}

func (r fakeMatchRepo) ListChildren(_ context.Context, parentMatchID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(m *models.Match) bool {
		return m.ParentMatchID != nil && *m.ParentMatchID == parentMatchID
	}), nil
}

func (r fakeMatchRepo) mutate(id int, fn func(*models.Match)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	match, ok := r.s.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	fn(match)
	return nil
}

func (r fakeMatchRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus) error {
	return r.mutate(id, func(m *models.Match) { m.Status = status })
}

func (r fakeMatchRepo) UpdateNextMatchID(_ context.Context, _ repositories.SQLExecutor, id int, nextMatchID *int) error {
	return r.mutate(id, func(m *models.Match) { m.NextMatchID = nextMatchID })
}

func (r fakeMatchRepo) UpdateWinnerSources(_ context.Context, _ repositories.SQLExecutor, id int, sourceA, sourceB *int) error {
	return r.mutate(id, func(m *models.Match) {
		m.WinnerSourceMatchA = sourceA
		m.WinnerSourceMatchB = sourceB
	})
}

func (r fakeMatchRepo) UpdateAssignment(_ context.Context, _ repositories.SQLExecutor, id int, umpireID *int, court *string) error {
	return r.mutate(id, func(m *models.Match) {
		m.UmpireID = umpireID
		if court != nil {
			m.Court = court
		}
	})
}

func (r fakeMatchRepo) BumpVersion(_ context.Context, _ repositories.SQLExecutor, id, expectedVersion int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	match, ok := r.s.matches[id]
	if !ok {
		return false, repositories.ErrMatchNotFound
	}
	if match.Version != expectedVersion {
		return false, nil
	}
	match.Version++
	return true, nil
}

// --- SlotRepository ---

type fakeSlotRepo struct{ s *fakeStore }

func (r fakeSlotRepo) Create(_ context.Context, _ repositories.SQLExecutor, slot *models.MatchSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	slot.ID = r.s.id()
	copied := *slot
	r.s.slots[slot.MatchID] = append(r.s.slots[slot.MatchID], &copied)
	return nil
}

func (r fakeSlotRepo) ListByMatch(_ context.Context, matchID int) ([]*models.MatchSlot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.MatchSlot, 0, len(r.s.slots[matchID]))
	for _, slot := range r.s.slots[matchID] {
		copied := *slot
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

// --- MatchPairRepository ---

type fakePairRepo struct{ s *fakeStore }

func (r fakePairRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, pair *models.MatchPair) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	byNumber, ok := r.s.pairs[pair.MatchID]
	if !ok {
		byNumber = make(map[int]*models.MatchPair)
		r.s.pairs[pair.MatchID] = byNumber
	}
	if existing, ok := byNumber[pair.PairNumber]; ok {
		pair.ID = existing.ID
	} else {
		pair.ID = r.s.id()
	}
	copied := *pair
	byNumber[pair.PairNumber] = &copied
	return nil
}

func (r fakePairRepo) GetByMatchAndNumber(_ context.Context, matchID, pairNumber int) (*models.MatchPair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pair, ok := r.s.pairs[matchID][pairNumber]
	if !ok {
		return nil, repositories.ErrMatchPairNotFound
	}
	copied := *pair
	return &copied, nil
}

func (r fakePairRepo) ListByMatch(_ context.Context, matchID int) ([]*models.MatchPair, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.MatchPair, 0, len(r.s.pairs[matchID]))
	for _, pair := range r.s.pairs[matchID] {
		copied := *pair
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PairNumber < out[j].PairNumber })
	return out, nil
}

// --- ScoreRepository ---

type fakeScoreRepo struct{ s *fakeStore }

func (r fakeScoreRepo) GetByMatch(_ context.Context, matchID int) (*models.MatchScore, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	score, ok := r.s.scores[matchID]
	if !ok {
		return nil, repositories.ErrMatchScoreNotFound
	}
	copied := *score
	return &copied, nil
}

func (r fakeScoreRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, score *models.MatchScore) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	copied := *score
	r.s.scores[score.MatchID] = &copied
	return nil
}

// --- PointRepository ---

type fakePointRepo struct{ s *fakeStore }

func (r fakePointRepo) Insert(_ context.Context, _ repositories.SQLExecutor, point *models.Point) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.points {
		if existing.MatchID == point.MatchID && existing.ClientUUID == point.ClientUUID {
			return repositories.ErrPointDuplicate
		}
	}
	point.ID = r.s.id()
	point.CreatedAt = time.Now()
	copied := *point
	r.s.points = append(r.s.points, &copied)
	return nil
}

func (r fakePointRepo) ListActiveByMatch(_ context.Context, matchID int) ([]*models.Point, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Point, 0)
	for _, point := range r.s.points {
		if point.MatchID == matchID && !point.Undone {
			copied := *point
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r fakePointRepo) GetByClientUUID(_ context.Context, matchID int, clientUUID string) (*models.Point, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, point := range r.s.points {
		if point.MatchID == matchID && point.ClientUUID == clientUUID {
			copied := *point
			return &copied, nil
		}
	}
	return nil, repositories.ErrPointNotFound
}

func (r fakePointRepo) MarkUndone(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, point := range r.s.points {
		if point.ID == id {
			point.Undone = true
			return nil
		}
	}
	return repositories.ErrPointNotFound
}
