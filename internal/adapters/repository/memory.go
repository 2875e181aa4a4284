package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
)

// MemoryStore keeps the authoritative state in memory and writes every change
// through a Journal before applying it.
//
// Locking: per-team mutexes give each team a single-writer section. The state
// RWMutex only guards the maps and is never held while user code runs.
type MemoryStore struct {
	mu          sync.RWMutex
	teams       map[string]model.Team
	order       []string          // team ids in registration order
	names       map[string]string // name key -> team id
	subs        map[string]model.Submission
	byTeam      map[string][]string // team id -> submission ids in creation order
	comparisons []model.Comparison
	compIndex   map[string]int

	locks      sync.Map // team id -> *sync.Mutex
	registerMu sync.Mutex
	commitMu   sync.Mutex
	teamSeq    int64 // guarded by registerMu
	compSeq    int64 // guarded by commitMu

	journal Journal
	logger  logger.Logger
}

// NewMemoryStore builds a store and replays the journal into it.
func NewMemoryStore(ctx context.Context, opts ...Option) (*MemoryStore, error) {
	s := &MemoryStore{
		teams:     make(map[string]model.Team),
		names:     make(map[string]string),
		subs:      make(map[string]model.Submission),
		byTeam:    make(map[string][]string),
		compIndex: make(map[string]int),
		journal:   NopJournal{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("store")
	}

	st, err := s.journal.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	s.replay(ctx, st)

	s.logger.Info(ctx, "store ready",
		logger.Int("teams", len(s.teams)),
		logger.Int("submissions", len(s.subs)),
		logger.Int("comparisons", len(s.comparisons)),
	)
	return s, nil
}

func (s *MemoryStore) replay(ctx context.Context, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range st.Teams {
		s.insertTeam(t)
		if t.Seq > s.teamSeq {
			s.teamSeq = t.Seq
		}
	}
	for _, sub := range st.Submissions {
		if _, ok := s.teams[sub.TeamID]; !ok {
			s.logger.Warn(ctx, "skipping submission of unknown team",
				logger.String("submission_id", sub.ID),
				logger.String("team_id", sub.TeamID),
			)
			continue
		}
		s.insertSubmission(sub)
	}
	for _, c := range st.Comparisons {
		s.compIndex[c.ID] = len(s.comparisons)
		s.comparisons = append(s.comparisons, c)
		if c.Seq > s.compSeq {
			s.compSeq = c.Seq
		}
	}
}

func (s *MemoryStore) insertTeam(t model.Team) {
	s.teams[t.ID] = t
	s.names[nameKey(t.Name)] = t.ID
	s.order = append(s.order, t.ID)
}

func (s *MemoryStore) insertSubmission(sub model.Submission) {
	s.subs[sub.ID] = sub
	s.byTeam[sub.TeamID] = append(s.byTeam[sub.TeamID], sub.ID)
}

func (s *MemoryStore) teamLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *MemoryStore) CreateTeam(ctx context.Context, t model.Team) (model.Team, error) {
	key := nameKey(t.Name)
	if key == "" || t.ID == "" {
		return model.Team{}, fmt.Errorf("team id and name are required")
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	s.mu.RLock()
	_, nameTaken := s.names[key]
	_, idTaken := s.teams[t.ID]
	s.mu.RUnlock()
	if nameTaken {
		return model.Team{}, ErrTeamExists
	}
	if idTaken {
		return model.Team{}, fmt.Errorf("team id %s: %w", t.ID, ErrTeamExists)
	}

	t.Seq = s.teamSeq + 1
	if err := s.journal.SaveTeam(ctx, t); err != nil {
		return model.Team{}, err
	}
	s.teamSeq = t.Seq

	s.mu.Lock()
	s.insertTeam(t)
	s.mu.Unlock()
	return t, nil
}

func (s *MemoryStore) TeamByID(_ context.Context, id string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, ErrTeamNotFound
	}
	return t, nil
}

func (s *MemoryStore) TeamByName(_ context.Context, name string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[nameKey(name)]
	if !ok {
		return model.Team{}, ErrTeamNotFound
	}
	return s.teams[id], nil
}

func (s *MemoryStore) Teams(context.Context) []model.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Team, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.teams[id])
	}
	return out
}

// CreateSubmission stores sub as pending with a zero epoch.
func (s *MemoryStore) CreateSubmission(ctx context.Context, sub model.Submission) (model.Submission, error) {
	if sub.ID == "" {
		return model.Submission{}, fmt.Errorf("submission id is required")
	}
	sub.Status = model.StatusPending
	sub.Epoch = 0

	lock := s.teamLock(sub.TeamID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	_, teamOK := s.teams[sub.TeamID]
	_, dup := s.subs[sub.ID]
	s.mu.RUnlock()
	if !teamOK {
		return model.Submission{}, ErrTeamNotFound
	}
	if dup {
		return model.Submission{}, fmt.Errorf("submission %s already exists", sub.ID)
	}

	if err := s.journal.SaveSubmission(ctx, sub); err != nil {
		return model.Submission{}, err
	}

	s.mu.Lock()
	s.insertSubmission(sub)
	s.mu.Unlock()
	return sub, nil
}

func (s *MemoryStore) Submission(_ context.Context, id string) (model.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return model.Submission{}, ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *MemoryStore) ListByTeam(_ context.Context, teamID string) []model.Submission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listByTeamLocked(teamID)
}

func (s *MemoryStore) listByTeamLocked(teamID string) []model.Submission {
	ids := s.byTeam[teamID]
	out := make([]model.Submission, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// LatestVerified scans newest first so a broken invariant still yields the
// most recent entry.
func (s *MemoryStore) LatestVerified(_ context.Context, teamID string) (model.Submission, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byTeam[teamID]
	for i := len(ids) - 1; i >= 0; i-- {
		if sub := s.subs[ids[i]]; sub.Verified() {
			return sub, true
		}
	}
	return model.Submission{}, false
}

func (s *MemoryStore) Comparison(_ context.Context, id string) (model.Comparison, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.compIndex[id]
	if !ok {
		return model.Comparison{}, ErrComparisonNotFound
	}
	return s.comparisons[i], nil
}

func (s *MemoryStore) Snapshot(context.Context) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Teams:    make([]model.Team, 0, len(s.order)),
		Verified: make(map[string][]model.Submission),
		// The log is append-only, so a capped view never observes later writes.
		Comparisons: s.comparisons[:len(s.comparisons):len(s.comparisons)],
	}
	for _, id := range s.order {
		snap.Teams = append(snap.Teams, s.teams[id])
		for _, sid := range s.byTeam[id] {
			if sub := s.subs[sid]; sub.Verified() {
				snap.Verified[id] = append(snap.Verified[id], sub)
			}
		}
	}
	return snap
}

func (s *MemoryStore) Counts(context.Context) Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := Counts{
		Teams:       len(s.teams),
		Submissions: len(s.subs),
		Comparisons: len(s.comparisons),
	}
	for _, ids := range s.byTeam {
		for _, id := range ids {
			if s.subs[id].Verified() {
				c.VerifiedTeams++
				break
			}
		}
	}
	return c
}

// Update locks teamIDs in sorted order, runs fn, then journals and applies
// whatever fn staged. Comparison sequence numbers are assigned at commit.
func (s *MemoryStore) Update(ctx context.Context, teamIDs []string, fn func(tx Tx) error) error {
	ids := slices.Clone(teamIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	for _, id := range ids {
		s.teamLock(id).Lock()
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			s.teamLock(ids[i]).Unlock()
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := newMemTx(s, ids)
	if err := fn(tx); err != nil {
		return err
	}
	change := tx.change()
	if change.Empty() {
		return nil
	}

	// Appends are serialized so the log order matches sequence order.
	if len(change.Comparisons) > 0 {
		s.commitMu.Lock()
		defer s.commitMu.Unlock()
		for i := range change.Comparisons {
			change.Comparisons[i].Seq = s.compSeq + int64(i) + 1
		}
	}

	if err := s.journal.Commit(ctx, change); err != nil {
		s.logger.Error(ctx, "journal commit failed", logger.Error(err))
		return err
	}
	s.compSeq += int64(len(change.Comparisons))

	s.mu.Lock()
	for _, sub := range change.Submissions {
		s.subs[sub.ID] = sub
	}
	for _, c := range change.Comparisons {
		s.compIndex[c.ID] = len(s.comparisons)
		s.comparisons = append(s.comparisons, c)
	}
	s.mu.Unlock()

	s.logger.Debug(ctx, "update committed",
		logger.Int("submissions", len(change.Submissions)),
		logger.Int("comparisons", len(change.Comparisons)),
	)
	return nil
}

// memTx overlays staged submission changes on the committed state.
type memTx struct {
	s           *MemoryStore
	locked      map[string]struct{}
	staged      map[string]model.Submission
	stagedOrder []string
	comps       []model.Comparison
	compIDs     map[string]struct{}
}

func newMemTx(s *MemoryStore, teamIDs []string) *memTx {
	locked := make(map[string]struct{}, len(teamIDs))
	for _, id := range teamIDs {
		locked[id] = struct{}{}
	}
	return &memTx{
		s:       s,
		locked:  locked,
		staged:  make(map[string]model.Submission),
		compIDs: make(map[string]struct{}),
	}
}

func (t *memTx) Submission(id string) (model.Submission, bool) {
	if sub, ok := t.staged[id]; ok {
		return sub, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	sub, ok := t.s.subs[id]
	return sub, ok
}

func (t *memTx) ListByTeam(teamID string) []model.Submission {
	t.s.mu.RLock()
	out := t.s.listByTeamLocked(teamID)
	t.s.mu.RUnlock()
	for i, sub := range out {
		if staged, ok := t.staged[sub.ID]; ok {
			out[i] = staged
		}
	}
	return out
}

func (t *memTx) SetStatus(id string, status model.Status) (model.Submission, error) {
	if !status.Valid() {
		return model.Submission{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	sub, ok := t.Submission(id)
	if !ok {
		return model.Submission{}, ErrSubmissionNotFound
	}
	if _, ok := t.locked[sub.TeamID]; !ok {
		return model.Submission{}, fmt.Errorf("team %s: %w", sub.TeamID, ErrTeamNotLocked)
	}
	if sub.Status == status {
		return sub, nil
	}
	if status == model.StatusVerified {
		sub.Epoch++
	}
	sub.Status = status
	if _, seen := t.staged[id]; !seen {
		t.stagedOrder = append(t.stagedOrder, id)
	}
	t.staged[id] = sub
	return sub, nil
}

func (t *memTx) HasComparison(id string) bool {
	if _, ok := t.compIDs[id]; ok {
		return true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	_, ok := t.s.compIndex[id]
	return ok
}

func (t *memTx) AppendComparison(c model.Comparison) (model.Comparison, error) {
	if c.ID == "" {
		return model.Comparison{}, fmt.Errorf("comparison id is required")
	}
	if t.HasComparison(c.ID) {
		return model.Comparison{}, ErrDuplicateComparison
	}
	for _, team := range []string{c.WinnerTeamID, c.LoserTeamID} {
		if _, ok := t.locked[team]; !ok {
			return model.Comparison{}, fmt.Errorf("team %s: %w", team, ErrTeamNotLocked)
		}
	}
	t.comps = append(t.comps, c)
	t.compIDs[c.ID] = struct{}{}
	return c, nil
}

func (t *memTx) change() Change {
	ch := Change{Comparisons: t.comps}
	for _, id := range t.stagedOrder {
		ch.Submissions = append(ch.Submissions, t.staged[id])
	}
	return ch
}
