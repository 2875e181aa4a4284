// Package matching picks which two verified submissions a judge compares next
// and remembers the matches it hands out.
package matching

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okian/arena/internal/adapters/repository"
	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// ErrNoMatch means fewer than two teams are eligible.
var ErrNoMatch = errors.New("no matches available")

// Source provides the state a selection is computed from.
type Source interface {
	Snapshot(ctx context.Context) repository.Snapshot
}

// Selector issues matches from the current verification state.
type Selector struct {
	src       Source
	book      Book
	allowSelf bool
	newID     func() string
	now       func() time.Time
	logger    logger.Logger
}

// NewSelector constructs a Selector reading from src.
func NewSelector(src Source, opts ...Option) *Selector {
	s := &Selector{
		src:   src,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.book == nil {
		s.book = NewInMemoryBook()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("selector")
	}
	return s
}

// Book returns the book issued matches are recorded in.
func (s *Selector) Book() Book { return s.book }

// NextMatch picks a pair for judgeID and records it as outstanding.
func (s *Selector) NextMatch(ctx context.Context, judgeID string) (model.Match, error) {
	if err := ctx.Err(); err != nil {
		return model.Match{}, err
	}

	snap := s.src.Snapshot(ctx)
	exclude := judgeID
	if s.allowSelf {
		exclude = ""
	}
	first, second, ok := Choose(snap, judgeID, exclude)
	if !ok {
		metrics.RecordMatchEmpty()
		s.logger.Debug(ctx, "no eligible pair", logger.String("judge_id", judgeID))
		return model.Match{}, ErrNoMatch
	}

	m := model.Match{
		ID:       s.newID(),
		JudgeID:  judgeID,
		First:    first,
		Second:   second,
		IssuedAt: s.now().UTC(),
	}
	booked, evicted := s.book.Issue(ctx, m)
	if evicted > 0 {
		s.logger.Debug(ctx, "evicted outstanding matches", logger.Int("count", evicted))
	}
	if booked.ID != m.ID {
		s.logger.Debug(ctx, "reissued outstanding match",
			logger.String("match_id", booked.ID),
			logger.String("judge_id", judgeID),
		)
		return booked, nil
	}
	metrics.RecordMatchIssued()

	s.logger.Debug(ctx, "match issued",
		logger.String("match_id", m.ID),
		logger.String("judge_id", judgeID),
		logger.String("first", first.Submission.ID),
		logger.String("second", second.Submission.ID),
	)
	return m, nil
}

// candidate is a team's sole verified submission.
type candidate struct {
	sub      model.Submission
	teamName string
}

// pairStats is what the selection orders pairs by.
type pairStats struct {
	judged  int   // times this judge voted on the pair
	lastSeq int64 // latest global comparison of the pair, 0 if never
}

// Choose returns the pair the judge should see next. Teams with zero or
// several verified submissions are skipped, as is excludeTeam.
//
// Pairs are ordered by how often judgeID already judged them, then by how
// long ago anyone judged them, then by submission id.
func Choose(snap repository.Snapshot, judgeID, excludeTeam string) (model.MatchSide, model.MatchSide, bool) {
	cands := make([]candidate, 0, len(snap.Teams))
	for _, t := range snap.Teams {
		if t.ID == excludeTeam {
			continue
		}
		if v := snap.Verified[t.ID]; len(v) == 1 {
			cands = append(cands, candidate{sub: v[0], teamName: t.Name})
		}
	}
	if len(cands) < 2 {
		return model.MatchSide{}, model.MatchSide{}, false
	}

	stats := make(map[[2]string]pairStats)
	for _, c := range snap.Comparisons {
		key := c.Pair()
		st := stats[key]
		if c.JudgeID == judgeID {
			st.judged++
		}
		if c.Seq > st.lastSeq {
			st.lastSeq = c.Seq
		}
		stats[key] = st
	}

	var (
		best     [2]int
		bestKey  [2]string
		bestStat pairStats
		found    bool
	)
	for i := 0; i < len(cands); i++ {
		for j := i + 1; j < len(cands); j++ {
			a, b := cands[i].sub, cands[j].sub
			if a.TeamID == b.TeamID {
				continue
			}
			key := model.PairKey(a.ID, b.ID)
			st := stats[key]
			if !found || better(st, key, bestStat, bestKey) {
				best, bestKey, bestStat, found = [2]int{i, j}, key, st, true
			}
		}
	}
	if !found {
		return model.MatchSide{}, model.MatchSide{}, false
	}

	x, y := cands[best[0]], cands[best[1]]
	if y.sub.ID < x.sub.ID {
		x, y = y, x
	}
	return model.MatchSide{Submission: x.sub, TeamName: x.teamName},
		model.MatchSide{Submission: y.sub, TeamName: y.teamName},
		true
}

func better(st pairStats, key [2]string, best pairStats, bestKey [2]string) bool {
	if st.judged != best.judged {
		return st.judged < best.judged
	}
	if st.lastSeq != best.lastSeq {
		return st.lastSeq < best.lastSeq
	}
	if key[0] != bestKey[0] {
		return key[0] < bestKey[0]
	}
	return key[1] < bestKey[1]
}
