package matching

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/arena/internal/domain/model"
	"github.com/okian/arena/pkg/metrics"
)

// Book tracks matches that were issued to judges and not yet voted on.
type Book interface {
	// Put records an issued match, evicting the oldest entries once full.
	// Returns the number of evicted matches.
	Put(ctx context.Context, m model.Match) int
	// Issue books m unless its judge already holds an outstanding match on
	// the same two submissions at the same epochs. That match is moved to
	// the newest position and returned instead. An outdated one is replaced.
	// Returns the booked match and the number of evicted matches.
	Issue(ctx context.Context, m model.Match) (model.Match, int)
	// Get returns the outstanding match with id.
	Get(ctx context.Context, id string) (model.Match, bool)
	// Remove forgets a match once it is consumed or dead.
	Remove(ctx context.Context, id string) bool

	Size() int64
}

// issueKey identifies a judge's match on one pair of submissions.
type issueKey struct {
	judgeID string
	pair    [2]string
}

func keyOf(m model.Match) issueKey {
	return issueKey{judgeID: m.JudgeID, pair: m.Pair()}
}

// sameSides reports whether a and b show the same submissions at the same epochs.
func sameSides(a, b model.Match) bool {
	return a.First.Submission.ID == b.First.Submission.ID &&
		a.First.Submission.Epoch == b.First.Submission.Epoch &&
		a.Second.Submission.ID == b.Second.Submission.ID &&
		a.Second.Submission.Epoch == b.Second.Submission.Epoch
}

// entry is a node of the issue-order list; head is the newest match.
type entry struct {
	match      model.Match
	prev, next *entry
}

func (e *entry) reset() {
	e.match = model.Match{}
	e.prev = nil
	e.next = nil
}

// inMemoryBook keeps matches in a map plus a doubly linked list in issue
// order. Bounded mode (maxSize > 0) evicts from the tail and recycles nodes
// through a sync.Pool; unbounded mode never evicts.
type inMemoryBook struct {
	mu       sync.Mutex
	byID     map[string]*entry
	byIssue  map[issueKey]*entry
	head     *entry
	tail     *entry
	maxSize  int
	size     atomic.Int64
	nodePool sync.Pool
}

// NewInMemoryBook creates a match book with configuration options.
func NewInMemoryBook(opts ...BookOption) Book {
	b := &inMemoryBook{
		maxSize: defaultBookSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.byID = make(map[string]*entry)
	b.byIssue = make(map[issueKey]*entry)
	b.nodePool = sync.Pool{
		New: func() interface{} {
			return &entry{}
		},
	}
	return b
}

func (b *inMemoryBook) Put(_ context.Context, m model.Match) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, exists := b.byID[m.ID]; exists {
		b.forget(e)
		e.match = m
		b.byIssue[keyOf(m)] = e
		return 0
	}
	return b.insert(m)
}

func (b *inMemoryBook) Issue(_ context.Context, m model.Match) (model.Match, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e, ok := b.byIssue[keyOf(m)]; ok {
		if sameSides(e.match, m) {
			b.moveToFront(e)
			return e.match, 0
		}
		b.unlink(e)
	}
	return m, b.insert(m)
}

// insert pushes m as the newest match. Must be called with b.mu held.
func (b *inMemoryBook) insert(m model.Match) int {
	evicted := 0
	for b.maxSize > 0 && len(b.byID) >= b.maxSize {
		b.evictOldest()
		evicted++
	}

	e := b.nodePool.Get().(*entry)
	e.match = m
	e.next = b.head
	if b.head != nil {
		b.head.prev = e
	}
	b.head = e
	if b.tail == nil {
		b.tail = e
	}
	b.byID[m.ID] = e
	b.byIssue[keyOf(m)] = e
	b.size.Add(1)

	for i := 0; i < evicted; i++ {
		metrics.RecordMatchEvicted()
	}
	metrics.UpdateIssuedMatches(len(b.byID))
	return evicted
}

func (b *inMemoryBook) Get(_ context.Context, id string) (model.Match, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.byID[id]
	if !ok {
		return model.Match{}, false
	}
	return e.match, true
}

func (b *inMemoryBook) Remove(_ context.Context, id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.byID[id]
	if !ok {
		return false
	}
	b.unlink(e)
	metrics.UpdateIssuedMatches(len(b.byID))
	return true
}

// evictOldest drops the tail. Must be called with b.mu held.
func (b *inMemoryBook) evictOldest() {
	if b.tail == nil {
		return
	}
	b.unlink(b.tail)
}

// moveToFront makes e the newest entry. Must be called with b.mu held.
func (b *inMemoryBook) moveToFront(e *entry) {
	if b.head == e {
		return
	}
	b.detach(e)
	e.next = b.head
	if b.head != nil {
		b.head.prev = e
	}
	b.head = e
	if b.tail == nil {
		b.tail = e
	}
}

// detach splices e out of the list. Must be called with b.mu held.
func (b *inMemoryBook) detach(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		b.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		b.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

// forget drops e from the judge/pair index if it still owns its slot.
func (b *inMemoryBook) forget(e *entry) {
	k := keyOf(e.match)
	if b.byIssue[k] == e {
		delete(b.byIssue, k)
	}
}

// unlink removes e from the list and maps and returns it to the pool.
// Must be called with b.mu held.
func (b *inMemoryBook) unlink(e *entry) {
	b.detach(e)
	delete(b.byID, e.match.ID)
	b.forget(e)
	e.reset()
	b.nodePool.Put(e)
	b.size.Add(-1)
}

func (b *inMemoryBook) Size() int64 {
	return b.size.Load()
}
