package matching

import (
	"time"

	"github.com/okian/arena/pkg/logger"
)

const defaultBookSize = 10_000

// BookOption applies a configuration option to the in-memory match book.
type BookOption func(*inMemoryBook)

// WithMaxSize sets how many outstanding matches are kept.
// If maxSize > 0: bounded mode, oldest issued match evicted first.
// If maxSize <= 0: unbounded mode.
func WithMaxSize(maxSize int) BookOption {
	return func(b *inMemoryBook) {
		b.maxSize = maxSize
	}
}

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithBook sets the book issued matches are stored in.
func WithBook(book Book) Option {
	return func(s *Selector) {
		if book != nil {
			s.book = book
		}
	}
}

// WithAllowSelfJudging lets a judge receive matches involving its own team.
func WithAllowSelfJudging(allow bool) Option {
	return func(s *Selector) {
		s.allowSelf = allow
	}
}

// WithIDGenerator overrides how match ids are minted.
func WithIDGenerator(fn func() string) Option {
	return func(s *Selector) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithClock overrides the time issued matches are stamped with.
func WithClock(fn func() time.Time) Option {
	return func(s *Selector) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithLogger sets a custom logger for the selector.
func WithLogger(l logger.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}
