package repository

import "github.com/okian/arena/pkg/logger"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithJournal sets where store writes are persisted. Defaults to NopJournal.
func WithJournal(j Journal) Option {
	return func(s *MemoryStore) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}
