package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithRetention keeps only the n most recent snapshots. n <= 0 keeps all.
func WithRetention(n int) Option {
	return func(s *MemoryStore) {
		s.limit = n
	}
}
