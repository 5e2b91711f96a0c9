package export

import "github.com/okian/sailtrack/pkg/logger"

// Option applies a configuration option to the Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(l logger.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}
