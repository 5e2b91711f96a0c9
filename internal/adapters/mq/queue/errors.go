package queue

import "errors"

// ErrStopped is returned when a run ends before every task was dequeued.
var ErrStopped = errors.New("queue stopped")
