package notify

import "errors"

// ErrNotify marks a message that could not be delivered to NATS.
var ErrNotify = errors.New("notify failed")
