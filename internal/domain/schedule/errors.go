package schedule

import "errors"

// ErrInvalidCalendar is returned when a Calendar cannot drive a Resolver.
var ErrInvalidCalendar = errors.New("invalid calendar")
