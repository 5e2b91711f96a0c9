package config

import (
	"errors"
	"fmt"
)

var (
	// ErrLoadConfig means the file or the environment could not be read.
	ErrLoadConfig = errors.New("load config failed")
	// ErrInvalidConfig means a value failed validation.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidCalendar narrows ErrInvalidConfig to the publication
	// calendar: time zone, race start, first day and slots.
	ErrInvalidCalendar = fmt.Errorf("%w: calendar", ErrInvalidConfig)
)
