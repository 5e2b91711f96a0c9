package coord

import "errors"

// ErrMalformedCoordinate is returned when text does not follow DD°MM.SS<H>.
var ErrMalformedCoordinate = errors.New("malformed coordinate")
