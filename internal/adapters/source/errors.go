package source

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrTransport marks a snapshot that could not be retrieved. It only ever
// affects the one identifier being fetched.
var ErrTransport = errors.New("transport failure")

// StatusError is a non-2xx answer from the snapshot host.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s: HTTP %d", ErrTransport, e.URL, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrTransport }

// NotPublished reports whether the host answered that the file does not exist.
func (e *StatusError) NotPublished() bool {
	return e.Code == http.StatusNotFound
}

// Kind classifies err for metrics labels.
func Kind(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.NotPublished():
		return "not_found"
	case errors.As(err, &se):
		return "http_status"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
