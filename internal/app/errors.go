package app

import "errors"

var (
	// ErrRunInProgress is returned by TryRun while another run holds the lock.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrNoSnapshots means no snapshot could be parsed, so nothing was exported.
	ErrNoSnapshots = errors.New("no snapshot parsed")
	// ErrUnknownSnapshot is returned for identifiers that are not loaded.
	ErrUnknownSnapshot = errors.New("unknown snapshot")
	// ErrFetch wraps the failure of a single requested snapshot.
	ErrFetch = errors.New("snapshot fetch failed")
)
