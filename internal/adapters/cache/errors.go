package cache

import "errors"

var (
	// ErrExists is returned by Put when the file is already cached.
	ErrExists = errors.New("already cached")
	// ErrNotFound is returned by Read for an absent file.
	ErrNotFound = errors.New("not cached")
	// ErrIO wraps filesystem failures.
	ErrIO = errors.New("cache io failure")
)
