package archive

import "errors"

// ErrArchive marks a sink that could not store a snapshot.
var ErrArchive = errors.New("archive failed")
