package snapshot

import "errors"

// ErrSchemaViolation is returned when a grid does not have the expected
// layout. The whole snapshot is skipped.
var ErrSchemaViolation = errors.New("schema violation")
