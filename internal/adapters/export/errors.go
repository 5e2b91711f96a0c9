package export

import "errors"

// ErrExport marks a layer that could not be written. Files written earlier
// in the same run are left in place.
var ErrExport = errors.New("export failed")
