package xlsx

import "errors"

var (
	// ErrDecode marks bytes that are not a readable workbook.
	ErrDecode = errors.New("workbook decode failed")
	// ErrEncode marks a grid that could not be written.
	ErrEncode = errors.New("workbook encode failed")
)
