package color

import "errors"

// Sentinel errors for calibration tables.
var (
	ErrMissingColor   = errors.New("missing calibrated color")
	ErrInvalidRange   = errors.New("invalid color range")
	ErrDuplicateColor = errors.New("duplicate color")
	ErrLoadTable      = errors.New("load color table failed")
)
