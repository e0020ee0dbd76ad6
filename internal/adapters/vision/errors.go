package vision

import "errors"

// Sentinel errors for frame sources.
var (
	ErrSourceOpen = errors.New("cannot open frame source")
	ErrSourceLost = errors.New("frame source stopped delivering")
	ErrEmptyFrame = errors.New("empty frame")
)
