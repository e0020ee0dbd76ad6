package bus

import "errors"

// Sentinel errors for the bus adapter.
var (
	ErrNotConnected   = errors.New("bus not connected")
	ErrConnectTimeout = errors.New("bus connect timed out")
	ErrTimeout        = errors.New("bus operation timed out")
	ErrBufferFull     = errors.New("offline buffer full")
	ErrUnknownTopic   = errors.New("topic outside the game namespace")
)
