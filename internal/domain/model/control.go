package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownControl is returned when a control topic names no known command.
var ErrUnknownControl = errors.New("unknown control kind")

// ControlKind enumerates the game-control commands carried on the bus.
type ControlKind int

// Control kinds.
const (
	ControlUnknown ControlKind = iota
	ControlStart
	ControlStop
	ControlRestart
	ControlTimer
	ControlTimerFinal
	ControlActivate
	ControlDeactivate
)

// Stop payloads.
const (
	StopNormal    = "0"
	StopImmediate = "1"
)

var controlSegments = [...]string{
	ControlUnknown:    "unknown",
	ControlStart:      "start",
	ControlStop:       "stop",
	ControlRestart:    "restart",
	ControlTimer:      "timer",
	ControlTimerFinal: "timerfinal",
	ControlActivate:   "Activate",
	ControlDeactivate: "Deactivate",
}

// String returns the topic segment of the kind, e.g. "timerfinal".
func (k ControlKind) String() string {
	if k < ControlUnknown || int(k) >= len(controlSegments) {
		return controlSegments[ControlUnknown]
	}
	return controlSegments[k]
}

// ControlKinds lists every known kind in topic order.
func ControlKinds() []ControlKind {
	return []ControlKind{
		ControlStart, ControlStop, ControlRestart, ControlTimer,
		ControlTimerFinal, ControlActivate, ControlDeactivate,
	}
}

// ParseControlKind maps a topic segment to its kind. Segments are matched
// exactly as published; Activate and Deactivate are capitalised on the wire.
func ParseControlKind(segment string) (ControlKind, error) {
	for _, k := range ControlKinds() {
		if controlSegments[k] == segment {
			return k, nil
		}
	}
	return ControlUnknown, fmt.Errorf("%w: %q", ErrUnknownControl, segment)
}

// ControlMessage is a decoded command.
type ControlMessage struct {
	Kind    ControlKind
	Payload string
}

// Seconds parses the payload of a timer command.
func (m ControlMessage) Seconds() (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(m.Payload))
	if err != nil {
		return 0, fmt.Errorf("%s payload %q: %w", m.Kind, m.Payload, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s payload %q must be positive", m.Kind, m.Payload)
	}
	return v, nil
}

// Immediate reports whether a stop asks for data topics to be dropped at once.
func (m ControlMessage) Immediate() bool {
	return m.Kind == ControlStop && strings.TrimSpace(m.Payload) == StopImmediate
}
