// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
)

// DetectionEvent is one per-frame, per-color classifier verdict for a camera.
type DetectionEvent struct {
	CameraIndex int
	Color       string
	Confirmed   bool
	RawArea     float64
}

// TelemetryMessage is sensor data carried on a data topic. Payloads are
// decimal strings except for the team name.
type TelemetryMessage struct {
	Topic   string
	Payload string
}

// Int parses the payload as a decimal integer.
func (m TelemetryMessage) Int() (int, error) {
	return strconv.Atoi(strings.TrimSpace(m.Payload))
}
