package bus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/falcongrasp/internal/domain/model"
)

// Topic families.
const (
	FamilyControl = "control"
	FamilyCamera  = "camera"
	FamilyTeam    = "team"
	FamilyScore   = "score"
)

// Topics builds the namespace-rooted topic names.
type Topics struct {
	ns string
}

// NewTopics returns the topic builder for namespace ns, e.g. "FalconGrasp".
func NewTopics(ns string) Topics {
	return Topics{ns: strings.Trim(ns, "/")}
}

// Namespace returns the root segment.
func (t Topics) Namespace() string { return t.ns }

// Camera returns the telemetry topic of camera i.
func (t Topics) Camera(i int) string { return t.ns + "/camera/" + strconv.Itoa(i) }

// TeamName returns the team name telemetry topic.
func (t Topics) TeamName() string { return t.ns + "/TeamName/Pub" }

// Score returns the total score telemetry topic.
func (t Topics) Score() string { return t.ns + "/score/Pub" }

// Control returns the command topic of kind.
func (t Topics) Control(kind model.ControlKind) string { return t.ns + "/game/" + kind.String() }

// ControlTopics returns the topics of kinds, or of every kind when none are given.
func (t Topics) ControlTopics(kinds ...model.ControlKind) []string {
	if len(kinds) == 0 {
		kinds = model.ControlKinds()
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = t.Control(k)
	}
	return out
}

// DataTopics returns the team name, score and camera topics for n cameras.
func (t Topics) DataTopics(n int) []string {
	out := make([]string, 0, n+2)
	out = append(out, t.TeamName(), t.Score())
	for i := 0; i < n; i++ {
		out = append(out, t.Camera(i))
	}
	return out
}

// Family classifies a topic of this namespace.
func (t Topics) Family(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, t.ns+"/")
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	switch {
	case strings.HasPrefix(rest, "game/"):
		return FamilyControl, nil
	case strings.HasPrefix(rest, "camera/"):
		return FamilyCamera, nil
	case rest == "TeamName/Pub":
		return FamilyTeam, nil
	case rest == "score/Pub":
		return FamilyScore, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

// ParseControl decodes a control topic and payload.
func (t Topics) ParseControl(topic, payload string) (model.ControlMessage, error) {
	seg, ok := strings.CutPrefix(topic, t.ns+"/game/")
	if !ok {
		return model.ControlMessage{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	kind, err := model.ParseControlKind(seg)
	if err != nil {
		return model.ControlMessage{}, err
	}
	return model.ControlMessage{Kind: kind, Payload: payload}, nil
}

// ParseCameraIndex returns i for a "<ns>/camera/<i>" topic.
func (t Topics) ParseCameraIndex(topic string) (int, error) {
	seg, ok := strings.CutPrefix(topic, t.ns+"/camera/")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: camera index %q", ErrUnknownTopic, seg)
	}
	return i, nil
}
