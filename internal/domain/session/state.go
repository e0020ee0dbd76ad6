package session

// State is a Session Orchestrator state.
type State int

// Orchestrator states.
const (
	StateAuthenticating State = iota
	StatePollingInit
	StatePollingStart
	StatePlaying
	StateAwaitingSubmit
	StateSubmitting
	StateCancelled
)

var stateNames = [...]string{
	StateAuthenticating: "authenticating",
	StatePollingInit:    "polling_init",
	StatePollingStart:   "polling_start",
	StatePlaying:        "playing",
	StateAwaitingSubmit: "awaiting_submit",
	StateSubmitting:     "submitting",
	StateCancelled:      "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Trigger requests a state transition.
type Trigger int

// Triggers.
const (
	TriggerAuthenticated Trigger = iota
	TriggerUnauthorized
	TriggerReady
	TriggerPlaying
	TriggerCancel
	TriggerGameStopped
	TriggerSubmit
	TriggerSubmitted
	TriggerReset
)

var triggerNames = [...]string{
	TriggerAuthenticated: "authenticated",
	TriggerUnauthorized:  "unauthorized",
	TriggerReady:         "ready",
	TriggerPlaying:       "playing",
	TriggerCancel:        "cancel",
	TriggerGameStopped:   "game_stopped",
	TriggerSubmit:        "submit",
	TriggerSubmitted:     "submitted",
	TriggerReset:         "reset",
}

func (t Trigger) String() string {
	if t < 0 || int(t) >= len(triggerNames) {
		return "unknown"
	}
	return triggerNames[t]
}

type edge struct {
	from State
	on   Trigger
}

// transitions is the complete table. A trigger fired from a state not
// listed for it leaves the machine unchanged.
var transitions = map[edge]State{
	{StateAuthenticating, TriggerAuthenticated}: StatePollingInit,
	{StatePollingInit, TriggerUnauthorized}:     StateAuthenticating,
	{StatePollingInit, TriggerReady}:            StatePollingStart,
	{StatePollingStart, TriggerPlaying}:         StatePlaying,
	{StatePollingStart, TriggerCancel}:          StateCancelled,
	{StatePlaying, TriggerCancel}:               StateCancelled,
	{StatePlaying, TriggerGameStopped}:          StateAwaitingSubmit,
	{StateAwaitingSubmit, TriggerSubmit}:        StateSubmitting,
	{StateSubmitting, TriggerSubmitted}:         StatePollingInit,
	{StateCancelled, TriggerReset}:              StatePollingInit,
}

// Next returns the state reached from s on t, and whether the edge exists.
func Next(s State, t Trigger) (State, bool) {
	to, ok := transitions[edge{s, t}]
	return to, ok
}
