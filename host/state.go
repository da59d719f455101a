package host

import "fmt"

// State is the lifecycle state of a Controller. States only move forward.
type State int

const (
	Idle State = iota
	LoadingEngine
	LoadingManifest
	StagingFiles
	RegisteringPath
	ImportingEntryPoint
	Ready
	Failed
)

var stateNames = [...]string{
	Idle:                "idle",
	LoadingEngine:       "loading-engine",
	LoadingManifest:     "loading-manifest",
	StagingFiles:        "staging-files",
	RegisteringPath:     "registering-path",
	ImportingEntryPoint: "importing-entry-point",
	Ready:               "ready",
	Failed:              "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool {
	return s == Ready || s == Failed
}

// canAdvance allows the next boot stage, or Failed from any non-terminal state.
func canAdvance(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == Failed {
		return true
	}
	return to == from+1
}

// Transition is delivered to observers for every state change.
type Transition struct {
	From State
	To   State
	// Err is set when To is Failed.
	Err error
}
