package engine

// State is the engine lifecycle state.
type State int32

// Engine states.
//
//	Stopped --Initialize--> Initializing --Start--> Running
//	Running --Pause--> Paused --Resume--> Running
//	Initializing|Running|Paused --Stop--> ShuttingDown --> Stopped
const (
	StateStopped State = iota
	StateInitializing
	StateRunning
	StatePaused
	StateShuttingDown
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return "unknown"
	}
}

// Active reports whether the update loop is alive in this state.
func (s State) Active() bool {
	return s == StateRunning || s == StatePaused
}
