package pipeline

// State is a step of the orchestrator's lifecycle:
//
//	Idle → Priming? → Reading ⇄ (Validating → Routing) → Finalizing
//	     → Notifying? → Loading? → Done
//
// Done is terminal, including after a fatal error.
type State int32

const (
	Idle State = iota
	Priming
	Reading
	Validating
	Routing
	Finalizing
	Notifying
	Loading
	Done
)

var stateNames = [...]string{
	Idle:       "idle",
	Priming:    "priming",
	Reading:    "reading",
	Validating: "validating",
	Routing:    "routing",
	Finalizing: "finalizing",
	Notifying:  "notifying",
	Loading:    "loading",
	Done:       "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
