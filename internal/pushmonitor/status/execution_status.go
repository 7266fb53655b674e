// Package status holds the push status model: the immutable-by-convention
// snapshot of a push's progress and the state machine governing it.
package status

// ExecutionStatus is the lifecycle state of a push or of a single partition
// replica within a push.
type ExecutionStatus int

const (
	NotCreated ExecutionStatus = iota
	Started
	EndOfPushReceived
	Completed
	Error
	Archived
)

func (s ExecutionStatus) String() string {
	switch s {
	case NotCreated:
		return "NOT_CREATED"
	case Started:
		return "STARTED"
	case EndOfPushReceived:
		return "END_OF_PUSH_RECEIVED"
	case Completed:
		return "COMPLETED"
	case Error:
		return "ERROR"
	case Archived:
		return "ARCHIVED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether s is a state the push (or partition/replica)
// can never leave once entered.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case Completed, Error, Archived:
		return true
	default:
		return false
	}
}

// legalTransitions enumerates the unidirectional edges of the state
// machine. A transition not listed here, including any transition out of a
// terminal state (even to the same state), is illegal: once a push
// reaches COMPLETED or ERROR it never changes again. ARCHIVED is a
// terminal value too, but nothing transitions into it.
var legalTransitions = map[ExecutionStatus]map[ExecutionStatus]bool{
	NotCreated:        {Started: true},
	Started:           {EndOfPushReceived: true, Completed: true, Error: true},
	EndOfPushReceived: {Completed: true, Error: true},
	Completed:         {},
	Error:             {},
	Archived:          {},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// of the push state machine.
func CanTransition(from, to ExecutionStatus) bool {
	if from.IsTerminal() {
		return false
	}
	return legalTransitions[from][to]
}
