package relaunch

import "fmt"

// State is the coordinator's view of the application process.
type State int

const (
	StateNoProcess State = iota
	StateRunning
	StateTerminating
)

func (s State) String() string {
	switch s {
	case StateNoProcess:
		return "no_process"
	case StateRunning:
		return "running"
	case StateTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
