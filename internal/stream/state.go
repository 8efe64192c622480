package stream

// State is the lifecycle position of one table's streaming loop.
type State int

const (
	StateIdle State = iota
	StateBootstrapping
	StateRunning
	StateTicking
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBootstrapping:
		return "bootstrapping"
	case StateRunning:
		return "running"
	case StateTicking:
		return "ticking"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
