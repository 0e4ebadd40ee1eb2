package dispatcher

// State is the dispatcher lifecycle state.
type State uint8

const (
	// Uninstalled means Install has not completed.
	Uninstalled State = iota
	// Installed means the table is fixed and messages are dispatched.
	Installed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case Uninstalled:
		return "uninstalled"
	case Installed:
		return "installed"
	default:
		return "unknown"
	}
}
