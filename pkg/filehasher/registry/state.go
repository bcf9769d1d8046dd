package registry

// State is the completion state of the current session.
//
//	Idle → Scanning → Draining → HashingRemainder → Done
//
// Scanning lasts until the producer reports AdditionFinished. Draining
// flushes the pending buffer. HashingRemainder waits for the hasher to
// report HashingFinished. Done means both producers have stopped.
type State int

const (
	Idle State = iota
	Scanning
	Draining
	HashingRemainder
	Done
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Draining:
		return "draining"
	case HashingRemainder:
		return "hashing_remainder"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Active reports whether a session is between Begin and Done.
func (s State) Active() bool {
	return s == Scanning || s == Draining || s == HashingRemainder
}
