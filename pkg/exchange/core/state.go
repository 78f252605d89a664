package core

// State is one of the four states of the exchange state machine
// (spec §4.4).
type State int

const (
	// Orphaned is the initial state: the local node is not a member
	// of any cluster.
	Orphaned State = iota

	// Exchanging: the cluster has changed since the last commit and a
	// new data exchange is in progress.
	Exchanging

	// ReadyToCommit: this node has sent its data to every peer,
	// received an ack from every peer, and received every peer's data.
	ReadyToCommit

	// Rest: the exchange is complete and committed.
	Rest
)

func (s State) String() string {
	switch s {
	case Orphaned:
		return "orphaned"
	case Exchanging:
		return "exchanging"
	case ReadyToCommit:
		return "ready-to-commit"
	case Rest:
		return "rest"
	default:
		return "unknown"
	}
}
