package types

// PayloadBuffer is a heap-owned, capacity-retained buffer holding a
// peer's most recently received namespaces payload. Capacity grows by
// rounding up to the next 1 KiB multiple and is kept across rounds to
// avoid reallocation churn during a storm of cluster changes (§3, §9).
type PayloadBuffer struct {
	buf  []byte
	size int
}

const payloadBufferGranularity = 1024

func roundUpToGranularity(n int) int {
	if n <= 0 {
		return 0
	}
	return ((n + payloadBufferGranularity - 1) / payloadBufferGranularity) * payloadBufferGranularity
}

// Reset clears the logical size but keeps the backing array and its
// capacity, per the reset_for_succession contract (§4.2).
func (p *PayloadBuffer) Reset() {
	p.size = 0
}

// Set copies data into the buffer, growing the backing array (rounded
// to the next 1 KiB multiple) only if it is not already large enough.
func (p *PayloadBuffer) Set(data []byte) {
	if cap(p.buf) < len(data) {
		p.buf = make([]byte, roundUpToGranularity(len(data)))
	}
	p.buf = p.buf[:cap(p.buf)]
	copy(p.buf, data)
	p.size = len(data)
}

// Bytes returns the logically valid slice of the buffer.
func (p *PayloadBuffer) Bytes() []byte {
	if p.size == 0 {
		return nil
	}
	return p.buf[:p.size]
}

func (p *PayloadBuffer) Size() int {
	return p.size
}

// PeerState is the per-peer progress record held for every member of
// the current succession (§3).
type PeerState struct {
	// SendAcked is set once this node's outgoing DATA has been acked
	// by the peer.
	SendAcked bool

	// Received is set once a validated DATA payload has been buffered
	// from the peer in this round.
	Received bool

	// IsReadyToCommit is meaningful only at the principal: set once the
	// peer's READY_TO_COMMIT has arrived.
	IsReadyToCommit bool

	// Payload holds the peer's most recently received namespaces
	// payload, reused across rounds.
	Payload PayloadBuffer
}

func newPeerState() *PeerState {
	return &PeerState{}
}

// resetForRound clears per-round progress flags and the logical
// payload size, keeping the backing buffer allocation (§4.2).
func (s *PeerState) resetForRound() {
	s.SendAcked = false
	s.Received = false
	s.IsReadyToCommit = false
	s.Payload.Reset()
}

// NodeStateTable is the keyed mapping from peer identifier to per-peer
// state (§4.2). It holds exactly one entry per member of the current
// succession outside of transient updates (§3 invariants). It is not
// safe for concurrent use; callers serialize access themselves (in
// core, only the event-loop goroutine touches it).
type NodeStateTable struct {
	entries map[NodeID]*PeerState
}

func NewNodeStateTable() *NodeStateTable {
	return &NodeStateTable{entries: make(map[NodeID]*PeerState)}
}

// ResetForSuccession removes entries whose key is not in s, inserts
// defaults for keys in s not already present, and resets flags and
// logical size (keeping capacity) for retained entries (§4.2).
func (t *NodeStateTable) ResetForSuccession(s Succession) {
	wanted := make(map[NodeID]struct{}, len(s))
	for _, n := range s {
		wanted[n] = struct{}{}
	}

	for n := range t.entries {
		if _, ok := wanted[n]; !ok {
			delete(t.entries, n)
		}
	}

	for _, n := range s {
		if existing, ok := t.entries[n]; ok {
			existing.resetForRound()
			continue
		}
		t.entries[n] = newPeerState()
	}
}

// Get returns the state for node, and whether it was present.
func (t *NodeStateTable) Get(node NodeID) (*PeerState, bool) {
	st, ok := t.entries[node]
	return st, ok
}

// Put directly installs state for node.
func (t *NodeStateTable) Put(node NodeID, state *PeerState) {
	t.entries[node] = state
}

// Len reports how many peers are currently tracked.
func (t *NodeStateTable) Len() int {
	return len(t.entries)
}

// Members returns the tracked peer identifiers in unspecified order.
func (t *NodeStateTable) Members() []NodeID {
	members := make([]NodeID, 0, len(t.entries))
	for n := range t.entries {
		members = append(members, n)
	}
	return members
}

// FindNot is the §4.2 reducer: it returns the peers whose state fails
// predicate, used for send-unacked, not-received and
// not-ready-to-commit.
func (t *NodeStateTable) FindNot(predicate func(*PeerState) bool) []NodeID {
	var out []NodeID
	for n, st := range t.entries {
		if !predicate(st) {
			out = append(out, n)
		}
	}
	return out
}

func sendAcked(s *PeerState) bool        { return s.SendAcked }
func received(s *PeerState) bool         { return s.Received }
func readyToCommit(s *PeerState) bool    { return s.IsReadyToCommit }

// SendUnacked returns peers that have not yet acked our DATA.
func (t *NodeStateTable) SendUnacked() []NodeID { return t.FindNot(sendAcked) }

// NotReceived returns peers whose DATA has not yet been received.
func (t *NodeStateTable) NotReceived() []NodeID { return t.FindNot(received) }

// NotReadyToCommit returns peers that have not yet signalled
// READY_TO_COMMIT (meaningful at the principal only).
func (t *NodeStateTable) NotReadyToCommit() []NodeID { return t.FindNot(readyToCommit) }
