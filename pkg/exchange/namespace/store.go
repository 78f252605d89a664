// Package namespace models the local namespace storage collaborator
// referenced in spec §6: read here to build outgoing payloads, written
// by the commit engine with the agreed per-member partition versions.
// Production namespace storage lives outside this module; this package
// ships only the reference/in-memory implementation used to exercise
// the protocol end to end.
package namespace

import (
	"sync"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// Namespace is one locally configured namespace. Partitions holds this
// node's own partition versions, scanned to build outgoing payloads.
// ClusterSize/ClusterSuccession/ClusterVersions are the committed
// succession and per-member partition versions, written only by the
// commit engine (spec §4.5).
type Namespace struct {
	Name string

	mu         sync.RWMutex
	partitions [types.MaxPartitions]types.Vinfo

	clusterSize       int
	clusterSuccession []types.NodeID
	clusterVersions   [][types.MaxPartitions]types.Vinfo
}

// NewNamespace creates an empty, locally configured namespace.
func NewNamespace(name string) *Namespace {
	return &Namespace{Name: name}
}

// SetPartitionVersion sets this node's own version for pid. Intended
// for callers simulating storage state in tests; production storage
// would own this mutation path.
func (n *Namespace) SetPartitionVersion(pid types.PartitionID, v types.Vinfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitions[pid] = v
}

// PartitionVersion returns this node's own version for pid.
func (n *Namespace) PartitionVersion(pid types.PartitionID) types.Vinfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.partitions[pid]
}

// Snapshot returns a frozen copy of this node's own partition table,
// used to build the outgoing payload for a round (§4.4: "freezing the
// local partition version snapshot used in this round").
func (n *Namespace) Snapshot() [types.MaxPartitions]types.Vinfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.partitions
}

// ResetCommitted zeroes the committed succession and per-member
// version tables ahead of a fresh commit (§4.5 step 1).
func (n *Namespace) ResetCommitted() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clusterSize = 0
	n.clusterSuccession = nil
	n.clusterVersions = nil
}

// EnsureMember appends node as the next committed succession slot and
// increments cluster_size, unless node is already a member, in which
// case it does nothing. The commit engine calls it once per namespace
// block (§4.5 step 2: "append n ... then increment
// ns.cluster_size", done before any vinfo is examined, so a namespace
// block with zero vinfos (e.g. a node holding no partitions yet)
// still joins the committed succession).
func (n *Namespace) EnsureMember(node types.NodeID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ensureMemberLocked(node)
}

func (n *Namespace) ensureMemberLocked(node types.NodeID) int {
	if slot := n.indexOfLocked(node); slot >= 0 {
		return slot
	}
	slot := n.clusterSize
	n.clusterSuccession = append(n.clusterSuccession, node)
	n.clusterVersions = append(n.clusterVersions, [types.MaxPartitions]types.Vinfo{})
	n.clusterSize++
	return slot
}

// SetVersions records vinfo for the given pids at node's committed
// slot, ensuring node is a member first (§4.5 step 2's per-vinfo
// loop, run after the unconditional append above).
func (n *Namespace) SetVersions(node types.NodeID, pids []types.PartitionID, vinfo types.Vinfo) {
	n.mu.Lock()
	defer n.mu.Unlock()

	slot := n.ensureMemberLocked(node)
	for _, pid := range pids {
		n.clusterVersions[slot][pid] = vinfo
	}
}

func (n *Namespace) indexOfLocked(node types.NodeID) int {
	for i, m := range n.clusterSuccession {
		if m == node {
			return i
		}
	}
	return -1
}

func (n *Namespace) ClusterSize() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.clusterSize
}

func (n *Namespace) ClusterSuccession() []types.NodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]types.NodeID, len(n.clusterSuccession))
	copy(out, n.clusterSuccession)
	return out
}

func (n *Namespace) ClusterVersion(slot int, pid types.PartitionID) types.Vinfo {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.clusterVersions[slot][pid]
}

// Store iterates the locally configured namespaces (spec §6).
type Store interface {
	Namespaces() []*Namespace
	Lookup(name string) (*Namespace, bool)
}

// InMemoryStore is the reference Store used by this module's own
// tests and examples.
type InMemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
	order      []string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{namespaces: make(map[string]*Namespace)}
}

// Configure adds a namespace to the locally configured set. Adding a
// namespace after the store has already been in use supports the
// rolling namespace addition behavior assumed by spec §3.
func (s *InMemoryStore) Configure(name string) *Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.namespaces[name]; ok {
		return ns
	}
	ns := NewNamespace(name)
	s.namespaces[name] = ns
	s.order = append(s.order, name)
	return ns
}

func (s *InMemoryStore) Namespaces() []*Namespace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Namespace, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.namespaces[name])
	}
	return out
}

func (s *InMemoryStore) Lookup(name string) (*Namespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[name]
	return ns, ok
}
