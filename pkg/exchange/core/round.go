package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// round is the per-cluster-key-epoch bookkeeping the state machine
// carries while Exchanging/ReadyToCommit (spec GLOSSARY: "the interval
// from a cluster-change event until the subsequent COMMIT").
//
// id is a correlation identifier stamped onto every log line touching
// this round, useful for tracing interleaved event handling across
// the timer, transport-callback and cluster-change sources (SPEC_FULL
// §2 domain stack).
type round struct {
	id         uuid.UUID
	clusterKey types.ClusterKey
	succession types.Succession
	nodes      *types.NodeStateTable

	outgoingPayload []byte

	sendTS    time.Time
	rtcSendTS time.Time
	startedAt time.Time
}

func newRound(succession types.Succession, key types.ClusterKey) *round {
	r := &round{
		id:         uuid.New(),
		clusterKey: key,
		succession: succession.Clone(),
		nodes:      types.NewNodeStateTable(),
		startedAt:  time.Now(),
	}
	r.nodes.ResetForSuccession(succession)
	return r
}

// reshape applies a new succession/key to an existing round in place,
// per §4.2's reset_for_succession: peers dropped from the succession
// are removed, new peers get defaults, retained peers have their
// round flags reset but keep their payload buffer capacity.
func (r *round) reshape(succession types.Succession, key types.ClusterKey) {
	r.id = uuid.New()
	r.clusterKey = key
	r.succession = succession.Clone()
	r.nodes.ResetForSuccession(succession)
	r.outgoingPayload = nil
	r.startedAt = time.Now()
}

func (r *round) principal() types.NodeID {
	return r.succession.Principal()
}

func (r *round) isPrincipal(self types.NodeID) bool {
	return r.principal() == self
}

// peersExcept returns every succession member other than self, the
// set every DATA/COMMIT broadcast actually targets
// (SPEC_FULL §4 supplemented feature 3: never send to self).
func (r *round) peersExcept(self types.NodeID) []types.NodeID {
	peers := make([]types.NodeID, 0, len(r.succession))
	for _, n := range r.succession {
		if n != self {
			peers = append(peers, n)
		}
	}
	return peers
}
