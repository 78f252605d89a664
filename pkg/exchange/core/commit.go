package core

import (
	"fmt"

	"github.com/jabolina/go-exchange/pkg/exchange/codec"
	"github.com/jabolina/go-exchange/pkg/exchange/namespace"
)

// runCommitEngine implements spec §4.5: on receipt of COMMIT from the
// principal while in ReadyToCommit, reshape every configured
// namespace's succession and per-partition version tables from the
// round's buffered peer payloads, snapshot the committed view, and
// publish to the balancer. The caller is responsible for enqueuing
// the resulting external event and transitioning to Rest.
func (e *Exchange) runCommitEngine(r *round) (committedSnapshot, error) {
	configured := make(map[string]*namespace.Namespace, len(e.store.Namespaces()))
	for _, ns := range e.store.Namespaces() {
		ns.ResetCommitted()
		configured[ns.Name] = ns
	}

	for _, node := range r.succession {
		state, ok := r.nodes.Get(node)
		if !ok {
			return committedSnapshot{}, fmt.Errorf("round %s: %w: no node-state entry for succession member %s", r.id, ErrInternalInvariant, node)
		}

		payload, err := codec.Decode(state.Payload.Bytes())
		if err != nil {
			// The payload was already validated on receipt (§3
			// invariant); failing to re-decode it here means
			// corruption between validation and commit, an
			// invariant violation rather than a recoverable
			// per-message error.
			return committedSnapshot{}, fmt.Errorf("round %s: %w: re-decoding committed payload from %s: %v", r.id, ErrInternalInvariant, node, err)
		}

		for _, block := range payload.Namespaces {
			ns, ok := configured[block.Name]
			if !ok {
				e.log.Warnf("round %s: %v: %q from node %s", r.id, ErrUnknownNamespace, block.Name, node)
				continue
			}
			ns.EnsureMember(node)
			for _, v := range block.Vinfos {
				ns.SetVersions(node, v.Pids, v.Vinfo)
			}
		}
	}

	snapshot := committedSnapshot{
		key:        r.clusterKey,
		size:       len(r.succession),
		principal:  r.principal(),
		succession: r.succession.Clone(),
	}

	e.bal.Balance(snapshot.key, snapshot.size, snapshot.succession)

	return snapshot, nil
}
