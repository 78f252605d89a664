// Package exchange implements the cluster data exchange protocol: a
// four-state per-node state machine that, on every cluster-membership
// change, exchanges per-namespace partition version information with
// every other cluster member and commits an agreed view once every
// member has acknowledged it (spec §1-§5).
//
// A host process owns one Exchange per local node. It supplies a
// namespace.Store, a balancer.Balancer and a transport.ClusterTransport
// collaborator, drives ClusterChanged/Orphaned as cluster membership
// changes arrive, and reads back the committed view through the
// Committed* accessors or by registering a listener with AddListener.
package exchange

import (
	"github.com/jabolina/go-exchange/pkg/exchange/core"
	"github.com/jabolina/go-exchange/pkg/exchange/publisher"
	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// Config configures one Exchange instance. See core.Config for field
// documentation; DefaultConfig fills in every optional default.
type Config = core.Config

// DefaultConfig returns a Config for self with every optional field
// defaulted. Callers must still set Store, Balancer and Transport
// before calling New.
func DefaultConfig(self types.NodeID) *Config {
	return core.DefaultConfig(self)
}

// Listener receives a ClusterChangedEvent once a round commits.
type Listener = publisher.Listener

// ClusterChangedEvent is the data delivered to a registered Listener
// (spec §4.6).
type ClusterChangedEvent = publisher.Event

// Exchange is one node's instance of the cluster data exchange
// protocol. The zero value is not usable; construct with New.
type Exchange struct {
	e *core.Exchange
}

// New builds an Exchange from cfg. Start must be called before any
// cluster event is delivered or processed.
func New(cfg *Config) (*Exchange, error) {
	inner, err := core.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Exchange{e: inner}, nil
}

// Start launches the state machine's background workers: the event
// loop, the periodic timer driver and the external-event publisher.
func (x *Exchange) Start() {
	x.e.Start()
}

// Stop shuts every background worker down and blocks until they have
// exited.
func (x *Exchange) Stop() {
	x.e.Stop()
}

// AddListener registers fn to be called, in registration order, with
// userData whenever a round commits (spec §4.6). At most 7 listeners
// may be registered; returns an error past that.
func (x *Exchange) AddListener(fn Listener, userData interface{}) error {
	return x.e.AddListener(fn, userData)
}

// ClusterChanged notifies the state machine that cluster membership
// has changed to succession under cluster key key. key must be
// non-zero; report loss of membership with Orphaned instead.
func (x *Exchange) ClusterChanged(succession types.Succession, key types.ClusterKey) {
	x.e.ClusterChanged(succession, key)
}

// Orphaned notifies the state machine that the local node is no
// longer a member of any cluster.
func (x *Exchange) Orphaned() {
	x.e.Orphaned()
}

// CommittedClusterKey returns the cluster key of the most recently
// committed round, or the zero ClusterKey before any round has
// committed.
func (x *Exchange) CommittedClusterKey() types.ClusterKey {
	return x.e.CommittedClusterKey()
}

// CommittedClusterSize returns the member count of the most recently
// committed round.
func (x *Exchange) CommittedClusterSize() int {
	return x.e.CommittedClusterSize()
}

// CommittedPrincipal returns the principal of the most recently
// committed round.
func (x *Exchange) CommittedPrincipal() types.NodeID {
	return x.e.CommittedPrincipal()
}

// CommittedSuccession returns a copy of the succession of the most
// recently committed round.
func (x *Exchange) CommittedSuccession() types.Succession {
	return x.e.CommittedSuccession()
}
