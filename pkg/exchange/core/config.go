package core

import (
	"time"

	"github.com/jabolina/go-exchange/pkg/exchange/balancer"
	"github.com/jabolina/go-exchange/pkg/exchange/metrics"
	"github.com/jabolina/go-exchange/pkg/exchange/namespace"
	"github.com/jabolina/go-exchange/pkg/exchange/transport"
	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// defaultHeartbeatInterval is a reasonable stand-in for the
// membership component's heartbeat transmit interval when a host does
// not override it (spec §4.4: hb is "supplied externally").
const defaultHeartbeatInterval = 150 * time.Millisecond

// defaultQuantumInterval is a reasonable stand-in for the membership
// component's quantum interval (spec §4.4, §6).
const defaultQuantumInterval = time.Second

// maxEventListeners mirrors publisher.MaxListeners (spec §4.6) as the
// default for Config.EventListenerCapacity.
const maxEventListeners = 7

// Config configures one Exchange instance: sensible defaults filled
// in by DefaultConfig, overridable field by field.
type Config struct {
	// Self is this node's identifier.
	Self types.NodeID

	// HeartbeatInterval is hb in spec §4.4's backoff formula.
	HeartbeatInterval time.Duration

	// QuantumInterval is the membership component's timing unit used
	// only to compute the orphan transaction-block timeout (spec
	// §4.4, GLOSSARY).
	QuantumInterval time.Duration

	// EventListenerCapacity records the cluster-changed listener cap
	// (spec §4.6: 7). New does not read it; the cap actually enforced
	// is publisher.MaxListeners, so overriding this field has no
	// effect.
	EventListenerCapacity int

	Logger    types.Logger
	Store     namespace.Store
	Balancer  balancer.Balancer
	Transport transport.ClusterTransport
	Metrics   *metrics.Metrics
}

// DefaultConfig returns a Config for self with every optional field
// defaulted; callers must still supply Store, Balancer and Transport.
func DefaultConfig(self types.NodeID) *Config {
	return &Config{
		Self:                  self,
		HeartbeatInterval:     defaultHeartbeatInterval,
		QuantumInterval:       defaultQuantumInterval,
		EventListenerCapacity: maxEventListeners,
		Logger:                types.NewDefaultLogger(),
		Metrics:               metrics.New(),
	}
}
