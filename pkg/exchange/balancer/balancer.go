// Package balancer defines the partition balancer collaborator (spec
// §6): invoked after a successful commit to re-balance partition
// ownership, and to block/revert client transactions while orphaned.
// The real balancer lives outside this module; this package ships
// only the interface and a recording fake used by this module's own
// tests.
package balancer

import (
	"sync"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// Balancer is the partition-balancer collaborator contract (spec §6).
type Balancer interface {
	// Init prepares the balancer for use.
	Init()

	// DisallowMigrations blocks new partition migrations from
	// starting, called before building an outgoing payload so the
	// round's local snapshot is stable (spec §4.4).
	DisallowMigrations()

	// SynchronizeMigrations waits for in-flight migrations to drain.
	SynchronizeMigrations()

	// Balance is invoked after a successful commit with the
	// newly-committed cluster key, size and succession (spec §4.5
	// step 4).
	Balance(key types.ClusterKey, size int, succession types.Succession)

	// RevertToOrphan is invoked once, when a node has been orphaned
	// longer than the transaction-block timeout (spec §4.4, §7).
	RevertToOrphan()
}

// Recording is an in-memory Balancer used in this module's own tests
// to assert call counts and arguments (e.g. exactly one
// RevertToOrphan call, spec §8 scenario S6).
type Recording struct {
	mu sync.Mutex

	InitCalls                int
	DisallowMigrationsCalls  int
	SynchronizeMigrationsCalls int
	RevertToOrphanCalls      int
	BalanceCalls             []BalanceCall
}

type BalanceCall struct {
	Key        types.ClusterKey
	Size       int
	Succession types.Succession
}

func NewRecording() *Recording {
	return &Recording{}
}

func (r *Recording) Init() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InitCalls++
}

func (r *Recording) DisallowMigrations() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.DisallowMigrationsCalls++
}

func (r *Recording) SynchronizeMigrations() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.SynchronizeMigrationsCalls++
}

func (r *Recording) Balance(key types.ClusterKey, size int, succession types.Succession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.BalanceCalls = append(r.BalanceCalls, BalanceCall{Key: key, Size: size, Succession: succession.Clone()})
}

func (r *Recording) RevertToOrphan() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RevertToOrphanCalls++
}

func (r *Recording) Snapshot() Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Recording{
		InitCalls:                  r.InitCalls,
		DisallowMigrationsCalls:    r.DisallowMigrationsCalls,
		SynchronizeMigrationsCalls: r.SynchronizeMigrationsCalls,
		RevertToOrphanCalls:        r.RevertToOrphanCalls,
		BalanceCalls:               append([]BalanceCall(nil), r.BalanceCalls...),
	}
}
