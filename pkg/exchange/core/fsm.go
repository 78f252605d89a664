// Package core implements the four-state cluster data exchange state
// machine (spec §4.4): Rest, Exchanging, ReadyToCommit and Orphaned,
// driven by cluster-change notifications, a periodic timer and
// incoming protocol messages.
//
// Rather than translating the original's single reentrant
// exchange_lock literally, every event (cluster-change, timer tick,
// inbound message) is posted to one channel and processed by a
// single goroutine that exclusively owns all round state: the
// actor/inbox alternative spec.md §9's design notes call out as
// equivalent. The four committed-view accessors are still safe to
// read lock-free, via atomic.Value, matching §5's concession for
// those specific fields.
package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jabolina/go-exchange/pkg/exchange/balancer"
	"github.com/jabolina/go-exchange/pkg/exchange/codec"
	"github.com/jabolina/go-exchange/pkg/exchange/metrics"
	"github.com/jabolina/go-exchange/pkg/exchange/namespace"
	"github.com/jabolina/go-exchange/pkg/exchange/publisher"
	"github.com/jabolina/go-exchange/pkg/exchange/ticker"
	"github.com/jabolina/go-exchange/pkg/exchange/transport"
	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

type committedSnapshot struct {
	key        types.ClusterKey
	size       int
	principal  types.NodeID
	succession types.Succession
}

type eventKind int

const (
	eventClusterChanged eventKind = iota
	eventOrphaned
	eventTimer
	eventMessage
)

type fsmEvent struct {
	kind       eventKind
	succession types.Succession
	clusterKey types.ClusterKey
	msg        transport.Message
}

type lifecycle int32

const (
	lifecycleRunning lifecycle = iota
	lifecycleShuttingDown
	lifecycleStopped
)

// Exchange is one node's instance of the cluster data exchange
// protocol (spec §2-§5).
type Exchange struct {
	self    types.NodeID
	log     types.Logger
	store   namespace.Store
	bal     balancer.Balancer
	trans   transport.ClusterTransport
	met     *metrics.Metrics
	backoff retransmitBackoff

	blockTimeout time.Duration

	publisher *publisher.Publisher
	ticker    *ticker.Driver

	events chan fsmEvent
	done   chan struct{}
	wg     sync.WaitGroup

	lifecycle atomic.Int32

	// Fields below this point are owned exclusively by run() and must
	// never be touched from another goroutine.
	state               State
	round               *round
	orphanStart         time.Time
	orphanBlockFired    bool
	transactionsBlocked bool

	// committed is the exception: written by run(), read from any
	// goroutine by the Committed* accessors.
	committed atomic.Value // committedSnapshot
}

// New builds an Exchange for cfg.Self, starting in the Orphaned state
// (spec §4.4: "Initial state is Orphaned"). Start must be called
// before any event is delivered.
func New(cfg *Config) (*Exchange, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("exchange: Config.Store is required")
	}
	if cfg.Balancer == nil {
		return nil, fmt.Errorf("exchange: Config.Balancer is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("exchange: Config.Transport is required")
	}
	log := cfg.Logger
	if log == nil {
		log = types.NewDefaultLogger()
	}

	e := &Exchange{
		self:                cfg.Self,
		log:                 log,
		store:               cfg.Store,
		bal:                 cfg.Balancer,
		trans:               cfg.Transport,
		met:                 cfg.Metrics,
		backoff:             newRetransmitBackoff(cfg.HeartbeatInterval),
		blockTimeout:        orphanBlockTimeout(cfg.QuantumInterval),
		publisher:           publisher.New(log),
		events:              make(chan fsmEvent, 64),
		done:                make(chan struct{}),
		state:               Orphaned,
		orphanStart:         time.Now(),
		orphanBlockFired:    true,
		transactionsBlocked: true,
		round:               newRound(nil, types.NoCluster),
	}
	e.ticker = ticker.NewDriver(ticker.Interval, e.injectTimer)
	e.committed.Store(committedSnapshot{})
	e.bal.Init()
	return e, nil
}

// Start launches the event loop and its two background workers
// (timer driver, external-event publisher).
func (e *Exchange) Start() {
	e.lifecycle.Store(int32(lifecycleRunning))
	e.publisher.Start()
	e.ticker.Start()
	e.wg.Add(1)
	go e.run()
}

// Stop flips to shutting-down, joins the timer thread, then stops the
// publisher (spec §5 shutdown sequence).
func (e *Exchange) Stop() {
	e.lifecycle.Store(int32(lifecycleShuttingDown))
	e.ticker.Stop()
	close(e.done)
	e.wg.Wait()
	e.lifecycle.Store(int32(lifecycleStopped))
	e.publisher.Stop()
}

// AddListener registers a cluster-changed listener (spec §4.6).
func (e *Exchange) AddListener(fn publisher.Listener, userData interface{}) error {
	return e.publisher.AddListener(fn, userData)
}

// ClusterChanged delivers a cluster-change event naming the new
// succession and cluster key (spec §6 inbound events). key must be
// non-zero; use Orphaned to report loss of cluster membership.
func (e *Exchange) ClusterChanged(succession types.Succession, key types.ClusterKey) {
	e.postEvent(fsmEvent{kind: eventClusterChanged, succession: succession.Clone(), clusterKey: key})
}

// Orphaned delivers an orphan event: the local node is no longer a
// member of any cluster (spec §6 inbound events).
func (e *Exchange) Orphaned() {
	e.postEvent(fsmEvent{kind: eventOrphaned})
}

func (e *Exchange) postEvent(ev fsmEvent) {
	if lifecycle(e.lifecycle.Load()) != lifecycleRunning {
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

func (e *Exchange) injectTimer() {
	e.postEvent(fsmEvent{kind: eventTimer})
}

func (e *Exchange) run() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		case msg, ok := <-e.trans.Inbox():
			if !ok {
				return
			}
			e.handleMessage(msg)
		case ev, ok := <-e.events:
			if !ok {
				return
			}
			e.handleEvent(ev)
		}
	}
}

func (e *Exchange) handleEvent(ev fsmEvent) {
	switch ev.kind {
	case eventClusterChanged:
		e.handleClusterChanged(ev.succession, ev.clusterKey)
	case eventOrphaned:
		e.handleOrphaned()
	case eventTimer:
		e.handleTimer()
	}
}

// handleClusterChanged implements the "any state, ClusterChanged(S,k)
// with k≠0" row of spec §4.4's transition table.
func (e *Exchange) handleClusterChanged(succession types.Succession, key types.ClusterKey) {
	if !key.IsSet() {
		e.log.Warnf("exchange: ignoring ClusterChanged with zero cluster key; use Orphaned instead")
		return
	}

	e.bal.DisallowMigrations()
	e.bal.SynchronizeMigrations()

	e.round.reshape(succession, key)
	e.state = Exchanging
	e.transactionsBlocked = false
	e.met.SetOrphanBlocked(false)

	e.beginRound()
}

// handleOrphaned implements both Orphaned-arrival rows of §4.4: "any
// except Rest/Orphaned" and "Rest", which perform the identical
// reset.
func (e *Exchange) handleOrphaned() {
	e.bal.DisallowMigrations()
	e.bal.SynchronizeMigrations()

	e.round.reshape(nil, types.NoCluster)
	e.state = Orphaned
	e.orphanStart = time.Now()
	e.orphanBlockFired = false
	e.transactionsBlocked = false
	e.met.SetOrphanBlocked(false)
}

// beginRound prepares and sends the outgoing DATA payload for a
// freshly (re)shaped round, then checks whether the round is already
// complete (e.g. a single-member cluster).
func (e *Exchange) beginRound() {
	e.log.Infof("round %s: started, succession=%s key=%d", e.round.id, e.round.succession, e.round.clusterKey)

	payload, err := e.buildOutgoingPayload()
	if err != nil {
		// A configured namespace count beyond MaxNamespaces is a
		// setup error this node cannot proceed past (spec §7:
		// "allocation failures for payload buffers" are fatal).
		e.log.Fatalf("round %s: %v: building outgoing payload: %v", e.round.id, ErrInternalInvariant, err)
		return
	}

	self, ok := e.round.nodes.Get(e.self)
	if !ok {
		e.log.Fatalf("round %s: %v: self %s missing from node-state table", e.round.id, ErrInternalInvariant, e.self)
		return
	}
	// This node's own payload never needs a wire round trip (SPEC_FULL
	// §4 supplemented feature 3).
	self.SendAcked = true
	self.Received = true
	self.Payload.Set(payload)

	e.round.outgoingPayload = payload
	e.round.sendTS = time.Now()
	e.sendData(e.round.peersExcept(e.self))
	e.checkCompletion()
}

func (e *Exchange) buildOutgoingPayload() ([]byte, error) {
	namespaces := e.store.Namespaces()
	snapshots := make([]codec.NamespaceSnapshot, 0, len(namespaces))
	for _, ns := range namespaces {
		snapshots = append(snapshots, codec.NamespaceSnapshot{Name: ns.Name, Partitions: ns.Snapshot()})
	}
	return codec.Build(snapshots)
}

func (e *Exchange) sendData(dests []types.NodeID) {
	if len(dests) == 0 {
		return
	}
	msg := transport.NewData(e.self, e.round.clusterKey, e.round.outgoingPayload)
	if err := e.trans.SendList(dests, msg); err != nil {
		e.log.Warnf("round %s: %v: %v", e.round.id, ErrTransportSendFailed, err)
	}
}

func (e *Exchange) sendDataAck(dest types.NodeID) {
	msg := transport.NewDataAck(e.self, e.round.clusterKey)
	if err := e.trans.Send(dest, msg); err != nil {
		e.log.Warnf("round %s: %v: %v", e.round.id, ErrTransportSendFailed, err)
	}
}

func (e *Exchange) sendReadyToCommit() {
	msg := transport.NewReadyToCommit(e.self, e.round.clusterKey)
	if err := e.trans.Send(e.round.principal(), msg); err != nil {
		e.log.Warnf("round %s: %v: %v", e.round.id, ErrTransportSendFailed, err)
	}
}

func (e *Exchange) handleTimer() {
	switch e.state {
	case Orphaned:
		e.handleOrphanTimer()
	case Exchanging:
		e.handleExchangingTimer()
	case ReadyToCommit:
		e.handleReadyToCommitTimer()
	case Rest:
		// no retransmission needed at rest
	}
}

func (e *Exchange) handleOrphanTimer() {
	if e.orphanBlockFired {
		return
	}
	if time.Since(e.orphanStart) < e.blockTimeout {
		return
	}
	e.orphanBlockFired = true
	e.transactionsBlocked = true
	e.met.SetOrphanBlocked(true)
	e.log.Warnf("exchange: orphaned for over %s, blocking client transactions", e.blockTimeout)
	e.bal.RevertToOrphan()
}

func (e *Exchange) handleExchangingTimer() {
	age := time.Since(e.round.sendTS)
	if !e.backoff.dueForRetransmit(age) {
		return
	}
	unacked := e.round.nodes.SendUnacked()
	if len(unacked) == 0 {
		return
	}
	e.log.Debugf("round %s: retransmitting DATA to %v", e.round.id, unacked)
	e.sendData(unacked)
	e.round.sendTS = time.Now()
	e.met.RecordRetransmit(transport.KindData.String())
}

func (e *Exchange) handleReadyToCommitTimer() {
	if time.Since(e.round.rtcSendTS) < e.backoff.readyToCommitInterval() {
		return
	}
	e.round.rtcSendTS = time.Now()
	e.sendReadyToCommit()
	e.met.RecordRetransmit(transport.KindReadyToCommit.String())
}

func (e *Exchange) handleMessage(msg transport.Message) {
	if err := transport.SanityCheck(msg, e.round.clusterKey, e.round.succession); err != nil {
		e.log.Debugf("%v: %v", ErrInvalidMessage, err)
		return
	}

	switch e.state {
	case Exchanging:
		e.handleMessageExchanging(msg)
	case ReadyToCommit:
		e.handleMessageReadyToCommit(msg)
	case Rest:
		e.handleMessageRest(msg)
	case Orphaned:
		// ignored (§4.4: "Orphaned | Msg(*) | ignored")
	}
}

func (e *Exchange) handleMessageExchanging(msg transport.Message) {
	switch msg.Kind {
	case transport.KindData:
		e.onDataExchanging(msg)
	case transport.KindDataAck:
		e.onDataAckExchanging(msg)
	default:
		e.log.Debugf("exchange: exchanging: ignoring %s from %s", msg.Kind, msg.Source)
	}
}

func (e *Exchange) peerState(node types.NodeID) *types.PeerState {
	st, ok := e.round.nodes.Get(node)
	if !ok {
		e.log.Fatalf("round %s: %v: no node-state entry for succession member %s", e.round.id, ErrInternalInvariant, node)
		return nil
	}
	return st
}

func (e *Exchange) onDataExchanging(msg transport.Message) {
	state := e.peerState(msg.Source)

	if state.Received {
		e.log.Infof("round %s: %v: duplicate DATA from %s", e.round.id, ErrDuplicate, msg.Source)
		e.sendDataAck(msg.Source)
		e.checkCompletion()
		return
	}

	if _, err := codec.Decode(msg.Payload); err != nil {
		e.log.Warnf("round %s: %v: payload from %s: %v", e.round.id, codec.ErrInvalidPayload, msg.Source, err)
		return
	}

	state.Payload.Set(msg.Payload)
	state.Received = true
	e.sendDataAck(msg.Source)
	e.checkCompletion()
}

func (e *Exchange) onDataAckExchanging(msg transport.Message) {
	state := e.peerState(msg.Source)
	if state.SendAcked {
		e.log.Debugf("round %s: %v: duplicate DATA_ACK from %s", e.round.id, ErrDuplicate, msg.Source)
		return
	}
	state.SendAcked = true
	e.checkCompletion()
}

// checkCompletion implements the §4.4 completion check: send_unacked
// = ∅ AND not_received = ∅.
func (e *Exchange) checkCompletion() {
	if e.state != Exchanging {
		return
	}
	if len(e.round.nodes.SendUnacked()) != 0 || len(e.round.nodes.NotReceived()) != 0 {
		return
	}

	e.state = ReadyToCommit
	if e.round.isPrincipal(e.self) {
		e.markReadyAndMaybeCommit(e.self)
	} else {
		e.round.rtcSendTS = time.Now()
		e.sendReadyToCommit()
	}
}

func (e *Exchange) handleMessageReadyToCommit(msg transport.Message) {
	switch msg.Kind {
	case transport.KindReadyToCommit:
		if !e.round.isPrincipal(e.self) {
			// Testable property 7: a non-principal receiving
			// READY_TO_COMMIT leaves its state unchanged.
			e.log.Debugf("round %s: non-principal ignoring READY_TO_COMMIT from %s", e.round.id, msg.Source)
			return
		}
		e.markReadyAndMaybeCommit(msg.Source)
	case transport.KindCommit:
		if msg.Source != e.round.principal() {
			e.log.Warnf("round %s: %v: COMMIT from %s, expected principal %s", e.round.id, ErrWrongPrincipal, msg.Source, e.round.principal())
			return
		}
		e.completeCommit()
	case transport.KindData:
		// Our prior DATA_ACK to this peer was lost; resend it.
		e.sendDataAck(msg.Source)
	default:
		e.log.Debugf("exchange: ready-to-commit: ignoring %s from %s", msg.Kind, msg.Source)
	}
}

func (e *Exchange) markReadyAndMaybeCommit(node types.NodeID) {
	state := e.peerState(node)
	state.IsReadyToCommit = true
	if len(e.round.nodes.NotReadyToCommit()) != 0 {
		return
	}
	e.broadcastCommitAndCommitSelf()
}

func (e *Exchange) broadcastCommitAndCommitSelf() {
	msg := transport.NewCommit(e.self, e.round.clusterKey)
	if err := e.trans.SendList(e.round.peersExcept(e.self), msg); err != nil {
		e.log.Warnf("round %s: %v: %v", e.round.id, ErrTransportSendFailed, err)
	}
	e.completeCommit()
}

func (e *Exchange) completeCommit() {
	snapshot, err := e.runCommitEngine(e.round)
	if err != nil {
		if errors.Is(err, ErrInternalInvariant) {
			e.log.Fatalf("round %s: %v", e.round.id, err)
		} else {
			e.log.Errorf("round %s: commit failed: %v", e.round.id, err)
		}
		return
	}

	e.committed.Store(snapshot)
	if e.met != nil {
		e.met.RecordCommit(time.Since(e.round.startedAt).Seconds())
	}
	e.publisher.Enqueue(publisher.Event{
		ClusterKey:  snapshot.key,
		ClusterSize: snapshot.size,
		Succession:  snapshot.succession,
	})
	e.log.Infof("round %s: committed key=%d size=%d principal=%s", e.round.id, snapshot.key, snapshot.size, snapshot.principal)
	e.state = Rest
}

func (e *Exchange) handleMessageRest(msg transport.Message) {
	if msg.Kind != transport.KindReadyToCommit {
		return
	}
	if !e.round.isPrincipal(e.self) {
		return
	}
	// The principal's prior COMMIT to this one peer was lost; resend
	// only to it (spec §9 Open Questions preserves this one-peer
	// behavior rather than re-broadcasting).
	commitMsg := transport.NewCommit(e.self, e.round.clusterKey)
	if err := e.trans.Send(msg.Source, commitMsg); err != nil {
		e.log.Warnf("round %s: %v: %v", e.round.id, ErrTransportSendFailed, err)
	}
}

// CommittedClusterKey, CommittedClusterSize, CommittedPrincipal and
// CommittedSuccession form the public read API of spec §4.8. They are
// safe to call from any goroutine without the event loop's
// involvement.
func (e *Exchange) CommittedClusterKey() types.ClusterKey {
	return e.loadCommitted().key
}

func (e *Exchange) CommittedClusterSize() int {
	return e.loadCommitted().size
}

func (e *Exchange) CommittedPrincipal() types.NodeID {
	return e.loadCommitted().principal
}

func (e *Exchange) CommittedSuccession() types.Succession {
	return e.loadCommitted().succession.Clone()
}

// loadCommitted returns the most recently stored committed snapshot,
// or the zero snapshot if none has been stored.
func (e *Exchange) loadCommitted() committedSnapshot {
	v, _ := e.committed.Load().(committedSnapshot)
	return v
}
