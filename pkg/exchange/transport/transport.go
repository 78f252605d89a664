package transport

import (
	"fmt"
	"sync"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// ClusterTransport is the external collaborator contract: the caller
// registers to receive every frame on a dedicated control channel,
// and sends are fire-and-forget, reporting only enqueue failure
// (spec §6). No ordering or delivery guarantees are made beyond
// single-frame integrity; retransmission is the state machine's
// responsibility (§4.3), never this layer's.
type ClusterTransport interface {
	// Send enqueues msg for delivery to dest. An error means the
	// queueing itself failed (TransportSendFailed, §7); it is never a
	// delivery acknowledgement.
	Send(dest types.NodeID, msg Message) error

	// SendList enqueues msg for delivery to every node in dests.
	SendList(dests []types.NodeID, msg Message) error

	// Inbox is the dedicated channel every inbound control-channel
	// frame for this node arrives on.
	Inbox() <-chan Message

	// Close releases transport resources. Safe to call once.
	Close()
}

// Hub is an in-memory ClusterTransport fake used by this module's own
// tests: every registered node gets a buffered inbox, and
// Hub.SetDropFunc lets a test simulate message loss without touching state-machine
// code (scenarios S2/S3 in spec §8).
type Hub struct {
	mu      sync.Mutex
	inboxes map[types.NodeID]chan Message
	drop    func(from, to types.NodeID, msg Message) bool
	closed  bool
}

func NewHub() *Hub {
	return &Hub{inboxes: make(map[types.NodeID]chan Message)}
}

// Register creates (or returns the existing) ClusterTransport view for
// node, the way a real transport binds to a local identity.
func (h *Hub) Register(node types.NodeID) ClusterTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.inboxes[node]; !ok {
		h.inboxes[node] = make(chan Message, 256)
	}
	return &hubTransport{hub: h, self: node}
}

// SetDropFunc installs a predicate called for every in-flight
// message; returning true drops it before it reaches the destination
// inbox.
func (h *Hub) SetDropFunc(f func(from, to types.NodeID, msg Message) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop = f
}

func (h *Hub) deliver(from, to types.NodeID, msg Message) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return fmt.Errorf("transport: hub closed")
	}
	drop := h.drop
	inbox, ok := h.inboxes[to]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("transport: unknown destination %s", to)
	}
	if drop != nil && drop(from, to, msg) {
		return nil
	}

	select {
	case inbox <- msg:
		return nil
	default:
		return fmt.Errorf("transport: inbox full for %s", to)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, inbox := range h.inboxes {
		close(inbox)
	}
}

type hubTransport struct {
	hub  *Hub
	self types.NodeID
}

func (t *hubTransport) Send(dest types.NodeID, msg Message) error {
	return t.hub.deliver(t.self, dest, msg)
}

func (t *hubTransport) SendList(dests []types.NodeID, msg Message) error {
	for _, dest := range dests {
		if err := t.hub.deliver(t.self, dest, msg); err != nil {
			return err
		}
	}
	return nil
}

func (t *hubTransport) Inbox() <-chan Message {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	return t.hub.inboxes[t.self]
}

// Close is a no-op on a single node's view; the Hub itself owns
// lifecycle via Hub.Shutdown, matching a real transport where closing
// the shared channel belongs to the transport module, not one peer.
func (t *hubTransport) Close() {}

// Shutdown closes every registered inbox.
func (h *Hub) Shutdown() {
	h.closeAll()
}
