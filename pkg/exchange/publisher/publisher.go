// Package publisher implements the external cluster-changed event
// publisher: a single background worker that delivers
// cluster-changed callbacks to registered listeners without blocking
// the state machine (spec §4.6).
package publisher

import (
	"fmt"
	"sync"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// MaxListeners is the fixed cap on registered listeners (spec §4.6).
const MaxListeners = 7

// Event is the cluster-changed notification delivered to listeners
// (spec §6).
type Event struct {
	ClusterKey  types.ClusterKey
	ClusterSize int
	Succession  types.Succession
}

// Listener receives an Event along with the opaque user datum it was
// registered with.
type Listener func(event Event, userData interface{})

type registeredListener struct {
	fn       Listener
	userData interface{}
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateShuttingDown
	stateStopped
)

// Publisher is the single long-lived worker of spec §4.6. At most one
// event is ever in flight: Enqueue overwrites any prior undelivered
// event, because the protocol only ever produces one per cluster
// change.
type Publisher struct {
	log types.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	listeners []registeredListener
	pending   *Event
	state     runState
	wg        sync.WaitGroup
}

func New(log types.Logger) *Publisher {
	p := &Publisher{log: log, state: stateIdle}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// AddListener registers fn to be called, in registration order, with
// userData on every future cluster-changed event. Returns an error if
// MaxListeners are already registered.
func (p *Publisher) AddListener(fn Listener, userData interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.listeners) >= MaxListeners {
		return fmt.Errorf("publisher: maximum of %d listeners already registered", MaxListeners)
	}
	p.listeners = append(p.listeners, registeredListener{fn: fn, userData: userData})
	return nil
}

// Start begins the background worker.
func (p *Publisher) Start() {
	p.mu.Lock()
	p.state = stateRunning
	p.mu.Unlock()
	p.wg.Add(1)
	go p.run()
}

// Enqueue copies event into the one-slot buffer, overwriting any
// prior undelivered event, and copies its succession list into
// publisher-owned storage so the caller may free its own copy (spec
// §4.6).
func (p *Publisher) Enqueue(event Event) {
	event.Succession = event.Succession.Clone()
	p.mu.Lock()
	p.pending = &event
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *Publisher) run() {
	defer p.wg.Done()
	p.mu.Lock()
	for {
		for p.pending == nil && p.state == stateRunning {
			p.cond.Wait()
		}
		if p.state != stateRunning {
			p.mu.Unlock()
			return
		}
		ev := *p.pending
		p.pending = nil
		listeners := append([]registeredListener(nil), p.listeners...)
		p.mu.Unlock()

		for _, l := range listeners {
			l.fn(ev, l.userData)
		}

		p.mu.Lock()
	}
}

// Stop transitions the publisher to shutting-down and waits for the
// worker to exit on its first wake with a non-running state (spec
// §4.6, §5).
func (p *Publisher) Stop() {
	p.mu.Lock()
	if p.state != stateRunning {
		p.mu.Unlock()
		return
	}
	p.state = stateShuttingDown
	p.mu.Unlock()
	p.cond.Signal()
	p.wg.Wait()
	p.mu.Lock()
	p.state = stateStopped
	p.mu.Unlock()
}
