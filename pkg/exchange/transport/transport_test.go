package transport

import (
	"testing"
	"time"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

func TestHubDeliversToRegisteredDestination(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	a := hub.Register(1)
	b := hub.Register(2)

	msg := NewData(1, 7, []byte("payload"))
	if err := a.Send(2, msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-b.Inbox():
		if got.Source != types.NodeID(1) || got.ClusterKey != types.ClusterKey(7) {
			t.Errorf("received %+v, want source=1 key=7", got)
		}
	case <-time.After(time.Second):
		t.Fatal("message was never delivered")
	}
}

func TestHubDropFuncSuppressesDelivery(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()

	a := hub.Register(1)
	b := hub.Register(2)
	hub.SetDropFunc(func(from, to types.NodeID, msg Message) bool {
		return msg.Kind == KindData
	})

	if err := a.Send(2, NewData(1, 1, nil)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := a.Send(2, NewDataAck(1, 1)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-b.Inbox():
		if got.Kind != KindDataAck {
			t.Errorf("first delivered message kind = %s, want DATA_ACK (DATA should have been dropped)", got.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("DATA_ACK was never delivered")
	}
}

func TestHubSendToUnknownDestinationErrors(t *testing.T) {
	hub := NewHub()
	defer hub.Shutdown()
	a := hub.Register(1)

	if err := a.Send(99, NewDataAck(1, 1)); err == nil {
		t.Fatal("Send to unregistered destination succeeded, want error")
	}
}

func TestSanityCheckRejectsUnknownSource(t *testing.T) {
	msg := NewData(99, 1, nil)
	err := SanityCheck(msg, 1, types.Succession{1, 2})
	if err == nil {
		t.Fatal("SanityCheck accepted a message from a non-member source")
	}
}

func TestSanityCheckRejectsClusterKeyMismatch(t *testing.T) {
	msg := NewDataAck(1, 2)
	err := SanityCheck(msg, 1, types.Succession{1, 2})
	if err == nil {
		t.Fatal("SanityCheck accepted a message whose cluster key did not match")
	}
}

func TestSanityCheckRejectsUndefinedKind(t *testing.T) {
	msg := NewDataAck(1, 1)
	msg.Kind = Kind(99)
	err := SanityCheck(msg, 1, types.Succession{1, 2})
	if err == nil {
		t.Fatal("SanityCheck accepted an undefined message kind")
	}
}

func TestSanityCheckAcceptsWellFormedMessage(t *testing.T) {
	msg := NewDataAck(1, 1)
	if err := SanityCheck(msg, 1, types.Succession{1, 2}); err != nil {
		t.Fatalf("SanityCheck rejected a well-formed message: %v", err)
	}
}
