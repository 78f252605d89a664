// Package transport defines the five protocol messages exchanged over
// the cluster's control channel, the inbound sanity check, and the
// ClusterTransport collaborator contract (spec §4.3, §6). The real
// transport (reliable-once-delivered framed messages on a named
// channel) is an external collaborator; this package only defines
// the interface and ships an in-memory fake for tests.
package transport

import (
	"errors"
	"fmt"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// Kind is one of the five protocol message kinds (spec §4.3).
type Kind uint8

const (
	KindData Kind = iota
	KindDataAck
	// KindDataNack is reserved but never sent by this protocol
	// version (spec §4.3, §9 Open Questions).
	KindDataNack
	KindReadyToCommit
	KindCommit
)

func (k Kind) Valid() bool {
	switch k {
	case KindData, KindDataAck, KindDataNack, KindReadyToCommit, KindCommit:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindData:
		return "DATA"
	case KindDataAck:
		return "DATA_ACK"
	case KindDataNack:
		return "DATA_NACK"
	case KindReadyToCommit:
		return "READY_TO_COMMIT"
	case KindCommit:
		return "COMMIT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(k))
	}
}

// Message is the envelope carried on the control channel for every
// protocol exchange. Payload is only meaningful for KindData.
type Message struct {
	ProtocolVersion uint32
	Kind            Kind
	Source          types.NodeID
	ClusterKey      types.ClusterKey
	Payload         []byte
}

func newMessage(kind Kind, source types.NodeID, key types.ClusterKey) Message {
	return Message{
		ProtocolVersion: types.ProtocolIdentifier,
		Kind:            kind,
		Source:          source,
		ClusterKey:      key,
	}
}

func NewData(source types.NodeID, key types.ClusterKey, payload []byte) Message {
	m := newMessage(KindData, source, key)
	m.Payload = payload
	return m
}

func NewDataAck(source types.NodeID, key types.ClusterKey) Message {
	return newMessage(KindDataAck, source, key)
}

func NewReadyToCommit(source types.NodeID, key types.ClusterKey) Message {
	return newMessage(KindReadyToCommit, source, key)
}

func NewCommit(source types.NodeID, key types.ClusterKey) Message {
	return newMessage(KindCommit, source, key)
}

// ErrSanityCheckFailed is returned, wrapped with more specific
// context, whenever an inbound message fails the §4.3 checks. Per
// spec it is always handled by dropping the message silently
// (debug-logged); it never propagates further.
var ErrSanityCheckFailed = errors.New("transport: message failed sanity check")

func sanityFailure(format string, v ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSanityCheckFailed, fmt.Sprintf(format, v...))
}

// SanityCheck runs the four checks of spec §4.3 against an inbound
// message: protocol identifier, defined kind, known source, and
// matching non-zero cluster key.
func SanityCheck(msg Message, localKey types.ClusterKey, succession types.Succession) error {
	if msg.ProtocolVersion != types.ProtocolIdentifier {
		return sanityFailure("protocol version %d != %d", msg.ProtocolVersion, types.ProtocolIdentifier)
	}
	if !msg.Kind.Valid() {
		return sanityFailure("undefined message kind %d", uint8(msg.Kind))
	}
	if !succession.Contains(msg.Source) {
		return sanityFailure("source %s not a member of current succession", msg.Source)
	}
	if !localKey.IsSet() || localKey != msg.ClusterKey {
		return sanityFailure("cluster key mismatch: local=%d msg=%d", localKey, msg.ClusterKey)
	}
	return nil
}
