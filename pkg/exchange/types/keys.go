package types

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// VinfoSize is the fixed byte width of a partition version. A
	// distinguished all-zero value means "null" (§3).
	VinfoSize = 16

	// NamespaceNameSize is the fixed, NUL-terminated width of a
	// namespace identifier on the wire (AS_ID_NAMESPACE_SZ, §4.1).
	NamespaceNameSize = 32

	// MaxPartitions is the compile-time partition count per namespace
	// (AS_PARTITIONS, §3).
	MaxPartitions = 4096

	// MaxNamespaces is the cap on namespaces a single payload may
	// describe (AS_NAMESPACE_SZ, §4.1), enforced by codec.Build and
	// codec.Decode.
	MaxNamespaces = 32

	// MaxClusterSizeSoft is a sizing hint only, never an enforced
	// limit (§6).
	MaxClusterSizeSoft = 200

	// MaxUniqueVinfosSoft is a sizing hint only, never an enforced
	// limit (§6).
	MaxUniqueVinfosSoft = 200

	// ProtocolIdentifier is the single supported wire protocol version
	// (§4.3, §6).
	ProtocolIdentifier = uint32(1)
)

// ClusterKey identifies a cluster epoch. The value 0 means "no
// cluster" (§3).
type ClusterKey uint64

// NoCluster is the distinguished ClusterKey of an orphaned node.
const NoCluster ClusterKey = 0

func (k ClusterKey) IsSet() bool {
	return k != NoCluster
}

// NodeID is the 64-bit opaque identifier of a cluster member.
type NodeID uint64

func (n NodeID) String() string {
	return fmt.Sprintf("%016x", uint64(n))
}

// Vinfo is a fixed-size opaque partition version. The all-zero value
// is the distinguished "null" version and is never placed on the wire
// (§3, §4.1).
type Vinfo [VinfoSize]byte

var nullVinfo Vinfo

func (v Vinfo) IsNull() bool {
	return v == nullVinfo
}

// PartitionID indexes a namespace's fixed partition array.
type PartitionID uint16

func (p PartitionID) Valid() bool {
	return p < MaxPartitions
}

// Succession is an ordered list of cluster members. The first element
// is always the principal (§3).
type Succession []NodeID

// Principal returns the first member of the succession, or the zero
// NodeID if the succession is empty.
func (s Succession) Principal() NodeID {
	if len(s) == 0 {
		return 0
	}
	return s[0]
}

func (s Succession) Contains(n NodeID) bool {
	for _, m := range s {
		if m == n {
			return true
		}
	}
	return false
}

func (s Succession) Equal(other Succession) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy, so that a caller may free or
// mutate its own slice without affecting what was published (§4.6).
func (s Succession) Clone() Succession {
	if s == nil {
		return nil
	}
	clone := make(Succession, len(s))
	copy(clone, s)
	return clone
}

// String renders the succession as a dash-separated hex list, the
// text formatter referenced by §4.8's public read API.
func (s Succession) String() string {
	parts := make([]string, len(s))
	for i, n := range s {
		parts[i] = n.String()
	}
	return strings.Join(parts, "-")
}

// NamespaceName is a fixed, NUL-terminated namespace identifier.
type NamespaceName [NamespaceNameSize]byte

// NewNamespaceName NUL-pads name to fill the fixed field. It never
// truncates: it panics if name (excluding the terminating NUL) does not fit,
// since namespace names are operator-configured, not untrusted input.
func NewNamespaceName(name string) NamespaceName {
	if len(name) >= NamespaceNameSize {
		panic(fmt.Sprintf("namespace name %q exceeds %d bytes", name, NamespaceNameSize-1))
	}
	var n NamespaceName
	copy(n[:], name)
	return n
}

// String returns the name up to its first NUL byte.
func (n NamespaceName) String() string {
	if idx := bytes.IndexByte(n[:], 0); idx >= 0 {
		return string(n[:idx])
	}
	return string(n[:])
}
