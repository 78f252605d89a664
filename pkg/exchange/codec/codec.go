// Package codec implements the namespaces payload wire format: the
// binary encoding a node sends to every cluster peer describing which
// partitions it holds, and at what version, for every configured
// namespace (spec §4.1).
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

// Sizing hint used only to pre-size the per-vinfo pid slice while
// bucketing partitions during Build (original_source
// AS_EXCHANGE_VINFO_NUM_PIDS_AVG).
const vinfoPidsSizeHint = 1024

var order = binary.LittleEndian

// NamespaceSnapshot is a frozen view of one locally configured
// namespace's partition versions, the input to Build. Partitions is
// indexed by partition id.
type NamespaceSnapshot struct {
	Name       string
	Partitions [types.MaxPartitions]types.Vinfo
}

// DecodedVinfo is one (version, partitions) bucket found in a
// received payload.
type DecodedVinfo struct {
	Vinfo types.Vinfo
	Pids  []types.PartitionID
}

// DecodedNamespace is one namespace block found in a received
// payload.
type DecodedNamespace struct {
	Name   string
	Vinfos []DecodedVinfo
}

// Payload is the fully decoded, validated namespaces payload.
type Payload struct {
	Namespaces []DecodedNamespace
}

// Build serializes the given namespace snapshots into the wire
// format described in spec §4.1. For each namespace, partitions are
// bucketed by non-null vinfo; one vinfo_payload is emitted per
// bucket. Bucket iteration order is unspecified.
func Build(snapshots []NamespaceSnapshot) ([]byte, error) {
	if len(snapshots) > types.MaxNamespaces {
		return nil, fmt.Errorf("codec: %d namespaces exceeds max %d", len(snapshots), types.MaxNamespaces)
	}

	var buf bytes.Buffer
	writeU32(&buf, uint32(len(snapshots)))

	for _, ns := range snapshots {
		writeNamespaceName(&buf, ns.Name)

		buckets := bucketByVinfo(&ns)
		writeU32(&buf, uint32(len(buckets)))
		for _, b := range buckets {
			buf.Write(b.vinfo[:])
			writeU32(&buf, uint32(len(b.pids)))
			for _, pid := range b.pids {
				writeU16(&buf, uint16(pid))
			}
		}
	}

	return buf.Bytes(), nil
}

type vinfoBucket struct {
	vinfo types.Vinfo
	pids  []types.PartitionID
}

func bucketByVinfo(ns *NamespaceSnapshot) []vinfoBucket {
	order := make([]types.Vinfo, 0, 8)
	index := make(map[types.Vinfo]int, 8)
	var buckets []vinfoBucket

	for pid := 0; pid < types.MaxPartitions; pid++ {
		v := ns.Partitions[pid]
		if v.IsNull() {
			continue
		}
		i, ok := index[v]
		if !ok {
			i = len(buckets)
			index[v] = i
			order = append(order, v)
			buckets = append(buckets, vinfoBucket{vinfo: v, pids: make([]types.PartitionID, 0, vinfoPidsSizeHint)})
		}
		buckets[i].pids = append(buckets[i].pids, types.PartitionID(pid))
	}

	return buckets
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var tmp [4]byte
	order.PutUint32(tmp[:], v)
	buf.Write(tmp[:])
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	order.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}

func writeNamespaceName(buf *bytes.Buffer, name string) {
	n := types.NewNamespaceName(name)
	buf.Write(n[:])
}
