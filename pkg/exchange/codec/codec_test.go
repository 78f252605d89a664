package codec

import (
	"testing"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
	"github.com/stretchr/testify/require"
)

func vinfoOf(b byte) types.Vinfo {
	var v types.Vinfo
	v[0] = b
	return v
}

func TestBuildDecodeRoundTrip(t *testing.T) {
	var snap NamespaceSnapshot
	snap.Name = "test"
	snap.Partitions[0] = vinfoOf(1)
	snap.Partitions[1] = vinfoOf(1)
	snap.Partitions[2] = vinfoOf(2)
	snap.Partitions[4095] = vinfoOf(2)

	data, err := Build([]NamespaceSnapshot{snap})
	require.NoError(t, err)

	payload, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, payload.Namespaces, 1)

	ns := payload.Namespaces[0]
	require.Equal(t, "test", ns.Name)

	byVinfo := make(map[types.Vinfo][]types.PartitionID, len(ns.Vinfos))
	for _, v := range ns.Vinfos {
		byVinfo[v.Vinfo] = v.Pids
	}
	require.ElementsMatch(t, []types.PartitionID{0, 1}, byVinfo[vinfoOf(1)])
	require.ElementsMatch(t, []types.PartitionID{2, 4095}, byVinfo[vinfoOf(2)])
}

func TestBuildOmitsNullVinfoPartitions(t *testing.T) {
	var snap NamespaceSnapshot
	snap.Name = "empty"

	data, err := Build([]NamespaceSnapshot{snap})
	require.NoError(t, err)

	payload, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, payload.Namespaces, 1)
	require.Empty(t, payload.Namespaces[0].Vinfos)
}

func TestBuildRejectsTooManyNamespaces(t *testing.T) {
	snaps := make([]NamespaceSnapshot, types.MaxNamespaces+1)
	for i := range snaps {
		snaps[i].Name = "ns"
	}
	_, err := Build(snaps)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	data, err := Build([]NamespaceSnapshot{{Name: "truncated"}})
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		_, err := Decode(data[:n])
		require.Errorf(t, err, "Decode should reject a payload truncated at byte %d", n)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	data, err := Build([]NamespaceSnapshot{{Name: "ns"}})
	require.NoError(t, err)

	_, err = Decode(append(data, 0xFF))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeRejectsDuplicateNamespaceName(t *testing.T) {
	data, err := Build([]NamespaceSnapshot{{Name: "dup"}, {Name: "dup"}})
	require.NoError(t, err)

	_, err = Decode(data)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestDecodeRejectsOutOfRangePartitionID(t *testing.T) {
	// Hand-build a single-namespace, single-vinfo payload whose lone
	// pid sits one past the valid range, since Build never emits one.
	var buf []byte
	buf = append(buf, 1, 0, 0, 0) // num_namespaces
	name := types.NewNamespaceName("ns")
	buf = append(buf, name[:]...)
	buf = append(buf, 1, 0, 0, 0) // num_vinfos
	buf = append(buf, make([]byte, types.VinfoSize)...)
	buf = append(buf, 1, 0, 0, 0) // num_pids
	pidBytes := make([]byte, 2)
	order.PutUint16(pidBytes, uint16(types.MaxPartitions))
	buf = append(buf, pidBytes...)

	_, err := Decode(buf)
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestValidate(t *testing.T) {
	data, err := Build([]NamespaceSnapshot{{Name: "ns"}})
	require.NoError(t, err)
	require.True(t, Validate(data))
	require.False(t, Validate(append(data, 0xFF)))
}
