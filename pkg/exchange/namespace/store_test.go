package namespace

import (
	"testing"

	"github.com/jabolina/go-exchange/pkg/exchange/types"
)

func TestInMemoryStoreConfigureIsIdempotent(t *testing.T) {
	store := NewInMemoryStore()
	a := store.Configure("test")
	b := store.Configure("test")
	if a != b {
		t.Fatalf("Configure returned two different *Namespace for the same name")
	}
	if got := len(store.Namespaces()); got != 1 {
		t.Fatalf("Namespaces() len = %d, want 1", got)
	}
}

func TestNamespaceSetVersionsAccumulatesAcrossCalls(t *testing.T) {
	ns := NewNamespace("test")

	var v1, v2 types.Vinfo
	v1[0] = 1
	v2[0] = 2

	ns.EnsureMember(10)
	ns.SetVersions(10, []types.PartitionID{0, 1}, v1)
	ns.EnsureMember(20)
	ns.SetVersions(20, []types.PartitionID{2}, v2)

	if got := ns.ClusterSize(); got != 2 {
		t.Fatalf("ClusterSize() = %d, want 2", got)
	}
	succession := ns.ClusterSuccession()
	if succession[0] != 10 || succession[1] != 20 {
		t.Fatalf("ClusterSuccession() = %v, want [10 20]", succession)
	}
	if got := ns.ClusterVersion(0, 0); got != v1 {
		t.Errorf("ClusterVersion(0, 0) = %v, want %v", got, v1)
	}
	if got := ns.ClusterVersion(1, 2); got != v2 {
		t.Errorf("ClusterVersion(1, 2) = %v, want %v", got, v2)
	}
}

// TestNamespaceEnsureMemberJoinsWithoutAnyVinfo covers the fix for a
// namespace block with zero vinfos (a node holding no partitions yet):
// the node must still join the committed succession (§4.5 step 2).
func TestNamespaceEnsureMemberJoinsWithoutAnyVinfo(t *testing.T) {
	ns := NewNamespace("test")
	ns.EnsureMember(10)

	if got := ns.ClusterSize(); got != 1 {
		t.Fatalf("ClusterSize() = %d, want 1", got)
	}
	succession := ns.ClusterSuccession()
	if len(succession) != 1 || succession[0] != 10 {
		t.Fatalf("ClusterSuccession() = %v, want [10]", succession)
	}
}

func TestNamespaceResetCommittedClearsPriorRound(t *testing.T) {
	ns := NewNamespace("test")
	var v types.Vinfo
	v[0] = 1
	ns.EnsureMember(10)
	ns.SetVersions(10, []types.PartitionID{0}, v)

	ns.ResetCommitted()

	if got := ns.ClusterSize(); got != 0 {
		t.Fatalf("ClusterSize() after ResetCommitted() = %d, want 0", got)
	}
	if got := ns.ClusterSuccession(); len(got) != 0 {
		t.Fatalf("ClusterSuccession() after ResetCommitted() = %v, want empty", got)
	}
}

func TestNamespaceSnapshotReflectsSetPartitionVersion(t *testing.T) {
	ns := NewNamespace("test")
	var v types.Vinfo
	v[0] = 9
	ns.SetPartitionVersion(5, v)

	snap := ns.Snapshot()
	if snap[5] != v {
		t.Fatalf("Snapshot()[5] = %v, want %v", snap[5], v)
	}
	if !snap[6].IsNull() {
		t.Fatalf("Snapshot()[6] should remain null")
	}
}
