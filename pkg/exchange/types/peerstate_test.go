package types

import "testing"

func TestNodeStateTableResetForSuccessionAddsAndRemoves(t *testing.T) {
	table := NewNodeStateTable()
	table.ResetForSuccession(Succession{1, 2, 3})
	if got := table.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}

	table.ResetForSuccession(Succession{2, 3, 4})
	if got := table.Len(); got != 3 {
		t.Fatalf("Len() after reshape = %d, want 3", got)
	}
	if _, ok := table.Get(1); ok {
		t.Errorf("node 1 still present after being dropped from the succession")
	}
	if _, ok := table.Get(4); !ok {
		t.Errorf("node 4 missing after being added to the succession")
	}
}

func TestNodeStateTableResetForSuccessionPreservesRetainedPeerCapacity(t *testing.T) {
	table := NewNodeStateTable()
	table.ResetForSuccession(Succession{1, 2})

	st, _ := table.Get(2)
	st.Payload.Set([]byte("hello"))
	cap1 := cap(st.Payload.buf)

	table.ResetForSuccession(Succession{1, 2, 3})

	st2, ok := table.Get(2)
	if !ok {
		t.Fatalf("node 2 missing after reshape")
	}
	if st2 != st {
		t.Fatalf("retained peer got a new *PeerState instead of being reset in place")
	}
	if st2.Payload.Size() != 0 {
		t.Errorf("Payload.Size() = %d after reset, want 0", st2.Payload.Size())
	}
	if cap(st2.Payload.buf) != cap1 {
		t.Errorf("retained peer's payload buffer capacity changed across reshape: %d != %d", cap(st2.Payload.buf), cap1)
	}
}

func TestNodeStateTableFindNotReducers(t *testing.T) {
	table := NewNodeStateTable()
	table.ResetForSuccession(Succession{1, 2, 3})

	st1, _ := table.Get(1)
	st1.SendAcked = true
	st1.Received = true
	st1.IsReadyToCommit = true

	if got := table.SendUnacked(); len(got) != 2 {
		t.Errorf("SendUnacked() = %v, want 2 entries", got)
	}
	if got := table.NotReceived(); len(got) != 2 {
		t.Errorf("NotReceived() = %v, want 2 entries", got)
	}
	if got := table.NotReadyToCommit(); len(got) != 2 {
		t.Errorf("NotReadyToCommit() = %v, want 2 entries", got)
	}
}

func TestPayloadBufferGrowsOnlyWhenNeeded(t *testing.T) {
	var buf PayloadBuffer
	buf.Set(make([]byte, 10))
	if got := cap(buf.buf); got != payloadBufferGranularity {
		t.Fatalf("initial cap = %d, want %d", got, payloadBufferGranularity)
	}

	firstCap := cap(buf.buf)
	buf.Set(make([]byte, 20))
	if cap(buf.buf) != firstCap {
		t.Errorf("cap grew for a smaller write: %d != %d", cap(buf.buf), firstCap)
	}

	buf.Set(make([]byte, payloadBufferGranularity+1))
	if got := cap(buf.buf); got != 2*payloadBufferGranularity {
		t.Errorf("cap after growth = %d, want %d", got, 2*payloadBufferGranularity)
	}
}

func TestSuccessionPrincipalIsFirstMember(t *testing.T) {
	s := Succession{9, 1, 2}
	if got := s.Principal(); got != 9 {
		t.Errorf("Principal() = %s, want 9", got)
	}
	if got := (Succession{}).Principal(); got != 0 {
		t.Errorf("Principal() of empty succession = %s, want 0", got)
	}
}

func TestClusterKeyIsSet(t *testing.T) {
	if NoCluster.IsSet() {
		t.Errorf("NoCluster.IsSet() = true, want false")
	}
	if !ClusterKey(1).IsSet() {
		t.Errorf("ClusterKey(1).IsSet() = false, want true")
	}
}
