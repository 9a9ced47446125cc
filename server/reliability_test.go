package server

import (
	"slices"
	"testing"
)

func TestInflightOrderedAndDeduplicated(t *testing.T) {
	var s inflightSet
	for _, seq := range []uint32{5, 2, 9, 2} {
		s.track(Packet{Kind: KindReset, Sequence: seq})
	}
	s.track(Packet{Kind: KindUpdate, Sequence: 3})

	var got []uint32
	for _, p := range s.pending() {
		got = append(got, p.Sequence)
	}
	if !slices.Equal(got, []uint32{2, 5, 9}) {
		t.Fatalf("pending = %v, want [2 5 9]", got)
	}
}

func TestInflightAcknowledge(t *testing.T) {
	var s inflightSet
	s.track(Packet{Kind: KindReset, Sequence: 1})
	s.track(Packet{Kind: KindReset, Sequence: 4})

	if s.acknowledge(3) {
		t.Fatal("ack of unknown sequence reported a match")
	}
	if s.Len() != 2 {
		t.Fatalf("len after stale ack = %d, want 2", s.Len())
	}
	if !s.acknowledge(1) {
		t.Fatal("ack of 1 not matched")
	}
	if s.acknowledge(1) {
		t.Fatal("duplicate ack matched twice")
	}
	if s.Len() != 1 || s.pending()[0].Sequence != 4 {
		t.Fatalf("pending = %+v", s.pending())
	}
}
