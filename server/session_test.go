package server

import (
	"errors"
	"testing"
)

func TestRegistryAssignsSequentialIDs(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= 5; i++ {
		s, err := r.Add(addr(byte(i)))
		if err != nil {
			t.Fatal(err)
		}
		if s.ID != SessionID(i) || s.NextSequence != 1 || s.SinceLastPacket != 0 {
			t.Fatalf("session %d = %+v", i, s)
		}
	}
	if r.FindByID(3).Addr != addr(3) || r.FindByAddress(addr(4)).ID != 4 {
		t.Fatal("lookup mismatch")
	}
	if r.FindByAddress(addr(9)) != nil || r.FindByID(9) != nil {
		t.Fatal("expected miss")
	}
}

func TestRegistryNeverReusesIDs(t *testing.T) {
	r := NewRegistry()
	a, _ := r.Add(addr(1))
	a.SinceLastPacket = 10
	r.EvictTimedOut(5)

	b, _ := r.Add(addr(1))
	if b.ID != 2 {
		t.Fatalf("id after eviction = %d, want 2", b.ID)
	}
}

func TestEvictTimedOutAdjacent(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= 5; i++ {
		s, _ := r.Add(addr(byte(i)))
		if i == 2 || i == 3 || i == 5 {
			s.SinceLastPacket = 6
		}
	}
	evicted := r.EvictTimedOut(5)
	if len(evicted) != 3 {
		t.Fatalf("evicted %d, want 3", len(evicted))
	}
	var ids []SessionID
	for _, s := range r.All() {
		ids = append(ids, s.ID)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 4 {
		t.Fatalf("remaining = %v, want [1 4]", ids)
	}
	if r.FindByID(2) != nil || r.FindByAddress(addr(5)) != nil {
		t.Fatal("evicted session still indexed")
	}
}

func TestEvictTimedOutIsStrict(t *testing.T) {
	r := NewRegistry()
	s, _ := r.Add(addr(1))
	s.SinceLastPacket = 5
	if ev := r.EvictTimedOut(5); len(ev) != 0 {
		t.Fatalf("evicted at threshold: %v", ev)
	}
}

func TestRegistryIDExhaustion(t *testing.T) {
	r := NewRegistry()
	r.nextID = 0xffff
	if _, err := r.Add(addr(1)); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Add(addr(2)); !errors.Is(err, ErrIDsExhausted) {
		t.Fatalf("err = %v, want ErrIDsExhausted", err)
	}
}

func TestAssignRoom(t *testing.T) {
	r := NewRegistry()
	r.Add(addr(1))
	r.Add(addr(2))
	if err := r.AssignRoom(2, 7, true); err != nil {
		t.Fatal(err)
	}
	in := r.InRoom(7)
	if len(in) != 1 || in[0].ID != 2 || !in[0].OwnsRoom {
		t.Fatalf("room 7 = %+v", in)
	}
	if got := len(r.InRoom(RoomNone)); got != 1 {
		t.Fatalf("unassigned = %d, want 1", got)
	}
	if err := r.AssignRoom(9, 7, false); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err = %v, want ErrUnknownSession", err)
	}
}
