package server

import "slices"

// inflightSet 已发送但未被确认的保证送达报文，按序列号有序
type inflightSet struct {
	pkts []Packet
}

func (s *inflightSet) Len() int { return len(s.pkts) }

func (s *inflightSet) find(seq uint32) (int, bool) {
	return slices.BinarySearchFunc(s.pkts, seq, func(p Packet, seq uint32) int {
		switch {
		case p.Sequence < seq:
			return -1
		case p.Sequence > seq:
			return 1
		}
		return 0
	})
}

// track 记录一个保证送达报文；同序列号重复登记无效果
func (s *inflightSet) track(p Packet) {
	if !p.IsGuaranteed() {
		return
	}
	i, ok := s.find(p.Sequence)
	if ok {
		return
	}
	s.pkts = slices.Insert(s.pkts, i, p)
}

// acknowledge 移除序列号匹配的报文；找不到（重复或过期确认）返回 false
func (s *inflightSet) acknowledge(seq uint32) bool {
	i, ok := s.find(seq)
	if !ok {
		return false
	}
	s.pkts = slices.Delete(s.pkts, i, i+1)
	return true
}

// pending 当前在途报文的有序视图，仅在下一次修改前有效
func (s *inflightSet) pending() []Packet { return s.pkts }

// Sequences 未确认报文的序列号，按升序
func (s *Session) Sequences() []uint32 {
	out := make([]uint32, 0, s.inflight.Len())
	for _, p := range s.inflight.pending() {
		out = append(out, p.Sequence)
	}
	return out
}
