package server

import (
	"errors"
	"net/netip"
)

// ErrIDsExhausted 编号空间用尽（编号不复用）
var ErrIDsExhausted = errors.New("session: id space exhausted")

// SessionID 会话编号，从 1 开始单调分配，进程生命周期内不复用；0 表示“无”
type SessionID = uint16

// Session 一个已连接玩家的服务端记录
type Session struct {
	ID   SessionID
	Addr netip.AddrPort // 加入时的网络身份

	// NextSequence 发往该会话的下一个序列号，从 1 开始，每发一个包加一
	NextSequence uint32
	// SinceLastPacket 距上次收到该会话报文的秒数（游戏时间）
	SinceLastPacket float64

	Transform Transform

	inflight inflightSet

	Room     RoomID
	OwnsRoom bool
}

// Unacked 当前未确认的保证送达报文数
func (s *Session) Unacked() int { return s.inflight.Len() }

// nextSequence 取出并递增序列号
func (s *Session) nextSequence() uint32 {
	n := s.NextSequence
	s.NextSequence++
	return n
}

// Registry 会话集合：保持插入顺序，并按地址和编号建立索引
type Registry struct {
	sessions []*Session
	byAddr   map[netip.AddrPort]*Session
	byID     map[SessionID]*Session
	nextID   SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		byAddr: make(map[netip.AddrPort]*Session),
		byID:   make(map[SessionID]*Session),
		nextID: 1,
	}
}

// Add 为新地址分配下一个编号并登记；调用方保证地址尚未登记
func (r *Registry) Add(addr netip.AddrPort) (*Session, error) {
	if r.nextID == 0 {
		return nil, ErrIDsExhausted
	}
	s := &Session{
		ID:           r.nextID,
		Addr:         addr,
		NextSequence: 1,
	}
	r.nextID++
	r.sessions = append(r.sessions, s)
	r.byAddr[addr] = s
	r.byID[s.ID] = s
	return s, nil
}

func (r *Registry) FindByAddress(addr netip.AddrPort) *Session { return r.byAddr[addr] }

func (r *Registry) FindByID(id SessionID) *Session { return r.byID[id] }

// All 按插入顺序返回所有会话；返回的切片在下一次修改前有效
func (r *Registry) All() []*Session { return r.sessions }

func (r *Registry) Len() int { return len(r.sessions) }

// EvictTimedOut 移除所有超时（严格大于 threshold）的会话，返回被移除者
func (r *Registry) EvictTimedOut(threshold float64) []*Session {
	var evicted []*Session
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if s.SinceLastPacket > threshold {
			evicted = append(evicted, s)
			delete(r.byAddr, s.Addr)
			delete(r.byID, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	clear(r.sessions[len(kept):])
	r.sessions = kept
	return evicted
}
