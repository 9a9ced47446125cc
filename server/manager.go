package server

import "sync"

// SessionInfo 会话的只读视图（诊断输出与管理接口使用）
type SessionInfo struct {
	ID              SessionID `json:"id"`
	Addr            string    `json:"addr"`
	SinceLastPacket float64   `json:"sinceLastPacket"`
	Unacked         int       `json:"unacked"`
	X               float32   `json:"x"`
	Y               float32   `json:"y"`
	It              bool      `json:"it"`
	Room            RoomID    `json:"room,omitempty"`
}

// Roster 某一 Tick 的会话列表快照
type Roster struct {
	Tick     int64         `json:"tick"`
	It       SessionID     `json:"it"`
	Sessions []SessionInfo `json:"sessions"`
}

// RosterStore 保存最近一次发布的快照，供 HTTP 协程并发读取
type RosterStore struct {
	mu     sync.RWMutex
	latest Roster
}

func (s *RosterStore) Publish(r Roster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
}

// Latest 返回快照副本
func (s *RosterStore) Latest() Roster {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.latest
	r.Sessions = append([]SessionInfo(nil), s.latest.Sessions...)
	return r
}
