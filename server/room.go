package server

import (
	"errors"
	"fmt"
)

// RoomID 房间编号；RoomNone 表示未分配
//
// 房间仅是会话到房间的可选映射，目前没有任何流程会自动分配房间。
type RoomID uint16

const RoomNone RoomID = 0

var ErrUnknownSession = errors.New("session: unknown id")

// AssignRoom 将会话移入房间；owns 表示该会话是否为房主
func (r *Registry) AssignRoom(id SessionID, room RoomID, owns bool) error {
	s := r.FindByID(id)
	if s == nil {
		return fmt.Errorf("assign room %d: %w: %d", room, ErrUnknownSession, id)
	}
	s.Room = room
	s.OwnsRoom = owns && room != RoomNone
	return nil
}

// InRoom 返回房间内的会话（插入顺序）
func (r *Registry) InRoom(room RoomID) []*Session {
	var out []*Session
	for _, s := range r.sessions {
		if s.Room == room {
			out = append(out, s)
		}
	}
	return out
}
