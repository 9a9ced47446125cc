package server

import (
	"context"
	"time"
)

// Update 推进一个 Tick（dt 为游戏时间秒数）
//
// 核心循环：处理网络队列 → 更新世界 → 广播 → 超时清理 → 重传 → 诊断输出。
// 返回的错误只可能是 *SendError，调用方应当终止进程。
func (s *Server) Update(dt float64) error {
	start := time.Now()
	defer func() { s.metrics.AddTick(time.Since(start).Nanoseconds()) }()
	s.tick++
	if dc, ok := s.transport.(droppedCounter); ok {
		s.metrics.setQueueDrops(dc.Dropped())
	}

	if err := s.processNetworkQueue(); err != nil {
		return err
	}
	s.updateGameState(dt)
	if err := s.broadcastGameState(); err != nil {
		return err
	}
	if err := s.evictTimedOut(dt); err != nil {
		return err
	}
	if err := s.resendUnacknowledged(dt); err != nil {
		return err
	}
	s.reportRoster(dt)
	return nil
}

// updateGameState 预留：位置由客户端上报，服务端不做模拟
func (s *Server) updateGameState(dt float64) {}

// broadcastGameState 每个会话的状态以非保证报文发给其他所有会话
// 开销为 O(n²) 次发送，只适合少量玩家
func (s *Server) broadcastGameState() error {
	all := s.sessions.All()
	for _, owner := range all {
		p := Packet{
			Kind:      KindUpdate,
			SessionID: owner.ID,
			Update:    owner.Transform,
		}
		for _, recv := range all {
			if recv == owner {
				continue
			}
			p.Sequence = recv.nextSequence()
			if err := s.send(&p, recv); err != nil {
				return err
			}
		}
	}
	return nil
}

// evictTimedOut 推进存活计时并移除超时会话，不通知任何一方
func (s *Server) evictTimedOut(dt float64) error {
	for _, sess := range s.sessions.All() {
		sess.SinceLastPacket += dt
	}
	evicted := s.sessions.EvictTimedOut(s.cfg.SessionTimeout)
	lostIt := false
	for _, sess := range evicted {
		s.metrics.inc(&s.metrics.Evictions)
		s.log.Infow("removed client for timing out",
			"session", sess.ID, "addr", sess.Addr, "unacked", sess.Unacked())
		if sess.ID == s.it {
			lostIt = true
		}
	}
	if !lostIt {
		return nil
	}

	// “it” 离开：最早加入的剩余会话静默接任；无人时等待下一个加入者
	s.it = 0
	if s.sessions.Len() == 0 {
		return nil
	}
	s.it = s.sessions.All()[0].ID
	s.log.Infow("it player timed out, handing over", "it", s.it)
	if !s.cfg.ResetOnItTimeout {
		return nil
	}
	return s.resetRound()
}

// resendUnacknowledged 重发所有会话的在途保证送达报文
//
// 序列号保持不变，只刷新时间戳。ResendEvery 为 0 时每个 Tick 都重发。
func (s *Server) resendUnacknowledged(dt float64) error {
	if s.cfg.ResendEvery > 0 {
		s.sinceResend += dt
		if s.sinceResend < s.cfg.ResendEvery {
			return nil
		}
		s.sinceResend = 0
	}
	for _, sess := range s.sessions.All() {
		for _, p := range sess.inflight.pending() {
			if err := s.send(&p, sess); err != nil {
				return err
			}
			s.metrics.inc(&s.metrics.Retransmits)
		}
	}
	return nil
}

// reportRoster 定期打印已连接会话并发布快照
func (s *Server) reportRoster(dt float64) {
	if s.cfg.RosterInterval <= 0 {
		return
	}
	if s.sinceRosterLog > s.cfg.RosterInterval {
		r := s.roster()
		s.logRoster(r)
		for _, sink := range s.sinks {
			sink.Publish(r)
		}
		s.sinceRosterLog = 0
	}
	s.sinceRosterLog += dt
}

func (s *Server) logRoster(r Roster) {
	if len(r.Sessions) == 0 {
		s.log.Info("no clients currently connected")
		return
	}
	s.log.Infow("connected clients", "count", len(r.Sessions), "it", r.It)
	for _, c := range r.Sessions {
		s.log.Infow("client",
			"session", c.ID, "addr", c.Addr, "lastPacketAgo", c.SinceLastPacket, "unacked", c.Unacked)
	}
}

// RunFixedStep 以固定步长驱动 Update，直到 ctx 结束或 Update 出错
func RunFixedStep(ctx context.Context, s *Server, ticksPerSecond int) error {
	if ticksPerSecond <= 0 {
		ticksPerSecond = DefaultTickRate
	}
	interval := time.Second / time.Duration(ticksPerSecond)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.Update(dt); err != nil {
				return err
			}
		}
	}
}
