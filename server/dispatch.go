package server

import (
	"errors"
	"net/netip"
)

// processNetworkQueue 处理本 Tick 开始时已到达的数据报
//
// 待处理字节数只在开始时取样一次，之后到达的留给下一个 Tick。
// 只有发送失败会作为错误返回。
func (s *Server) processNetworkQueue() error {
	budget := s.transport.Pending()
	for consumed := 0; consumed < budget; {
		n, from, err := s.transport.Receive(s.recvBuf)
		if err != nil {
			if !errors.Is(err, ErrNoData) {
				s.log.Warnw("receive failed", "err", err)
			}
			return nil
		}
		consumed += n
		s.metrics.inc(&s.metrics.Received)
		if err := s.dispatch(s.recvBuf[:min(n, len(s.recvBuf))], from); err != nil {
			return err
		}
	}
	return nil
}

// dispatch 解码一个数据报并按（发送方是否已知，类型）路由
func (s *Server) dispatch(b []byte, from netip.AddrPort) error {
	var p Packet
	if err := p.UnmarshalBinary(b); err != nil {
		s.metrics.inc(&s.metrics.BadPackets)
		s.log.Warnw("dropping malformed datagram", "from", from, "err", err)
		return nil
	}

	sess := s.sessions.FindByAddress(from)
	if sess == nil {
		if p.Kind != KindJoin {
			s.metrics.inc(&s.metrics.UnknownSender)
			s.log.Warnw("received non-join packet from an unknown client", "from", from, "kind", p.Kind)
			return nil
		}
		return s.handleJoin(from)
	}

	sess.SinceLastPacket = 0
	switch p.Kind {
	case KindUpdate:
		sess.Transform = p.Update
	case KindAcknowledgement:
		s.metrics.inc(&s.metrics.Acks)
		if sess.inflight.acknowledge(p.Ack.Sequence) {
			s.log.Debugw("removed acknowledged packet", "session", sess.ID, "seq", p.Ack.Sequence)
		} else {
			s.metrics.inc(&s.metrics.StaleAcks)
		}
	case KindTouch:
		return s.handleTouch(sess, p.Touch)
	case KindJoin:
		s.metrics.inc(&s.metrics.BadPackets)
		s.log.Warnw("dropping join from already joined client", "session", sess.ID, "from", from)
	default:
		s.metrics.inc(&s.metrics.BadPackets)
		s.log.Warnw("dropping bad packet", "session", sess.ID, "from", from, "kind", p.Kind)
	}
	return nil
}

func (s *Server) handleJoin(from netip.AddrPort) error {
	sess, err := s.createSession(from)
	if err != nil {
		var sendErr *SendError
		if errors.As(err, &sendErr) {
			return err
		}
		s.log.Warnw("rejecting join", "from", from, "err", err)
		return nil
	}
	s.metrics.inc(&s.metrics.Joins)
	s.log.Infow("client joined", "from", from, "session", sess.ID, "it", s.it)
	return nil
}

// handleTouch 抓到 “it”：发起者成为新的 “it”，所有会话重新出生
//
// 接收者必须是当前的 “it”；否则是重复或乱序到达的旧 touch，丢弃。
func (s *Server) handleTouch(from *Session, t TouchPayload) error {
	s.metrics.inc(&s.metrics.Touches)
	instigator := s.sessions.FindByID(t.Instigator)
	if instigator == nil || t.Receiver != s.it || t.Instigator == t.Receiver {
		s.metrics.inc(&s.metrics.StaleTouches)
		s.log.Warnw("dropping stale touch",
			"session", from.ID, "instigator", t.Instigator, "receiver", t.Receiver, "it", s.it)
		return nil
	}

	s.log.Infow("player touched it, resetting game", "instigator", instigator.ID, "it", t.Receiver)
	s.it = instigator.ID
	return s.resetRound()
}

// resetRound 所有会话按出生规则重置，并各自收到新的 Reset
func (s *Server) resetRound() error {
	for _, sess := range s.sessions.All() {
		if err := s.resetSession(sess); err != nil {
			return err
		}
	}
	return nil
}
