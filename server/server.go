package server

import (
	"math"
	"math/rand/v2"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

// RosterSink 接收周期性的会话列表快照
type RosterSink interface {
	Publish(Roster)
}

// Options 构造 Server 的可选依赖；零值字段使用默认实现
type Options struct {
	Logger *zap.SugaredLogger
	// Rand 返回 [0,1) 的随机数，用于出生点
	Rand func() float64
	// Clock 返回发送时间戳（秒）
	Clock   func() float64
	Metrics *Metrics
	Sinks   []RosterSink
}

// Server 权威会话状态：注册表、“it” 编号与计时器
//
// 所有状态只由 Update 的单一调用栈读写，不加锁。
type Server struct {
	cfg       Config
	transport Transport
	log       *zap.SugaredLogger
	rand      func() float64
	clock     func() float64
	metrics   *Metrics
	sinks     []RosterSink

	sessions *Registry
	it       SessionID

	tick           int64
	sinceResend    float64
	sinceRosterLog float64
	recvBuf        []byte
	sendBuf        [PacketSize]byte
}

func NewServer(cfg Config, t Transport, opts Options) *Server {
	s := &Server{
		cfg:       cfg,
		transport: t,
		log:       opts.Logger,
		rand:      opts.Rand,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		sinks:     opts.Sinks,
		sessions:  NewRegistry(),
		recvBuf:   make([]byte, 2048),
	}
	if s.log == nil {
		s.log = Log
	}
	if s.rand == nil {
		s.rand = rand.Float64
	}
	if s.clock == nil {
		start := time.Now()
		s.clock = func() float64 { return time.Since(start).Seconds() }
	}
	if s.metrics == nil {
		s.metrics = &Metrics{}
	}
	if s.cfg.SpawnExtent <= 0 {
		s.cfg.SpawnExtent = DefaultSpawnExtent
	}
	if s.cfg.SessionTimeout <= 0 {
		s.cfg.SessionTimeout = DefaultSessionTimeout
	}
	return s
}

// Sessions 会话注册表（只应在 Tick 线程内使用）
func (s *Server) Sessions() *Registry { return s.sessions }

// droppedCounter 可报告本地丢弃数的传输（如 UDPTransport）
type droppedCounter interface {
	Dropped() int64
}

// It 当前 “it” 会话编号；没有会话加入过时为 0
func (s *Server) It() SessionID { return s.it }

func (s *Server) Metrics() *Metrics { return s.metrics }

// createSession 为新地址建立会话，发送保证送达的 Reset
func (s *Server) createSession(addr netip.AddrPort) (*Session, error) {
	sess, err := s.sessions.Add(addr)
	if err != nil {
		return nil, err
	}
	if err := s.resetSession(sess); err != nil {
		return sess, err
	}
	return sess, nil
}

// resetSession 按出生规则重置会话，并发送携带新状态的 Reset
func (s *Server) resetSession(sess *Session) error {
	if s.it == 0 {
		// 只有第一个加入的玩家会遇到
		s.it = sess.ID
	}
	t := Transform{X: s.spawnCoord()}
	if sess.ID != s.it {
		t.Y = s.spawnCoord()
	}
	sess.Transform = t

	p := Packet{
		Kind:      KindReset,
		SessionID: sess.ID,
		Sequence:  sess.nextSequence(),
		Reset:     ResetPayload{It: s.it, Transform: t},
	}
	return s.send(&p, sess)
}

// spawnCoord 返回 [0, SpawnExtent) 内的坐标
// 随机数接近 1 时 float32 舍入可能得到边界值，需收回到区间内
func (s *Server) spawnCoord() float32 {
	extent := float32(s.cfg.SpawnExtent)
	v := float32(s.rand() * s.cfg.SpawnExtent)
	if v >= extent {
		v = math.Nextafter32(extent, 0)
	}
	return v
}

// send 写入时间戳并发送；保证送达的报文进入在途集合
func (s *Server) send(p *Packet, sess *Session) error {
	p.Timestamp = s.clock()
	p.Encode(s.sendBuf[:])
	if err := s.transport.Send(s.sendBuf[:], sess.Addr); err != nil {
		return &SendError{To: sess.Addr, Err: err}
	}
	s.metrics.inc(&s.metrics.Sent)
	sess.inflight.track(*p)
	return nil
}

// roster 构造当前会话列表快照
func (s *Server) roster() Roster {
	r := Roster{Tick: s.tick, It: s.it, Sessions: make([]SessionInfo, 0, s.sessions.Len())}
	for _, sess := range s.sessions.All() {
		r.Sessions = append(r.Sessions, SessionInfo{
			ID:              sess.ID,
			Addr:            sess.Addr.String(),
			SinceLastPacket: sess.SinceLastPacket,
			Unacked:         sess.Unacked(),
			X:               sess.Transform.X,
			Y:               sess.Transform.Y,
			It:              sess.ID == s.it,
			Room:            sess.Room,
		})
	}
	return r
}
