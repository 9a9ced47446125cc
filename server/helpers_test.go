package server

import (
	"net/netip"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type sentPacket struct {
	to  netip.AddrPort
	pkt Packet
}

// fakeTransport 内存传输：inbox 为待接收队列，sent 记录所有发出的报文
type fakeTransport struct {
	inbox []datagram
	// late 在下一次 Pending 取样之后才“到达”
	late     []datagram
	sent     []sentPacket
	failSend error
}

func (f *fakeTransport) Pending() int {
	n := 0
	for _, d := range f.inbox {
		n += len(d.data)
	}
	f.inbox = append(f.inbox, f.late...)
	f.late = nil
	return n
}

func (f *fakeTransport) Receive(buf []byte) (int, netip.AddrPort, error) {
	if len(f.inbox) == 0 {
		return 0, netip.AddrPort{}, ErrNoData
	}
	d := f.inbox[0]
	f.inbox = f.inbox[1:]
	copy(buf, d.data)
	return len(d.data), d.from, nil
}

func (f *fakeTransport) Send(buf []byte, to netip.AddrPort) error {
	if f.failSend != nil {
		return f.failSend
	}
	var p Packet
	if err := p.UnmarshalBinary(buf); err != nil {
		panic(err)
	}
	f.sent = append(f.sent, sentPacket{to: to, pkt: p})
	return nil
}

func (f *fakeTransport) deliver(from netip.AddrPort, p Packet) {
	b, _ := p.MarshalBinary()
	f.inbox = append(f.inbox, datagram{from: from, data: b})
}

func (f *fakeTransport) deliverRaw(from netip.AddrPort, b []byte) {
	f.inbox = append(f.inbox, datagram{from: from, data: b})
}

// sentTo 返回发往 to 的报文（可按类型过滤，KindJoin 之外的类型）
func (f *fakeTransport) sentTo(to netip.AddrPort, kind Kind) []Packet {
	var out []Packet
	for _, s := range f.sent {
		if s.to == to && s.pkt.Kind == kind {
			out = append(out, s.pkt)
		}
	}
	return out
}

func (f *fakeTransport) reset() { f.sent = nil }

type captureSink struct {
	rosters []Roster
}

func (c *captureSink) Publish(r Roster) { c.rosters = append(c.rosters, r) }

func addr(n byte) netip.AddrPort {
	return netip.AddrPortFrom(netip.AddrFrom4([4]byte{10, 0, 0, n}), 5000+uint16(n))
}

type testServer struct {
	*Server
	net  *fakeTransport
	logs *observer.ObservedLogs
}

// newTestServer 使用确定性的随机数（固定 0.25）和单调递增的时钟
func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RosterInterval = 0
	for _, m := range mutate {
		m(&cfg)
	}
	core, logs := observer.New(zapcore.DebugLevel)
	var now float64
	ft := &fakeTransport{}
	srv := NewServer(cfg, ft, Options{
		Logger: zap.New(core).Sugar(),
		Rand:   func() float64 { return 0.25 },
		Clock: func() float64 {
			now++
			return now
		},
	})
	return &testServer{Server: srv, net: ft, logs: logs}
}

func (ts *testServer) tick(t *testing.T, dt float64) {
	t.Helper()
	if err := ts.Update(dt); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func (ts *testServer) join(t *testing.T, a netip.AddrPort) *Session {
	t.Helper()
	ts.net.deliver(a, Packet{Kind: KindJoin})
	ts.tick(t, 0.01)
	s := ts.Sessions().FindByAddress(a)
	if s == nil {
		t.Fatalf("no session for %s after join", a)
	}
	return s
}
