package server

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
)

// ErrNoData 非阻塞接收时队列为空
var ErrNoData = errors.New("transport: no data")

// Transport 服务端使用的数据报传输；所有方法都不阻塞
type Transport interface {
	// Pending 已到达但尚未被 Receive 取走的字节数
	Pending() int
	Receive(buf []byte) (int, netip.AddrPort, error)
	Send(buf []byte, to netip.AddrPort) error
}

// BindError 绑定监听端口失败（启动时致命）
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string { return fmt.Sprintf("bind %s: %v", e.Addr, e.Err) }
func (e *BindError) Unwrap() error { return e.Err }

// SendError 发送失败（运行时致命，不重试）
type SendError struct {
	To  netip.AddrPort
	Err error
}

func (e *SendError) Error() string { return fmt.Sprintf("send to %s: %v", e.To, e.Err) }
func (e *SendError) Unwrap() error { return e.Err }

// ErrnoOf 提取底层平台错误码，没有则返回 0
func ErrnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

type datagram struct {
	from netip.AddrPort
	data []byte
}

// UDPTransport 基于 net.UDPConn 的传输
//
// 读协程把数据报搬进有界队列（满则丢弃，和 UDP 本身的语义一致），
// Tick 线程通过 Receive 非阻塞取出。
type UDPTransport struct {
	conn    *net.UDPConn
	queue   chan datagram
	pending atomic.Int64
	dropped atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// Bind 在 host:port 上监听 UDP 并启动读协程
func Bind(host, port string, queueSize int) (*UDPTransport, error) {
	addr := net.JoinHostPort(host, port)
	ua, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	conn, err := net.ListenUDP("udp", ua)
	if err != nil {
		return nil, &BindError{Addr: addr, Err: err}
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	t := &UDPTransport{
		conn:  conn,
		queue: make(chan datagram, queueSize),
		done:  make(chan struct{}),
	}
	go t.readPump()
	return t, nil
}

// LocalAddr 实际监听地址（端口为 0 时可用于获取分配的端口）
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

func (t *UDPTransport) readPump() {
	defer close(t.done)
	buf := make([]byte, 2048)
	for {
		n, from, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Log.Warnw("udp read failed", "err", err)
			continue
		}
		d := datagram{
			from: netip.AddrPortFrom(from.Addr().Unmap(), from.Port()),
			data: append([]byte(nil), buf[:n]...),
		}
		// 先计入再入队，Receive 的扣减不会先于增加
		t.pending.Add(int64(n))
		select {
		case t.queue <- d:
		default:
			t.pending.Add(-int64(n))
			t.dropped.Add(1)
		}
	}
}

func (t *UDPTransport) Pending() int { return int(t.pending.Load()) }

// Dropped 因本地队列满被丢弃的数据报数
func (t *UDPTransport) Dropped() int64 { return t.dropped.Load() }

// Receive 取出一个数据报；超过 buf 长度的部分被截断，返回值为原始长度
func (t *UDPTransport) Receive(buf []byte) (int, netip.AddrPort, error) {
	select {
	case d := <-t.queue:
		t.pending.Add(-int64(len(d.data)))
		copy(buf, d.data)
		return len(d.data), d.from, nil
	default:
		return 0, netip.AddrPort{}, ErrNoData
	}
}

func (t *UDPTransport) Send(buf []byte, to netip.AddrPort) error {
	_, err := t.conn.WriteToUDPAddrPort(buf, to)
	return err
}

// Close 关闭套接字并等待读协程退出
func (t *UDPTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		err = t.conn.Close()
		<-t.done
	})
	return err
}
