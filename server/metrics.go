package server

import (
	"sync/atomic"
)

// Metrics 记录服务端运行期的关键指标；Tick 线程写，HTTP 读
type Metrics struct {
	TickCount     int64
	TotalTickNs   int64
	Received      int64 // 收到的数据报
	Sent          int64 // 发出的报文（含重传）
	Retransmits   int64
	Joins         int64
	UnknownSender int64 // 未知地址发来的非 join 报文
	BadPackets    int64 // 解码失败、重复 join、未知类型
	Acks          int64
	StaleAcks     int64 // 找不到对应在途报文的确认
	Touches       int64
	StaleTouches  int64
	Evictions     int64
	QueueDrops    int64 // 传输层队列满丢弃的数据报（累计值）
}

func (m *Metrics) inc(p *int64) { atomic.AddInt64(p, 1) }

func (m *Metrics) setQueueDrops(n int64) { atomic.StoreInt64(&m.QueueDrops, n) }

func (m *Metrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
}

// Snapshot 返回只读副本，便于 HTTP 输出
func (m *Metrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":     tick,
		"avg_tick_ms":    avgMs,
		"received":       atomic.LoadInt64(&m.Received),
		"sent":           atomic.LoadInt64(&m.Sent),
		"retransmits":    atomic.LoadInt64(&m.Retransmits),
		"joins":          atomic.LoadInt64(&m.Joins),
		"unknown_sender": atomic.LoadInt64(&m.UnknownSender),
		"bad_packets":    atomic.LoadInt64(&m.BadPackets),
		"acks":           atomic.LoadInt64(&m.Acks),
		"stale_acks":     atomic.LoadInt64(&m.StaleAcks),
		"touches":        atomic.LoadInt64(&m.Touches),
		"stale_touches":  atomic.LoadInt64(&m.StaleTouches),
		"evictions":      atomic.LoadInt64(&m.Evictions),
		"queue_drops":    atomic.LoadInt64(&m.QueueDrops),
	}
}
