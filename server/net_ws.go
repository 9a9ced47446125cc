package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ClientConn 观察者连接的发送端包装
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 16),
	}
}

// Enqueue 将消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 为了不拖慢 Tick，丢弃
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump 观察者不发送数据；读到错误即视为断开
func (c *ClientConn) readPump(h *ObserverHub) {
	defer h.remove(c)
	c.ws.SetReadLimit(512)
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// ObserverHub 将会话列表快照推送给所有 websocket 观察者
type ObserverHub struct {
	mu      sync.Mutex
	clients map[*ClientConn]struct{}

	upgrader websocket.Upgrader
}

func NewObserverHub() *ObserverHub {
	return &ObserverHub{
		clients: make(map[*ClientConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// 只读诊断数据：允许所有来源
				return true
			},
		},
	}
}

// Publish 由 Tick 线程调用，不阻塞
func (h *ObserverHub) Publish(r Roster) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	payload := struct {
		Type string `json:"type"`
		Roster
	}{Type: "roster", Roster: r}
	b, err := json.Marshal(payload)
	if err != nil {
		Log.Warnw("encode roster", "err", err)
		return
	}
	for c := range h.clients {
		c.Enqueue(b)
	}
}

// Len 当前观察者数量
func (h *ObserverHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *ObserverHub) remove(c *ClientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		// 关闭发送通道以结束写协程
		close(c.send)
	}
}

// ServeHTTP websocket 接入：GET /observe
func (h *ObserverHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnw("observer upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := NewClientConn(ws)
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	Log.Infow("observer connected", "remote", r.RemoteAddr)

	go c.writePump()
	go c.readPump(h)
}

// Close 断开所有观察者
func (h *ObserverHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
