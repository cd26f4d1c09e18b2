package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/agent/collaboration"
)

const (
	// DefaultBufferSize 每个连接待发送事件的缓冲数
	DefaultBufferSize = 32
	// DefaultWriteTimeout 单条消息写超时
	DefaultWriteTimeout = 10 * time.Second
	// DefaultPingInterval 心跳间隔
	DefaultPingInterval = 30 * time.Second
)

// Observer 接收连接数变化，通常由 metrics.Collector 实现
type Observer interface {
	WebSocketOpened()
	WebSocketClosed()
}

// Config 房间广播配置
type Config struct {
	BufferSize   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	// AllowedOrigins 允许的浏览器来源（如 http://localhost:5173），为空时只允许同源
	AllowedOrigins []string
}

// Hub 按房间把协作事件推送给 WebSocket 客户端。
// 发送缓冲写满的客户端会被断开，不阻塞协作引擎。
type Hub struct {
	config   Config
	origins  []string
	observer Observer
	logger   *zap.Logger

	mu     sync.RWMutex
	rooms  map[string]map[uuid.UUID]*client
	closed bool
}

type client struct {
	id   uuid.UUID
	room string
	send chan []byte

	once   sync.Once
	done   chan struct{}
	status websocket.StatusCode
	reason string
}

// kick 通知写循环以指定状态码关闭连接，只生效一次
func (c *client) kick(status websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.status = status
		c.reason = reason
		close(c.done)
	})
}

// NewHub 创建房间广播器
func NewHub(config Config, observer Observer, logger *zap.Logger) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultPingInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		config:   config,
		origins:  originPatterns(config.AllowedOrigins),
		observer: observer,
		logger:   logger.With(zap.String("component", "ws_hub")),
		rooms:    make(map[string]map[uuid.UUID]*client),
	}
}

// originPatterns 把来源 URL 转换为 websocket.AcceptOptions 需要的 host 模式
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			o = u.Host
		}
		out = append(out, o)
	}
	return out
}

// Publish 把事件推送给房间内所有客户端，可作为 collaboration.Options.OnEvent
func (h *Hub) Publish(ev collaboration.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("room_id", ev.RoomID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[ev.RoomID] {
		h.deliver(c, msg)
	}
}

func (h *Hub) deliver(c *client, msg []byte) {
	select {
	case <-c.done:
	case c.send <- msg:
	default:
		h.logger.Warn("dropping slow websocket client", zap.String("room_id", c.room), zap.String("client_id", c.id.String()))
		c.kick(websocket.StatusPolicyViolation, "slow consumer")
	}
}

// Clients 返回房间当前连接数
func (h *Hub) Clients(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[uuid.UUID]*client)
		h.rooms[c.room] = members
	}
	members[c.id] = c
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[c.room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(h.rooms, c.room)
		}
	}
}

// Close 以 going away 断开所有客户端，之后的连接请求返回 503
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, members := range h.rooms {
		for _, c := range members {
			c.kick(websocket.StatusGoingAway, "server shutting down")
		}
	}
}

// ServeHTTP 处理 GET /api/v1/rooms/{room}/ws。连接只用于服务端推送，
// 客户端发来的数据消息会导致连接关闭。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := strings.TrimSpace(r.PathValue("room"))
	if room == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}

	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	// 长连接不受 http.Server 读写超时限制
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.String("room_id", room), zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.New(),
		room: room,
		send: make(chan []byte, h.config.BufferSize),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if h.observer != nil {
		h.observer.WebSocketOpened()
	}
	log := h.logger.With(zap.String("room_id", room), zap.String("client_id", c.id.String()))
	log.Debug("websocket client connected")

	defer func() {
		h.unregister(c)
		if h.observer != nil {
			h.observer.WebSocketClosed()
		}
		log.Debug("websocket client disconnected", zap.Int("status", int(c.status)))
	}()

	ctx := conn.CloseRead(r.Context())
	h.writeLoop(ctx, conn, c)
}

func (h *Hub) writeLoop(ctx context.Context, conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.send:
			if err := h.write(ctx, conn, msg); err != nil {
				c.kick(websocket.StatusInternalError, "write failed")
				_ = conn.CloseNow()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.kick(websocket.StatusInternalError, "ping failed")
				_ = conn.CloseNow()
				return
			}
		case <-c.done:
			_ = conn.Close(c.status, c.reason)
			return
		case <-ctx.Done():
			c.kick(websocket.StatusNormalClosure, "")
			_ = conn.CloseNow()
			return
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, h.config.WriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, msg)
}
