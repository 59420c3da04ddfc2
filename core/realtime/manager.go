package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tanush-em/ERP/core/common"
	"github.com/tanush-em/ERP/core/logger"
	"github.com/tanush-em/ERP/core/notification"
)

// Thời gian mặc định của idle reaper
const (
	defaultReapInterval = 60 * time.Second
	defaultIdleTimeout  = 300 * time.Second
)

// StreamFetcher lấy snapshot dữ liệu cho một stream:room.
// Dùng cho cả initial_data khi subscribe lẫn polling định kỳ.
type StreamFetcher func(ctx context.Context, room string) (interface{}, error)

// Manager quản lý vòng đời connection, subscription và broadcast
type Manager struct {
	log *logrus.Logger

	mu          sync.RWMutex
	connections map[string]*Connection

	fetchersMu sync.RWMutex
	fetchers   map[string]StreamFetcher
}

// NewManager tạo mới connection Manager
func NewManager() *Manager {
	return &Manager{
		log:         logger.GetAppLogger(),
		connections: map[string]*Connection{},
		fetchers:    map[string]StreamFetcher{},
	}
}

// RegisterFetcher gắn data fetcher cho một stream (gọi khi khởi tạo app)
func (m *Manager) RegisterFetcher(stream string, fetcher StreamFetcher) {
	m.fetchersMu.Lock()
	defer m.fetchersMu.Unlock()
	m.fetchers[stream] = fetcher
}

func (m *Manager) fetcher(stream string) (StreamFetcher, bool) {
	m.fetchersMu.RLock()
	defer m.fetchersMu.RUnlock()
	f, ok := m.fetchers[stream]
	return f, ok
}

// Register tạo và đăng ký một connection mới
func (m *Manager) Register() *Connection {
	conn := newConnection()
	m.mu.Lock()
	m.connections[conn.ID] = conn
	total := len(m.connections)
	m.mu.Unlock()

	m.log.WithFields(logrus.Fields{
		"sessionId": conn.ID,
		"total":     total,
	}).Info("🔄 [REALTIME] Client connected")

	conn.enqueue(ServerMessage{Type: MsgTypeConnected, SessionID: conn.ID}.encode())
	return conn
}

// Unregister gỡ connection khỏi manager và đóng kênh gửi. Idempotent.
func (m *Manager) Unregister(id string) {
	m.mu.Lock()
	conn, ok := m.connections[id]
	if ok {
		delete(m.connections, id)
	}
	total := len(m.connections)
	m.mu.Unlock()

	if !ok {
		return
	}
	conn.close()
	m.log.WithFields(logrus.Fields{
		"sessionId": id,
		"total":     total,
	}).Info("🔄 [REALTIME] Client disconnected")
}

// get lấy connection theo session id
func (m *Manager) get(id string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.connections[id]
	return conn, ok
}

// Subscribe đăng ký connection vào stream:room và gửi initial_data đồng bộ
// trước khi client nhận bất kỳ update định kỳ nào của stream đó
func (m *Manager) Subscribe(ctx context.Context, connID, stream, room string) error {
	if !IsKnownStream(stream) {
		return common.NewError(common.ErrCodeValidationInput, "Stream không được hỗ trợ: "+stream, common.StatusBadRequest, nil)
	}
	if room == "" {
		room = DefaultRoom
	}
	conn, ok := m.get(connID)
	if !ok {
		return common.ErrNotFound
	}

	conn.Touch()
	conn.subscribe(stream, room)
	conn.enqueue(ServerMessage{Type: MsgTypeSubscribed, Stream: stream, Room: room}.encode())

	// initial_data: snapshot hiện tại của stream, gửi ngay khi subscribe
	if fetcher, has := m.fetcher(stream); has {
		data, err := fetcher(ctx, room)
		if err != nil {
			m.log.WithError(err).WithField("stream", stream).Warn("🔄 [REALTIME] Không lấy được initial data")
		} else {
			conn.enqueue(ServerMessage{Type: MsgTypeInitialData, Stream: stream, Room: room, Data: data}.encode())
		}
	}
	return nil
}

// Unsubscribe hủy đăng ký stream:room. Idempotent.
func (m *Manager) Unsubscribe(connID, stream, room string) {
	if room == "" {
		room = DefaultRoom
	}
	conn, ok := m.get(connID)
	if !ok {
		return
	}
	conn.Touch()
	conn.unsubscribe(stream, room)
	conn.enqueue(ServerMessage{Type: MsgTypeUnsubscribed, Stream: stream, Room: room}.encode())
}

// RoomsWithSubscribers liệt kê các room của một stream đang có người đăng ký
func (m *Manager) RoomsWithSubscribers(stream string) []string {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	prefix := stream + ":"
	seen := map[string]bool{}
	rooms := []string{}
	for _, conn := range conns {
		for _, key := range conn.Subscriptions() {
			if len(key) > len(prefix) && key[:len(prefix)] == prefix {
				room := key[len(prefix):]
				if !seen[room] {
					seen[room] = true
					rooms = append(rooms, room)
				}
			}
		}
	}
	return rooms
}

// BroadcastToRoom gửi payload tới mọi connection đăng ký stream:room.
// Snapshot danh sách connection trước khi gửi để không giữ lock khi enqueue.
func (m *Manager) BroadcastToRoom(stream, room string, msg ServerMessage) int {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	payload := msg.encode()
	sent := 0
	for _, conn := range conns {
		if conn.isSubscribed(stream, room) {
			if conn.enqueue(payload) {
				sent++
			}
		}
	}
	return sent
}

// BroadcastNotification phát một notification tới mọi client đăng ký
// stream notifications. Implement notification.Broadcaster.
func (m *Manager) BroadcastNotification(n notification.Notification) {
	msg := ServerMessage{
		Type:   MsgTypeNotification,
		Stream: StreamNotifications,
		Data:   n,
	}
	for _, room := range m.RoomsWithSubscribers(StreamNotifications) {
		m.BroadcastToRoom(StreamNotifications, room, msg)
	}
}

// ManagerStats thống kê trạng thái broker
type ManagerStats struct {
	Connections   int            `json:"connections"`
	Subscriptions map[string]int `json:"subscriptions"` // key "stream:room" -> số client
}

// Stats trả về snapshot thống kê connection và subscription
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, conn := range m.connections {
		conns = append(conns, conn)
	}
	m.mu.RUnlock()

	stats := ManagerStats{
		Connections:   len(conns),
		Subscriptions: map[string]int{},
	}
	for _, conn := range conns {
		for _, key := range conn.Subscriptions() {
			stats.Subscriptions[key]++
		}
	}
	return stats
}

// StartReaper chạy worker định kỳ đóng các connection không hoạt động.
// Client phải gửi ping hoặc message bất kỳ để giữ phiên sống.
func (m *Manager) StartReaper(ctx context.Context, interval, idleTimeout time.Duration) {
	if interval <= 0 {
		interval = defaultReapInterval
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.WithFields(map[string]interface{}{
		"interval":    interval.String(),
		"idleTimeout": idleTimeout.String(),
	}).Info("🔄 [REALTIME_REAPER] Starting Idle Session Reaper...")

	for {
		select {
		case <-ctx.Done():
			m.log.Info("🔄 [REALTIME_REAPER] Idle Session Reaper stopped")
			return
		case <-ticker.C:
			reaped := m.reapIdle(idleTimeout)
			if reaped > 0 {
				m.log.WithField("reapedCount", reaped).Info("🔄 [REALTIME_REAPER] Closed idle sessions")
			}
		}
	}
}

// reapIdle đóng các connection idle quá idleTimeout, trả về số connection bị đóng
func (m *Manager) reapIdle(idleTimeout time.Duration) int {
	cutoff := time.Now().Add(-idleTimeout)

	m.mu.RLock()
	idle := []string{}
	for id, conn := range m.connections {
		if conn.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.Unregister(id)
	}
	return len(idle)
}
