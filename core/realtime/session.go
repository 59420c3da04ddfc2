package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// sendBufferSize kích thước buffer kênh gửi của mỗi connection.
// Client đọc chậm sẽ bị drop message thay vì chặn broadcaster.
const sendBufferSize = 64

// Connection là một phiên WebSocket đã đăng ký với broker
type Connection struct {
	ID   string
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]bool // key "stream:room"
	lastActive    time.Time
	closed        bool
}

// newConnection tạo mới Connection với session id ngẫu nhiên
func newConnection() *Connection {
	return &Connection{
		ID:            uuid.NewString(),
		send:          make(chan []byte, sendBufferSize),
		subscriptions: map[string]bool{},
		lastActive:    time.Now(),
	}
}

// Send trả về kênh đọc message cần gửi xuống client
func (c *Connection) Send() <-chan []byte {
	return c.send
}

// Touch cập nhật thời điểm hoạt động gần nhất
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

// LastActive trả về thời điểm hoạt động gần nhất
func (c *Connection) LastActive() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActive
}

// subscribe đăng ký một stream:room. Trả về false nếu đã đăng ký trước đó.
func (c *Connection) subscribe(stream, room string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := subscriptionKey(stream, room)
	if c.subscriptions[key] {
		return false
	}
	c.subscriptions[key] = true
	return true
}

// unsubscribe hủy đăng ký. Idempotent: hủy subscription không tồn tại không lỗi.
func (c *Connection) unsubscribe(stream, room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscriptions, subscriptionKey(stream, room))
}

// isSubscribed kiểm tra connection có đăng ký stream:room không
func (c *Connection) isSubscribed(stream, room string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[subscriptionKey(stream, room)]
}

// Subscriptions trả về snapshot danh sách key đăng ký
func (c *Connection) Subscriptions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subscriptions))
	for key := range c.subscriptions {
		out = append(out, key)
	}
	return out
}

// enqueue đẩy message vào kênh gửi, không chặn: client chậm bị drop message.
// Trả về false nếu message bị drop hoặc connection đã đóng.
func (c *Connection) enqueue(payload []byte) bool {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.mu.RUnlock()

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close đóng kênh gửi. Gọi nhiều lần an toàn.
func (c *Connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}
