// Package realtime cung cấp WebSocket broker: client đăng ký các stream:room
// và nhận snapshot dữ liệu định kỳ cùng notification realtime.
package realtime

import (
	"encoding/json"
	"time"
)

// Tên các stream dữ liệu và chu kỳ polling của từng stream
const (
	StreamOperations    = "erp_operations"
	StreamSystemHealth  = "system_health"
	StreamAuditTrail    = "audit_trail"
	StreamAnalytics     = "analytics"
	StreamNotifications = "notifications"
)

// StreamIntervals chu kỳ polling của từng stream
var StreamIntervals = map[string]time.Duration{
	StreamOperations:    2 * time.Second,
	StreamSystemHealth:  5 * time.Second,
	StreamAuditTrail:    3 * time.Second,
	StreamAnalytics:     10 * time.Second,
	StreamNotifications: 1 * time.Second,
}

// DefaultRoom room mặc định khi client không chỉ định
const DefaultRoom = "all"

// Các action client gửi lên
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionPing        = "ping"
)

// Các type của message server gửi xuống
const (
	MsgTypeConnected    = "connected"
	MsgTypeSubscribed   = "subscribed"
	MsgTypeUnsubscribed = "unsubscribed"
	MsgTypeInitialData  = "initial_data"
	MsgTypeStreamData   = "stream_data"
	MsgTypeNotification = "notification"
	MsgTypePong         = "pong"
	MsgTypeError        = "error"
)

// ClientMessage là message client gửi lên broker
type ClientMessage struct {
	Action string `json:"action"`
	Stream string `json:"stream,omitempty"`
	Room   string `json:"room,omitempty"`
}

// ServerMessage là message broker gửi xuống client
type ServerMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Stream    string      `json:"stream,omitempty"`
	Room      string      `json:"room,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// encode serialize ServerMessage, gắn timestamp nếu chưa có
func (m ServerMessage) encode() []byte {
	if m.Timestamp == 0 {
		m.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(m)
	if err != nil {
		fallback, _ := json.Marshal(ServerMessage{Type: MsgTypeError, Message: "serialize error", Timestamp: m.Timestamp})
		return fallback
	}
	return data
}

// subscriptionKey ghép stream và room thành key đăng ký "stream:room"
func subscriptionKey(stream, room string) string {
	return stream + ":" + room
}

// IsKnownStream kiểm tra stream có được hỗ trợ không
func IsKnownStream(stream string) bool {
	_, ok := StreamIntervals[stream]
	return ok
}
