package realtime

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"

	"github.com/tanush-em/ERP/core/logger"
)

// ServeWS xử lý một kết nối WebSocket: đăng ký session với manager,
// bơm message từ kênh gửi xuống client và đọc các action subscribe/
// unsubscribe/ping từ client. Mount qua fiber adaptor.
func (m *Manager) ServeWS(w http.ResponseWriter, r *http.Request) {
	log := logger.GetAppLogger()

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// CORS đã được xử lý ở tầng Fiber middleware
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.WithError(err).Error("🔄 [REALTIME] websocket accept")
		return
	}
	defer wsConn.CloseNow()

	conn := m.Register()
	defer m.Unregister(conn.ID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer: bơm kênh gửi xuống client
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		for payload := range conn.Send() {
			if err := wsConn.Write(ctx, websocket.MessageText, payload); err != nil {
				cancel()
				return
			}
		}
		_ = wsConn.Close(websocket.StatusNormalClosure, "session closed")
	}()

	// Reader: xử lý action từ client tới khi client đóng hoặc session bị reap
	for {
		msgType, data, err := wsConn.Read(ctx)
		if err != nil {
			break
		}
		if msgType != websocket.MessageText {
			continue
		}
		m.handleClientMessage(ctx, conn, data)
	}

	cancel()
	m.Unregister(conn.ID)
	<-writeDone
}

// handleClientMessage parse và dispatch một message từ client
func (m *Manager) handleClientMessage(ctx context.Context, conn *Connection, data []byte) {
	conn.Touch()

	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		conn.enqueue(ServerMessage{Type: MsgTypeError, Message: "Message không hợp lệ"}.encode())
		return
	}

	switch msg.Action {
	case ActionPing:
		conn.enqueue(ServerMessage{Type: MsgTypePong}.encode())
	case ActionSubscribe:
		if err := m.Subscribe(ctx, conn.ID, msg.Stream, msg.Room); err != nil {
			conn.enqueue(ServerMessage{Type: MsgTypeError, Message: err.Error()}.encode())
		}
	case ActionUnsubscribe:
		m.Unsubscribe(conn.ID, msg.Stream, msg.Room)
	default:
		conn.enqueue(ServerMessage{Type: MsgTypeError, Message: "Action không được hỗ trợ: " + msg.Action}.encode())
	}
}
