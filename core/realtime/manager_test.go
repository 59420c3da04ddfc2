package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain đọc toàn bộ message đang chờ trong kênh gửi của connection
func drain(conn *Connection) []ServerMessage {
	out := []ServerMessage{}
	for {
		select {
		case payload, ok := <-conn.send:
			if !ok {
				return out
			}
			var msg ServerMessage
			if err := json.Unmarshal(payload, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func TestRegisterSendsConnectedMessage(t *testing.T) {
	m := NewManager()
	conn := m.Register()

	msgs := drain(conn)
	require.NotEmpty(t, msgs)
	assert.Equal(t, MsgTypeConnected, msgs[0].Type)
	assert.Equal(t, conn.ID, msgs[0].SessionID)
	assert.Equal(t, 1, m.Stats().Connections)
}

func TestSubscribeSendsInitialDataSynchronously(t *testing.T) {
	m := NewManager()
	m.RegisterFetcher(StreamSystemHealth, func(ctx context.Context, room string) (interface{}, error) {
		return map[string]interface{}{"cpuPercent": 12.5}, nil
	})

	conn := m.Register()
	drain(conn)

	err := m.Subscribe(context.Background(), conn.ID, StreamSystemHealth, "")
	require.NoError(t, err)

	msgs := drain(conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, MsgTypeSubscribed, msgs[0].Type)
	assert.Equal(t, MsgTypeInitialData, msgs[1].Type)
	assert.Equal(t, StreamSystemHealth, msgs[1].Stream)
	assert.Equal(t, DefaultRoom, msgs[1].Room)
}

func TestSubscribeUnknownStream(t *testing.T) {
	m := NewManager()
	conn := m.Register()

	err := m.Subscribe(context.Background(), conn.ID, "no_such_stream", "all")
	assert.Error(t, err)
}

func TestBroadcastToRoomOnlyReachesSubscribers(t *testing.T) {
	m := NewManager()
	subscribed := m.Register()
	other := m.Register()
	drain(subscribed)
	drain(other)

	require.NoError(t, m.Subscribe(context.Background(), subscribed.ID, StreamOperations, "all"))
	drain(subscribed)

	sent := m.BroadcastToRoom(StreamOperations, "all", ServerMessage{
		Type:   MsgTypeStreamData,
		Stream: StreamOperations,
		Room:   "all",
		Data:   []string{"op1"},
	})
	assert.Equal(t, 1, sent)

	msgs := drain(subscribed)
	require.Len(t, msgs, 1)
	assert.Equal(t, MsgTypeStreamData, msgs[0].Type)
	assert.Empty(t, drain(other))
}

func TestUnsubscribeIdempotent(t *testing.T) {
	m := NewManager()
	conn := m.Register()
	drain(conn)

	require.NoError(t, m.Subscribe(context.Background(), conn.ID, StreamAuditTrail, "students"))
	m.Unsubscribe(conn.ID, StreamAuditTrail, "students")
	// Hủy lần hai không panic, không lỗi
	m.Unsubscribe(conn.ID, StreamAuditTrail, "students")

	assert.Empty(t, m.RoomsWithSubscribers(StreamAuditTrail))
	sent := m.BroadcastToRoom(StreamAuditTrail, "students", ServerMessage{Type: MsgTypeStreamData})
	assert.Equal(t, 0, sent)
}

func TestRoomsWithSubscribers(t *testing.T) {
	m := NewManager()
	c1 := m.Register()
	c2 := m.Register()

	require.NoError(t, m.Subscribe(context.Background(), c1.ID, StreamAuditTrail, "students"))
	require.NoError(t, m.Subscribe(context.Background(), c2.ID, StreamAuditTrail, "courses"))
	require.NoError(t, m.Subscribe(context.Background(), c2.ID, StreamAuditTrail, "students"))

	rooms := m.RoomsWithSubscribers(StreamAuditTrail)
	assert.ElementsMatch(t, []string{"students", "courses"}, rooms)
	assert.Empty(t, m.RoomsWithSubscribers(StreamAnalytics))
}

func TestReapIdleClosesOnlyIdleSessions(t *testing.T) {
	m := NewManager()
	idle := m.Register()
	active := m.Register()

	// Ép session đầu về trạng thái idle
	idle.mu.Lock()
	idle.lastActive = time.Now().Add(-10 * time.Minute)
	idle.mu.Unlock()

	reaped := m.reapIdle(5 * time.Minute)
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 1, m.Stats().Connections)

	_, stillThere := m.get(active.ID)
	assert.True(t, stillThere)
	_, gone := m.get(idle.ID)
	assert.False(t, gone)
}

func TestUnregisterIdempotent(t *testing.T) {
	m := NewManager()
	conn := m.Register()

	m.Unregister(conn.ID)
	// Gỡ lần hai không panic
	m.Unregister(conn.ID)
	assert.Equal(t, 0, m.Stats().Connections)

	// Enqueue sau khi đóng bị drop chứ không panic
	assert.False(t, conn.enqueue([]byte("x")))
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	m := NewManager()
	conn := m.Register()
	drain(conn)
	require.NoError(t, m.Subscribe(context.Background(), conn.ID, StreamOperations, "all"))
	drain(conn)

	// Lấp đầy buffer, các message thừa phải bị drop mà không chặn
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBufferSize*2; i++ {
			m.BroadcastToRoom(StreamOperations, "all", ServerMessage{Type: MsgTypeStreamData, Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast bị chặn bởi client chậm")
	}
}

func TestStatsCountsSubscriptions(t *testing.T) {
	m := NewManager()
	c1 := m.Register()
	c2 := m.Register()

	require.NoError(t, m.Subscribe(context.Background(), c1.ID, StreamNotifications, "all"))
	require.NoError(t, m.Subscribe(context.Background(), c2.ID, StreamNotifications, "all"))

	stats := m.Stats()
	assert.Equal(t, 2, stats.Connections)
	assert.Equal(t, 2, stats.Subscriptions["notifications:all"])
}
