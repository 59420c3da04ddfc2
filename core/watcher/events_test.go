package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tanush-em/ERP/core/document"
)

func TestBusDeliversToAllHandlers(t *testing.T) {
	bus := NewBus()
	received1 := make(chan ChangeEvent, 1)
	received2 := make(chan ChangeEvent, 1)

	bus.OnCollectionChanged(func(ctx context.Context, e ChangeEvent) { received1 <- e })
	bus.OnCollectionChanged(func(ctx context.Context, e ChangeEvent) { received2 <- e })

	event := ChangeEvent{
		Collection: "students",
		EntityID:   "a1",
		Operation:  "update",
		After:      document.Map(map[string]document.Value{"x": document.Number(1)}),
		Timestamp:  time.Now().UnixMilli(),
	}
	bus.Emit(context.Background(), event)

	for _, ch := range []chan ChangeEvent{received1, received2} {
		select {
		case got := <-ch:
			assert.Equal(t, "students", got.Collection)
			assert.Equal(t, "a1", got.EntityID)
		case <-time.After(2 * time.Second):
			t.Fatal("handler không nhận được event")
		}
	}
}

func TestBusPanicDoesNotAffectOtherHandlers(t *testing.T) {
	bus := NewBus()
	received := make(chan struct{}, 1)

	bus.OnCollectionChanged(func(ctx context.Context, e ChangeEvent) { panic("boom") })
	bus.OnCollectionChanged(func(ctx context.Context, e ChangeEvent) { received <- struct{}{} })

	bus.Emit(context.Background(), ChangeEvent{Collection: "students", EntityID: "a1"})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("handler thứ hai không nhận được event sau panic của handler đầu")
	}
}

func TestNextDelayDoubling(t *testing.T) {
	d := reconnectBaseDelay
	assert.Equal(t, 10*time.Second, nextDelay(d))
	assert.Equal(t, 20*time.Second, nextDelay(10*time.Second))
	assert.Equal(t, 40*time.Second, nextDelay(20*time.Second))
	assert.Equal(t, 60*time.Second, nextDelay(40*time.Second))
	// Đã chạm trần thì giữ nguyên
	assert.Equal(t, 60*time.Second, nextDelay(60*time.Second))
}
