// Package watcher theo dõi MongoDB change streams trên các collection ERP,
// tái tạo before-state và phát sự kiện thay đổi cho các consumer trong process
// (audit trail, notification hub, realtime broker).
package watcher

import (
	"context"
	"sync"

	"github.com/tanush-em/ERP/core/document"
	"github.com/tanush-em/ERP/core/logger"
)

// ChangeEvent mô tả một thay đổi dữ liệu quan sát được từ change stream
type ChangeEvent struct {
	Collection string
	EntityID   string
	Operation  string // create | update | delete
	Before     document.Value
	After      document.Value
	Timestamp  int64 // UnixMilli
}

// ChangeHandler xử lý sự kiện thay đổi dữ liệu
type ChangeHandler func(ctx context.Context, e ChangeEvent)

// Bus phân phối ChangeEvent tới các handler đã đăng ký.
// Mỗi handler chạy trong goroutine riêng, panic được recover để không ảnh hưởng
// handler khác.
type Bus struct {
	mu       sync.RWMutex
	handlers []ChangeHandler
}

// NewBus tạo mới event bus
func NewBus() *Bus {
	return &Bus{}
}

// OnCollectionChanged đăng ký handler nhận mọi ChangeEvent
func (b *Bus) OnCollectionChanged(h ChangeHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit phát sự kiện tới toàn bộ handler
func (b *Bus) Emit(ctx context.Context, e ChangeEvent) {
	b.mu.RLock()
	list := make([]ChangeHandler, len(b.handlers))
	copy(list, b.handlers)
	b.mu.RUnlock()

	for _, h := range list {
		go func(fn ChangeHandler) {
			defer func() {
				if r := recover(); r != nil {
					logger.GetErrorLogger().WithField("panic", r).Error("Panic trong change event handler")
				}
			}()
			fn(ctx, e)
		}(h)
	}
}
