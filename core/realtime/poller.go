package realtime

import (
	"context"
	"time"

	"github.com/tanush-em/ERP/core/logger"
)

// Poller chạy một vòng lặp cho mỗi stream: lấy snapshot dữ liệu theo chu kỳ
// của stream và broadcast tới các room đang có người đăng ký.
// Stream không có subscriber nào thì bỏ qua chu kỳ đó, không truy vấn database.
type Poller struct {
	manager *Manager
}

// NewPoller tạo mới Poller trên manager
func NewPoller(manager *Manager) *Poller {
	return &Poller{manager: manager}
}

// Start mở một goroutine polling cho mỗi stream đã đăng ký fetcher
func (p *Poller) Start(ctx context.Context) {
	log := logger.GetAppLogger()
	log.Info("🔄 [REALTIME_POLLER] Starting Stream Pollers...")

	for stream, interval := range StreamIntervals {
		if _, ok := p.manager.fetcher(stream); !ok {
			continue
		}
		go p.pollLoop(ctx, stream, interval)
	}
}

func (p *Poller) pollLoop(ctx context.Context, stream string, interval time.Duration) {
	log := logger.GetAppLogger().WithField("stream", stream)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [REALTIME_POLLER] Stream poller stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithField("panic", r).Error("🔄 [REALTIME_POLLER] Panic trong poll cycle")
					}
				}()
				p.pollOnce(ctx, stream)
			}()
		}
	}
}

// pollOnce lấy dữ liệu và broadcast cho từng room có subscriber
func (p *Poller) pollOnce(ctx context.Context, stream string) {
	rooms := p.manager.RoomsWithSubscribers(stream)
	if len(rooms) == 0 {
		return
	}
	fetcher, ok := p.manager.fetcher(stream)
	if !ok {
		return
	}

	log := logger.GetAppLogger()
	for _, room := range rooms {
		data, err := fetcher(ctx, room)
		if err != nil {
			log.WithError(err).WithFields(map[string]interface{}{
				"stream": stream,
				"room":   room,
			}).Warn("🔄 [REALTIME_POLLER] Không lấy được stream data")
			continue
		}
		p.manager.BroadcastToRoom(stream, room, ServerMessage{
			Type:   MsgTypeStreamData,
			Stream: stream,
			Room:   room,
			Data:   data,
		})
	}
}
