package monitor

import (
	"context"
	"time"

	"github.com/tanush-em/ERP/core/logger"
)

// StuckOperationWorker worker dọn các operation in_progress bị treo quá lâu,
// chuyển sang failed để failure rate phản ánh đúng thực tế
type StuckOperationWorker struct {
	operationService *OperationService
	interval         time.Duration
	timeout          time.Duration // Thời gian in_progress tối đa trước khi coi là treo
}

// NewStuckOperationWorker tạo mới StuckOperationWorker
// Tham số:
//   - interval: Khoảng thời gian giữa các lần chạy (mặc định: 5 phút)
//   - timeout: Thời gian in_progress tối đa (mặc định: 30 phút)
func NewStuckOperationWorker(operationService *OperationService, interval, timeout time.Duration) *StuckOperationWorker {
	if interval < time.Minute {
		interval = 5 * time.Minute
	}
	if timeout < 5*time.Minute {
		timeout = 30 * time.Minute
	}
	return &StuckOperationWorker{
		operationService: operationService,
		interval:         interval,
		timeout:          timeout,
	}
}

// Start bắt đầu background worker dọn các operation bị treo
func (w *StuckOperationWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval": w.interval.String(),
		"timeout":  w.timeout.String(),
	}).Info("🔄 [STUCK_OPERATION] Starting Stuck Operation Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [STUCK_OPERATION] Stuck Operation Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🔄 [STUCK_OPERATION] Panic khi dọn operation treo, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()

				marked, err := w.operationService.MarkStuckAsFailed(ctx, w.timeout)
				if err != nil {
					log.WithError(err).Error("🔄 [STUCK_OPERATION] Failed to mark stuck operations")
					return
				}
				if marked > 0 {
					log.WithFields(map[string]interface{}{
						"markedCount": marked,
						"timeout":     w.timeout.String(),
					}).Info("🔄 [STUCK_OPERATION] Marked stuck operations as failed")
				}
			}()
		}
	}
}
