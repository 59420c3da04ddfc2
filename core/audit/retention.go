package audit

import (
	"context"
	"time"

	"github.com/tanush-em/ERP/core/logger"
)

// RetentionWorker worker dọn dẹp change records quá hạn lưu trữ.
// Record đã rollback và record loại rollback được giữ lại vĩnh viễn.
type RetentionWorker struct {
	store         *ChangeRecordStore
	interval      time.Duration // Khoảng thời gian giữa các lần chạy
	retentionDays int           // Số ngày lưu trữ change records
}

// NewRetentionWorker tạo mới RetentionWorker
// Tham số:
//   - store: change record store
//   - interval: Khoảng thời gian giữa các lần chạy (mặc định: 24 giờ)
//   - retentionDays: Số ngày lưu trữ (mặc định: 365)
func NewRetentionWorker(store *ChangeRecordStore, interval time.Duration, retentionDays int) *RetentionWorker {
	if interval < time.Hour {
		interval = 24 * time.Hour
	}
	if retentionDays < 1 {
		retentionDays = 365
	}
	return &RetentionWorker{
		store:         store,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

// Start bắt đầu background worker dọn dẹp records quá hạn.
// Chạy một lần ngay khi start rồi chạy định kỳ theo interval.
func (w *RetentionWorker) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval":      w.interval.String(),
		"retentionDays": w.retentionDays,
	}).Info("🔄 [AUDIT_RETENTION] Starting Audit Retention Worker...")

	w.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [AUDIT_RETENTION] Audit Retention Worker stopped")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *RetentionWorker) runOnce(ctx context.Context) {
	log := logger.GetAppLogger()

	defer func() {
		if r := recover(); r != nil {
			log.WithFields(map[string]interface{}{
				"panic": r,
			}).Error("🔄 [AUDIT_RETENTION] Panic khi dọn dẹp change records, sẽ tiếp tục ở lần chạy tiếp theo")
		}
	}()

	cutoff := time.Now().AddDate(0, 0, -w.retentionDays).UnixMilli()
	purged, err := w.store.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("🔄 [AUDIT_RETENTION] Failed to purge expired change records")
		return
	}

	if purged > 0 {
		log.WithFields(map[string]interface{}{
			"purgedCount":   purged,
			"retentionDays": w.retentionDays,
		}).Info("🔄 [AUDIT_RETENTION] Purged expired change records")
	}
	// Nếu purged = 0, không log (giảm log noise)
}
