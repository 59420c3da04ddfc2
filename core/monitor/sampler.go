package monitor

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tanush-em/ERP/core/logger"
)

// HealthSampler worker lấy mẫu CPU/memory/disk và kiểm tra kết nối MongoDB
// định kỳ, ghi vào collection system_health
type HealthSampler struct {
	healthService *HealthService
	client        *mongo.Client
	interval      time.Duration
	diskPath      string
}

// NewHealthSampler tạo mới HealthSampler
// Tham số:
//   - interval: Khoảng thời gian giữa các lần lấy mẫu (mặc định: 30 giây)
func NewHealthSampler(healthService *HealthService, client *mongo.Client, interval time.Duration) *HealthSampler {
	if interval < 5*time.Second {
		interval = 30 * time.Second
	}
	return &HealthSampler{
		healthService: healthService,
		client:        client,
		interval:      interval,
		diskPath:      "/",
	}
}

// Start bắt đầu background worker lấy mẫu sức khỏe hệ thống
func (w *HealthSampler) Start(ctx context.Context) {
	log := logger.GetAppLogger()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.WithFields(map[string]interface{}{
		"interval": w.interval.String(),
	}).Info("🔄 [HEALTH_SAMPLER] Starting Health Sampler Worker...")

	for {
		select {
		case <-ctx.Done():
			log.Info("🔄 [HEALTH_SAMPLER] Health Sampler Worker stopped")
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.WithFields(map[string]interface{}{
							"panic": r,
						}).Error("🔄 [HEALTH_SAMPLER] Panic khi lấy mẫu sức khỏe, sẽ tiếp tục ở lần chạy tiếp theo")
					}
				}()

				sample := w.collect(ctx)
				if _, err := w.healthService.InsertOne(ctx, sample); err != nil {
					log.WithError(err).Error("🔄 [HEALTH_SAMPLER] Không ghi được health sample")
				}
			}()
		}
	}
}

// collect lấy một mẫu sức khỏe hệ thống. Mỗi phép đo lỗi được ghi 0
// thay vì làm hỏng cả mẫu.
func (w *HealthSampler) collect(ctx context.Context) HealthSample {
	now := time.Now()
	sample := HealthSample{
		Timestamp: now.UnixMilli(),
		SampledAt: primitive.NewDateTimeFromTime(now),
	}

	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sample.MemoryPercent = vm.UsedPercent
	}
	if usage, err := disk.UsageWithContext(ctx, w.diskPath); err == nil {
		sample.DiskPercent = usage.UsedPercent
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	start := time.Now()
	if err := w.client.Ping(pingCtx, readpref.Primary()); err == nil {
		sample.DBConnected = true
		sample.DBPingMillis = time.Since(start).Milliseconds()
	}

	return sample
}
